package genai

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
)

// AllowedTypes is the closed set of elemental tags a creature may carry.
var AllowedTypes = []string{
	"Normal", "Fire", "Water", "Grass", "Electric", "Ice", "Fighting", "Poison", "Ground",
	"Flying", "Psychic", "Bug", "Rock", "Ghost", "Dragon", "Dark", "Steel", "Fairy",
}

// ErrSchemaViolation marks structured output that does not match the requested schema.
var ErrSchemaViolation = errors.New("genai: metadata violates schema")

// Power is one proposed ability.
type Power struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// Metadata is the schema-validated creature proposal returned by the text model.
type Metadata struct {
	Name            string
	Types           []string
	Characteristics string
	Powers          []Power
}

type metadataWire struct {
	Name            *string         `json:"name"`
	Type            json.RawMessage `json:"type"`
	Characteristics *string         `json:"characteristics"`
	Powers          *[]powerWire    `json:"powers"`
}

type powerWire struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
}

// DecodeMetadata strictly validates raw against the metadata schema. Unknown fields,
// missing required fields, a type list outside 1..2 entries, tags outside
// AllowedTypes and trailing data are all rejected with ErrSchemaViolation.
func DecodeMetadata(raw []byte) (Metadata, error) {
	dec := json.NewDecoder(bytes.NewReader(bytes.TrimSpace(raw)))
	dec.DisallowUnknownFields()

	var wire metadataWire
	if err := dec.Decode(&wire); err != nil {
		return Metadata{}, violation("decode: %v", err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return Metadata{}, violation("trailing data after object")
	}

	if wire.Name == nil {
		return Metadata{}, violation("name is required")
	}
	if wire.Characteristics == nil {
		return Metadata{}, violation("characteristics is required")
	}
	if wire.Powers == nil {
		return Metadata{}, violation("powers is required")
	}
	if len(wire.Type) == 0 {
		return Metadata{}, violation("type is required")
	}

	var types []string
	if err := json.Unmarshal(wire.Type, &types); err != nil {
		return Metadata{}, violation("type must be an array of strings")
	}
	if len(types) < 1 || len(types) > 2 {
		return Metadata{}, violation("type must contain 1 or 2 values, got %d", len(types))
	}
	for _, tag := range types {
		if !isAllowedType(tag) {
			return Metadata{}, violation("type %q is not allowed", tag)
		}
	}

	powers := make([]Power, 0, len(*wire.Powers))
	for i, p := range *wire.Powers {
		if p.Name == nil || p.Description == nil {
			return Metadata{}, violation("powers[%d] requires name and description", i)
		}
		powers = append(powers, Power{Name: *p.Name, Description: *p.Description})
	}

	return Metadata{
		Name:            *wire.Name,
		Types:           types,
		Characteristics: *wire.Characteristics,
		Powers:          powers,
	}, nil
}

func violation(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrSchemaViolation, fmt.Sprintf(format, args...))
}

func isAllowedType(tag string) bool {
	for _, allowed := range AllowedTypes {
		if tag == allowed {
			return true
		}
	}
	return false
}

func metadataSchema() map[string]any {
	return map[string]any{
		"type":     "OBJECT",
		"required": []string{"characteristics", "type", "name", "powers"},
		"properties": map[string]any{
			"characteristics": map[string]any{"type": "STRING"},
			"type": map[string]any{
				"type":     "ARRAY",
				"items":    map[string]any{"type": "STRING", "enum": AllowedTypes},
				"minItems": 1,
				"maxItems": 2,
			},
			"name": map[string]any{"type": "STRING"},
			"powers": map[string]any{
				"type": "ARRAY",
				"items": map[string]any{
					"type":     "OBJECT",
					"required": []string{"name", "description"},
					"properties": map[string]any{
						"name":        map[string]any{"type": "STRING"},
						"description": map[string]any{"type": "STRING"},
					},
				},
			},
		},
	}
}

var metadataGuidance = strings.Join([]string{
	"Return JSON only. Fields: name (short, memorable),",
	`type (1-2 values from the allowed list; do not invent new types; do not use "Doodle"),`,
	"characteristics (one sentence personality/appearance),",
	"powers (array of {name, description}).",
	`In each power.description, write in third person using the character's generated name explicitly (e.g., "<NAME> unleashes ..."), never "the user" or "the creature".`,
}, " ")
