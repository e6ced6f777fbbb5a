package creatures

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"pokaimon_back/genai"
)

const (
	typeSeparator          = "/"
	baselineType           = "Normal"
	maxTypes               = 2
	defaultName            = "Sketchy"
	defaultCharacteristics = "Cheerful and imaginative."
)

var genericReferent = regexp.MustCompile(`(?i)\bthe (?:user|creature|character)\b`)

// defaultPowers fill in when the model proposes no usable powers. Descriptions
// are normalized like any other.
var defaultPowers = []Power{
	{Name: "Ink Splash", Description: "Splashes ink playfully."},
	{Name: "Doodle Dash", Description: "Dashes leaving doodle lines."},
}

// NormalizedMetadata is model output after every invariant has been enforced.
type NormalizedMetadata struct {
	Name            string
	Type            string
	Characteristics string
	Powers          []Power
}

// NormalizeMetadata fills defaults, joins types and rewrites every power
// description so it names the creature as a whole word.
func NormalizeMetadata(meta genai.Metadata) (NormalizedMetadata, error) {
	out := NormalizedMetadata{
		Name:            strings.TrimSpace(meta.Name),
		Type:            NormalizeType(meta.Types),
		Characteristics: strings.TrimSpace(meta.Characteristics),
	}
	if out.Name == "" {
		out.Name = defaultName
	}
	if out.Characteristics == "" {
		out.Characteristics = defaultCharacteristics
	}

	proposed := make([]Power, 0, len(meta.Powers))
	for _, p := range meta.Powers {
		if strings.TrimSpace(p.Name) == "" {
			continue
		}
		proposed = append(proposed, Power{Name: strings.TrimSpace(p.Name), Description: p.Description})
	}
	if len(proposed) == 0 {
		proposed = append(proposed, defaultPowers...)
	}
	out.Powers = NormalizePowers(out.Name, proposed)

	for _, p := range out.Powers {
		if !MentionsName(p.Description, out.Name) {
			return NormalizedMetadata{}, fmt.Errorf("creatures: power %q does not mention %q", p.Name, out.Name)
		}
	}
	return out, nil
}

// NormalizePowers returns a copy of powers whose descriptions all mention name.
func NormalizePowers(name string, powers []Power) []Power {
	out := make([]Power, len(powers))
	for i, p := range powers {
		out[i] = Power{Name: p.Name, Description: normalizeDescription(name, p.Description)}
	}
	return out
}

func normalizeDescription(name, description string) string {
	text := strings.TrimSpace(genericReferent.ReplaceAllLiteralString(description, name))
	if MentionsName(text, name) {
		return text
	}
	return strings.TrimSpace(name + " " + lowerFirst(text))
}

// MentionsName reports whether text contains name as a case-insensitive whole word.
func MentionsName(text, name string) bool {
	name = strings.TrimSpace(name)
	if name == "" {
		return false
	}
	re, err := regexp.Compile(`(?i)(?:^|[^\p{L}\p{N}_])` + regexp.QuoteMeta(name) + `(?:$|[^\p{L}\p{N}_])`)
	if err != nil {
		return false
	}
	return re.MatchString(text)
}

func lowerFirst(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToLower(r)) + s[size:]
}

// NormalizeType canonicalizes tags against genai.AllowedTypes, keeping at most
// two distinct ones. No valid tag yields the baseline type.
func NormalizeType(tags []string) string {
	seen := make(map[string]bool, maxTypes)
	kept := make([]string, 0, maxTypes)
	for _, tag := range tags {
		canonical, ok := canonicalType(tag)
		if !ok || seen[canonical] {
			continue
		}
		seen[canonical] = true
		kept = append(kept, canonical)
		if len(kept) == maxTypes {
			break
		}
	}
	if len(kept) == 0 {
		return baselineType
	}
	return strings.Join(kept, typeSeparator)
}

func canonicalType(tag string) (string, bool) {
	tag = strings.TrimSpace(tag)
	for _, allowed := range genai.AllowedTypes {
		if strings.EqualFold(tag, allowed) {
			return allowed, true
		}
	}
	return "", false
}
