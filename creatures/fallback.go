package creatures

import (
	"context"
	"encoding/base64"
	"fmt"
	"unicode/utf8"
)

const (
	doodleSourceLimit = 60
	placeholderPrefix = "placeholder"
)

var (
	fallbackPrimaryTypes   = []string{"Fire", "Water", "Grass", "Electric", "Ghost", "Psychic", "Rock"}
	fallbackSecondaryTypes = []string{"Fairy", "Steel", "Ice", "Dragon", "Ground", "Flying", "Dark"}
	fallbackNames          = []string{"Pika", "Squir", "Bulba", "Charm", "Eevee", "Mew", "Abra", "Draco"}
	fallbackSuffixes       = []string{"-Doodle", "-Sketch", "-Ink", "-Scribble"}
	fallbackPowerPairs     = [][2]Power{
		{
			{Name: "Hydro Pump", Description: "Blasts foes with high-pressure water."},
			{Name: "Ink Spray", Description: "Squirts ink to obscure vision."},
		},
		{
			{Name: "Flame Burst", Description: "Explodes embers on contact."},
			{Name: "Char Mark", Description: "Leaves a scorching trail."},
		},
		{
			{Name: "Leaf Blade", Description: "Cuts with razor-sharp leaves."},
			{Name: "Vine Swipe", Description: "Whips foes with vines."},
		},
		{
			{Name: "Thunder Jolt", Description: "Quick electric shock."},
			{Name: "Spark Trail", Description: "Leaves crackling sparks behind."},
		},
		{
			{Name: "Shadow Sneak", Description: "Strikes from the shadows."},
			{Name: "Spook Flick", Description: "Startles enemies briefly."},
		},
	}
	fallbackCharacteristics = "Loves to draw; slightly grumpy."
)

// placeholderPNG is a 1x1 PNG written as the image of every synthesized creature.
var placeholderPNG = mustDecodeBase64("iVBORw0KGgoAAAANSUhEUgAAAAEAAAABCAYAAAAfFcSJAAAADUlEQVR42mNk+M9QDwADhgGAWjR9awAAAABJRU5ErkJggg==")

func mustDecodeBase64(s string) []byte {
	data, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		panic(err)
	}
	return data
}

// Synthesizer builds creatures from fixed pools without calling the AI service.
type Synthesizer struct {
	images ImageStore
	rand   Rand
}

func NewSynthesizer(images ImageStore, r Rand) *Synthesizer {
	if r == nil {
		r = NewSeededRand()
	}
	return &Synthesizer{images: images, rand: r}
}

// Synthesize returns an unsaved creature. Its only failure is the placeholder upload.
func (s *Synthesizer) Synthesize(ctx context.Context, doodle string) (*Creature, error) {
	name := pick(s.rand, fallbackNames) + pick(s.rand, fallbackSuffixes)
	pair := pick(s.rand, fallbackPowerPairs)

	url, err := s.images.Save(ctx, placeholderPNG, placeholderPrefix)
	if err != nil {
		return nil, fmt.Errorf("creatures: store placeholder image: %w", err)
	}

	return &Creature{
		Name:            name,
		Type:            pick(s.rand, fallbackPrimaryTypes) + typeSeparator + pick(s.rand, fallbackSecondaryTypes),
		Powers:          NormalizePowers(name, pair[:]),
		Characteristics: fallbackCharacteristics,
		ImageURL:        url,
		DoodleSource:    truncateSource(doodle),
		ActionImages:    ActionImages{},
	}, nil
}

// truncateSource keeps the first 60 characters of the payload plus an ellipsis.
func truncateSource(doodle string) string {
	if utf8.RuneCountInString(doodle) <= doodleSourceLimit {
		return doodle + "..."
	}
	runes := []rune(doodle)
	return string(runes[:doodleSourceLimit]) + "..."
}
