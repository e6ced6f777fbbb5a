package creatures

import (
	"context"
	"errors"
	"strings"
	"testing"

	"pokaimon_back/storage"

	"github.com/go-git/go-billy/v5/memfs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type brokenImages struct{}

func (brokenImages) Save(context.Context, []byte, string) (string, error) {
	return "", errors.New("disk full")
}

func (brokenImages) Load(context.Context, string) ([]byte, error) {
	return nil, errors.New("disk full")
}

func TestSynthesizeIsDeterministicForSeed(t *testing.T) {
	images := storage.NewLocalStorage(memfs.New(), "/images")
	a, err := NewSynthesizer(images, NewRand(99)).Synthesize(context.Background(), "abc")
	require.NoError(t, err)
	b, err := NewSynthesizer(images, NewRand(99)).Synthesize(context.Background(), "abc")
	require.NoError(t, err)

	assert.Equal(t, a.Name, b.Name)
	assert.Equal(t, a.Type, b.Type)
	assert.Equal(t, a.Powers, b.Powers)
	assert.NotEqual(t, a.ImageURL, b.ImageURL)
}

func TestSynthesizeUsesPools(t *testing.T) {
	images := storage.NewLocalStorage(memfs.New(), "/images")
	c, err := NewSynthesizer(images, fixedRand(0)).Synthesize(context.Background(), strings.Repeat("x", 100))
	require.NoError(t, err)

	assert.Equal(t, "Pika-Doodle", c.Name)
	assert.Equal(t, "Fire/Fairy", c.Type)
	require.Len(t, c.Powers, 2)
	assert.Equal(t, "Hydro Pump", c.Powers[0].Name)
	assert.Equal(t, "Pika-Doodle blasts foes with high-pressure water.", c.Powers[0].Description)
	assert.Equal(t, "Ink Spray", c.Powers[1].Name)
	assert.Equal(t, fallbackCharacteristics, c.Characteristics)
	assert.Equal(t, strings.Repeat("x", 60)+"...", c.DoodleSource)
	assert.True(t, strings.HasPrefix(c.ImageURL, "/images/placeholder-"))

	data, err := images.Load(context.Background(), c.ImageURL)
	require.NoError(t, err)
	assert.Equal(t, placeholderPNG, data)

	c, err = NewSynthesizer(images, fixedRand(100)).Synthesize(context.Background(), "short")
	require.NoError(t, err)
	assert.Equal(t, "Draco-Scribble", c.Name)
	assert.Equal(t, "Rock/Dark", c.Type)
	assert.Equal(t, "Shadow Sneak", c.Powers[0].Name)
	assert.Equal(t, "short...", c.DoodleSource)
}

func TestSynthesizeFailsWhenImageStoreFails(t *testing.T) {
	_, err := NewSynthesizer(brokenImages{}, NewRand(1)).Synthesize(context.Background(), "abc")
	require.Error(t, err)
}
