package creatures

import (
	"context"
	"encoding/base64"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"pokaimon_back/cache"
	"pokaimon_back/genai"
	"pokaimon_back/logging"
	"pokaimon_back/storage"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-git/go-billy/v5/memfs"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

var (
	errAIDown      = errors.New("ai service unavailable")
	placeholderB64 = base64.StdEncoding.EncodeToString(placeholderPNG)
)

// fakeGenerator returns placeholder PNGs and configurable metadata.
type fakeGenerator struct {
	mu        sync.Mutex
	imageErr  error
	metaErr   error
	meta      genai.Metadata
	imageReqs []genai.ImageRequest

	imageCalls atomic.Int32
	metaCalls  atomic.Int32

	// started receives once per image call; release, when set, blocks each
	// image call until it is closed or receives.
	started chan struct{}
	release chan struct{}
}

func newFakeGenerator() *fakeGenerator {
	return &fakeGenerator{meta: genai.Metadata{
		Name:            "Inkling",
		Types:           []string{"Water", "Dark"},
		Characteristics: "A shy squid that paints with its tentacles.",
		Powers: []genai.Power{
			{Name: "Ink Jet", Description: "The creature fires a jet of ink."},
			{Name: "Swirl", Description: "Spins in a whirlpool."},
		},
	}}
}

func (f *fakeGenerator) GenerateImage(ctx context.Context, req genai.ImageRequest) ([]byte, error) {
	f.imageCalls.Add(1)
	f.mu.Lock()
	f.imageReqs = append(f.imageReqs, req)
	err := f.imageErr
	f.mu.Unlock()

	if f.started != nil {
		f.started <- struct{}{}
	}
	if f.release != nil {
		select {
		case <-f.release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, err
	}
	return placeholderPNG, nil
}

func (f *fakeGenerator) GenerateMetadata(_ context.Context, _ genai.MetadataRequest) (genai.Metadata, error) {
	f.metaCalls.Add(1)
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.metaErr != nil {
		return genai.Metadata{}, f.metaErr
	}
	return f.meta, nil
}

func (f *fakeGenerator) lastImageRequest() genai.ImageRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.imageReqs[len(f.imageReqs)-1]
}

// failingImages fails Save for one prefix and delegates everything else.
type failingImages struct {
	ImageStore
	failPrefix string
}

func (f failingImages) Save(ctx context.Context, data []byte, prefix string) (string, error) {
	if prefix == f.failPrefix {
		return "", errors.New("bucket unavailable")
	}
	return f.ImageStore.Save(ctx, data, prefix)
}

// flakyRepo fails the first failInserts inserts.
type flakyRepo struct {
	Repository
	failInserts atomic.Int32
}

func (r *flakyRepo) Insert(ctx context.Context, c *Creature) error {
	if r.failInserts.Add(-1) >= 0 {
		return errors.New("database is locked")
	}
	return r.Repository.Insert(ctx, c)
}

// fixedRand always returns the same index, clamped to n.
type fixedRand int

func (r fixedRand) IntN(n int) int {
	if int(r) >= n {
		return n - 1
	}
	return int(r)
}

type testEnv struct {
	db      *gorm.DB
	store   *Store
	images  *storage.LocalStorage
	ai      *fakeGenerator
	redis   *miniredis.Miniredis
	cache   *cache.Store
	service *Service
}

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := OpenDatabase("sqlite", filepath.Join(t.TempDir(), "creatures.db"), nil)
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	return db
}

func newTestEnv(t *testing.T, mutate func(env *testEnv, opts *Options)) *testEnv {
	t.Helper()
	db := openTestDB(t)
	store := NewStore(db)
	require.NoError(t, store.AutoMigrate())

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	cacheStore := cache.NewStore(client, logging.Discard())

	env := &testEnv{
		db:     db,
		store:  store,
		images: storage.NewLocalStorage(memfs.New(), "/images"),
		ai:     newFakeGenerator(),
		redis:  mr,
		cache:  cacheStore,
	}
	opts := Options{
		Repository:         store,
		Images:             env.images,
		Generator:          env.ai,
		Cache:              cacheStore,
		Logger:             logging.Discard(),
		Rand:               NewRand(7),
		GalleryTTL:         time.Minute,
		DedupeActionImages: true,
	}
	if mutate != nil {
		mutate(env, &opts)
	}
	env.service = NewService(opts)
	return env
}

func (e *testEnv) seed(t *testing.T, name string) *Creature {
	t.Helper()
	c := &Creature{
		Name:            name,
		Type:            "Fire",
		Powers:          []Power{{Name: "Blaze", Description: name + " blazes."}},
		Characteristics: "Warm.",
		ImageURL:        mustSave(t, e.images, "pokemon"),
		DoodleSource:    "data:image/png;base64,...",
	}
	require.NoError(t, e.store.Insert(context.Background(), c))
	return c
}

func mustSave(t *testing.T, images ImageStore, prefix string) string {
	t.Helper()
	url, err := images.Save(context.Background(), placeholderPNG, prefix)
	require.NoError(t, err)
	return url
}

func isFallbackName(name string) bool {
	for _, base := range fallbackNames {
		for _, suffix := range fallbackSuffixes {
			if name == base+suffix {
				return true
			}
		}
	}
	return false
}

func isFallbackPair(powers []Power) bool {
	if len(powers) != 2 {
		return false
	}
	for _, pair := range fallbackPowerPairs {
		if powers[0].Name == pair[0].Name && powers[1].Name == pair[1].Name {
			return true
		}
	}
	return false
}

func assertValidType(t *testing.T, stored string) {
	t.Helper()
	parts := strings.Split(stored, typeSeparator)
	require.GreaterOrEqual(t, len(parts), 1)
	require.LessOrEqual(t, len(parts), 2)
	for _, part := range parts {
		_, ok := canonicalType(part)
		require.True(t, ok, "type %q out of set", part)
	}
}
