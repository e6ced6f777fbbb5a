package creatures

import (
	"context"
	"log/slog"
	"time"

	"pokaimon_back/cache"
	"pokaimon_back/genai"
	"pokaimon_back/logging"

	"golang.org/x/sync/singleflight"
)

// Repository is the persistent store. Every method is atomic on a single row.
type Repository interface {
	Insert(ctx context.Context, c *Creature) error
	ListNewestFirst(ctx context.Context) ([]Creature, error)
	GetByID(ctx context.Context, id uint64) (*Creature, error)
	IncrementLike(ctx context.Context, id uint64) (*Creature, error)
	MergeActionImage(ctx context.Context, id uint64, power, url string) (*Creature, error)
}

// ImageStore saves image bytes and reads them back by URL.
type ImageStore interface {
	Save(ctx context.Context, data []byte, prefix string) (string, error)
	Load(ctx context.Context, url string) ([]byte, error)
}

// Generator is the generative AI client.
type Generator interface {
	GenerateImage(ctx context.Context, req genai.ImageRequest) ([]byte, error)
	GenerateMetadata(ctx context.Context, req genai.MetadataRequest) (genai.Metadata, error)
}

// Options wires a Service. Repository, Images and Generator are required.
type Options struct {
	Repository Repository
	Images     ImageStore
	Generator  Generator
	Cache      *cache.Store
	Logger     *slog.Logger
	Rand       Rand

	GalleryTTL time.Duration
	// ActionImageInvalidatesGallery drops the gallery key after each action image.
	ActionImageInvalidatesGallery bool
	// DedupeActionImages collapses concurrent generations of the same
	// (creature, power) inside this process into one AI call.
	DedupeActionImages bool
}

// Service implements generation, likes, action images and the gallery.
type Service struct {
	repo        Repository
	images      ImageStore
	ai          Generator
	gallery     *Gallery
	synthesizer *Synthesizer
	logger      *slog.Logger
	rand        Rand

	normalize func(genai.Metadata) (NormalizedMetadata, error)

	invalidateOnAction bool
	dedupe             bool
	flights            singleflight.Group
}

func NewService(opts Options) *Service {
	logger := opts.Logger
	if logger == nil {
		logger = logging.Discard()
	}
	r := opts.Rand
	if r == nil {
		r = NewSeededRand()
	}
	return &Service{
		repo:               opts.Repository,
		images:             opts.Images,
		ai:                 opts.Generator,
		gallery:            NewGallery(opts.Repository, opts.Cache, opts.GalleryTTL),
		synthesizer:        NewSynthesizer(opts.Images, r),
		logger:             logger,
		rand:               r,
		normalize:          NormalizeMetadata,
		invalidateOnAction: opts.ActionImageInvalidatesGallery,
		dedupe:             opts.DedupeActionImages,
	}
}

// Gallery lists every creature, newest first.
func (s *Service) Gallery(ctx context.Context) ([]Creature, error) {
	return s.gallery.List(ctx)
}

// Like increments the like counter. The gallery key is dropped only when a row changed.
func (s *Service) Like(ctx context.Context, id uint64) (*Creature, error) {
	c, err := s.repo.IncrementLike(ctx, id)
	if err != nil {
		return nil, err
	}
	s.gallery.Invalidate(ctx)
	return c, nil
}
