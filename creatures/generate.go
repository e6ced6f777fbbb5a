package creatures

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"pokaimon_back/apperr"
	"pokaimon_back/genai"
)

const primaryImagePrefix = "pokemon"

// Source tells which path produced a creature.
type Source string

const (
	SourceAI       Source = "ai_generated"
	SourceFallback Source = "synthesized"
)

// Step names one stage of the AI path.
type Step string

const (
	StepImage     Step = "generate_image"
	StepUpload    Step = "upload_image"
	StepMetadata  Step = "generate_metadata"
	StepNormalize Step = "normalize_metadata"
	StepPersist   Step = "persist"
)

// GenerateInput is a doodle to turn into a creature.
type GenerateInput struct {
	// DoodleData is base64 image data, optionally as a data URL.
	DoodleData string
	// APIKey overrides the configured AI key for this request.
	APIKey string
}

// Result is the stored creature and the path that produced it.
type Result struct {
	Creature *Creature
	Source   Source
}

// aiAttempt records how far the AI path got.
type aiAttempt struct {
	creature *Creature
	failedAt Step
	err      error
}

// chooseSource decides between the AI record and a synthesized one. Any failed
// step discards the whole AI record.
func chooseSource(a aiAttempt) Source {
	if a.err == nil && a.creature != nil && a.creature.ID != 0 {
		return SourceAI
	}
	return SourceFallback
}

// Generate creates one creature from a doodle. It only fails on invalid input
// or when the synthesized creature cannot be stored.
func (s *Service) Generate(ctx context.Context, in GenerateInput) (*Result, error) {
	doodle := strings.TrimSpace(in.DoodleData)
	if doodle == "" {
		return nil, apperr.Validation("doodle_data required")
	}

	attempt := s.runAI(ctx, doodle, in.APIKey)
	switch chooseSource(attempt) {
	case SourceAI:
		s.gallery.Invalidate(ctx)
		s.logger.InfoContext(ctx, "creature generated", "id", attempt.creature.ID, "source", SourceAI)
		return &Result{Creature: attempt.creature, Source: SourceAI}, nil
	default:
		s.logger.WarnContext(ctx, "ai generation failed, using fallback", "step", attempt.failedAt, "error", attempt.err)
		c, err := s.synthesize(ctx, doodle)
		if err != nil {
			return nil, err
		}
		s.gallery.Invalidate(ctx)
		s.logger.InfoContext(ctx, "creature generated", "id", c.ID, "source", SourceFallback)
		return &Result{Creature: c, Source: SourceFallback}, nil
	}
}

// runAI executes the AI path. Images uploaded before a later failure are left in
// the image store.
func (s *Service) runAI(ctx context.Context, doodle, apiKey string) aiAttempt {
	fail := func(step Step, err error) aiAttempt {
		return aiAttempt{failedAt: step, err: err}
	}
	if s.ai == nil {
		return fail(StepImage, genai.ErrMissingAPIKey)
	}

	reference, err := decodeDoodle(doodle)
	if err != nil {
		return fail(StepImage, err)
	}
	image, err := s.ai.GenerateImage(ctx, genai.ImageRequest{
		Instruction: doodleImageInstruction,
		Reference:   reference,
		APIKey:      apiKey,
	})
	if err != nil {
		return fail(StepImage, err)
	}

	url, err := s.images.Save(ctx, image, primaryImagePrefix)
	if err != nil {
		return fail(StepUpload, err)
	}

	meta, err := s.ai.GenerateMetadata(ctx, genai.MetadataRequest{
		Instruction: metadataInstruction,
		Reference:   image,
		APIKey:      apiKey,
	})
	if err != nil {
		return fail(StepMetadata, err)
	}

	normalized, err := s.normalize(meta)
	if err != nil {
		return fail(StepNormalize, err)
	}

	c := &Creature{
		Name:            normalized.Name,
		Type:            normalized.Type,
		Powers:          normalized.Powers,
		Characteristics: normalized.Characteristics,
		ImageURL:        url,
		DoodleSource:    truncateSource(doodle),
		ActionImages:    ActionImages{},
	}
	if err := s.repo.Insert(ctx, c); err != nil {
		return fail(StepPersist, err)
	}
	return aiAttempt{creature: c}
}

func (s *Service) synthesize(ctx context.Context, doodle string) (*Creature, error) {
	c, err := s.synthesizer.Synthesize(ctx, doodle)
	if err != nil {
		return nil, apperr.Persistence("Failed to generate creature", err)
	}
	if err := s.repo.Insert(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

// decodeDoodle strips an optional data URL header and decodes the base64 body.
func decodeDoodle(doodle string) ([]byte, error) {
	if i := strings.Index(doodle, ","); i >= 0 && strings.HasPrefix(doodle, "data:") {
		doodle = doodle[i+1:]
	}
	data, err := base64.StdEncoding.DecodeString(doodle)
	if err != nil {
		return nil, fmt.Errorf("creatures: decode doodle: %w", err)
	}
	if len(data) == 0 {
		return nil, errors.New("creatures: empty doodle")
	}
	return data, nil
}
