package creatures

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"

	"pokaimon_back/apperr"
	"pokaimon_back/genai"
)

const actionImagePrefix = "action"

// ActionImageRequest asks for an image of a creature using one of its powers.
type ActionImageRequest struct {
	CreatureID       uint64
	PowerName        string
	PowerDescription string
	// Force regenerates even when an image is already stored for the power.
	Force  bool
	APIKey string
}

// ActionImageResult is the stored URL and whether it was reused.
type ActionImageResult struct {
	ImageURL string `json:"image_url"`
	Cached   bool   `json:"cached"`
}

// ActionImage returns the stored image for (creature, power) or generates one.
// A hit never calls the AI service. AI failures are returned as upstream errors.
func (s *Service) ActionImage(ctx context.Context, req ActionImageRequest) (*ActionImageResult, error) {
	power := strings.TrimSpace(req.PowerName)
	if power == "" {
		return nil, apperr.Validation("power name required")
	}

	c, err := s.repo.GetByID(ctx, req.CreatureID)
	if err != nil {
		return nil, err
	}
	if !req.Force {
		if url, ok := c.ActionImages.Lookup(power); ok {
			return &ActionImageResult{ImageURL: url, Cached: true}, nil
		}
	}

	if !s.dedupe {
		return s.generateActionImage(ctx, c, power, req)
	}

	v, err, _ := s.flights.Do(flightKey(req.CreatureID, power, req), func() (any, error) {
		return s.generateActionImage(context.WithoutCancel(ctx), c, power, req)
	})
	if err != nil {
		return nil, err
	}
	res := *v.(*ActionImageResult)
	return &res, nil
}

func (s *Service) generateActionImage(ctx context.Context, c *Creature, power string, req ActionImageRequest) (*ActionImageResult, error) {
	if s.dedupe && !req.Force {
		// A flight that finished just before this one may have stored the image.
		fresh, err := s.repo.GetByID(ctx, c.ID)
		if err != nil {
			return nil, err
		}
		if url, ok := fresh.ActionImages.Lookup(power); ok {
			return &ActionImageResult{ImageURL: url, Cached: true}, nil
		}
		c = fresh
	}

	description := strings.TrimSpace(req.PowerDescription)
	if description == "" {
		description = describedPower(c, power)
	}

	var reference []byte
	if c.ImageURL != "" {
		data, err := s.images.Load(ctx, c.ImageURL)
		if err != nil {
			s.logger.WarnContext(ctx, "reference image unavailable", "id", c.ID, "error", err)
		} else {
			reference = data
		}
	}

	if s.ai == nil {
		return nil, apperr.Upstream("Failed to generate action image", genai.ErrMissingAPIKey)
	}
	framing := chooseFraming(s.rand)
	temperature := actionTemperature
	image, err := s.ai.GenerateImage(ctx, genai.ImageRequest{
		Instruction: actionInstruction(c, Power{Name: power, Description: description}, framing),
		Reference:   reference,
		Temperature: &temperature,
		APIKey:      req.APIKey,
	})
	if err != nil {
		s.logger.ErrorContext(ctx, "action image generation failed", "id", c.ID, "power", power, "error", err)
		return nil, apperr.Upstream("Failed to generate action image", err)
	}

	url, err := s.images.Save(ctx, image, actionImagePrefix)
	if err != nil {
		return nil, apperr.Persistence("Failed to store action image", err)
	}
	if _, err := s.repo.MergeActionImage(ctx, c.ID, power, url); err != nil {
		return nil, err
	}
	if s.invalidateOnAction {
		s.gallery.Invalidate(ctx)
	}
	s.logger.InfoContext(ctx, "action image generated", "id", c.ID, "power", power, "angle", framing.Angle, "pose", framing.Pose)
	return &ActionImageResult{ImageURL: url, Cached: false}, nil
}

// flightKey groups callers that may share one generation. Callers with
// different API keys never share a flight.
func flightKey(id uint64, power string, req ActionImageRequest) string {
	key := strconv.FormatUint(id, 10) + ":" + power
	if req.Force {
		key += ":force"
	}
	if req.APIKey != "" {
		sum := sha256.Sum256([]byte(req.APIKey))
		key += ":" + hex.EncodeToString(sum[:8])
	}
	return key
}

// describedPower returns the stored description of power, if the creature has it.
func describedPower(c *Creature, power string) string {
	for _, p := range c.Powers {
		if strings.EqualFold(p.Name, power) {
			return p.Description
		}
	}
	return ""
}
