package creatures

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"pokaimon_back/apperr"
	"pokaimon_back/logging"

	"github.com/gin-gonic/gin"
)

const defaultMaxBodyBytes int64 = 4 << 20

// Module exposes the creature service over HTTP.
type Module struct {
	service      *Service
	logger       *slog.Logger
	maxBodyBytes int64
}

func NewModule(service *Service, logger *slog.Logger, maxBodyBytes int64) *Module {
	if logger == nil {
		logger = logging.Discard()
	}
	if maxBodyBytes <= 0 {
		maxBodyBytes = defaultMaxBodyBytes
	}
	return &Module{service: service, logger: logger, maxBodyBytes: maxBodyBytes}
}

// RegisterRoutes mounts the API under /api.
func (m *Module) RegisterRoutes(router gin.IRouter) {
	api := router.Group("/api")
	api.Use(m.limitBody)
	api.GET("/health", m.handleHealth)
	api.GET("/gallery", m.handleGallery)
	api.POST("/generate", m.handleGenerate)
	api.PATCH("/pokaimon/:id/like", m.handleLike)
	api.POST("/pokaimon/:id/action-image", m.handleActionImage)
}

func (m *Module) limitBody(c *gin.Context) {
	if c.Request.Body != nil {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, m.maxBodyBytes)
	}
	c.Next()
}

type generateRequest struct {
	DoodleData   string `json:"doodle_data"`
	GeminiAPIKey string `json:"gemini_api_key"`
}

type actionImageRequest struct {
	Power        json.RawMessage `json:"power"`
	Force        bool            `json:"force"`
	GeminiAPIKey string          `json:"gemini_api_key"`
}

// handleHealth godoc
// @Summary Liveness probe
// @Tags System
// @Success 200 {object} map[string]bool
func (m *Module) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// handleGallery godoc
// @Summary List all creatures, newest first
// @Tags Creatures
// @Success 200 {array} Creature
// @Failure 500 {object} map[string]string
func (m *Module) handleGallery(c *gin.Context) {
	creatures, err := m.service.Gallery(c.Request.Context())
	if err != nil {
		m.writeError(c, err, "Failed to fetch gallery")
		return
	}
	c.JSON(http.StatusOK, creatures)
}

// handleGenerate godoc
// @Summary Turn a doodle into a creature
// @Description Always returns a creature; AI failures fall back to a synthesized one.
// @Tags Creatures
// @Param body body generateRequest true "doodle"
// @Success 200 {object} Creature
// @Failure 400 {object} map[string]string
// @Failure 500 {object} map[string]string
func (m *Module) handleGenerate(c *gin.Context) {
	var req generateRequest
	if err := decodeBody(c, &req); err != nil {
		m.writeError(c, err, "Invalid request body")
		return
	}

	result, err := m.service.Generate(c.Request.Context(), GenerateInput{
		DoodleData: req.DoodleData,
		APIKey:     strings.TrimSpace(req.GeminiAPIKey),
	})
	if err != nil {
		m.writeError(c, err, "Failed to generate")
		return
	}
	c.Header("X-Creature-Source", string(result.Source))
	c.JSON(http.StatusOK, result.Creature)
}

// handleLike godoc
// @Summary Like a creature
// @Tags Creatures
// @Param id path int true "creature id"
// @Success 200 {object} Creature
// @Failure 400 {object} map[string]string
// @Failure 404 {object} map[string]string
func (m *Module) handleLike(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	creature, err := m.service.Like(c.Request.Context(), id)
	if err != nil {
		m.writeError(c, err, "Failed to like")
		return
	}
	c.JSON(http.StatusOK, creature)
}

// handleActionImage godoc
// @Summary Generate or reuse an image of a creature using a power
// @Tags Creatures
// @Param id path int true "creature id"
// @Success 200 {object} ActionImageResult
// @Failure 400 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Failure 500 {object} map[string]string
func (m *Module) handleActionImage(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	var req actionImageRequest
	if err := decodeBody(c, &req); err != nil {
		m.writeError(c, err, "Invalid request body")
		return
	}
	power, err := parsePower(req.Power)
	if err != nil {
		m.writeError(c, err, "power name required")
		return
	}

	result, err := m.service.ActionImage(c.Request.Context(), ActionImageRequest{
		CreatureID:       id,
		PowerName:        power.Name,
		PowerDescription: power.Description,
		Force:            req.Force,
		APIKey:           strings.TrimSpace(req.GeminiAPIKey),
	})
	if err != nil {
		m.writeError(c, err, "Failed to generate action image")
		return
	}
	c.JSON(http.StatusOK, result)
}

func parseID(c *gin.Context) (uint64, bool) {
	id, err := strconv.ParseUint(strings.TrimSpace(c.Param("id")), 10, 64)
	if err != nil || id == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid id", "code": apperr.CodeValidation})
		return 0, false
	}
	return id, true
}

// decodeBody reads an optional JSON body. An empty body leaves dest untouched.
func decodeBody(c *gin.Context, dest any) error {
	if c.Request.Body == nil {
		return nil
	}
	raw, err := io.ReadAll(c.Request.Body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return apperr.Validation("Request body too large")
		}
		return apperr.Validation("Invalid request body")
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		return apperr.Validation("Invalid request body")
	}
	return nil
}

// parsePower accepts either "Power Name" or {"name": ..., "description": ...}.
func parsePower(raw json.RawMessage) (Power, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return Power{}, apperr.Validation("power name required")
	}

	var p Power
	switch trimmed[0] {
	case '"':
		if err := json.Unmarshal(trimmed, &p.Name); err != nil {
			return Power{}, apperr.Validation("power name required")
		}
	case '{':
		if err := json.Unmarshal(trimmed, &p); err != nil {
			return Power{}, apperr.Validation("power name required")
		}
	default:
		return Power{}, apperr.Validation("power name required")
	}

	p.Name = strings.TrimSpace(p.Name)
	p.Description = strings.TrimSpace(p.Description)
	if p.Name == "" {
		return Power{}, apperr.Validation("power name required")
	}
	return p, nil
}

// writeError responds with the error category and a caller-safe message.
func (m *Module) writeError(c *gin.Context, err error, fallback string) {
	status := apperr.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		m.logger.ErrorContext(c.Request.Context(), "request failed",
			"method", c.Request.Method, "path", c.FullPath(), "error", err)
	}
	c.JSON(status, gin.H{"error": apperr.Message(err, fallback), "code": apperr.CodeOf(err)})
}
