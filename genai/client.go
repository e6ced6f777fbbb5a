package genai

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
)

const (
	defaultBaseURL    = "https://generativelanguage.googleapis.com/v1beta"
	defaultImageModel = "gemini-2.5-flash-image-preview"
	defaultTextModel  = "gemini-flash-lite-latest"
	defaultTimeout    = 60 * time.Second
)

// ErrMissingAPIKey is returned when neither the client nor the request carries a key.
var ErrMissingAPIKey = errors.New("genai: GEMINI_API_KEY missing")

// Config configures a Client. Empty fields take the package defaults.
type Config struct {
	APIKey     string
	BaseURL    string
	ImageModel string
	TextModel  string
	// Timeout bounds each individual generateContent call.
	Timeout    time.Duration
	HTTPClient *http.Client
}

// Client calls the Gemini generateContent REST API for image and structured text output.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	imageModel string
	textModel  string
	timeout    time.Duration
}

// NewClient builds a Client. A missing API key is not an error here; calls fail
// with ErrMissingAPIKey unless the request supplies its own key.
func NewClient(cfg Config) (*Client, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	if !strings.HasPrefix(baseURL, "http://") && !strings.HasPrefix(baseURL, "https://") {
		return nil, fmt.Errorf("genai: invalid base URL %q", baseURL)
	}

	c := &Client{
		httpClient: cfg.HTTPClient,
		baseURL:    baseURL,
		apiKey:     strings.TrimSpace(cfg.APIKey),
		imageModel: firstNonEmpty(cfg.ImageModel, defaultImageModel),
		textModel:  firstNonEmpty(cfg.TextModel, defaultTextModel),
		timeout:    cfg.Timeout,
	}
	if c.httpClient == nil {
		c.httpClient = &http.Client{}
	}
	if c.timeout <= 0 {
		c.timeout = defaultTimeout
	}
	return c, nil
}

// ImageRequest asks the image model to render Instruction, optionally guided by Reference.
type ImageRequest struct {
	Instruction string
	Reference   []byte
	Temperature *float64
	// APIKey overrides the configured key for this call only.
	APIKey string
}

// MetadataRequest asks the text model for schema-constrained creature metadata.
type MetadataRequest struct {
	Instruction string
	Reference   []byte
	APIKey      string
}

// GenerateImage returns the raw bytes of the first image in the model response.
func (c *Client) GenerateImage(ctx context.Context, req ImageRequest) ([]byte, error) {
	payload := generateRequest{
		Contents: []content{{Role: "user", Parts: buildParts(req.Instruction, req.Reference)}},
		GenerationConfig: &generationConfig{
			ResponseModalities: []string{"IMAGE"},
			Temperature:        req.Temperature,
		},
	}

	var resp generateResponse
	if err := c.generate(ctx, c.imageModel, req.APIKey, payload, &resp); err != nil {
		return nil, err
	}

	for _, p := range resp.firstParts() {
		if p.InlineData == nil || p.InlineData.Data == "" {
			continue
		}
		data, err := base64.StdEncoding.DecodeString(p.InlineData.Data)
		if err != nil {
			return nil, fmt.Errorf("genai: decode image data: %w", err)
		}
		return data, nil
	}
	return nil, errors.New("genai: no image data in response")
}

// GenerateMetadata returns metadata that passed DecodeMetadata. Any schema
// violation is returned as an error wrapping ErrSchemaViolation.
func (c *Client) GenerateMetadata(ctx context.Context, req MetadataRequest) (Metadata, error) {
	instruction := strings.TrimSpace(req.Instruction)
	if instruction == "" {
		instruction = "Design a new original battle-creature based on the provided reference."
	}
	payload := generateRequest{
		Contents: []content{{Role: "user", Parts: buildParts(instruction+" "+metadataGuidance, req.Reference)}},
		GenerationConfig: &generationConfig{
			ResponseMimeType: "application/json",
			ResponseSchema:   metadataSchema(),
			ThinkingConfig:   &thinkingConfig{ThinkingBudget: 0},
		},
	}

	var resp generateResponse
	if err := c.generate(ctx, c.textModel, req.APIKey, payload, &resp); err != nil {
		return Metadata{}, err
	}

	var text strings.Builder
	for _, p := range resp.firstParts() {
		text.WriteString(p.Text)
	}
	if strings.TrimSpace(text.String()) == "" {
		return Metadata{}, errors.New("genai: no text in response")
	}
	return DecodeMetadata([]byte(text.String()))
}

func (c *Client) generate(ctx context.Context, model, apiKey string, payload generateRequest, out *generateResponse) error {
	key := strings.TrimSpace(apiKey)
	if key == "" {
		key = c.apiKey
	}
	if key == "" {
		return ErrMissingAPIKey
	}

	body := &bytes.Buffer{}
	if err := json.NewEncoder(body).Encode(payload); err != nil {
		return fmt.Errorf("genai: encode request: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	endpoint := fmt.Sprintf("%s/models/%s:generateContent", c.baseURL, strings.TrimPrefix(model, "models/"))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, body)
	if err != nil {
		return fmt.Errorf("genai: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", key)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("genai: execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var errResp errorResponse
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		if json.Unmarshal(snippet, &errResp) == nil && errResp.Error.Message != "" {
			return fmt.Errorf("genai: unexpected status %s: %s", resp.Status, errResp.Error.Message)
		}
		return fmt.Errorf("genai: unexpected status %s", resp.Status)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("genai: decode response: %w", err)
	}
	if out.PromptFeedback != nil && out.PromptFeedback.BlockReason != "" {
		return fmt.Errorf("genai: prompt blocked: %s", out.PromptFeedback.BlockReason)
	}
	if len(out.Candidates) == 0 {
		return errors.New("genai: response contains no candidates")
	}
	return nil
}

func buildParts(instruction string, reference []byte) []part {
	parts := []part{{Text: instruction}}
	if len(reference) > 0 {
		parts = append(parts, part{InlineData: &inlineData{
			MimeType: mimetype.Detect(reference).String(),
			Data:     base64.StdEncoding.EncodeToString(reference),
		}})
	}
	return parts
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if trimmed := strings.TrimSpace(v); trimmed != "" {
			return trimmed
		}
	}
	return ""
}

type inlineData struct {
	MimeType string `json:"mimeType"`
	Data     string `json:"data"`
}

type part struct {
	Text       string      `json:"text,omitempty"`
	InlineData *inlineData `json:"inlineData,omitempty"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type thinkingConfig struct {
	ThinkingBudget int `json:"thinkingBudget"`
}

type generationConfig struct {
	ResponseModalities []string        `json:"responseModalities,omitempty"`
	ResponseMimeType   string          `json:"responseMimeType,omitempty"`
	ResponseSchema     map[string]any  `json:"responseSchema,omitempty"`
	Temperature        *float64        `json:"temperature,omitempty"`
	ThinkingConfig     *thinkingConfig `json:"thinkingConfig,omitempty"`
}

type generateRequest struct {
	Contents         []content         `json:"contents"`
	GenerationConfig *generationConfig `json:"generationConfig,omitempty"`
}

type generateResponse struct {
	Candidates []struct {
		Content content `json:"content"`
	} `json:"candidates"`
	PromptFeedback *struct {
		BlockReason string `json:"blockReason"`
	} `json:"promptFeedback,omitempty"`
}

func (r *generateResponse) firstParts() []part {
	if len(r.Candidates) == 0 {
		return nil
	}
	return r.Candidates[0].Content.Parts
}

type errorResponse struct {
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}
