package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultPath is read when CONFIG_PATH is unset.
const DefaultPath = "config.yaml"

// Config holds process settings loaded from YAML and overridden by environment variables.
type Config struct {
	Port         string `yaml:"port"`
	CORSOrigin   string `yaml:"corsOrigin"`
	LogLevel     string `yaml:"logLevel"`
	LogFormat    string `yaml:"logFormat"`
	MaxBodyBytes int64  `yaml:"maxBodyBytes"`

	DatabaseDSN    string `yaml:"databaseDSN"`
	DatabaseDriver string `yaml:"databaseDriver"`

	CacheEnabled           bool   `yaml:"cacheEnabled"`
	RedisAddr              string `yaml:"redisAddr"`
	RedisPassword          string `yaml:"redisPassword"`
	RedisDB                int    `yaml:"redisDB"`
	GalleryCacheTTLSeconds int    `yaml:"galleryCacheTTLSeconds"`

	MinioEndpoint  string `yaml:"minioEndpoint"`
	MinioAccessKey string `yaml:"minioAccessKey"`
	MinioSecretKey string `yaml:"minioSecretKey"`
	MinioBucket    string `yaml:"minioBucket"`
	MinioUseSSL    bool   `yaml:"minioUseSSL"`
	MinioPublicURL string `yaml:"minioPublicURL"`

	ImagesDir       string `yaml:"imagesDir"`
	ImagesURLPrefix string `yaml:"imagesURLPrefix"`

	GeminiAPIKey        string `yaml:"geminiAPIKey"`
	GeminiBaseURL       string `yaml:"geminiBaseURL"`
	GeminiImageModel    string `yaml:"geminiImageModel"`
	GeminiTextModel     string `yaml:"geminiTextModel"`
	AICallTimeoutSecond int    `yaml:"aiCallTimeoutSeconds"`

	ActionImageInvalidatesGallery bool `yaml:"actionImageInvalidatesGallery"`
	ActionImageDedupe             bool `yaml:"actionImageDedupe"`
}

// Default returns the settings used when neither file nor environment provide a value.
func Default() Config {
	return Config{
		Port:                   "3001",
		CORSOrigin:             "*",
		LogLevel:               "info",
		LogFormat:              "json",
		MaxBodyBytes:           4 << 20,
		CacheEnabled:           true,
		RedisAddr:              "localhost:6379",
		GalleryCacheTTLSeconds: 300,
		ImagesDir:              "public/images",
		ImagesURLPrefix:        "/images",
		GeminiBaseURL:          "https://generativelanguage.googleapis.com/v1beta",
		GeminiImageModel:       "gemini-2.5-flash-image-preview",
		GeminiTextModel:        "gemini-flash-lite-latest",
		AICallTimeoutSecond:    60,
		ActionImageDedupe:      true,
	}
}

// Load reads the YAML file at path (CONFIG_PATH or DefaultPath when empty) on top of Default,
// then applies environment overrides. A missing file is not an error.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		path = strings.TrimSpace(os.Getenv("CONFIG_PATH"))
	}
	if path == "" {
		path = DefaultPath
	}

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return cfg, fmt.Errorf("config: read %s: %w", path, err)
	default:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	setString(&c.Port, "PORT")
	setString(&c.CORSOrigin, "CORS_ORIGIN")
	setString(&c.LogLevel, "LOG_LEVEL")
	setString(&c.LogFormat, "LOG_FORMAT")
	setString(&c.DatabaseDSN, "DATABASE_DSN")
	if c.DatabaseDSN == "" {
		setString(&c.DatabaseDSN, "DATABASE_URL")
	}
	setString(&c.DatabaseDriver, "DATABASE_DRIVER")
	setString(&c.RedisAddr, "REDIS_ADDR")
	setString(&c.RedisPassword, "REDIS_PASSWORD")
	setString(&c.MinioEndpoint, "MINIO_ENDPOINT")
	setString(&c.MinioAccessKey, "MINIO_ACCESS_KEY")
	setString(&c.MinioSecretKey, "MINIO_SECRET_KEY")
	setString(&c.MinioBucket, "MINIO_BUCKET")
	setString(&c.MinioPublicURL, "MINIO_PUBLIC_URL")
	setString(&c.ImagesDir, "IMAGES_DIR")
	setString(&c.ImagesURLPrefix, "IMAGES_URL_PREFIX")
	setString(&c.GeminiAPIKey, "GEMINI_API_KEY")
	setString(&c.GeminiBaseURL, "GEMINI_BASE_URL")
	setString(&c.GeminiImageModel, "GEMINI_IMAGE_MODEL")
	setString(&c.GeminiTextModel, "GEMINI_TEXT_MODEL")

	for _, item := range []struct {
		key  string
		dest *bool
	}{
		{"CACHE_ENABLED", &c.CacheEnabled},
		{"MINIO_USE_SSL", &c.MinioUseSSL},
		{"ACTION_IMAGE_INVALIDATES_GALLERY", &c.ActionImageInvalidatesGallery},
		{"ACTION_IMAGE_DEDUPE", &c.ActionImageDedupe},
	} {
		if err := setBool(item.dest, item.key); err != nil {
			return err
		}
	}

	for _, item := range []struct {
		key  string
		dest *int
	}{
		{"REDIS_DB", &c.RedisDB},
		{"GALLERY_CACHE_TTL", &c.GalleryCacheTTLSeconds},
		{"AI_CALL_TIMEOUT", &c.AICallTimeoutSecond},
	} {
		if err := setInt(item.dest, item.key); err != nil {
			return err
		}
	}

	if raw := strings.TrimSpace(os.Getenv("MAX_BODY_BYTES")); raw != "" {
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || n <= 0 {
			return fmt.Errorf("config: invalid MAX_BODY_BYTES %q", raw)
		}
		c.MaxBodyBytes = n
	}
	return nil
}

// GalleryCacheTTL is the expiry applied to the cached gallery list.
func (c Config) GalleryCacheTTL() time.Duration {
	if c.GalleryCacheTTLSeconds <= 0 {
		return 300 * time.Second
	}
	return time.Duration(c.GalleryCacheTTLSeconds) * time.Second
}

// AICallTimeout bounds every individual call to the generative service.
func (c Config) AICallTimeout() time.Duration {
	if c.AICallTimeoutSecond <= 0 {
		return 60 * time.Second
	}
	return time.Duration(c.AICallTimeoutSecond) * time.Second
}

// MinioConfigured reports whether object storage credentials are complete.
func (c Config) MinioConfigured() bool {
	return c.MinioEndpoint != "" && c.MinioAccessKey != "" && c.MinioSecretKey != "" && c.MinioBucket != ""
}

func setString(dest *string, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		*dest = v
	}
}

func setBool(dest *bool, key string) error {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return fmt.Errorf("config: invalid boolean %s=%q", key, raw)
	}
	*dest = v
	return nil
}

func setInt(dest *int, key string) error {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fmt.Errorf("config: invalid integer %s=%q", key, raw)
	}
	*dest = v
	return nil
}
