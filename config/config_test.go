package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T, keys ...string) {
	t.Helper()
	for _, key := range keys {
		t.Setenv(key, "")
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	clearEnv(t, "PORT", "CACHE_ENABLED", "GALLERY_CACHE_TTL", "ACTION_IMAGE_DEDUPE", "ACTION_IMAGE_INVALIDATES_GALLERY", "MAX_BODY_BYTES")

	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "3001", cfg.Port)
	assert.True(t, cfg.CacheEnabled)
	assert.True(t, cfg.ActionImageDedupe)
	assert.False(t, cfg.ActionImageInvalidatesGallery)
	assert.Equal(t, 300*time.Second, cfg.GalleryCacheTTL())
	assert.Equal(t, int64(4<<20), cfg.MaxBodyBytes)
}

func TestLoadFileThenEnvOverrides(t *testing.T) {
	clearEnv(t, "CORS_ORIGIN", "GALLERY_CACHE_TTL", "MINIO_ENDPOINT", "MINIO_ACCESS_KEY", "MINIO_SECRET_KEY", "MINIO_BUCKET")
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
port: "9000"
corsOrigin: "https://doodles.example"
galleryCacheTTLSeconds: 60
aiCallTimeoutSeconds: 15
`), 0o600))

	t.Setenv("PORT", "9100")
	t.Setenv("CACHE_ENABLED", "false")
	t.Setenv("ACTION_IMAGE_INVALIDATES_GALLERY", "true")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "9100", cfg.Port)
	assert.Equal(t, "https://doodles.example", cfg.CORSOrigin)
	assert.False(t, cfg.CacheEnabled)
	assert.True(t, cfg.ActionImageInvalidatesGallery)
	assert.Equal(t, time.Minute, cfg.GalleryCacheTTL())
	assert.Equal(t, 15*time.Second, cfg.AICallTimeout())
	assert.False(t, cfg.MinioConfigured())
}

func TestLoadRejectsMalformedValues(t *testing.T) {
	t.Setenv("CACHE_ENABLED", "sometimes")
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)

	t.Setenv("CACHE_ENABLED", "")
	t.Setenv("GALLERY_CACHE_TTL", "five minutes")
	_, err = Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
}

func TestLoadRejectsInvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("port: [unterminated"), 0o600))

	_, err := Load(path)
	require.Error(t, err)
}

func TestDatabaseURLAlias(t *testing.T) {
	t.Setenv("DATABASE_DSN", "")
	t.Setenv("DATABASE_URL", "postgres://localhost/pokaimon")

	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "postgres://localhost/pokaimon", cfg.DatabaseDSN)
}
