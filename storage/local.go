package storage

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/util"
	"github.com/google/uuid"
)

// LocalStorage writes images into a filesystem directory that is served
// statically under urlPrefix.
type LocalStorage struct {
	fs        billy.Filesystem
	urlPrefix string
	now       func() time.Time
}

// NewLocalStorage stores images at the root of fs; returned URLs are urlPrefix/<file>.
func NewLocalStorage(fs billy.Filesystem, urlPrefix string) *LocalStorage {
	prefix := "/" + strings.Trim(strings.TrimSpace(urlPrefix), "/")
	if prefix == "/" {
		prefix = "/images"
	}
	return &LocalStorage{fs: fs, urlPrefix: prefix, now: time.Now}
}

// Save writes data as <prefix>-<unix millis>-<random>.<ext>.
func (s *LocalStorage) Save(_ context.Context, data []byte, prefix string) (string, error) {
	if s == nil || s.fs == nil {
		return "", errors.New("storage: local storage not configured")
	}
	contentType, err := checkImage(data)
	if err != nil {
		return "", err
	}

	name := fmt.Sprintf("%s-%d-%s%s", fileLabel(prefix), s.now().UnixMilli(), uuid.NewString()[:8], imageExtension(contentType))
	if err := util.WriteFile(s.fs, name, data, 0o644); err != nil {
		return "", fmt.Errorf("storage: write %s: %w", name, err)
	}
	return s.urlPrefix + "/" + name, nil
}

// Load reads an image previously returned from Save.
func (s *LocalStorage) Load(_ context.Context, rawURL string) ([]byte, error) {
	if s == nil || s.fs == nil {
		return nil, errors.New("storage: local storage not configured")
	}
	trimmed := strings.TrimSpace(rawURL)
	if !strings.HasPrefix(trimmed, s.urlPrefix+"/") {
		return nil, fmt.Errorf("storage: %q is not a local image", rawURL)
	}
	name := strings.TrimPrefix(trimmed, s.urlPrefix+"/")
	if name == "" || name != path.Base(name) || name == ".." {
		return nil, fmt.Errorf("storage: invalid image path %q", rawURL)
	}

	data, err := util.ReadFile(s.fs, name)
	if err != nil {
		return nil, fmt.Errorf("storage: read %s: %w", name, err)
	}
	return data, nil
}

func fileLabel(prefix string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(strings.TrimSpace(prefix)) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '-' {
			b.WriteRune(r)
		}
	}
	if b.Len() == 0 {
		return "image"
	}
	return b.String()
}
