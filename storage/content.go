package storage

import (
	"errors"
	"fmt"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// MaxImageBytes bounds a single stored image.
const MaxImageBytes int64 = 10 * 1024 * 1024

func checkImage(data []byte) (string, error) {
	if len(data) == 0 {
		return "", errors.New("storage: image is empty")
	}
	if int64(len(data)) > MaxImageBytes {
		return "", fmt.Errorf("storage: image size exceeds %d bytes", MaxImageBytes)
	}
	contentType := mimetype.Detect(data).String()
	if !isAllowedImageContent(contentType) {
		return "", fmt.Errorf("storage: unsupported image content type %q", contentType)
	}
	return contentType, nil
}

func isAllowedImageContent(contentType string) bool {
	switch strings.ToLower(strings.TrimSpace(contentType)) {
	case "image/png", "image/x-png":
		return true
	case "image/jpeg", "image/pjpeg":
		return true
	case "image/webp":
		return true
	case "image/gif":
		return true
	default:
		return false
	}
}

func imageExtension(contentType string) string {
	switch strings.ToLower(strings.TrimSpace(contentType)) {
	case "image/jpeg", "image/pjpeg":
		return ".jpg"
	case "image/webp":
		return ".webp"
	case "image/gif":
		return ".gif"
	default:
		return ".png"
	}
}
