package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// ObjectConfig holds the MinIO/S3 connection settings.
type ObjectConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
	// PublicURL is the base used to build object URLs; defaults to the endpoint.
	PublicURL string
}

// ObjectStorage stores generated images in a MinIO/S3 bucket.
type ObjectStorage struct {
	client    *minio.Client
	bucket    string
	publicURL string
}

// NewObjectStorage connects to the bucket, creating it when missing.
func NewObjectStorage(ctx context.Context, cfg ObjectConfig) (*ObjectStorage, error) {
	endpoint := strings.TrimSpace(cfg.Endpoint)
	bucket := strings.TrimSpace(cfg.Bucket)
	if endpoint == "" || bucket == "" {
		return nil, errors.New("storage: endpoint and bucket are required")
	}

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(strings.TrimSpace(cfg.AccessKey), strings.TrimSpace(cfg.SecretKey), ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("storage: init minio client: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	exists, err := client.BucketExists(ctx, bucket)
	if err != nil {
		return nil, fmt.Errorf("storage: check bucket: %w", err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("storage: create bucket: %w", err)
		}
	}

	publicURL := strings.TrimSpace(cfg.PublicURL)
	if publicURL == "" {
		scheme := "http"
		if cfg.UseSSL {
			scheme = "https"
		}
		publicURL = fmt.Sprintf("%s://%s", scheme, endpoint)
	}

	return &ObjectStorage{
		client:    client,
		bucket:    bucket,
		publicURL: strings.TrimSuffix(publicURL, "/"),
	}, nil
}

// Save uploads data under <prefix>/<uuid>.<ext> and returns its public URL.
func (s *ObjectStorage) Save(ctx context.Context, data []byte, prefix string) (string, error) {
	if s == nil || s.client == nil {
		return "", errors.New("storage: object storage not configured")
	}
	contentType, err := checkImage(data)
	if err != nil {
		return "", err
	}

	objectName := path.Join(cleanPrefix(prefix), uuid.NewString()+imageExtension(contentType))

	uploadCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	_, err = s.client.PutObject(uploadCtx, s.bucket, objectName, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType:  contentType,
		CacheControl: "public, max-age=604800",
	})
	if err != nil {
		return "", fmt.Errorf("storage: upload %s: %w", objectName, err)
	}
	return s.buildPublicURL(objectName), nil
}

// Load downloads the object referenced by a URL previously returned from Save.
func (s *ObjectStorage) Load(ctx context.Context, rawURL string) ([]byte, error) {
	if s == nil || s.client == nil {
		return nil, errors.New("storage: object storage not configured")
	}
	objectName, ok := s.objectNameFromURL(rawURL)
	if !ok {
		return nil, fmt.Errorf("storage: %q is not an object in bucket %s", rawURL, s.bucket)
	}

	getCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	obj, err := s.client.GetObject(getCtx, s.bucket, objectName, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("storage: get %s: %w", objectName, err)
	}
	defer obj.Close()

	data, err := io.ReadAll(io.LimitReader(obj, MaxImageBytes+1))
	if err != nil {
		return nil, fmt.Errorf("storage: read %s: %w", objectName, err)
	}
	if int64(len(data)) > MaxImageBytes {
		return nil, fmt.Errorf("storage: %s exceeds %d bytes", objectName, MaxImageBytes)
	}
	return data, nil
}

func (s *ObjectStorage) buildPublicURL(objectName string) string {
	base := strings.TrimSuffix(s.publicURL, "/")
	object := strings.TrimPrefix(objectName, "/")
	return fmt.Sprintf("%s/%s/%s", base, s.bucket, object)
}

func (s *ObjectStorage) objectNameFromURL(raw string) (string, bool) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", false
	}

	base := strings.TrimSuffix(s.publicURL, "/")
	if base != "" && strings.HasPrefix(trimmed, base) {
		if candidate := s.trimBucket(strings.TrimPrefix(trimmed, base)); candidate != "" {
			return candidate, true
		}
	}

	target, err := url.Parse(trimmed)
	if err != nil {
		return "", false
	}
	baseURL, err := url.Parse(base)
	if err == nil && baseURL.Host != "" && baseURL.Host == target.Host {
		if candidate := s.trimBucket(target.Path); candidate != "" {
			return candidate, true
		}
	}

	if !strings.Contains(trimmed, "://") {
		if candidate := s.trimBucket(trimmed); candidate != "" {
			return candidate, true
		}
	}
	return "", false
}

func (s *ObjectStorage) trimBucket(p string) string {
	candidate := strings.TrimPrefix(p, "/")
	candidate = strings.TrimPrefix(candidate, s.bucket+"/")
	return strings.TrimPrefix(candidate, "/")
}

func cleanPrefix(prefix string) string {
	trimmed := strings.Trim(strings.TrimSpace(prefix), "/")
	if trimmed == "" || strings.Contains(trimmed, "..") {
		return "images"
	}
	return trimmed
}
