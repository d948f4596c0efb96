// internal/storage/storage.go
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/javajoker/supplymatch-backend/internal/config"
)

var (
	ErrObjectNotFound = errors.New("stored object not found")
	ErrInvalidKey     = errors.New("invalid storage key")
	ErrFileTooLarge   = errors.New("file exceeds maximum allowed size")
	ErrFileType       = errors.New("file type is not allowed")
)

// Backend stores the objects behind File rows. Keys are the relative
// storage paths kept in files.file_path.
type Backend interface {
	Name() string
	Save(ctx context.Context, key string, body io.Reader, contentType string) (int64, error)
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	Remove(ctx context.Context, key string) error
}

type UploadOptions struct {
	MaxSize      int64 // in bytes
	AllowedTypes []string
}

func NewUploadOptions(cfg config.StorageConfig) UploadOptions {
	return UploadOptions{
		MaxSize:      cfg.MaxFileSize,
		AllowedTypes: cfg.AllowedTypes,
	}
}

// CheckName validates the extension of an uploaded file name.
func (o UploadOptions) CheckName(name string) error {
	if len(o.AllowedTypes) == 0 {
		return nil
	}

	fileExt := strings.ToLower(filepath.Ext(name))
	for _, allowedType := range o.AllowedTypes {
		if fileExt == allowedType {
			return nil
		}
	}
	return fmt.Errorf("%w: %q", ErrFileType, fileExt)
}

// LimitReader wraps body so reading more than MaxSize bytes fails.
func (o UploadOptions) LimitReader(body io.Reader) io.Reader {
	if o.MaxSize <= 0 {
		return body
	}
	return &limitedReader{r: io.LimitReader(body, o.MaxSize+1), max: o.MaxSize}
}

type limitedReader struct {
	r    io.Reader
	max  int64
	read int64
}

func (l *limitedReader) Read(p []byte) (int, error) {
	n, err := l.r.Read(p)
	l.read += int64(n)
	if l.read > l.max {
		return n, fmt.Errorf("%w: limit is %d bytes", ErrFileTooLarge, l.max)
	}
	return n, err
}

// GenerateKey builds a date-partitioned unique key such as
// 2024/05/17/3f1c...e2.pdf for an uploaded file.
func GenerateKey(originalName string, now time.Time) string {
	id := uuid.New()
	ext := strings.ToLower(filepath.Ext(originalName))
	return path.Join(now.Format("2006/01/02"), strings.ReplaceAll(id.String(), "-", "")+ext)
}

// CleanKey rejects keys that would escape the storage root.
func CleanKey(key string) (string, error) {
	key = strings.TrimLeft(strings.ReplaceAll(key, "\\", "/"), "/")
	if key == "" {
		return "", fmt.Errorf("%w: empty key", ErrInvalidKey)
	}

	for _, segment := range strings.Split(key, "/") {
		if segment == ".." {
			return "", fmt.Errorf("%w: %q", ErrInvalidKey, key)
		}
	}
	return key, nil
}

// JoinRoot resolves a relative key against a root as root + "/" + key.
func JoinRoot(root, key string) string {
	root = strings.TrimRight(root, "/")
	if root == "" {
		return key
	}
	return root + "/" + key
}

// New picks the backend configured in cfg.Storage.
func New(cfg *config.Config) (Backend, error) {
	switch cfg.Storage.Backend {
	case config.StorageBackendLocal:
		return NewLocalBackend(cfg.Storage.Root), nil
	case config.StorageBackendS3:
		return NewS3Backend(cfg.AWS, cfg.Storage.Root)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
	}
}
