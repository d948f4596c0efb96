// internal/storage/local.go
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/javajoker/supplymatch-backend/internal/config"
)

// LocalBackend keeps objects on the filesystem under Root.
type LocalBackend struct {
	root string
}

func NewLocalBackend(root string) *LocalBackend {
	return &LocalBackend{root: root}
}

func (b *LocalBackend) Name() string {
	return config.StorageBackendLocal
}

func (b *LocalBackend) Root() string {
	return b.root
}

// Resolve returns the absolute location of key: root + "/" + key.
func (b *LocalBackend) Resolve(key string) (string, error) {
	key, err := CleanKey(key)
	if err != nil {
		return "", err
	}
	return JoinRoot(b.root, key), nil
}

func (b *LocalBackend) Save(ctx context.Context, key string, body io.Reader, _ string) (int64, error) {
	target, err := b.Resolve(key)
	if err != nil {
		return 0, err
	}

	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return 0, fmt.Errorf("failed to create storage directory: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(target), ".upload-*")
	if err != nil {
		return 0, fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	written, err := io.Copy(tmp, &contextReader{ctx: ctx, r: body})
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return 0, fmt.Errorf("failed to write %s: %w", key, err)
	}

	if err := os.Rename(tmp.Name(), target); err != nil {
		return 0, fmt.Errorf("failed to store %s: %w", key, err)
	}
	return written, nil
}

func (b *LocalBackend) Open(_ context.Context, key string) (io.ReadCloser, error) {
	target, err := b.Resolve(key)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(target)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrObjectNotFound, target)
	}
	return f, err
}

func (b *LocalBackend) Remove(_ context.Context, key string) error {
	target, err := b.Resolve(key)
	if err != nil {
		return err
	}

	err = os.Remove(target)
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: %s", ErrObjectNotFound, target)
	}
	return err
}

type contextReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *contextReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
