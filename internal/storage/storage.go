// Package storage archives raw import files on the local filesystem or S3.
package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/funnellens/funnellens/internal/config"
)

// Archive stores raw import payloads by key.
type Archive interface {
	Put(ctx context.Context, key string, data []byte) error
}

// New picks the archive backend described by cfg.
func New(ctx context.Context, cfg config.StorageConfig) (Archive, error) {
	switch cfg.Type {
	case "", "local":
		return NewLocalArchive(cfg.LocalPath)
	case "s3":
		a, err := NewS3Archive(ctx, cfg.S3Bucket, cfg.S3Prefix, cfg.AWSRegion, cfg.GetAWSProfile())
		if err != nil {
			return nil, fmt.Errorf("initializing S3 archive: %w", err)
		}
		return a, nil
	default:
		return nil, fmt.Errorf("unknown storage type %q", cfg.Type)
	}
}

// LocalArchive writes files under a root directory.
type LocalArchive struct {
	root string
}

// NewLocalArchive creates root if needed.
func NewLocalArchive(root string) (*LocalArchive, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("creating archive dir: %w", err)
	}
	return &LocalArchive{root: root}, nil
}

func (a *LocalArchive) Put(_ context.Context, key string, data []byte) error {
	path, err := a.path(key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating archive dir: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("writing archive %s: %w", key, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("writing archive %s: %w", key, err)
	}
	return nil
}

// path keeps keys inside the root.
func (a *LocalArchive) path(key string) (string, error) {
	clean := filepath.Clean("/" + key)
	if clean == "/" || strings.Contains(key, "..") {
		return "", fmt.Errorf("invalid archive key %q", key)
	}
	return filepath.Join(a.root, clean), nil
}
