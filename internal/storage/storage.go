package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// Error constants for storage layer
var (
	ErrObjectNotFound = errors.New("object not found in storage")
)

// ObjectSource defines read access to the object that holds the exercise catalog.
type ObjectSource interface {
	// Fetch returns the full content of the object stored under key.
	Fetch(ctx context.Context, key string) ([]byte, error)

	// Describe returns a human-readable location for logs.
	Describe(key string) string
}

// fileSource implements ObjectSource on the local filesystem.
type fileSource struct {
	root string
}

// NewFileSource creates an ObjectSource that resolves keys relative to root.
func NewFileSource(root string) ObjectSource {
	return &fileSource{root: root}
}

// Fetch reads root/key from disk.
func (s *fileSource) Fetch(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(s.path(key))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrObjectNotFound, s.path(key))
		}
		return nil, err
	}
	return data, nil
}

func (s *fileSource) Describe(key string) string {
	return "file://" + s.path(key)
}

func (s *fileSource) path(key string) string {
	if filepath.IsAbs(key) || s.root == "" {
		return key
	}
	return filepath.Join(s.root, key)
}
