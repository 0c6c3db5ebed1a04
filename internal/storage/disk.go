package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// DiskStore writes objects under a local directory.
type DiskStore struct {
	root    string
	baseURL string
}

// NewDiskStore creates root if needed.
func NewDiskStore(root, baseURL string) (*DiskStore, error) {
	if root == "" {
		return nil, fmt.Errorf("disk store: empty root")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("disk store: %w", err)
	}
	return &DiskStore{root: root, baseURL: baseURL}, nil
}

// Put writes data atomically via a temp file and rename.
func (s *DiskStore) Put(ctx context.Context, key string, data []byte, _ string) (Object, error) {
	if err := ctx.Err(); err != nil {
		return Object{}, err
	}
	clean := filepath.Clean(filepath.FromSlash(key))
	if clean == "." || filepath.IsAbs(clean) || strings.HasPrefix(clean, "..") {
		return Object{}, fmt.Errorf("disk store: bad key %q", key)
	}
	dst := filepath.Join(s.root, clean)
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return Object{}, fmt.Errorf("disk store: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(dst), ".upload-*")
	if err != nil {
		return Object{}, fmt.Errorf("disk store: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return Object{}, fmt.Errorf("disk store write: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return Object{}, fmt.Errorf("disk store close: %w", err)
	}
	if err := os.Rename(tmp.Name(), dst); err != nil {
		return Object{}, fmt.Errorf("disk store rename: %w", err)
	}
	return Object{Key: key, URL: joinURL(s.baseURL, key), Size: int64(len(data))}, nil
}
