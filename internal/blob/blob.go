// Package blob provides storage for raw uploaded files.
//
// The retrieval core treats blob storage as a black box with Put/Get/Delete
// semantics. The filesystem implementation confines all access to a single
// directory using os.Root, preventing path traversal through crafted keys.
package blob

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
)

var (
	// ErrNotFound indicates no blob exists under the given key.
	ErrNotFound = errors.New("blob not found")

	// ErrInvalidKey indicates the key contains path separators or is empty.
	ErrInvalidKey = errors.New("invalid blob key")
)

// Store is the blob storage contract consumed by the ingestion pipeline and
// the upload path.
type Store interface {
	Put(ctx context.Context, key string, data []byte) error
	Get(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error
}

// FS is a filesystem-backed blob store. All operations go through an os.Root
// opened at the configured directory, so keys cannot escape it.
type FS struct {
	root *os.Root
}

// NewFS creates the blob directory if needed and opens it as the store root.
func NewFS(dir string) (*FS, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("creating blob directory: %w", err)
	}

	root, err := os.OpenRoot(dir)
	if err != nil {
		return nil, fmt.Errorf("opening blob root: %w", err)
	}

	return &FS{root: root}, nil
}

// Put stores data under key, overwriting any existing blob.
func (f *FS) Put(ctx context.Context, key string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := validateKey(key); err != nil {
		return err
	}

	if err := f.root.WriteFile(key, data, 0o640); err != nil {
		return fmt.Errorf("writing blob %q: %w", key, err)
	}
	return nil
}

// Get returns the blob stored under key, or ErrNotFound.
func (f *FS) Get(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := validateKey(key); err != nil {
		return nil, err
	}

	data, err := f.root.ReadFile(key)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %q", ErrNotFound, key)
		}
		return nil, fmt.Errorf("reading blob %q: %w", key, err)
	}
	return data, nil
}

// Delete removes the blob stored under key. Deleting a missing blob is not
// an error.
func (f *FS) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := validateKey(key); err != nil {
		return err
	}

	if err := f.root.Remove(key); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("deleting blob %q: %w", key, err)
	}
	return nil
}

// Close releases the underlying directory handle.
func (f *FS) Close() error {
	return f.root.Close()
}

func validateKey(key string) error {
	if key == "" || strings.ContainsAny(key, `/\`) || key == "." || key == ".." {
		return fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	return nil
}
