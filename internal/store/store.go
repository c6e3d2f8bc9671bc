// Package store manages the scratch directory uploaded documents live in for
// the duration of one request.
package store

import (
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
)

// ErrEmptyUpload reports a zero-byte upload.
var ErrEmptyUpload = errors.New("uploaded file is empty")

// FS is a flat scratch directory of per-request document files.
type FS struct {
	root string
}

// New creates the scratch directory if absent.
func New(root string) (*FS, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("store: create %s: %w", root, err)
	}
	return &FS{root: root}, nil
}

// Root returns the scratch directory path.
func (s *FS) Root() string { return s.root }

// DocPath returns the scratch path for processing ID id.
func (s *FS) DocPath(id string) string {
	return filepath.Join(s.root, "financial_document_"+id+".pdf")
}

// Save streams src to the scratch file for id and returns its path and size.
//
// Expectations:
//   - Returns ErrEmptyUpload (and leaves no file behind) for a zero-byte src
//   - Returns the written byte count on success
//   - The saved file is named financial_document_<id>.pdf under the root
func (s *FS) Save(id string, src io.Reader) (string, int64, error) {
	path := s.DocPath(id)
	dst, err := os.Create(path)
	if err != nil {
		return "", 0, fmt.Errorf("store: create %s: %w", path, err)
	}

	size, err := io.Copy(dst, src)
	if cerr := dst.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(path)
		return "", 0, fmt.Errorf("store: write %s: %w", path, err)
	}
	if size == 0 {
		_ = os.Remove(path)
		return "", 0, ErrEmptyUpload
	}
	return path, size, nil
}

// Remove deletes a scratch file. Best-effort: a failed cleanup is logged, not
// returned, because the response has usually been written by the time this
// runs.
func (s *FS) Remove(path string) {
	if path == "" {
		return
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("[STORE] WARNING: failed to clean up %s: %v", path, err)
	}
}
