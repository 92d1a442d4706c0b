package blob

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/ProjectPlatform/Server/internal/backend"
)

// FileStore keeps uploaded blobs on local disk, keyed by an opaque URI.
// The URI is a fresh UUID plus the original extension, so nothing about
// the uploader or the original name leaks into it.
type FileStore struct {
	dir string
}

func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create blob dir: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

// Store writes the blob and returns its URI.
func (s *FileStore) Store(data []byte, name string) (string, error) {
	ext := strings.ToLower(filepath.Ext(name))
	uri := uuid.NewString() + ext

	path := filepath.Join(s.dir, uri)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write blob: %w", err)
	}
	return uri, nil
}

// Resolve maps a URI back to a filesystem path, refusing anything that
// escapes the blob directory.
func (s *FileStore) Resolve(uri string) (string, error) {
	if uri == "" || uri != filepath.Base(uri) {
		return "", backend.ErrObjectNotFound
	}

	path := filepath.Join(s.dir, uri)
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return "", backend.ErrObjectNotFound
		}
		return "", fmt.Errorf("stat blob: %w", err)
	}
	return path, nil
}

// Remove deletes the blob if present.
func (s *FileStore) Remove(uri string) error {
	path, err := s.Resolve(uri)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil {
		return fmt.Errorf("remove blob: %w", err)
	}
	return nil
}
