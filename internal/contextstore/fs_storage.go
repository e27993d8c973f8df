package contextstore

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// FSStorage keeps each namespace as a directory below root and each record as
// a regular file. Modification times come from the filesystem.
type FSStorage struct {
	root string
}

func NewFSStorage(root string) *FSStorage {
	return &FSStorage{root: root}
}

func (s *FSStorage) EnsureNamespace(_ context.Context, namespace string) error {
	if err := os.MkdirAll(s.Location(namespace), 0o755); err != nil {
		return fmt.Errorf("create namespace dir failed: %w", err)
	}
	return nil
}

func (s *FSStorage) Write(_ context.Context, namespace, name string, data []byte) error {
	path := filepath.Join(s.Location(namespace), name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write snippet file failed: %w", err)
	}
	return nil
}

func (s *FSStorage) List(_ context.Context, namespace string) ([]Entry, error) {
	dirEntries, err := os.ReadDir(s.Location(namespace))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrNamespaceNotFound
		}
		return nil, fmt.Errorf("list namespace dir failed: %w", err)
	}

	entries := make([]Entry, 0, len(dirEntries))
	for _, d := range dirEntries {
		if !d.Type().IsRegular() {
			continue
		}
		info, err := d.Info()
		if err != nil {
			// removed between ReadDir and Info
			continue
		}
		entries = append(entries, Entry{
			Name:    d.Name(),
			ModTime: info.ModTime(),
			Size:    info.Size(),
		})
	}
	return entries, nil
}

func (s *FSStorage) Read(_ context.Context, namespace, name string) ([]byte, error) {
	data, err := os.ReadFile(filepath.Join(s.Location(namespace), name))
	if err != nil {
		return nil, fmt.Errorf("read snippet file failed: %w", err)
	}
	return data, nil
}

func (s *FSStorage) Location(namespace string) string {
	return filepath.Join(s.root, namespace)
}
