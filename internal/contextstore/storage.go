package contextstore

import (
	"context"
	"errors"
	"time"
)

var ErrNamespaceNotFound = errors.New("context namespace not found")

// Entry describes one stored snippet.
type Entry struct {
	Name    string
	ModTime time.Time
	Size    int64
}

// Storage is a hierarchical namespace of small text records. Namespace and
// record names passed in are already sanitised single path components.
type Storage interface {
	EnsureNamespace(ctx context.Context, namespace string) error
	Write(ctx context.Context, namespace, name string, data []byte) error
	// List returns every record in the namespace in the backend's enumeration
	// order, or ErrNamespaceNotFound when the namespace was never created.
	List(ctx context.Context, namespace string) ([]Entry, error)
	Read(ctx context.Context, namespace, name string) ([]byte, error)
	// Location is a human-readable address of the namespace, for logs.
	Location(namespace string) string
}
