package contextstore

import (
	"context"
	"errors"
	"sort"
	"strings"

	"go.uber.org/zap"
)

const DefaultWindowSize = 3

// Selector assembles the context window for a subject from its most recently
// written snippets. Nothing is cached; every call reads storage afresh.
type Selector struct {
	storage Storage
	logger  *zap.Logger
}

func NewSelector(storage Storage, logger *zap.Logger) *Selector {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Selector{storage: storage, logger: logger}
}

// Recent returns snippet metadata for subject, newest first. Entries with
// equal modification times keep the storage enumeration order.
func (s *Selector) Recent(ctx context.Context, subject string, limit int) ([]Entry, error) {
	entries, err := s.storage.List(ctx, Namespace(subject))
	if err != nil {
		if errors.Is(err, ErrNamespaceNotFound) {
			return nil, nil
		}
		return nil, err
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].ModTime.After(entries[j].ModTime)
	})
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}

// Select concatenates the newest limit snippets (DefaultWindowSize when limit
// is not positive), each preceded by a "--- <name> ---" header line. A subject
// without snippets yields an empty string.
func (s *Selector) Select(ctx context.Context, subject string, limit int) (string, error) {
	if limit <= 0 {
		limit = DefaultWindowSize
	}
	entries, err := s.Recent(ctx, subject, limit)
	if err != nil {
		return "", err
	}

	ns := Namespace(subject)
	var b strings.Builder
	for _, entry := range entries {
		data, err := s.storage.Read(ctx, ns, entry.Name)
		if err != nil {
			s.logger.Warn("skip unreadable snippet",
				zap.String("namespace", ns),
				zap.String("snippet", entry.Name),
				zap.Error(err))
			continue
		}
		b.WriteString("\n--- ")
		b.WriteString(entry.Name)
		b.WriteString(" ---\n")
		b.WriteString(strings.ToValidUTF8(string(data), ""))
		b.WriteString("\n")
	}
	return b.String(), nil
}
