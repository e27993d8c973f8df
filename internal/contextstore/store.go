package contextstore

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"strings"
	"unicode"

	"github.com/google/uuid"

	"gopherai-tutor/internal/pkg/safename"
)

const (
	DefaultSubject  = "default"
	snippetExt      = ".txt"
	fallbackStem    = "snippet"
	suffixByteCount = 4
	maxStemLen      = 96
	hashedPrefix    = "subject_"
)

var subjectNamespaceID = uuid.MustParse("6f1c3e52-8a0d-4c57-9b8e-2f4a7d1e9c30")

// Store appends extracted text to per-subject namespaces. Snippets are never
// updated or removed once written.
type Store struct {
	storage Storage
	random  io.Reader
}

func NewStore(storage Storage) *Store {
	return &Store{storage: storage, random: rand.Reader}
}

// Namespace maps a free-form subject to the sanitised namespace token.
// Subjects with letters or digits that sanitise to nothing, such as "数学",
// get a stable hashed token so they stay apart from each other. Subjects
// without any letter or digit share the default namespace.
func Namespace(subject string) string {
	if ns := safename.Clean(subject); ns != "" {
		return ns
	}
	subject = strings.TrimSpace(subject)
	if !strings.ContainsFunc(subject, isWordRune) {
		return DefaultSubject
	}
	id := uuid.NewSHA1(subjectNamespaceID, []byte(subject))
	return hashedPrefix + hex.EncodeToString(id[:6])
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}

// NamespacePath returns where the subject's snippets live in the backing storage.
func (s *Store) NamespacePath(subject string) string {
	return s.storage.Location(Namespace(subject))
}

// Write stores text as a new snippet for subject and returns its name,
// "<stem>_<8 hex chars>.txt", where stem is derived from nameHint.
func (s *Store) Write(ctx context.Context, subject, nameHint, text string) (string, error) {
	name, err := s.snippetName(nameHint)
	if err != nil {
		return "", err
	}
	ns := Namespace(subject)
	if err := s.storage.EnsureNamespace(ctx, ns); err != nil {
		return "", err
	}
	if err := s.storage.Write(ctx, ns, name, []byte(text)); err != nil {
		return "", err
	}
	return name, nil
}

func (s *Store) snippetName(nameHint string) (string, error) {
	stem := safename.Stem(nameHint)
	if stem == "" {
		stem = fallbackStem
	}
	if len(stem) > maxStemLen {
		stem = stem[:maxStemLen]
	}
	suffix := make([]byte, suffixByteCount)
	if _, err := io.ReadFull(s.random, suffix); err != nil {
		return "", fmt.Errorf("generate snippet suffix failed: %w", err)
	}
	return stem + "_" + hex.EncodeToString(suffix) + snippetExt, nil
}
