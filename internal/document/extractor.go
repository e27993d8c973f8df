package document

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopherai-tutor/internal/pkg/pdfextract"
)

// MaxTextChars bounds the extracted text of a single upload. It caps both
// prompt size and the size of every stored snippet.
const MaxTextChars = 4000

// ExtractionError reports that the source could not be opened or parsed at
// all. Partially readable content never produces it.
type ExtractionError struct {
	Name string
	Err  error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extract %q failed: %v", e.Name, e.Err)
}

func (e *ExtractionError) Unwrap() error {
	return e.Err
}

type Extractor struct {
	maxChars int
}

func NewExtractor(maxChars int) *Extractor {
	if maxChars <= 0 {
		maxChars = MaxTextChars
	}
	return &Extractor{maxChars: maxChars}
}

// Extract returns the plain text of the file stored at path. The name is the
// client-supplied file name and decides how the content is interpreted.
func (e *Extractor) Extract(path, name string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", &ExtractionError{Name: name, Err: err}
	}
	defer f.Close()

	var text string
	if IsPDF(name) {
		info, err := f.Stat()
		if err != nil {
			return "", &ExtractionError{Name: name, Err: err}
		}
		text, err = pdfextract.ExtractText(f, info.Size())
		if err != nil {
			return "", &ExtractionError{Name: name, Err: err}
		}
	} else {
		raw, err := io.ReadAll(f)
		if err != nil {
			return "", &ExtractionError{Name: name, Err: err}
		}
		text = DecodeLenient(raw)
	}
	return Truncate(text, e.maxChars), nil
}

func IsPDF(name string) bool {
	return strings.EqualFold(filepath.Ext(name), ".pdf")
}

// DecodeLenient interprets raw as UTF-8 and drops every invalid byte sequence.
func DecodeLenient(raw []byte) string {
	return strings.ToValidUTF8(string(raw), "")
}

// Truncate keeps at most max characters (runes) of s.
func Truncate(s string, max int) string {
	if max <= 0 {
		return ""
	}
	count := 0
	for i := range s {
		if count == max {
			return s[:i]
		}
		count++
	}
	return s
}
