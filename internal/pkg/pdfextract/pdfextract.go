package pdfextract

import (
	"fmt"
	"io"
	"strings"

	"github.com/ledongthuc/pdf"
)

// ExtractPages reads a PDF from r and returns the plain text of every page in
// page order. A page whose text cannot be extracted yields an empty string;
// only a document that cannot be parsed at all returns an error.
func ExtractPages(r io.ReaderAt, size int64) ([]string, error) {
	if size == 0 {
		return nil, nil
	}
	reader, err := openReader(r, size)
	if err != nil {
		return nil, err
	}

	total := reader.NumPage()
	pages := make([]string, 0, total)
	for i := 1; i <= total; i++ {
		pages = append(pages, pageText(reader, i))
	}
	return pages, nil
}

// ExtractText returns the page texts of the PDF concatenated in page order.
func ExtractText(r io.ReaderAt, size int64) (string, error) {
	pages, err := ExtractPages(r, size)
	if err != nil {
		return "", err
	}
	return strings.Join(pages, ""), nil
}

// openReader guards pdf.NewReader, which panics on some malformed trailers.
func openReader(r io.ReaderAt, size int64) (reader *pdf.Reader, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			reader = nil
			err = fmt.Errorf("parse pdf failed: %v", rec)
		}
	}()
	reader, err = pdf.NewReader(r, size)
	if err != nil {
		return nil, fmt.Errorf("parse pdf failed: %w", err)
	}
	return reader, nil
}

func pageText(reader *pdf.Reader, index int) (text string) {
	defer func() {
		if rec := recover(); rec != nil {
			text = ""
		}
	}()
	page := reader.Page(index)
	if page.V.IsNull() {
		return ""
	}
	out, err := page.GetPlainText(nil)
	if err != nil {
		return ""
	}
	return out
}
