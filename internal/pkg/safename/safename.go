package safename

import (
	"path/filepath"
	"strings"

	"golang.org/x/text/unicode/norm"
)

var windowsReserved = map[string]struct{}{
	"CON": {}, "PRN": {}, "AUX": {}, "NUL": {},
	"COM1": {}, "COM2": {}, "COM3": {}, "COM4": {}, "COM5": {}, "COM6": {}, "COM7": {}, "COM8": {}, "COM9": {},
	"LPT1": {}, "LPT2": {}, "LPT3": {}, "LPT4": {}, "LPT5": {}, "LPT6": {}, "LPT7": {}, "LPT8": {}, "LPT9": {},
}

// Clean reduces name to a single path component made of ASCII letters,
// digits, '_', '-' and '.'. Accented letters are folded to their base form,
// separators become underscores and leading/trailing dots and underscores are
// trimmed, so the result can never be "..", contain a separator or be
// absolute. The result may be empty.
func Clean(name string) string {
	decomposed := norm.NFKD.String(name)

	var b strings.Builder
	b.Grow(len(decomposed))
	for _, r := range decomposed {
		switch {
		case r == '/' || r == '\\':
			b.WriteByte(' ')
		case r < 0x80:
			b.WriteRune(r)
		}
	}

	joined := strings.Join(strings.Fields(b.String()), "_")

	var out strings.Builder
	out.Grow(len(joined))
	for _, r := range joined {
		if isAllowed(r) {
			out.WriteRune(r)
		}
	}

	cleaned := strings.Trim(out.String(), "._")
	if cleaned == "" {
		return ""
	}
	base := strings.ToUpper(strings.SplitN(cleaned, ".", 2)[0])
	if _, reserved := windowsReserved[base]; reserved {
		cleaned = "_" + cleaned
	}
	return cleaned
}

// Stem returns the cleaned file name without its final extension.
func Stem(filename string) string {
	cleaned := Clean(filename)
	return strings.TrimSuffix(cleaned, filepath.Ext(cleaned))
}

func isAllowed(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		return true
	case r == '_', r == '-', r == '.':
		return true
	}
	return false
}
