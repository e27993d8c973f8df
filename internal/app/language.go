package app

import (
	"regexp"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/language/display"

	"gopherai-tutor/internal/prompt"
)

// Only region-qualified tags are expanded. Bare two or three letter values
// collide with real language names ("Ga", "Twi") and pass through.
var regionTagPattern = regexp.MustCompile(`^[a-z]{2,3}[-_]([A-Z]{2}|[0-9]{3})$`)

var englishNames = display.Languages(language.English)

// NormalizeLanguage returns the output language as the user wrote it, trimmed,
// except that tags such as "pt-BR" become English display names. An empty
// value selects the default output language.
func NormalizeLanguage(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return prompt.DefaultOutputLanguage
	}
	if !regionTagPattern.MatchString(value) {
		return value
	}
	tag, err := language.Parse(strings.ReplaceAll(value, "_", "-"))
	if err != nil {
		return value
	}
	if name := englishNames.Name(tag); name != "" {
		return name
	}
	return value
}
