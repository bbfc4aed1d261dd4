package sanitizer

import (
	"strings"
	"unicode"
)

// TrimAndNormalize trims surrounding whitespace and collapses internal
// whitespace runs into a single space.
func TrimAndNormalize(s string) string {
	s = strings.TrimSpace(s)

	if s == "" {
		return ""
	}

	var result strings.Builder
	var lastWasSpace bool

	for _, r := range s {
		if unicode.IsSpace(r) {
			if !lastWasSpace {
				result.WriteRune(' ')
				lastWasSpace = true
			}
		} else {
			result.WriteRune(r)
			lastWasSpace = false
		}
	}

	return result.String()
}

func NormalizeName(name string) string {
	return TrimAndNormalize(name)
}

// NormalizeCity lowercases so city comparisons during partner matching
// are case-insensitive.
func NormalizeCity(city string) string {
	return strings.ToLower(TrimAndNormalize(city))
}

func NormalizeDocumentType(docType string) string {
	return strings.ToUpper(TrimAndNormalize(docType))
}
