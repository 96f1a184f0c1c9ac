// Package normalize provides utilities for normalizing book identity data:
// ISBNs, title slugs, author names, and significant title words.
package normalize

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

var (
	// Matches any non-alphanumeric character.
	nonAlphanumeric = regexp.MustCompile(`[^a-z0-9]+`)
	// Matches multiple hyphens.
	multipleHyphens = regexp.MustCompile(`-+`)
)

// Slugify converts a string to a URL-safe slug.
// "Science Fiction" -> "science-fiction".
// "Dune: Messiah" -> "dune-messiah".
func Slugify(s string) string {
	// Normalize unicode (decompose accented characters).
	s = norm.NFKD.String(s)

	// Remove non-ASCII characters.
	s = strings.Map(func(r rune) rune {
		if r > unicode.MaxASCII {
			return -1
		}
		return r
	}, s)

	s = strings.ToLower(s)
	s = nonAlphanumeric.ReplaceAllString(s, "-")
	s = multipleHyphens.ReplaceAllString(s, "-")
	return strings.Trim(s, "-")
}

// ISBN normalizes a raw ISBN string to ISBN-13, or returns "" if the
// input is not a plausible ISBN. ISBN-10 inputs are converted; hyphens,
// spaces, and "isbn:" prefixes are stripped. No checksum verification
// beyond length and character class; upstream data is too messy for
// strict validation to help.
func ISBN(raw string) string {
	s := strings.ToUpper(strings.TrimSpace(raw))
	s = strings.TrimPrefix(s, "ISBN:")
	s = strings.TrimPrefix(s, "ISBN")

	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' || r == 'X' {
			b.WriteRune(r)
		}
	}
	s = b.String()

	switch len(s) {
	case 13:
		if strings.ContainsRune(s, 'X') {
			return ""
		}
		return s
	case 10:
		return isbn10to13(s)
	default:
		return ""
	}
}

// isbn10to13 converts a cleaned 10-character ISBN to ISBN-13 with a
// recomputed check digit.
func isbn10to13(s string) string {
	// X is only valid as the ISBN-10 check digit, which is dropped.
	core := s[:9]
	if strings.ContainsRune(core, 'X') {
		return ""
	}

	digits := "978" + core
	sum := 0
	for i, r := range digits {
		d := int(r - '0')
		if i%2 == 1 {
			d *= 3
		}
		sum += d
	}
	check := (10 - sum%10) % 10
	return digits + string(rune('0'+check))
}

// ISBNSet normalizes a list of raw ISBNs, dropping invalid values and
// duplicates while preserving order.
func ISBNSet(raw []string) []string {
	var out []string
	seen := make(map[string]struct{}, len(raw))
	for _, r := range raw {
		n := ISBN(r)
		if n == "" {
			continue
		}
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	return out
}

// Fold lowercases and trims a string for case-insensitive comparison.
func Fold(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// titleStopwords are words too generic to count as title overlap signal.
var titleStopwords = map[string]struct{}{
	"the": {}, "and": {}, "with": {}, "from": {}, "into": {},
	"that": {}, "this": {}, "your": {}, "book": {}, "novel": {},
	"story": {}, "stories": {}, "tales": {}, "complete": {},
	"edition": {}, "volume": {}, "series": {}, "collection": {},
}

// SignificantTitleWords extracts the words of a title that carry overlap
// signal: minLen characters or longer and not a stopword. Words are
// folded to lowercase and deduplicated, preserving first-seen order.
func SignificantTitleWords(title string, minLen int) []string {
	if minLen <= 0 {
		minLen = 4
	}

	cleaned := strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return unicode.ToLower(r)
		}
		return ' '
	}, title)

	var out []string
	seen := make(map[string]struct{})
	for _, w := range strings.Fields(cleaned) {
		if len(w) < minLen {
			continue
		}
		if _, stop := titleStopwords[w]; stop {
			continue
		}
		if _, dup := seen[w]; dup {
			continue
		}
		seen[w] = struct{}{}
		out = append(out, w)
	}
	return out
}
