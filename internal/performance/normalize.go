package performance

import (
	"path"
	"regexp"
	"strings"
)

const (
	GUIDPlaceholder   = "{guid}"
	EmailPlaceholder  = "{email}"
	HashPlaceholder   = "{hash}"
	NumberPlaceholder = "{num}"
	TermPlaceholder   = "{term}"

	// SearchSegment prefixes the free-text tail of a key; everything after it is user input
	SearchSegment = ":q="
)

var (
	searchPattern = regexp.MustCompile(`(?s):q=.+$`)
	guidPattern   = regexp.MustCompile(`[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}`)
	emailPattern  = regexp.MustCompile(`[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}`)
	hashPattern   = regexp.MustCompile(`\b[0-9a-fA-F]{32,}\b`)
	numberPattern = regexp.MustCompile(`\b\d+\b`)
)

// NormalizeKey replaces search terms, GUIDs, emails, hex digests and integers
// with placeholders so that every instance of a query shape aggregates under
// one pattern. Search terms go first since they may contain anything; GUIDs,
// emails and digests go before integers since they may contain digit runs.
func NormalizeKey(key string) string {
	normalized := searchPattern.ReplaceAllString(key, SearchSegment+TermPlaceholder)
	normalized = guidPattern.ReplaceAllString(normalized, GUIDPlaceholder)
	normalized = emailPattern.ReplaceAllString(normalized, EmailPlaceholder)
	normalized = hashPattern.ReplaceAllString(normalized, HashPlaceholder)
	return numberPattern.ReplaceAllString(normalized, NumberPlaceholder)
}

// isGlob reports whether an invalidation target is a wildcard pattern rather than a key
func isGlob(keyOrPattern string) bool {
	return strings.ContainsAny(keyOrPattern, "*?")
}

// globMatches reports whether a normalized key pattern falls under an invalidation glob
func globMatches(glob, pattern string) bool {
	matched, err := path.Match(glob, pattern)
	return err == nil && matched
}
