package sampler

import (
	"regexp"
	"strings"

	"github.com/zacteqye72-art/project-focus-app/internal/domain"
)

const (
	minEntityLen = 3
	maxEntityLen = 40
	maxEntities  = 12
)

// entityPatterns is the lexical battery run over captured text.
var entityPatterns = []*regexp.Regexp{
	// camelCase identifiers
	regexp.MustCompile(`\b[a-z][a-zA-Z0-9]*[A-Z][a-zA-Z0-9]*\b`),
	// snake_case identifiers
	regexp.MustCompile(`\b[a-z][a-z0-9]*(?:_[a-z0-9]+)+\b`),
	// call-like tokens
	regexp.MustCompile(`\b[a-zA-Z_][a-zA-Z0-9_]*\(`),
	// dotted filenames
	regexp.MustCompile(`\b[a-zA-Z0-9_-]+\.[a-zA-Z0-9]{1,4}\b`),
	// capitalized phrase runs (titles, headers)
	regexp.MustCompile(`\b[A-Z][a-z]+(?: [A-Z][a-z]+)*\b`),
	// domain-like tokens
	regexp.MustCompile(`\b[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}\b`),
}

// docPathPatterns pull a document identifier out of a window title.
var docPathPatterns = []*regexp.Regexp{
	// unix path
	regexp.MustCompile(`([/~][^\s]+\.[a-zA-Z0-9]+)`),
	// windows path
	regexp.MustCompile(`([A-Z]:\\[^\s]+\.[a-zA-Z0-9]+)`),
	// bare filename
	regexp.MustCompile(`([^/\s]+\.[a-zA-Z0-9]+)`),
}

// ExtractFromText runs the lexical battery over text and returns
// distinct entities in first-match order.
func ExtractFromText(text string) []string {
	if text == "" {
		return nil
	}

	seen := make(map[string]struct{})
	var entities []string
	for _, pattern := range entityPatterns {
		for _, match := range pattern.FindAllString(text, -1) {
			cleaned := strings.TrimSpace(strings.NewReplacer("(", "", ")", "").Replace(match))
			if len(cleaned) < minEntityLen || len(cleaned) > maxEntityLen {
				continue
			}
			if _, ok := seen[cleaned]; ok {
				continue
			}
			seen[cleaned] = struct{}{}
			entities = append(entities, cleaned)
		}
	}
	return entities
}

// DocPathFromTitle extracts a document path or filename from a window
// title, or returns "".
func DocPathFromTitle(title string) string {
	for _, pattern := range docPathPatterns {
		if m := pattern.FindStringSubmatch(title); m != nil {
			return m[1]
		}
	}
	return ""
}

// extractEntities gathers entities from every text surface of a
// capture, deduped and capped.
func extractEntities(info *domain.WindowContext) []string {
	seen := make(map[string]struct{})
	var entities []string

	add := func(list ...string) {
		for _, e := range list {
			if len(e) < minEntityLen || len(e) > maxEntityLen {
				continue
			}
			if _, ok := seen[e]; ok {
				continue
			}
			seen[e] = struct{}{}
			entities = append(entities, e)
		}
	}

	add(ExtractFromText(info.Title)...)
	if info.URLDomain != "" {
		add(info.URLDomain)
	}
	if info.DocPath != "" {
		add(ExtractFromText(info.DocPath)...)
	}
	if info.OnScreenText != "" {
		add(ExtractFromText(info.OnScreenText)...)
	}

	if len(entities) > maxEntities {
		entities = entities[:maxEntities]
	}
	return entities
}
