// Package nudge generates and validates short coaching messages.
package nudge

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/zacteqye72-art/project-focus-app/internal/domain"
)

// RequiredPrefix is the mandatory opening of every nudge message.
const RequiredPrefix = "Your attention score is decreasing, you can try to "

// maxActionWords bounds the action clause after the prefix.
const maxActionWords = 15

// minEntityLen is the shortest entity that counts for the inclusion rule.
const minEntityLen = 3

// forbiddenRe matches vague filler phrasing that makes a nudge non-actionable.
var forbiddenRe = regexp.MustCompile(`(?i)\b(think about|consider|brainstorm|plan|continue|improve|work on|review|revisit)\b`)

// actionVerbs is the whitelist of concrete doing verbs.
var actionVerbs = []string{
	"add", "cite", "define", "compute", "refactor", "write", "test",
	"summarize", "compare", "outline", "link", "format", "create",
	"update", "fix", "implement", "document", "analyze", "optimize",
}

// CheckResult carries the outcome of a detailed validation pass.
type CheckResult struct {
	Passed bool
	Issues []string
}

// PostCheck validates a nudge message against the output contract:
// required prefix, at most 15 words after it, no forbidden phrases,
// and entity inclusion when confidence is not low.
func PostCheck(output string, entities []string, confidence domain.Confidence) bool {
	if output == "" {
		return false
	}
	if !strings.HasPrefix(output, RequiredPrefix) {
		return false
	}

	tail := strings.TrimSpace(output[len(RequiredPrefix):])
	if tail == "" {
		return false
	}
	if len(strings.Fields(tail)) > maxActionWords {
		return false
	}

	if forbiddenRe.MatchString(output) {
		return false
	}

	if confidence != domain.ConfidenceLow && len(entities) > 0 {
		if !containsEntity(output, entities) {
			return false
		}
	}
	return true
}

// DetailedPostCheck validates like PostCheck but collects every issue,
// and additionally requires a concrete action verb.
func DetailedPostCheck(output string, entities []string, confidence domain.Confidence) CheckResult {
	var issues []string

	if output == "" {
		return CheckResult{Passed: false, Issues: []string{"empty output"}}
	}

	tail := output
	if strings.HasPrefix(output, RequiredPrefix) {
		tail = output[len(RequiredPrefix):]
	} else {
		issues = append(issues, "missing required prefix")
	}
	tail = strings.TrimSpace(tail)
	if tail == "" {
		issues = append(issues, "empty action part")
	}
	if n := len(strings.Fields(tail)); n > maxActionWords {
		issues = append(issues, fmt.Sprintf("too many words (%d > %d)", n, maxActionWords))
	}

	if forbiddenRe.MatchString(output) {
		issues = append(issues, "contains forbidden phrases")
	}

	if !HasConcreteVerbs(output) {
		issues = append(issues, "no concrete action verbs found")
	}

	if confidence != domain.ConfidenceLow && len(entities) > 0 {
		if !containsEntity(output, entities) {
			issues = append(issues, fmt.Sprintf("no entity found (confidence: %s)", confidence))
		}
	}

	return CheckResult{Passed: len(issues) == 0, Issues: issues}
}

// FallbackMessage is the safe message used when generation or
// validation fails. It passes PostCheck at low confidence.
func FallbackMessage() string {
	return "Your attention score is decreasing, you can try to re-read the last line and add one detail."
}

// ExtractActionVerbs returns the whitelist verbs present in text
// as standalone whitespace-separated words.
func ExtractActionVerbs(text string) []string {
	words := strings.Fields(strings.ToLower(text))
	present := make(map[string]bool, len(words))
	for _, w := range words {
		present[w] = true
	}
	var found []string
	for _, v := range actionVerbs {
		if present[v] {
			found = append(found, v)
		}
	}
	return found
}

// HasConcreteVerbs reports whether output uses at least one concrete
// doing verb.
func HasConcreteVerbs(output string) bool {
	return len(ExtractActionVerbs(output)) > 0
}

// containsEntity reports whether output contains any entity of length
// >= minEntityLen, case-insensitively.
func containsEntity(output string, entities []string) bool {
	lower := strings.ToLower(output)
	for _, e := range entities {
		if len(e) < minEntityLen {
			continue
		}
		if strings.Contains(lower, strings.ToLower(e)) {
			return true
		}
	}
	return false
}
