package steps

import (
	"regexp"
	"strings"
)

// Matcher resolves a human-readable target phrase against a structural page
// snapshot. It is an isolated strategy so a stricter matcher can replace it
// without touching the surrounding control flow.
type Matcher interface {
	// Match returns the snapshot line that best matches the target phrase.
	Match(snapshot, target string) (line string, ok bool)
}

// OverlapMatcher prefers exact substring containment and falls back to a
// line sharing at least MinOverlap of the target's words.
type OverlapMatcher struct {
	MinOverlap float64
}

// NewMatcher returns the default matcher with a 75% word-overlap fallback.
func NewMatcher() *OverlapMatcher {
	return &OverlapMatcher{MinOverlap: 0.75}
}

// Match implements Matcher. Matching order is deterministic: lines are
// scanned top to bottom and the first hit of the strongest tier wins.
func (m *OverlapMatcher) Match(snapshot, target string) (string, bool) {
	target = strings.TrimSpace(target)
	if target == "" {
		return "", false
	}

	lines := strings.Split(snapshot, "\n")
	lowerTarget := strings.ToLower(target)

	for _, line := range lines {
		if strings.Contains(strings.ToLower(line), lowerTarget) {
			return strings.TrimSpace(line), true
		}
	}

	targetWords := splitWords(lowerTarget)
	if len(targetWords) == 0 {
		return "", false
	}

	for _, line := range lines {
		lineWords := wordSet(strings.ToLower(line))
		shared := 0
		for _, w := range targetWords {
			if lineWords[w] {
				shared++
			}
		}
		if float64(shared)/float64(len(targetWords)) >= m.MinOverlap {
			return strings.TrimSpace(line), true
		}
	}

	return "", false
}

var refRe = regexp.MustCompile(`\[ref=([A-Za-z0-9_-]+)\]`)

// ExtractRef pulls the element reference out of a matched snapshot line,
// e.g. `- button "Sign in" [ref=e12]` yields "e12".
func ExtractRef(line string) string {
	if m := refRe.FindStringSubmatch(line); m != nil {
		return m[1]
	}
	return ""
}

func splitWords(s string) []string {
	var words []string
	for _, tok := range strings.Fields(s) {
		tok = strings.Trim(tok, `.,;:!?()[]{}"'`)
		if tok != "" {
			words = append(words, tok)
		}
	}
	return words
}

func wordSet(s string) map[string]bool {
	set := make(map[string]bool)
	for _, w := range splitWords(s) {
		set[w] = true
	}
	return set
}
