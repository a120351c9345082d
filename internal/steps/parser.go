// Package steps implements the deterministic, non-LLM control path: plain
// numbered steps mapped onto a fixed action vocabulary via heuristic text
// matching against page snapshots.
package steps

import (
	"regexp"
	"strings"
)

// Step is one parsed instruction line.
type Step struct {
	Number int
	Text   string
}

var (
	numberedRe = regexp.MustCompile(`^\d+\.\s+`)
	bulletRe   = regexp.MustCompile(`^[-*]\s+`)
	urlRe      = regexp.MustCompile(`https?://[^\s"']+`)
	quotedRe   = regexp.MustCompile(`"([^"]+)"|'([^']+)'`)
	waitSecsRe = regexp.MustCompile(`(\d+)\s*(?:seconds?|secs?|s\b)`)
)

// ParseSteps splits newline-delimited text into steps. Lines starting with
// "N. " or a bullet become steps; if no lines match, the entire text is one
// step.
func ParseSteps(text string) []Step {
	var parsed []Step
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if numberedRe.MatchString(line) {
			parsed = append(parsed, Step{Text: strings.TrimSpace(numberedRe.ReplaceAllString(line, ""))})
		} else if bulletRe.MatchString(line) {
			parsed = append(parsed, Step{Text: strings.TrimSpace(bulletRe.ReplaceAllString(line, ""))})
		}
	}

	if len(parsed) == 0 {
		trimmed := strings.TrimSpace(text)
		if trimmed == "" {
			return nil
		}
		parsed = []Step{{Text: trimmed}}
	}

	for i := range parsed {
		parsed[i].Number = i + 1
	}
	return parsed
}

// FirstURL returns the first URL found across all steps, or "".
func FirstURL(parsed []Step) string {
	for _, s := range parsed {
		if url := urlRe.FindString(s.Text); url != "" {
			return strings.TrimRight(url, ".,;)")
		}
	}
	return ""
}

func containsURL(text string) bool {
	return urlRe.MatchString(text)
}

var labelKeywords = []string{"labeled", "labelled", "named", "called", "titled"}

// extractTarget pulls the element phrase out of a step: quoted text first,
// then text following a labeling keyword, then the trailing words of the
// line.
func extractTarget(text string) string {
	if m := quotedRe.FindStringSubmatch(text); m != nil {
		if m[1] != "" {
			return m[1]
		}
		return m[2]
	}

	lower := strings.ToLower(text)
	for _, kw := range labelKeywords {
		if idx := strings.Index(lower, kw+" "); idx >= 0 {
			rest := strings.TrimSpace(text[idx+len(kw):])
			if rest != "" {
				return strings.Trim(rest, ".,;:")
			}
		}
	}

	words := strings.Fields(strings.Trim(text, ".,;:"))
	if len(words) > 4 {
		words = words[len(words)-4:]
	}
	return strings.Join(words, " ")
}

// parseWaitSeconds extracts an explicit duration from a wait step,
// defaulting to 2 seconds.
func parseWaitSeconds(text string) int {
	if m := waitSecsRe.FindStringSubmatch(strings.ToLower(text)); m != nil {
		secs := 0
		for _, c := range m[1] {
			secs = secs*10 + int(c-'0')
		}
		if secs > 0 {
			return secs
		}
	}
	return 2
}

func hasKeyword(text string, keywords ...string) bool {
	for _, tok := range strings.Fields(strings.ToLower(text)) {
		tok = strings.Trim(tok, `.,;:!?()"'`)
		for _, kw := range keywords {
			if tok == kw {
				return true
			}
		}
	}
	return false
}
