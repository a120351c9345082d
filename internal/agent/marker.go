package agent

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	completedRe = regexp.MustCompile(`(?i)completed_steps\s*[=:]\s*(\d+)`)
	totalRe     = regexp.MustCompile(`(?i)total_steps\s*[=:]\s*(\d+)`)
	stepLineRe  = regexp.MustCompile(`^(\d+\.\s+|[-*]\s+)`)
)

// Marker is the step-completion signal parsed from an assistant reply, e.g.
// "DONE (completed_steps=3 total_steps=3)". Either counter may be absent.
type Marker struct {
	Completed    int
	Total        int
	HasCompleted bool
	HasTotal     bool
}

// ParseMarker extracts the completion marker from free reply text.
func ParseMarker(text string) Marker {
	var m Marker
	if match := completedRe.FindStringSubmatch(text); match != nil {
		if n, err := strconv.Atoi(match[1]); err == nil {
			m.Completed = n
			m.HasCompleted = true
		}
	}
	if match := totalRe.FindStringSubmatch(text); match != nil {
		if n, err := strconv.Atoi(match[1]); err == nil {
			m.Total = n
			m.HasTotal = true
		}
	}
	return m
}

// CountSteps counts the enumerated steps in the input text: lines starting
// with "N. " or a bullet. Returns 0 when nothing is enumerable, which marks
// the run as free-form.
func CountSteps(text string) int {
	count := 0
	for _, line := range strings.Split(text, "\n") {
		if stepLineRe.MatchString(strings.TrimSpace(line)) {
			count++
		}
	}
	return count
}
