// internal/agent/history.go
package agent

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// History is the ordered step log of one goal run.
type History struct {
	lines []string
}

// Add appends "[step] text" and returns the stored line.
func (h *History) Add(step int, text string) string {
	line := fmt.Sprintf("[%d] %s", step, text)
	h.lines = append(h.lines, line)
	return line
}

// Lines returns a copy of every entry.
func (h *History) Lines() []string {
	return append([]string(nil), h.lines...)
}

// Len is the number of entries.
func (h *History) Len() int { return len(h.lines) }

// Tail joins the entries with newlines and keeps at most the last limit bytes.
// The cut is moved forward to a rune boundary.
func (h *History) Tail(limit int) string {
	s := strings.Join(h.lines, "\n")
	if limit <= 0 || len(s) <= limit {
		return s
	}
	i := len(s) - limit
	for i < len(s) && !utf8.RuneStart(s[i]) {
		i++
	}
	return s[i:]
}
