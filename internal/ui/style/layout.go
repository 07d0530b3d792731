package style

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Layout splits the terminal between the fixed chrome and the result list.
type Layout struct {
	Width  int
	Height int
}

func NewLayout(width, height int) Layout {
	return Layout{Width: width, Height: height}
}

// ContentHeight is the number of list rows: everything but the header,
// breadcrumb, status bar and key help.
func (l Layout) ContentHeight() int {
	return max(l.Height-4, 1)
}

func (l Layout) ContentWidth() int {
	return max(l.Width, 20)
}

// BarWidth is the size bar width of a list row.
func (l Layout) BarWidth() int {
	return min(max(l.ContentWidth()-rowOverhead, 5), 40)
}

// NameWidth is what remains of a row for the entry name.
func (l Layout) NameWidth() int {
	return max(l.ContentWidth()-rowOverhead-l.BarWidth(), 8)
}

// rowOverhead is the fixed part of a list row:
// mark(2) + pct(6) + " ["(2) + "] "(2) + " "(1) + size(10).
const rowOverhead = 23

// FullWidth pads s with spaces to width visible cells. Wider strings are
// returned unchanged.
func FullWidth(s string, width int) string {
	if w := lipgloss.Width(s); w < width {
		return s + strings.Repeat(" ", width-w)
	}
	return s
}
