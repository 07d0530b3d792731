package style

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/lucasb-eyer/go-colorful"
)

// Theme holds the palette and the styles built from it.
type Theme struct {
	Primary lipgloss.Color
	Accent  lipgloss.Color
	Error   lipgloss.Color
	Warning lipgloss.Color
	Success lipgloss.Color

	BgPanel lipgloss.Color

	Text      lipgloss.Color
	TextDim   lipgloss.Color
	TextFaint lipgloss.Color

	// Bars blend from GradientStart to GradientEnd.
	GradientStart lipgloss.Color
	GradientEnd   lipgloss.Color

	Title       lipgloss.Style
	Header      lipgloss.Style
	Breadcrumb  lipgloss.Style
	StatusBar   lipgloss.Style
	SelectedRow lipgloss.Style
	Marked      lipgloss.Style
	Cursor      lipgloss.Style
	DirName     lipgloss.Style
	FileName    lipgloss.Style
	SizeText    lipgloss.Style
	PercentText lipgloss.Style
	Label       lipgloss.Style
	Value       lipgloss.Style
	Faint       lipgloss.Style
	ErrorText   lipgloss.Style
	Modal       lipgloss.Style
	ModalTitle  lipgloss.Style
}

// DefaultTheme returns the dark theme.
func DefaultTheme() Theme {
	t := Theme{
		Primary: lipgloss.Color("#7B2FBE"),
		Accent:  lipgloss.Color("#61AFEF"),
		Error:   lipgloss.Color("#E06C75"),
		Warning: lipgloss.Color("#E5C07B"),
		Success: lipgloss.Color("#98C379"),

		BgPanel: lipgloss.Color("#282A36"),

		Text:      lipgloss.Color("#CDD6F4"),
		TextDim:   lipgloss.Color("#BAC2DE"),
		TextFaint: lipgloss.Color("#6C7086"),

		GradientStart: lipgloss.Color("#7B2FBE"),
		GradientEnd:   lipgloss.Color("#00D4AA"),
	}

	t.Title = lipgloss.NewStyle().Bold(true).Foreground(t.Primary)
	t.Header = lipgloss.NewStyle().Bold(true).Foreground(t.Text).Background(t.BgPanel)
	t.Breadcrumb = lipgloss.NewStyle().Foreground(t.TextFaint)
	t.StatusBar = lipgloss.NewStyle().Foreground(t.TextDim).Background(t.BgPanel)
	t.SelectedRow = lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("#FFFFFF")).
		Background(lipgloss.Color("#4A4A6A"))
	t.Marked = lipgloss.NewStyle().Foreground(t.Error).Bold(true)
	t.Cursor = lipgloss.NewStyle().Foreground(t.Primary).Bold(true)
	t.DirName = lipgloss.NewStyle().Foreground(t.Accent).Bold(true)
	t.FileName = lipgloss.NewStyle().Foreground(t.TextDim)
	t.SizeText = lipgloss.NewStyle().Foreground(t.TextFaint).Width(10).Align(lipgloss.Right)
	t.PercentText = lipgloss.NewStyle().Foreground(t.TextFaint).Width(6).Align(lipgloss.Right)
	t.Label = lipgloss.NewStyle().Foreground(t.TextFaint).Width(10)
	t.Value = lipgloss.NewStyle().Foreground(t.TextDim)
	t.Faint = lipgloss.NewStyle().Foreground(t.TextFaint)
	t.ErrorText = lipgloss.NewStyle().Foreground(t.Error)
	t.Modal = lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(t.Primary).
		Padding(1, 2).
		Background(t.BgPanel)
	t.ModalTitle = lipgloss.NewStyle().Bold(true).Foreground(t.Text).Padding(0, 0, 1, 0)
	return t
}

// GradientColor returns the gradient color at ratio in [0, 1].
func (t Theme) GradientColor(ratio float64) lipgloss.Color {
	switch {
	case ratio <= 0:
		return t.GradientStart
	case ratio >= 1:
		return t.GradientEnd
	}
	c1, _ := colorful.Hex(string(t.GradientStart))
	c2, _ := colorful.Hex(string(t.GradientEnd))
	return lipgloss.Color(c1.BlendLab(c2, ratio).Hex())
}

// BarGradient renders a bar of width cells, filled to ratio, where each
// filled cell takes its own color along the gradient.
func (t Theme) BarGradient(width int, ratio float64) string {
	if width <= 0 {
		return ""
	}
	filled := int(ratio * float64(width))
	filled = min(max(filled, 0), width)

	var b strings.Builder
	for i := 0; i < filled; i++ {
		pos := float64(i) / float64(max(width-1, 1))
		b.WriteString(lipgloss.NewStyle().Foreground(t.GradientColor(pos)).Render("━"))
	}
	if filled < width {
		b.WriteString(t.Faint.Render(strings.Repeat("─", width-filled)))
	}
	return b.String()
}
