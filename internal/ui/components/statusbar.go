package components

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/sadopc/sizestream/internal/model"
	"github.com/sadopc/sizestream/internal/ui/style"
	"github.com/sadopc/sizestream/internal/util"
)

// StatusInfo is the state shown in the bottom bar.
type StatusInfo struct {
	Dir         *model.TreeNode
	MarkedCount int
	MarkedSize  uint64
	SortField   model.SortField
	Message     string
}

func RenderStatusBar(theme style.Theme, info StatusInfo, width int) string {
	if info.Message != "" {
		msg := " " + lipgloss.NewStyle().Foreground(theme.Warning).Bold(true).Render(info.Message)
		return theme.StatusBar.Width(width).Render(msg)
	}

	var parts []string
	if info.Dir != nil {
		parts = append(parts,
			fmt.Sprintf("%d items", len(info.Dir.Children)),
			util.FormatSize(info.Dir.Size),
		)
	}
	if info.MarkedCount > 0 {
		parts = append(parts, theme.Marked.Render(
			fmt.Sprintf("* %d marked (%s)", info.MarkedCount, util.FormatSize(info.MarkedSize))))
	}
	left := " " + strings.Join(parts, " | ")

	sortName := "size"
	if info.SortField == model.SortByName {
		sortName = "name"
	}
	right := theme.Faint.Render("sort: "+sortName) + " "

	gap := max(width-lipgloss.Width(left)-lipgloss.Width(right), 1)
	return theme.StatusBar.Width(width).Render(left + strings.Repeat(" ", gap) + right)
}
