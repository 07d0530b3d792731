package components

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/sadopc/sizestream/internal/ui/style"
	"github.com/sadopc/sizestream/internal/util"
)

// ConfirmItem is an entry pending deletion.
type ConfirmItem struct {
	Name  string
	Path  string
	Size  uint64
	IsDir bool
}

const confirmMaxShown = 10

// RenderConfirmDialog renders the deletion confirmation modal.
func RenderConfirmDialog(theme style.Theme, items []ConfirmItem, width, height int) string {
	boxWidth := min(60, width-4)

	lines := []string{
		theme.ModalTitle.Render("Delete"),
		lipgloss.NewStyle().Foreground(theme.Warning).
			Render(fmt.Sprintf("%d item(s) will be permanently deleted:", len(items))),
		"",
	}

	var total uint64
	for _, item := range items {
		total += item.Size
	}
	for i, item := range items {
		if i == confirmMaxShown {
			lines = append(lines, theme.Faint.Render(fmt.Sprintf("... and %d more", len(items)-confirmMaxShown)))
			break
		}
		kind := "F "
		if item.IsDir {
			kind = "D "
		}
		name := util.TruncateString(item.Name, max(boxWidth-20, 1))
		lines = append(lines, theme.ErrorText.Render(kind+name)+theme.Faint.Render("  "+util.FormatSize(item.Size)))
	}

	lines = append(lines,
		"",
		lipgloss.NewStyle().Bold(true).Foreground(theme.Text).Render("Total: "+util.FormatSize(total)),
		"",
		theme.Value.Render("Press ")+
			lipgloss.NewStyle().Bold(true).Foreground(theme.Success).Render("y")+
			theme.Value.Render(" to confirm, ")+
			lipgloss.NewStyle().Bold(true).Foreground(theme.Error).Render("n/esc")+
			theme.Value.Render(" to cancel"),
	)

	box := theme.Modal.Width(boxWidth).Render(strings.Join(lines, "\n"))
	return lipgloss.Place(width, height, lipgloss.Center, lipgloss.Center, box)
}
