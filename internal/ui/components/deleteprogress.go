package components

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/sadopc/sizestream/internal/model"
	"github.com/sadopc/sizestream/internal/ui/style"
	"github.com/sadopc/sizestream/internal/util"
)

// RenderDeleteProgress renders the deletion box for the latest event.
// bar is a pre-rendered progress bar.
func RenderDeleteProgress(theme style.Theme, p model.DeletionProgress, bar string, width, height int) string {
	boxWidth := min(60, width-4)
	inner := max(boxWidth-6, 1)

	var lines []string
	if p.Completed {
		title := theme.Title.Render("Deletion finished")
		if !p.Success {
			title = theme.ErrorText.Bold(true).Render("Deletion finished with errors")
		}
		lines = append(lines, title, "")
		if p.DeletedCount != nil && p.DeletedSize != nil {
			lines = append(lines, theme.Label.Render("Deleted")+theme.Value.Render(
				fmt.Sprintf("%d item(s), %s", *p.DeletedCount, util.FormatSize(*p.DeletedSize))))
		}
		if p.FailedCount != nil && *p.FailedCount > 0 {
			lines = append(lines, theme.Label.Render("Failed")+theme.ErrorText.Render(fmt.Sprintf("%d item(s)", *p.FailedCount)))
		}
		lines = append(lines, "", theme.Faint.Render("press any key"))
	} else {
		lines = append(lines,
			theme.Title.Render(fmt.Sprintf("Deleting %d of %d", p.Current, p.Total)),
			"",
			bar,
			"",
			theme.Faint.Render(util.TruncateLeft(p.CurrentPath, inner)),
		)
	}

	box := theme.Modal.Width(boxWidth).Render(strings.Join(lines, "\n"))
	return lipgloss.Place(width, height, lipgloss.Center, lipgloss.Center, box)
}
