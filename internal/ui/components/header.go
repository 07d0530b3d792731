package components

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/sadopc/sizestream/internal/model"
	"github.com/sadopc/sizestream/internal/ui/style"
	"github.com/sadopc/sizestream/internal/util"
)

// RenderHeader renders the top bar: root path, entry count, total size and,
// when known, disk usage.
func RenderHeader(theme style.Theme, root *model.TreeNode, scanned uint64, disk *model.DiskInfo, width int) string {
	if root == nil || width < 10 {
		return ""
	}

	title := theme.Title.Render(" sizestream")
	stats := fmt.Sprintf("%s entries  %s ", util.FormatCount(scanned), util.FormatSize(root.Size))
	if disk != nil && disk.TotalSpace > 0 {
		stats = fmt.Sprintf("%s  disk %.0f%% used ", stats, util.Percent(disk.UsedSpace, disk.TotalSpace))
	}
	statsStyled := theme.Faint.Render(stats)

	titleW := lipgloss.Width(title)
	statsW := lipgloss.Width(statsStyled)
	path := ""
	if room := width - titleW - statsW - 3; room > 5 {
		path = util.TruncateLeft(root.Path, room)
	}
	pathStyled := lipgloss.NewStyle().Foreground(theme.Text).Render("  " + path)

	gap := max(width-titleW-lipgloss.Width(pathStyled)-statsW, 1)
	return theme.Header.Width(width).Render(title + pathStyled + strings.Repeat(" ", gap) + statsStyled)
}

// RenderBreadcrumb renders the navigation path below the root, keeping the
// last segments when it does not fit.
func RenderBreadcrumb(theme style.Theme, segments []string, width int) string {
	sep := theme.Faint.Render(" > ")
	parts := make([]string, 0, len(segments)+1)
	parts = append(parts, theme.Faint.Render("/"))
	for i, seg := range segments {
		s := theme.Faint
		if i == len(segments)-1 {
			s = lipgloss.NewStyle().Foreground(theme.Text).Bold(true)
		}
		parts = append(parts, s.Render(seg))
	}

	line := " " + strings.Join(parts, sep)
	if lipgloss.Width(line) > width && len(parts) > 2 {
		line = " " + theme.Faint.Render("...") + sep + strings.Join(parts[len(parts)-2:], sep)
	}
	return theme.Breadcrumb.Width(max(width, 0)).Render(line)
}
