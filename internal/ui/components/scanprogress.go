package components

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/sadopc/sizestream/internal/model"
	"github.com/sadopc/sizestream/internal/ui/style"
	"github.com/sadopc/sizestream/internal/util"
)

// ScanStatus is what the scanning screen shows.
type ScanStatus struct {
	Root        string
	Scanned     uint64
	Size        uint64
	CurrentPath string
	Elapsed     time.Duration
	Disk        *model.DiskInfo
	// Largest holds the biggest finished top-level subtrees streamed so far.
	Largest []model.CompactNode
}

// RenderScanProgress renders the scanning box. spinner is the current frame.
func RenderScanProgress(theme style.Theme, st ScanStatus, spinner string, width, height int) string {
	boxWidth := min(60, width-4)
	inner := max(boxWidth-6, 1)

	lines := []string{
		theme.Title.Render(spinner + " Scanning " + util.TruncateLeft(st.Root, max(inner-11, 1))),
		"",
		theme.Label.Render("Entries") + theme.Value.Render(util.FormatCount(st.Scanned)),
		theme.Label.Render("Size") + theme.Value.Render(util.FormatSize(st.Size)),
		theme.Label.Render("Elapsed") + theme.Value.Render(st.Elapsed.Truncate(100*time.Millisecond).String()),
	}
	if st.Disk != nil && st.Disk.TotalSpace > 0 {
		ratio := float64(st.Disk.UsedSpace) / float64(st.Disk.TotalSpace)
		lines = append(lines,
			theme.Label.Render("Disk")+theme.Value.Render(fmt.Sprintf("%s of %s used",
				util.FormatSize(st.Disk.UsedSpace), util.FormatSize(st.Disk.TotalSpace))),
			theme.BarGradient(inner, ratio),
		)
	}

	lines = append(lines, "", theme.Faint.Render(util.TruncateLeft(st.CurrentPath, inner)))

	if len(st.Largest) > 0 {
		lines = append(lines, "")
		for _, n := range st.Largest {
			name := util.TruncateString(n.Name, max(inner-12, 1))
			lines = append(lines, theme.DirName.Render(name)+" "+theme.SizeText.Render(util.FormatSize(n.Size)))
		}
	}

	box := theme.Modal.Width(boxWidth).Render(strings.Join(lines, "\n"))
	return lipgloss.Place(width, height, lipgloss.Center, lipgloss.Center, box)
}
