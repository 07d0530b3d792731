package components

import (
	"fmt"
	"strings"

	"github.com/sadopc/sizestream/internal/model"
	"github.com/sadopc/sizestream/internal/ui/style"
	"github.com/sadopc/sizestream/internal/util"
)

// TreeView renders the children of one directory as sized rows.
type TreeView struct {
	Theme      style.Theme
	Layout     style.Layout
	Items      []*model.TreeNode
	Cursor     int
	Offset     int
	Marked     map[string]bool
	ParentSize uint64
}

func (tv *TreeView) Render() string {
	width := tv.Layout.ContentWidth()
	height := tv.Layout.ContentHeight()

	if len(tv.Items) == 0 {
		return style.FullWidth(tv.Theme.Faint.Render("  (empty directory)"), width)
	}

	end := min(tv.Offset+height, len(tv.Items))
	lines := make([]string, 0, height)
	for i := tv.Offset; i < end; i++ {
		lines = append(lines, tv.renderRow(tv.Items[i], i == tv.Cursor, width))
	}
	for len(lines) < height {
		lines = append(lines, strings.Repeat(" ", width))
	}
	return strings.Join(lines, "\n")
}

func (tv *TreeView) renderRow(item *model.TreeNode, selected bool, width int) string {
	pct := util.Percent(item.Size, tv.ParentSize)
	bar := tv.Theme.BarGradient(tv.Layout.BarWidth(), pct/100)

	name := item.Name
	if item.IsDirectory {
		name += "/"
	}
	name = util.TruncateString(name, tv.Layout.NameWidth())
	if item.IsDirectory {
		name = tv.Theme.DirName.Render(name)
	} else {
		name = tv.Theme.FileName.Render(name)
	}

	marked := tv.Marked[item.Path]
	indicator := "  "
	switch {
	case selected && marked:
		indicator = tv.Theme.Marked.Render("*") + tv.Theme.Cursor.Render(">")
	case selected:
		indicator = tv.Theme.Cursor.Render(" >")
	case marked:
		indicator = tv.Theme.Marked.Render("* ")
	}

	row := fmt.Sprintf("%s%s [%s] %s %s",
		indicator,
		tv.Theme.PercentText.Render(fmt.Sprintf("%5.1f%%", pct)),
		bar,
		name,
		tv.Theme.SizeText.Render(util.FormatSize(item.Size)),
	)
	row = style.FullWidth(row, width)
	if selected {
		return tv.Theme.SelectedRow.Width(width).Render(row)
	}
	return row
}

// EnsureVisible scrolls so the cursor row is on screen.
func (tv *TreeView) EnsureVisible() {
	height := tv.Layout.ContentHeight()
	if tv.Cursor < tv.Offset {
		tv.Offset = tv.Cursor
	}
	if tv.Cursor >= tv.Offset+height {
		tv.Offset = tv.Cursor - height + 1
	}
	tv.Offset = max(tv.Offset, 0)
}
