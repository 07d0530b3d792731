// Package ui renders a live scan and lets the user browse and delete the
// result. It is driven entirely by the event stream of a scan.
package ui

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/sadopc/sizestream/internal/events"
	"github.com/sadopc/sizestream/internal/model"
	"github.com/sadopc/sizestream/internal/ui/components"
	"github.com/sadopc/sizestream/internal/ui/style"
)

// State is the screen the app is on.
type State int

const (
	StateScanning State = iota
	StateBrowsing
	StateConfirmDelete
	StateDeleting
	StateDeleteDone
)

// largestShown is how many streamed subtrees the scanning screen lists.
const largestShown = 5

// Controller performs the actions the user requests.
type Controller interface {
	CancelScan()
	// Delete starts a deletion batch whose events arrive on the app's
	// event channel.
	Delete(paths []string)
}

// EventMsg wraps one event from the scan or deletion stream.
type EventMsg struct{ Event events.Event }

// ScanDoneMsg reports how the scan ended. Tree is set on success, so a
// completion event lost by a lagging stream does not leave the app waiting.
type ScanDoneMsg struct {
	Tree    *model.TreeNode
	Scanned uint64
	Err     error
}

type eventsClosedMsg struct{}

// App is the root Bubble Tea model.
type App struct {
	Root string

	ctl      Controller
	events   <-chan events.Event
	readOnly bool

	state  State
	width  int
	height int
	layout style.Layout
	theme  style.Theme
	keys   KeyMap

	spinner spinner.Model
	bar     progress.Model
	help    help.Model

	started time.Time
	scan    components.ScanStatus

	root      *model.TreeNode
	disk      *model.DiskInfo
	stack     []*model.TreeNode
	items     []*model.TreeNode
	sortField model.SortField
	cursor    int
	offset    int
	marked    map[string]bool

	pending  []components.ConfirmItem
	deletion model.DeletionProgress

	message  string
	fatalErr error
}

// Option configures an App.
type Option func(*App)

// ReadOnly hides marking and deletion, for remote scans.
func ReadOnly() Option {
	return func(a *App) { a.readOnly = true }
}

// NewApp creates the model for a scan of root whose events arrive on ch.
func NewApp(root string, ch <-chan events.Event, ctl Controller, opts ...Option) *App {
	theme := style.DefaultTheme()
	a := &App{
		Root:      root,
		ctl:       ctl,
		events:    ch,
		theme:     theme,
		keys:      DefaultKeyMap(),
		spinner:   spinner.New(spinner.WithSpinner(spinner.Dot)),
		bar:       progress.New(progress.WithGradient(string(theme.GradientStart), string(theme.GradientEnd))),
		help:      help.New(),
		started:   time.Now(),
		scan:      components.ScanStatus{Root: root},
		sortField: model.SortBySize,
		marked:    make(map[string]bool),
	}
	for _, o := range opts {
		o(a)
	}
	if a.readOnly {
		a.keys = a.keys.readOnly()
	}
	return a
}

func (a *App) Init() tea.Cmd {
	return tea.Batch(a.spinner.Tick, a.listen())
}

// listen waits for the next event.
func (a *App) listen() tea.Cmd {
	ch := a.events
	return func() tea.Msg {
		ev, ok := <-ch
		if !ok {
			return eventsClosedMsg{}
		}
		return EventMsg{Event: ev}
	}
}

func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.width, a.height = msg.Width, msg.Height
		a.layout = style.NewLayout(msg.Width, msg.Height)
		a.bar.Width = min(max(msg.Width-16, 10), 48)
		a.help.Width = msg.Width
		return a, nil

	case spinner.TickMsg:
		if a.state != StateScanning {
			return a, nil
		}
		a.scan.Elapsed = time.Since(a.started)
		var cmd tea.Cmd
		a.spinner, cmd = a.spinner.Update(msg)
		return a, cmd

	case EventMsg:
		a.handleEvent(msg.Event)
		return a, a.listen()

	case eventsClosedMsg:
		return a, nil

	case ScanDoneMsg:
		if a.state != StateScanning {
			return a, nil
		}
		if msg.Err == nil {
			if msg.Tree != nil {
				a.scan.Scanned = msg.Scanned
				a.browse(msg.Tree)
			}
			return a, nil
		}
		if !errors.Is(msg.Err, context.Canceled) {
			a.fatalErr = msg.Err
		}
		return a, tea.Quit

	case tea.KeyMsg:
		return a.handleKey(msg)
	}
	return a, nil
}

func (a *App) handleEvent(ev events.Event) {
	switch ev := ev.(type) {
	case model.PartialScanResult:
		a.handleScanEvent(ev)
	case model.DeletionProgress:
		a.handleDeleteEvent(ev)
	}
}

func (a *App) handleScanEvent(ev model.PartialScanResult) {
	if ev.DiskInfo != nil {
		d := *ev.DiskInfo
		a.disk = &d
		a.scan.Disk = a.disk
	}
	if ev.TotalScanned >= a.scan.Scanned {
		a.scan.Scanned, a.scan.Size = ev.TotalScanned, ev.TotalSize
	}
	if ev.CurrentPath != "" {
		a.scan.CurrentPath = ev.CurrentPath
	}
	if len(ev.Batch) > 0 {
		a.scan.Largest = append(a.scan.Largest, ev.Batch...)
		sort.SliceStable(a.scan.Largest, func(i, j int) bool {
			return a.scan.Largest[i].Size > a.scan.Largest[j].Size
		})
		if len(a.scan.Largest) > largestShown {
			a.scan.Largest = a.scan.Largest[:largestShown]
		}
	}

	if ev.IsComplete && ev.Root != nil && a.state == StateScanning {
		a.browse(ev.Root)
	}
}

func (a *App) browse(root *model.TreeNode) {
	a.root = root
	a.stack = []*model.TreeNode{root}
	a.cursor, a.offset = 0, 0
	a.state = StateBrowsing
	a.refresh()
}

func (a *App) handleDeleteEvent(ev model.DeletionProgress) {
	if a.state != StateDeleting {
		return
	}
	a.deletion = ev
	if !ev.Completed {
		return
	}

	a.state = StateDeleteDone
	failed := 0
	if ev.FailedCount != nil {
		failed = *ev.FailedCount
	}
	if failed == 0 {
		a.removePending()
		a.message = fmt.Sprintf("Deleted %d item(s)", len(a.pending))
	} else {
		a.message = fmt.Sprintf("Delete: %d of %d failed; sizes shown may be stale", failed, len(a.pending))
	}
	a.pending = nil
	a.marked = make(map[string]bool)
}

// removePending drops deleted entries from the current directory and
// recomputes sizes up to the root.
func (a *App) removePending() {
	gone := make(map[string]bool, len(a.pending))
	for _, p := range a.pending {
		gone[p.Path] = true
	}
	dir := a.current()
	kept := dir.Children[:0]
	for _, c := range dir.Children {
		if !gone[c.Path] {
			kept = append(kept, c)
		}
	}
	dir.Children = kept
	for i := len(a.stack) - 1; i >= 0; i-- {
		a.stack[i].UpdateSize()
	}
	a.refresh()
	a.clampCursor()
}

func (a *App) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch a.state {
	case StateScanning:
		if key.Matches(msg, a.keys.Quit) {
			if a.ctl != nil {
				a.ctl.CancelScan()
			}
			return a, tea.Quit
		}

	case StateBrowsing:
		return a.handleBrowsingKey(msg)

	case StateConfirmDelete:
		switch {
		case key.Matches(msg, a.keys.ConfirmYes):
			paths := make([]string, len(a.pending))
			for i, p := range a.pending {
				paths[i] = p.Path
			}
			a.state = StateDeleting
			a.deletion = model.DeletionProgress{Total: len(paths)}
			a.ctl.Delete(paths)
		case key.Matches(msg, a.keys.ConfirmNo):
			a.pending = nil
			a.state = StateBrowsing
		}

	case StateDeleteDone:
		a.state = StateBrowsing
	}
	return a, nil
}

func (a *App) handleBrowsingKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	a.message = ""
	switch {
	case key.Matches(msg, a.keys.Quit):
		return a, tea.Quit
	case key.Matches(msg, a.keys.Help):
		a.help.ShowAll = !a.help.ShowAll
	case key.Matches(msg, a.keys.Up):
		a.cursor--
		a.clampCursor()
	case key.Matches(msg, a.keys.Down):
		a.cursor++
		a.clampCursor()
	case key.Matches(msg, a.keys.Enter):
		a.enterDir()
	case key.Matches(msg, a.keys.Back):
		a.goBack()
	case key.Matches(msg, a.keys.SortSize):
		a.sortField = model.SortBySize
		a.refresh()
	case key.Matches(msg, a.keys.SortName):
		a.sortField = model.SortByName
		a.refresh()
	case key.Matches(msg, a.keys.Mark):
		a.toggleMark()
	case key.Matches(msg, a.keys.Delete):
		a.prepareDelete()
	}
	return a, nil
}

func (a *App) current() *model.TreeNode {
	if len(a.stack) == 0 {
		return nil
	}
	return a.stack[len(a.stack)-1]
}

func (a *App) refresh() {
	dir := a.current()
	if dir == nil {
		a.items = nil
		return
	}
	a.items = make([]*model.TreeNode, len(dir.Children))
	copy(a.items, dir.Children)
	model.SortChildren(a.items, a.sortField)
}

func (a *App) clampCursor() {
	a.cursor = max(min(a.cursor, len(a.items)-1), 0)
}

func (a *App) enterDir() {
	if a.cursor >= len(a.items) {
		return
	}
	item := a.items[a.cursor]
	if !item.IsDirectory || len(item.Children) == 0 {
		return
	}
	a.stack = append(a.stack, item)
	a.cursor, a.offset = 0, 0
	a.marked = make(map[string]bool)
	a.refresh()
}

func (a *App) goBack() {
	if len(a.stack) <= 1 {
		return
	}
	leaving := a.current()
	a.stack = a.stack[:len(a.stack)-1]
	a.marked = make(map[string]bool)
	a.refresh()
	a.cursor, a.offset = 0, 0
	for i, item := range a.items {
		if item == leaving {
			a.cursor = i
			break
		}
	}
}

func (a *App) toggleMark() {
	if a.cursor >= len(a.items) {
		return
	}
	p := a.items[a.cursor].Path
	if a.marked[p] {
		delete(a.marked, p)
	} else {
		a.marked[p] = true
	}
	a.cursor++
	a.clampCursor()
}

func (a *App) prepareDelete() {
	if a.ctl == nil {
		return
	}
	var items []components.ConfirmItem
	for i, item := range a.items {
		if a.marked[item.Path] || (len(a.marked) == 0 && i == a.cursor) {
			items = append(items, components.ConfirmItem{
				Name:  item.Name,
				Path:  item.Path,
				Size:  item.Size,
				IsDir: item.IsDirectory,
			})
		}
	}
	if len(items) == 0 {
		return
	}
	a.pending = items
	a.state = StateConfirmDelete
}

func (a *App) markedSize() uint64 {
	var total uint64
	for _, item := range a.items {
		if a.marked[item.Path] {
			total = model.SaturatingAdd(total, item.Size)
		}
	}
	return total
}

// State returns the current screen.
func (a *App) State() State { return a.state }

// FatalError returns the error that ended the scan, if any.
func (a *App) FatalError() error { return a.fatalErr }

func (a *App) View() string {
	if a.width == 0 {
		return "Loading..."
	}

	switch a.state {
	case StateScanning:
		return components.RenderScanProgress(a.theme, a.scan, a.spinner.View(), a.width, a.height)
	case StateConfirmDelete:
		return components.RenderConfirmDialog(a.theme, a.pending, a.width, a.height)
	case StateDeleting, StateDeleteDone:
		ratio := 0.0
		if a.deletion.Total > 0 {
			ratio = float64(a.deletion.Current) / float64(a.deletion.Total)
		}
		return components.RenderDeleteProgress(a.theme, a.deletion, a.bar.ViewAs(ratio), a.width, a.height)
	}
	return a.renderBrowsing()
}

func (a *App) renderBrowsing() string {
	segments := make([]string, 0, len(a.stack))
	for _, n := range a.stack[1:] {
		segments = append(segments, n.Name)
	}

	tv := &components.TreeView{
		Theme:      a.theme,
		Layout:     a.layout,
		Items:      a.items,
		Cursor:     a.cursor,
		Offset:     a.offset,
		Marked:     a.marked,
		ParentSize: a.current().Size,
	}
	tv.EnsureVisible()
	a.offset = tv.Offset

	status := components.RenderStatusBar(a.theme, components.StatusInfo{
		Dir:         a.current(),
		MarkedCount: len(a.marked),
		MarkedSize:  a.markedSize(),
		SortField:   a.sortField,
		Message:     a.message,
	}, a.width)

	return components.RenderHeader(a.theme, a.root, a.scan.Scanned, a.disk, a.width) + "\n" +
		components.RenderBreadcrumb(a.theme, segments, a.width) + "\n" +
		tv.Render() + "\n" +
		status + "\n" +
		a.help.View(a.keys)
}
