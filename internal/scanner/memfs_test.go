package scanner

import (
	"errors"
	"io/fs"
	"path"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/sadopc/sizestream/internal/events"
	"github.com/sadopc/sizestream/internal/model"
)

// memFS is an in-memory FileSystem with symlinks and hard links, where the
// on-disk size of a file is its apparent size.
type memFS struct {
	nodes   map[string]*memNode
	noRead  map[string]bool
	noStat  map[string]bool
	nextIno uint64
}

type memNode struct {
	size int64
	dir  bool
	link string
	ino  uint64
}

func newMemFS() *memFS {
	return &memFS{
		nodes:   map[string]*memNode{"/": {dir: true, ino: 1}},
		noRead:  map[string]bool{},
		noStat:  map[string]bool{},
		nextIno: 2,
	}
}

func (m *memFS) ino() uint64 {
	m.nextIno++
	return m.nextIno
}

func (m *memFS) mkdirAll(p string) {
	p = path.Clean(p)
	if _, ok := m.nodes[p]; ok {
		return
	}
	m.mkdirAll(path.Dir(p))
	m.nodes[p] = &memNode{dir: true, ino: m.ino()}
}

func (m *memFS) file(p string, size int64) *memNode {
	m.mkdirAll(path.Dir(p))
	n := &memNode{size: size, ino: m.ino()}
	m.nodes[path.Clean(p)] = n
	return n
}

func (m *memFS) link(p string, existing *memNode) {
	m.mkdirAll(path.Dir(p))
	m.nodes[path.Clean(p)] = existing
}

func (m *memFS) symlink(p, target string) {
	m.mkdirAll(path.Dir(p))
	m.nodes[path.Clean(p)] = &memNode{link: target, ino: m.ino()}
}

func (m *memFS) resolve(p string, followLast bool) (string, error) {
	p = path.Clean(p)
	for hops := 0; hops < 40; hops++ {
		parts := strings.Split(strings.TrimPrefix(p, "/"), "/")
		cur := "/"
		restarted := false
		for i, part := range parts {
			if part == "" {
				continue
			}
			next := path.Join(cur, part)
			n, ok := m.nodes[next]
			if !ok {
				return "", fs.ErrNotExist
			}
			last := i == len(parts)-1
			if n.link != "" && (!last || followLast) {
				target := n.link
				if !path.IsAbs(target) {
					target = path.Join(cur, target)
				}
				p = path.Join(append([]string{target}, parts[i+1:]...)...)
				restarted = true
				break
			}
			cur = next
		}
		if !restarted {
			return cur, nil
		}
	}
	return "", errors.New("too many levels of symbolic links")
}

func (m *memFS) info(p string, followLast bool) (fs.FileInfo, error) {
	if m.noStat[path.Clean(p)] {
		return nil, fs.ErrPermission
	}
	rp, err := m.resolve(p, followLast)
	if err != nil {
		return nil, err
	}
	return memInfo{name: path.Base(p), node: m.nodes[rp]}, nil
}

func (m *memFS) Lstat(p string) (fs.FileInfo, error) { return m.info(p, false) }
func (m *memFS) Stat(p string) (fs.FileInfo, error)  { return m.info(p, true) }

func (m *memFS) ReadDir(p string) ([]string, error) {
	rp, err := m.resolve(p, true)
	if err != nil {
		return nil, err
	}
	if m.noRead[rp] {
		return nil, fs.ErrPermission
	}
	if !m.nodes[rp].dir {
		return nil, errors.New("not a directory")
	}
	var names []string
	for k := range m.nodes {
		if k != rp && path.Dir(k) == rp {
			names = append(names, path.Base(k))
		}
	}
	sort.Strings(names)
	return names, nil
}

func (m *memFS) Abs(p string) (string, error)       { return path.Join("/", p), nil }
func (m *memFS) Canonical(p string) (string, error) { return m.resolve(p, true) }
func (m *memFS) Join(elem ...string) string         { return path.Join(elem...) }
func (m *memFS) Base(p string) string               { return path.Base(p) }
func (m *memFS) OnDisk(info fs.FileInfo) uint64     { return uint64(info.Size()) }

func (m *memFS) Within(root, target string) bool {
	if root == target || root == "/" {
		return true
	}
	return strings.HasPrefix(target, root+"/")
}

type memInfo struct {
	name string
	node *memNode
}

func (i memInfo) Name() string { return i.name }

func (i memInfo) Size() int64 {
	if i.node.dir {
		return 0
	}
	return i.node.size
}

func (i memInfo) Mode() fs.FileMode {
	switch {
	case i.node.dir:
		return fs.ModeDir | 0o755
	case i.node.link != "":
		return fs.ModeSymlink | 0o777
	}
	return 0o644
}

func (i memInfo) ModTime() time.Time { return time.Time{} }
func (i memInfo) IsDir() bool        { return i.node.dir }
func (i memInfo) Sys() any           { return i.node.ino }

type memIdentity struct{}

func (memIdentity) Identity(info fs.FileInfo) (Identity, bool) {
	ino, ok := info.Sys().(uint64)
	return Identity{Ino: ino}, ok
}

// recorder collects scan messages in arrival order.
type recorder struct {
	mu     sync.Mutex
	events []model.PartialScanResult
}

func (r *recorder) Emit(ev events.Event) {
	r.mu.Lock()
	r.events = append(r.events, ev.(model.PartialScanResult))
	r.mu.Unlock()
}

func (r *recorder) all() []model.PartialScanResult {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]model.PartialScanResult, len(r.events))
	copy(out, r.events)
	return out
}

func batchedNodes(evs []model.PartialScanResult) []model.CompactNode {
	var out []model.CompactNode
	for _, ev := range evs {
		out = append(out, ev.Batch...)
	}
	return out
}

func completions(evs []model.PartialScanResult) []model.PartialScanResult {
	var out []model.PartialScanResult
	for _, ev := range evs {
		if ev.IsComplete {
			out = append(out, ev)
		}
	}
	return out
}

func heartbeats(evs []model.PartialScanResult) []model.PartialScanResult {
	var out []model.PartialScanResult
	for _, ev := range evs {
		if ev.Batch == nil && ev.Root == nil && !ev.IsComplete && ev.DiskInfo == nil {
			out = append(out, ev)
		}
	}
	return out
}

func findChild(n *model.TreeNode, name string) *model.TreeNode {
	for _, c := range n.Children {
		if c.Name == name {
			return c
		}
	}
	return nil
}
