package scanner

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/sadopc/sizestream/internal/events"
	"github.com/sadopc/sizestream/internal/model"
	"gotest.tools/v3/assert"
	is "gotest.tools/v3/assert/cmp"
	"pgregory.net/rapid"
)

func memScanner(m *memFS, opts Options) *Scanner {
	return &Scanner{FS: m, Identity: memIdentity{}, Options: opts}
}

func TestScan_TopLevelDirAndFile(t *testing.T) {
	m := newMemFS()
	m.file("/r/A/a1", 100)
	m.file("/r/f1", 50)

	session := NewSession(DefaultOptions())
	rec := &recorder{}
	tree, err := memScanner(m, DefaultOptions()).Scan(context.Background(), session, "/r", rec)
	assert.NilError(t, err)

	assert.Equal(t, tree.Size, uint64(150))
	visited, size := session.Stats()
	assert.Equal(t, visited, uint64(3))
	assert.Equal(t, size, uint64(150))

	evs := rec.all()
	batched := batchedNodes(evs)
	assert.Assert(t, is.Len(batched, 2))
	byName := map[string]model.CompactNode{}
	for _, n := range batched {
		byName[n.Name] = n
	}
	assert.Equal(t, byName["A"].Size, uint64(100))
	assert.Assert(t, byName["A"].IsDirectory)
	assert.DeepEqual(t, byName["A"].Children, []model.CompactNode{{Name: "a1", Size: 100}})
	assert.Equal(t, byName["f1"].Size, uint64(50))
	assert.Assert(t, !byName["f1"].IsDirectory)

	done := completions(evs)
	assert.Assert(t, is.Len(done, 1))
	last := evs[len(evs)-1]
	assert.Assert(t, last.IsComplete)
	assert.Equal(t, last.TotalScanned, uint64(3))
	assert.Equal(t, last.TotalSize, uint64(150))
	assert.Equal(t, last.Root.Size, uint64(150))
	assert.Assert(t, is.Len(last.Root.Children, 2))
	assert.Equal(t, findChild(last.Root, "A").Size, uint64(100))
	assert.Equal(t, findChild(last.Root, "f1").Size, uint64(50))
}

func TestScan_SymlinkCycleTerminates(t *testing.T) {
	m := newMemFS()
	m.file("/r/A/a1", 100)
	m.symlink("/r/A/loop", "/r")
	m.symlink("/r/A/self", ".")

	session := NewSession(DefaultOptions())
	tree, err := memScanner(m, DefaultOptions()).Scan(context.Background(), session, "/r", events.Discard)
	assert.NilError(t, err)

	assert.Equal(t, tree.Size, uint64(100))
	a := findChild(tree, "A")
	assert.Equal(t, findChild(a, "loop").Size, uint64(0))
	assert.Assert(t, findChild(a, "loop").Children == nil)
	assert.Equal(t, findChild(a, "self").Size, uint64(0))
	visited, _ := session.Stats()
	assert.Equal(t, visited, uint64(2))
}

func TestScan_HardLinkCountedOnce(t *testing.T) {
	m := newMemFS()
	n := m.file("/r/x", 100)
	m.link("/r/y", n)

	session := NewSession(DefaultOptions())
	tree, err := memScanner(m, DefaultOptions()).Scan(context.Background(), session, "/r", events.Discard)
	assert.NilError(t, err)

	assert.Equal(t, tree.Size, uint64(100))
	assert.Equal(t, findChild(tree, "x").Size+findChild(tree, "y").Size, uint64(100))
	visited, size := session.Stats()
	assert.Equal(t, visited, uint64(1))
	assert.Equal(t, size, uint64(100))
}

func TestScan_SymlinkOutsideRootIsEmptyLeaf(t *testing.T) {
	m := newMemFS()
	m.file("/other/big", 500)
	m.symlink("/r/out", "/other")

	session := NewSession(DefaultOptions())
	tree, err := memScanner(m, DefaultOptions()).Scan(context.Background(), session, "/r", events.Discard)
	assert.NilError(t, err)

	assert.Equal(t, tree.Size, uint64(0))
	out := findChild(tree, "out")
	assert.Assert(t, out != nil)
	assert.Assert(t, !out.IsDirectory)
	visited, _ := session.Stats()
	assert.Equal(t, visited, uint64(0))
}

func TestScan_SymlinkToDirInsideRootCountedOnce(t *testing.T) {
	m := newMemFS()
	m.file("/r/A/a1", 100)
	m.symlink("/r/L", "/r/A")

	tree, err := memScanner(m, DefaultOptions()).Scan(context.Background(), NewSession(DefaultOptions()), "/r", events.Discard)
	assert.NilError(t, err)

	assert.Equal(t, tree.Size, uint64(100))
	assert.Equal(t, findChild(tree, "A").Size+findChild(tree, "L").Size, uint64(100))
}

func TestScan_SymlinkToFileUsesTargetSize(t *testing.T) {
	m := newMemFS()
	m.file("/r/data/blob", 64)
	m.symlink("/r/alias", "data/blob")
	m.file("/r/solo", 8)
	m.symlink("/r/solo-link", "/r/solo")

	tree, err := memScanner(m, DefaultOptions()).Scan(context.Background(), NewSession(DefaultOptions()), "/r", events.Discard)
	assert.NilError(t, err)

	// Each target is counted once whichever name reaches it first.
	assert.Equal(t, tree.Size, uint64(72))
}

func TestScan_BrokenSymlinkIsZeroLeaf(t *testing.T) {
	m := newMemFS()
	m.symlink("/r/broken", "/nowhere")

	session := NewSession(DefaultOptions())
	tree, err := memScanner(m, DefaultOptions()).Scan(context.Background(), session, "/r", events.Discard)
	assert.NilError(t, err)

	b := findChild(tree, "broken")
	assert.Assert(t, b != nil)
	assert.Equal(t, b.Size, uint64(0))
	visited, _ := session.Stats()
	assert.Equal(t, visited, uint64(1))
}

func TestScan_UnreadableEntries(t *testing.T) {
	m := newMemFS()
	m.file("/r/locked/inside", 10)
	m.file("/r/gone", 20)
	m.file("/r/ok", 30)
	m.noRead["/r/locked"] = true
	m.noStat["/r/gone"] = true

	tree, err := memScanner(m, DefaultOptions()).Scan(context.Background(), NewSession(DefaultOptions()), "/r", events.Discard)
	assert.NilError(t, err)

	assert.Equal(t, tree.Size, uint64(30))
	assert.Assert(t, findChild(tree, "gone") == nil)
	locked := findChild(tree, "locked")
	assert.Assert(t, locked.IsDirectory)
	assert.Equal(t, locked.Size, uint64(0))
	assert.Assert(t, locked.Children != nil)
	assert.Assert(t, is.Len(locked.Children, 0))
}

func TestScan_UnreadableRootFails(t *testing.T) {
	m := newMemFS()
	m.file("/r/f", 1)
	m.noRead["/r"] = true

	rec := &recorder{}
	_, err := memScanner(m, DefaultOptions()).Scan(context.Background(), NewSession(DefaultOptions()), "/r", rec)
	assert.ErrorContains(t, err, "cannot read /r")
	assert.Assert(t, is.Len(completions(rec.all()), 0))
}

func TestScan_MissingRootFails(t *testing.T) {
	_, err := memScanner(newMemFS(), DefaultOptions()).Scan(context.Background(), NewSession(DefaultOptions()), "/missing", events.Discard)
	assert.Assert(t, errors.Is(err, os.ErrNotExist))
}

func TestScan_HeartbeatCadence(t *testing.T) {
	m := newMemFS()
	for i := 0; i < 25; i++ {
		m.file(fmt.Sprintf("/r/f%02d", i), 1)
	}

	rec := &recorder{}
	_, err := memScanner(m, DefaultOptions()).Scan(context.Background(), NewSession(DefaultOptions()), "/r", rec)
	assert.NilError(t, err)

	// One before each direct child of the root, plus one per ten visits.
	assert.Assert(t, is.Len(heartbeats(rec.all()), 25+2))
}

func TestScan_BatchThreshold(t *testing.T) {
	m := newMemFS()
	for i := 0; i < 5; i++ {
		m.file(fmt.Sprintf("/r/d%d/f", i), 10)
	}
	opts := DefaultOptions()
	opts.BatchSize = 2

	rec := &recorder{}
	_, err := memScanner(m, opts).Scan(context.Background(), NewSession(opts), "/r", rec)
	assert.NilError(t, err)

	evs := rec.all()
	seen := map[string]bool{}
	for _, n := range batchedNodes(evs) {
		assert.Assert(t, !seen[n.Name], "duplicate batched node %s", n.Name)
		seen[n.Name] = true
	}
	assert.Equal(t, len(seen), 5)

	// The first drain happens once the threshold is reached.
	largest := 0
	for _, ev := range evs {
		if len(ev.Batch) > largest {
			largest = len(ev.Batch)
		}
	}
	assert.Assert(t, largest >= 2)
}

func TestScan_DiskInfo(t *testing.T) {
	m := newMemFS()
	m.file("/r/f", 5)

	s := memScanner(m, DefaultOptions())
	s.Disk = fakeDisk{info: model.NewDiskInfo(1000, 250)}
	rec := &recorder{}
	_, err := s.Scan(context.Background(), NewSession(DefaultOptions()), "/r", rec)
	assert.NilError(t, err)

	evs := rec.all()
	assert.Assert(t, evs[0].DiskInfo != nil)
	assert.Equal(t, evs[0].CurrentPath, "/r")
	last := evs[len(evs)-1]
	assert.Assert(t, last.IsComplete)
	assert.Equal(t, last.DiskInfo.UsedSpace, uint64(750))
}

func TestScan_DiskResolverErrorIsNotFatal(t *testing.T) {
	m := newMemFS()
	m.file("/r/f", 5)

	s := memScanner(m, DefaultOptions())
	s.Disk = fakeDisk{err: errors.New("statfs failed")}
	rec := &recorder{}
	_, err := s.Scan(context.Background(), NewSession(DefaultOptions()), "/r", rec)
	assert.NilError(t, err)

	last := rec.all()[len(rec.all())-1]
	assert.Assert(t, last.IsComplete)
	assert.Assert(t, last.DiskInfo == nil)
}

type fakeDisk struct {
	info model.DiskInfo
	err  error
}

func (fakeDisk) IsVolumeRoot(string) bool { return true }

func (d fakeDisk) Resolve(string) (model.DiskInfo, error) { return d.info, d.err }

func TestScan_CancelBeforeStart(t *testing.T) {
	m := newMemFS()
	m.file("/r/f", 5)

	session := NewSession(DefaultOptions())
	session.Cancel()
	rec := &recorder{}
	_, err := memScanner(m, DefaultOptions()).Scan(context.Background(), session, "/r", rec)
	assert.Assert(t, errors.Is(err, ErrCanceled))
	assert.Assert(t, errors.Is(err, context.Canceled))
	assert.Assert(t, is.Len(rec.all(), 0))
}

func TestScan_CancelDuringWalk(t *testing.T) {
	m := newMemFS()
	for i := 0; i < 20; i++ {
		m.file(fmt.Sprintf("/r/d%02d/f", i), 10)
	}

	session := NewSession(DefaultOptions())
	var got []model.PartialScanResult
	sink := events.Func(func(ev events.Event) {
		got = append(got, ev.(model.PartialScanResult))
		session.Cancel()
	})

	_, err := memScanner(m, DefaultOptions()).Scan(context.Background(), session, "/r", sink)
	assert.Assert(t, errors.Is(err, ErrCanceled))
	assert.Assert(t, is.Len(got, 1))
	assert.Assert(t, !got[0].IsComplete)
}

func TestScan_ContextCanceled(t *testing.T) {
	m := newMemFS()
	m.file("/r/f", 5)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	session := NewSession(DefaultOptions())
	_, err := memScanner(m, DefaultOptions()).Scan(ctx, session, "/r", events.Discard)
	assert.Assert(t, errors.Is(err, context.Canceled))
	assert.Assert(t, session.Cancelled())
}

func TestScan_RootIsFile(t *testing.T) {
	m := newMemFS()
	m.file("/only", 42)

	tree, err := memScanner(m, DefaultOptions()).Scan(context.Background(), NewSession(DefaultOptions()), "/only", events.Discard)
	assert.NilError(t, err)
	assert.Assert(t, !tree.IsDirectory)
	assert.Equal(t, tree.Size, uint64(42))
}

func checkTree(t *rapid.T, n *model.TreeNode) {
	if !n.IsDirectory {
		return
	}
	var sum uint64
	for _, c := range n.Children {
		sum += c.Size
		checkTree(t, c)
	}
	if sum != n.Size {
		t.Fatalf("%s: size %d, children sum %d", n.Path, n.Size, sum)
	}
}

func TestScan_SizeMatchesFiles_Property(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		m := newMemFS()
		m.mkdirAll("/r")
		dirs := []string{"/r"}
		var want uint64
		entries := 0

		n := rapid.IntRange(0, 40).Draw(t, "entries")
		for i := 0; i < n; i++ {
			parent := dirs[rapid.IntRange(0, len(dirs)-1).Draw(t, "parent")]
			p := fmt.Sprintf("%s/e%d", parent, i)
			if rapid.Bool().Draw(t, "isDir") {
				m.mkdirAll(p)
				dirs = append(dirs, p)
			} else {
				size := rapid.Int64Range(0, 1<<30).Draw(t, "size")
				m.file(p, size)
				want += uint64(size)
			}
			entries++
		}

		opts := DefaultOptions()
		opts.BatchSize = rapid.IntRange(1, 5).Draw(t, "batch")
		opts.Concurrency = rapid.IntRange(1, 8).Draw(t, "concurrency")
		session := NewSession(opts)
		rec := &recorder{}
		tree, err := memScanner(m, opts).Scan(context.Background(), session, "/r", rec)
		if err != nil {
			t.Fatalf("scan: %v", err)
		}

		checkTree(t, tree)
		visited, size := session.Stats()
		if tree.Size != want || size != want {
			t.Fatalf("size: tree %d, session %d, want %d", tree.Size, size, want)
		}
		if visited != uint64(entries) {
			t.Fatalf("visited %d, want %d", visited, entries)
		}
		if len(batchedNodes(rec.all())) != len(tree.Children) {
			t.Fatalf("batched %d top-level nodes, want %d", len(batchedNodes(rec.all())), len(tree.Children))
		}
	})
}

// Host filesystem tests.

func TestLocalScan_Basic(t *testing.T) {
	root := t.TempDir()
	if err := os.MkdirAll(filepath.Join(root, "sub"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(root, "sub", "a.txt"), make([]byte, 5000), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(root, "b.txt"), []byte("hello"), 0o644); err != nil {
		t.Fatal(err)
	}

	session := NewSession(DefaultOptions())
	tree, err := NewLocalScanner(nil, DefaultOptions()).Scan(context.Background(), session, root, events.Discard)
	assert.NilError(t, err)

	assert.Assert(t, is.Len(tree.Children, 2))
	assert.Equal(t, tree.Path, root)
	sub := findChild(tree, "sub")
	assert.Equal(t, sub.Path, filepath.Join(root, "sub"))
	visited, size := session.Stats()
	assert.Equal(t, visited, uint64(3))
	assert.Equal(t, size, tree.Size)
}

func TestLocalScan_HardLink(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("hard link dedup needs inode numbers")
	}
	root := t.TempDir()
	x := filepath.Join(root, "x")
	if err := os.WriteFile(x, make([]byte, 8192), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.Link(x, filepath.Join(root, "y")); err != nil {
		t.Skipf("hard links unsupported: %v", err)
	}
	info, err := os.Stat(x)
	assert.NilError(t, err)

	tree, err := NewLocalScanner(nil, DefaultOptions()).Scan(context.Background(), NewSession(DefaultOptions()), root, events.Discard)
	assert.NilError(t, err)
	assert.Equal(t, tree.Size, AllocatedSize(info))
}

func TestLocalScan_SparseFileUsesAllocation(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("block allocation is only reported on unix")
	}
	root := t.TempDir()
	f, err := os.Create(filepath.Join(root, "sparse"))
	assert.NilError(t, err)
	assert.NilError(t, f.Truncate(1<<30))
	assert.NilError(t, f.Close())

	tree, err := NewLocalScanner(nil, DefaultOptions()).Scan(context.Background(), NewSession(DefaultOptions()), root, events.Discard)
	assert.NilError(t, err)

	sparse := findChild(tree, "sparse")
	assert.Assert(t, sparse != nil)
	assert.Assert(t, sparse.Size < 1<<20, "sparse file reported as %d bytes", sparse.Size)
	assert.Equal(t, tree.Size, sparse.Size)
}

func TestLocalScan_SymlinkLoop(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("symlinks need privileges on windows")
	}
	root := t.TempDir()
	if err := os.MkdirAll(filepath.Join(root, "a", "b"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.Symlink(root, filepath.Join(root, "a", "b", "up")); err != nil {
		t.Fatal(err)
	}
	if err := os.Symlink(filepath.Join(root, "missing"), filepath.Join(root, "dangling")); err != nil {
		t.Fatal(err)
	}

	tree, err := NewLocalScanner(nil, DefaultOptions()).Scan(context.Background(), NewSession(DefaultOptions()), root, events.Discard)
	assert.NilError(t, err)
	up := findChild(findChild(findChild(tree, "a"), "b"), "up")
	assert.Assert(t, up != nil)
	assert.Equal(t, up.Size, uint64(0))
	assert.Assert(t, findChild(tree, "dangling") != nil)
}

func TestIsWithin(t *testing.T) {
	root := filepath.Join(string(filepath.Separator), "data")
	assert.Assert(t, isWithin(root, root))
	assert.Assert(t, isWithin(root, filepath.Join(root, "x", "y")))
	assert.Assert(t, !isWithin(root, filepath.Join(string(filepath.Separator), "database")))
	assert.Assert(t, !isWithin(root, string(filepath.Separator)))
}
