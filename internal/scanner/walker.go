package scanner

import (
	"context"
	"errors"
	"fmt"
	"io/fs"

	"github.com/containerd/log"
	"github.com/sadopc/sizestream/internal/model"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

// ErrCanceled is returned when a walk stops because its session was cancelled.
var ErrCanceled = fmt.Errorf("scan canceled: %w", context.Canceled)

// Walker computes the recursive on-disk size of a directory tree, visiting
// the entries of each directory in parallel.
type Walker struct {
	fs       FileSystem
	ids      IdentityProvider
	session  *Session
	reporter *Reporter
	sem      *semaphore.Weighted
}

// NewWalker creates a walker. concurrency bounds the visits that get their
// own goroutine; when the pool is full, visits run inline instead of blocking.
func NewWalker(fsys FileSystem, ids IdentityProvider, session *Session, reporter *Reporter, concurrency int) *Walker {
	if concurrency <= 0 {
		concurrency = DefaultOptions().withDefaults().Concurrency
	}
	return &Walker{
		fs:       fsys,
		ids:      ids,
		session:  session,
		reporter: reporter,
		sem:      semaphore.NewWeighted(int64(concurrency)),
	}
}

// walk is the per-call state of Walk.
type walk struct {
	*Walker
	root string // canonical root
}

// Walk builds the tree rooted at root. Only failures to stat, resolve or
// read the root itself are returned; unreadable entries below it are left
// out of the tree. Cancelling ctx cancels the session.
func (w *Walker) Walk(ctx context.Context, root string) (*model.TreeNode, error) {
	stop := context.AfterFunc(ctx, w.session.Cancel)
	defer stop()

	if ctx.Err() != nil {
		w.session.Cancel()
	}
	if w.session.Cancelled() {
		return nil, ErrCanceled
	}

	// Stat, not Lstat, so a symlinked root like /tmp -> /private/tmp works.
	info, err := w.fs.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("cannot stat %s: %w", root, err)
	}
	canonical, err := w.fs.Canonical(root)
	if err != nil {
		return nil, fmt.Errorf("cannot resolve %s: %w", root, err)
	}
	if id, ok := w.ids.Identity(info); ok {
		w.session.MarkIdentity(id)
	}

	name := w.fs.Base(root)
	if !info.IsDir() {
		size := w.fs.OnDisk(info)
		w.session.AddSize(size)
		return model.NewFileNode(name, root, size), nil
	}

	wk := &walk{Walker: w, root: canonical}
	w.session.PushActive(canonical)
	defer w.session.PopActive(canonical)

	names, err := w.fs.ReadDir(root)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", root, err)
	}

	node := model.NewDirNode(name, root)
	children, err := wk.visitChildren(ctx, root, names, 1)
	if err != nil {
		return nil, err
	}
	node.Children = children
	model.SortChildren(node.Children, model.SortByName)
	node.UpdateSize()

	if w.session.Cancelled() {
		return nil, ErrCanceled
	}
	return node, nil
}

// visitChildren visits the named entries of dir, returning the readable ones
// in the original order. Only cancellation is reported as an error.
func (w *walk) visitChildren(ctx context.Context, dir string, names []string, depth int) ([]*model.TreeNode, error) {
	results := make([]*model.TreeNode, len(names))
	var g errgroup.Group

	for i, name := range names {
		path := w.fs.Join(dir, name)
		if depth == 1 {
			w.session.SetCurrentPath(path)
			w.reporter.Heartbeat()
		}

		run := func() error {
			node, err := w.visit(ctx, path, name, depth)
			if err != nil {
				if errors.Is(err, ErrCanceled) {
					return err
				}
				log.G(ctx).WithError(err).WithField("path", path).Debug("skipping unreadable entry")
				return nil
			}
			results[i] = node
			return nil
		}

		if w.sem.TryAcquire(1) {
			g.Go(func() error {
				defer w.sem.Release(1)
				return run()
			})
			continue
		}
		if err := run(); err != nil {
			_ = g.Wait()
			return nil, err
		}
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	children := make([]*model.TreeNode, 0, len(results))
	for _, n := range results {
		if n != nil {
			children = append(children, n)
		}
	}
	return children, nil
}

// visit handles one entry below the root. depth is 1 for direct children
// of the root.
func (w *walk) visit(ctx context.Context, path, name string, depth int) (*model.TreeNode, error) {
	if w.session.Cancelled() {
		return nil, ErrCanceled
	}

	w.session.SetCurrentPath(path)
	if w.session.Tick() {
		w.reporter.Heartbeat()
	}

	// Canonical resolves symlinks, so both guards apply to link targets too.
	canonical, cerr := w.fs.Canonical(path)
	if cerr == nil {
		if !w.fs.Within(w.root, canonical) {
			return model.NewEmptyLeaf(name, path), nil
		}
		if w.session.IsActive(canonical) {
			return model.NewEmptyLeaf(name, path), nil
		}
	}

	info, err := w.fs.Lstat(path)
	if err != nil {
		return nil, err
	}

	target := info
	broken := false
	if info.Mode()&fs.ModeSymlink != 0 {
		if t, err := w.fs.Stat(path); err == nil {
			target = t
		} else {
			broken = true
		}
	}

	if !broken {
		if id, ok := w.ids.Identity(target); ok && !w.session.MarkIdentity(id) {
			return model.NewEmptyLeaf(name, path), nil
		}
	}

	w.session.IncrementVisited()

	if broken {
		return model.NewFileNode(name, path, 0), nil
	}

	if target.IsDir() {
		key := canonical
		if cerr != nil {
			key = path
		}
		return w.descend(ctx, path, key, name, depth)
	}

	size := w.fs.OnDisk(target)
	w.session.AddSize(size)
	return model.NewFileNode(name, path, size), nil
}

// descend builds a directory node. An unreadable directory yields a
// zero-size node with no children.
func (w *walk) descend(ctx context.Context, path, canonical, name string, depth int) (*model.TreeNode, error) {
	if !w.session.PushActive(canonical) {
		return model.NewEmptyLeaf(name, path), nil
	}
	defer w.session.PopActive(canonical)

	node := model.NewDirNode(name, path)
	names, err := w.fs.ReadDir(path)
	if err != nil {
		log.G(ctx).WithError(err).WithField("path", path).Debug("cannot read directory")
		return node, nil
	}

	children, err := w.visitChildren(ctx, path, names, depth+1)
	if err != nil {
		return nil, err
	}
	node.Children = children
	model.SortChildren(node.Children, model.SortByName)
	node.UpdateSize()

	if depth == 1 {
		w.reporter.AddSubtree(node)
	}
	return node, nil
}
