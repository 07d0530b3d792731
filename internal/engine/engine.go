// Package engine is the entry point for scans and deletion batches. Work
// runs in the background; callers get a handle back immediately and follow
// progress through an events.Sink.
package engine

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/containerd/errdefs"
	"github.com/containerd/log"
	"github.com/google/uuid"
	"github.com/sadopc/sizestream/internal/diskinfo"
	"github.com/sadopc/sizestream/internal/events"
	"github.com/sadopc/sizestream/internal/metrics"
	"github.com/sadopc/sizestream/internal/model"
	"github.com/sadopc/sizestream/internal/ops"
	"github.com/sadopc/sizestream/internal/scanner"
)

// Engine runs scans and deletion batches and tracks the active scans.
type Engine struct {
	scanner *scanner.Scanner
	deleter *ops.Deleter
	metrics *metrics.Metrics

	mu    sync.Mutex
	scans map[string]*ScanHandle
}

// Option configures an Engine.
type Option func(*Engine)

// WithScanner replaces the default local scanner (for example with one
// backed by a remote filesystem).
func WithScanner(s *scanner.Scanner) Option {
	return func(e *Engine) { e.scanner = s }
}

// WithScanOptions sets batching, heartbeat, depth and concurrency limits.
func WithScanOptions(opts scanner.Options) Option {
	return func(e *Engine) { e.scanner.Options = opts }
}

// WithDeleteRoot confines deletion batches to strict descendants of root.
func WithDeleteRoot(root string) Option {
	return func(e *Engine) { e.deleter = ops.NewDeleter(root) }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// New creates an engine for the host filesystem.
func New(opts ...Option) *Engine {
	e := &Engine{
		scanner: scanner.NewLocalScanner(diskinfo.NewLocal(), scanner.DefaultOptions()),
		deleter: ops.NewDeleter(""),
		scans:   make(map[string]*ScanHandle),
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// ScanHandle identifies a running scan.
type ScanHandle struct {
	ID   string
	Root string

	session *scanner.Session
	done    chan struct{}
	tree    *model.TreeNode
	err     error
}

// Cancel requests cancellation. In-flight visits stop at their next check
// and no completion message is sent.
func (h *ScanHandle) Cancel() { h.session.Cancel() }

// Done is closed when the scan has finished and been deregistered.
func (h *ScanHandle) Done() <-chan struct{} { return h.done }

// Wait blocks until the scan finishes and returns the full tree.
func (h *ScanHandle) Wait() (*model.TreeNode, error) {
	<-h.done
	return h.tree, h.err
}

// Stats returns the live visited count and accumulated size.
func (h *ScanHandle) Stats() (visited, size uint64) { return h.session.Stats() }

// StartScan validates path and starts scanning it in the background.
// Cancelling ctx cancels the scan.
func (e *Engine) StartScan(ctx context.Context, path string, sink events.Sink) (*ScanHandle, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("empty scan path: %w", errdefs.ErrInvalidArgument)
	}
	if sink == nil {
		return nil, fmt.Errorf("nil event sink: %w", errdefs.ErrInvalidArgument)
	}

	fsys := e.scanner.FS
	root, err := fsys.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("invalid scan path %q: %w", path, errdefs.ErrInvalidArgument)
	}
	info, err := fsys.Stat(root)
	if err != nil {
		return nil, rootError("access", root, err)
	}
	// An unreadable root directory fails here rather than in the walk.
	if info.IsDir() {
		if _, err := fsys.ReadDir(root); err != nil {
			return nil, rootError("read", root, err)
		}
	}

	session := scanner.NewSession(e.scanner.Options)
	h := &ScanHandle{
		ID:      session.ID(),
		Root:    root,
		session: session,
		done:    make(chan struct{}),
	}
	e.mu.Lock()
	e.scans[h.ID] = h
	e.mu.Unlock()

	ctx = log.WithLogger(ctx, log.G(ctx).WithFields(log.Fields{"scan": h.ID, "root": root}))
	e.metrics.ScanStarted()
	go e.runScan(ctx, h, sink)
	return h, nil
}

func rootError(op, root string, err error) error {
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return fmt.Errorf("path does not exist: %s: %w", root, errdefs.ErrNotFound)
	case errors.Is(err, fs.ErrPermission):
		return fmt.Errorf("cannot %s %s: %w", op, root, errdefs.ErrPermissionDenied)
	}
	return fmt.Errorf("cannot %s %s: %w", op, root, err)
}

func (e *Engine) runScan(ctx context.Context, h *ScanHandle, sink events.Sink) {
	defer close(h.done)
	defer e.deregister(h.ID)

	start := time.Now()
	log.G(ctx).Debug("scan started")
	tree, err := e.scanner.Scan(ctx, h.session, h.Root, sink)
	h.tree, h.err = tree, err

	visited, size := h.session.Stats()
	elapsed := time.Since(start)
	entry := log.G(ctx).WithFields(log.Fields{
		"visited":  visited,
		"bytes":    size,
		"duration": elapsed,
	})

	outcome := metrics.OutcomeCompleted
	switch {
	case errors.Is(err, context.Canceled):
		outcome = metrics.OutcomeCanceled
		entry.Info("scan canceled")
	case err != nil:
		outcome = metrics.OutcomeFailed
		entry.WithError(err).Error("scan failed")
	default:
		entry.Info("scan completed")
	}
	e.metrics.ScanFinished(outcome, visited, size, elapsed)
}

func (e *Engine) deregister(id string) {
	e.mu.Lock()
	delete(e.scans, id)
	e.mu.Unlock()
}

// Cancel cancels the active scan with the given handle ID.
func (e *Engine) Cancel(id string) error {
	e.mu.Lock()
	h, ok := e.scans[id]
	e.mu.Unlock()
	if !ok {
		return fmt.Errorf("no active scan %q: %w", id, errdefs.ErrNotFound)
	}
	h.Cancel()
	return nil
}

// Active returns the IDs of the running scans in sorted order.
func (e *Engine) Active() []string {
	e.mu.Lock()
	ids := make([]string, 0, len(e.scans))
	for id := range e.scans {
		ids = append(ids, id)
	}
	e.mu.Unlock()
	sort.Strings(ids)
	return ids
}

// DeleteHandle identifies a running deletion batch.
type DeleteHandle struct {
	ID string

	done    chan struct{}
	summary ops.Summary
}

func (h *DeleteHandle) Done() <-chan struct{} { return h.done }

// Wait blocks until the batch finishes.
func (h *DeleteHandle) Wait() ops.Summary {
	<-h.done
	return h.summary
}

// DeleteBatch removes paths sequentially in the background. The sink gets
// one event per item and a final aggregate.
func (e *Engine) DeleteBatch(ctx context.Context, paths []string, sink events.Sink) *DeleteHandle {
	h := &DeleteHandle{ID: uuid.NewString(), done: make(chan struct{})}
	items := make([]string, len(paths))
	copy(items, paths)

	ctx = log.WithLogger(ctx, log.G(ctx).WithField("delete", h.ID))
	go func() {
		defer close(h.done)
		h.summary = e.deleter.Run(ctx, items, sink)
		e.metrics.Deleted(h.summary.DeletedCount, len(h.summary.Failures), h.summary.DeletedSize)
	}()
	return h
}
