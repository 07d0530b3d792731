package scanner

import (
	"context"
	"runtime"

	"github.com/containerd/log"
	"github.com/sadopc/sizestream/internal/events"
	"github.com/sadopc/sizestream/internal/model"
)

const (
	DefaultBatchSize         = 10000
	DefaultHeartbeatInterval = 10
)

// Options configures a scan.
type Options struct {
	// BatchSize is the number of compact subtrees buffered before a batch is sent.
	BatchSize int
	// HeartbeatInterval sends a current-path message every N visited entries.
	HeartbeatInterval int
	// MaxDepth bounds the tree attached to the completion message.
	MaxDepth int
	// Concurrency bounds the directory visits running on their own goroutine
	// (0 = auto: 3x CPU cores).
	Concurrency int
}

// DefaultOptions returns sensible defaults.
func DefaultOptions() Options {
	return Options{
		BatchSize:         DefaultBatchSize,
		HeartbeatInterval: DefaultHeartbeatInterval,
		MaxDepth:          model.DefaultMaxDepth,
	}
}

func (o Options) withDefaults() Options {
	if o.BatchSize <= 0 {
		o.BatchSize = DefaultBatchSize
	}
	if o.HeartbeatInterval <= 0 {
		o.HeartbeatInterval = DefaultHeartbeatInterval
	}
	if o.MaxDepth <= 0 {
		o.MaxDepth = model.DefaultMaxDepth
	}
	if o.Concurrency <= 0 {
		o.Concurrency = runtime.GOMAXPROCS(0) * 3
	}
	return o
}

// DiskResolver looks up the capacity of the volume a scan root lives on.
type DiskResolver interface {
	IsVolumeRoot(path string) bool
	Resolve(path string) (model.DiskInfo, error)
}

// Scanner runs a complete scan: disk lookup, walk, final flush and
// completion message.
type Scanner struct {
	FS       FileSystem
	Identity IdentityProvider
	Disk     DiskResolver
	Options  Options
}

// NewLocalScanner returns a scanner for the host filesystem.
func NewLocalScanner(disk DiskResolver, opts Options) *Scanner {
	return &Scanner{FS: LocalFS{}, Identity: LocalIdentity{}, Disk: disk, Options: opts}
}

// Scan walks root under session, streaming results to sink. Disk capacity is
// only resolved when root is a volume root or mount point. On cancellation
// it returns ErrCanceled and no completion message is sent.
func (s *Scanner) Scan(ctx context.Context, session *Session, root string, sink events.Sink) (*model.TreeNode, error) {
	opts := s.Options.withDefaults()
	reporter := NewReporter(session, sink)

	var disk *model.DiskInfo
	if s.Disk != nil && s.Disk.IsVolumeRoot(root) {
		info, err := s.Disk.Resolve(root)
		if err != nil {
			log.G(ctx).WithError(err).WithField("path", root).Warn("cannot resolve disk capacity")
		} else {
			disk = &info
			reporter.Disk(root, info)
		}
	}

	ids := s.Identity
	if ids == nil {
		ids = NoIdentity{}
	}
	w := NewWalker(s.FS, ids, session, reporter, opts.Concurrency)
	tree, err := w.Walk(ctx, root)
	if err != nil {
		return nil, err
	}
	if session.Cancelled() {
		return nil, ErrCanceled
	}

	reporter.Complete(tree, disk, opts.MaxDepth)
	return tree, nil
}
