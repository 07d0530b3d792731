package ops

import (
	"context"
	"os"

	"github.com/containerd/log"
	"github.com/sadopc/sizestream/internal/events"
	"github.com/sadopc/sizestream/internal/model"
)

// Failure records one path that could not be deleted.
type Failure struct {
	Path string
	Err  error
}

// Summary is the outcome of a deletion batch.
type Summary struct {
	Total        int
	DeletedCount int
	DeletedSize  uint64
	Failures     []Failure
}

// Deleter removes paths one at a time, in the order given, reporting
// progress before each item and an aggregate at the end.
type Deleter struct {
	// Root, when set, confines deletion to strict descendants of Root.
	Root string

	remove func(path, root string) error
	usage  func(path string) (uint64, error)
}

// NewDeleter returns a deleter for the host filesystem.
func NewDeleter(root string) *Deleter {
	return &Deleter{Root: root, remove: Remove, usage: DiskUsage}
}

// Run deletes every path and emits a DeletionProgress per item followed by
// one aggregate event. A failed item never stops the batch. When ctx is
// cancelled, the remaining items are reported as failures.
func (d *Deleter) Run(ctx context.Context, paths []string, sink events.Sink) Summary {
	if sink == nil {
		sink = events.Discard
	}
	sum := Summary{Total: len(paths)}

	for i, raw := range paths {
		if err := ctx.Err(); err != nil {
			for _, rest := range paths[i:] {
				sum.Failures = append(sum.Failures, Failure{Path: NormalizePath(rest), Err: err})
			}
			break
		}

		p := NormalizePath(raw)
		var size uint64
		if _, err := os.Lstat(p); err == nil {
			if n, err := d.usage(p); err == nil {
				size = n
			}
		}

		sink.Emit(model.DeletionProgress{
			Current:     i + 1,
			Total:       len(paths),
			CurrentPath: p,
		})

		if err := d.remove(p, d.Root); err != nil {
			log.G(ctx).WithError(err).WithField("path", p).Warn("delete failed")
			sum.Failures = append(sum.Failures, Failure{Path: p, Err: err})
			continue
		}
		sum.DeletedCount++
		sum.DeletedSize = model.SaturatingAdd(sum.DeletedSize, size)
	}

	deletedSize, deletedCount, failed := sum.DeletedSize, sum.DeletedCount, len(sum.Failures)
	sink.Emit(model.DeletionProgress{
		Current:      len(paths),
		Total:        len(paths),
		Success:      failed == 0,
		Completed:    true,
		DeletedSize:  &deletedSize,
		DeletedCount: &deletedCount,
		FailedCount:  &failed,
	})

	log.G(ctx).WithFields(log.Fields{
		"deleted": deletedCount,
		"failed":  failed,
		"bytes":   deletedSize,
	}).Info("deletion batch finished")
	return sum
}
