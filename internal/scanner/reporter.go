package scanner

import (
	"github.com/sadopc/sizestream/internal/events"
	"github.com/sadopc/sizestream/internal/model"
)

// Reporter turns walker progress into streamed messages. Nothing is sent
// once the session is cancelled.
type Reporter struct {
	session *Session
	sink    events.Sink
}

func NewReporter(session *Session, sink events.Sink) *Reporter {
	return &Reporter{session: session, sink: sink}
}

func (r *Reporter) emit(ev model.PartialScanResult) {
	if r.sink == nil || r.session.Cancelled() {
		return
	}
	ev.TotalScanned, ev.TotalSize = r.session.Stats()
	r.sink.Emit(ev)
}

// Disk sends the initial capacity message for a scan root.
func (r *Reporter) Disk(root string, info model.DiskInfo) {
	r.emit(model.PartialScanResult{CurrentPath: root, DiskInfo: &info})
}

// Heartbeat sends the path currently being visited.
func (r *Reporter) Heartbeat() {
	r.emit(model.PartialScanResult{CurrentPath: r.session.CurrentPath()})
}

// AddSubtree buffers a finished top-level directory, sending the buffer as
// soon as it reaches the batch threshold.
func (r *Reporter) AddSubtree(n *model.TreeNode) {
	if r.session.AppendBatch(n.Compact()) {
		r.flush(r.session.DrainBatch())
	}
}

func (r *Reporter) flush(batch []model.CompactNode) {
	if len(batch) == 0 {
		return
	}
	r.emit(model.PartialScanResult{Batch: batch})
}

// Complete sends the final batch (remaining buffered subtrees plus the
// files sitting directly in the root) followed by the completion message.
func (r *Reporter) Complete(root *model.TreeNode, disk *model.DiskInfo, maxDepth int) {
	batch := r.session.DrainBatch()
	for _, c := range root.Children {
		if !c.IsDirectory {
			batch = append(batch, c.Compact())
		}
	}
	r.flush(batch)
	r.emit(model.PartialScanResult{
		Root:       model.LimitDepth(root, maxDepth),
		IsComplete: true,
		DiskInfo:   disk,
	})
}
