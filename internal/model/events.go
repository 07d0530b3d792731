package model

// DiskInfo is the capacity of the volume holding a scan root.
type DiskInfo struct {
	TotalSpace     uint64 `json:"totalSpace"`
	AvailableSpace uint64 `json:"availableSpace"`
	UsedSpace      uint64 `json:"usedSpace"`
}

// NewDiskInfo derives used space from total and available.
func NewDiskInfo(total, available uint64) DiskInfo {
	var used uint64
	if total > available {
		used = total - available
	}
	return DiskInfo{TotalSpace: total, AvailableSpace: available, UsedSpace: used}
}

// PartialScanResult is the message streamed while a scan runs. Each message
// carries exactly one payload: a batch of compact subtrees, the final root,
// or a current-path heartbeat.
type PartialScanResult struct {
	Batch        []CompactNode `json:"batch,omitempty"`
	Root         *TreeNode     `json:"root,omitempty"`
	TotalScanned uint64        `json:"totalScanned"`
	TotalSize    uint64        `json:"totalSize"`
	IsComplete   bool          `json:"isComplete"`
	DiskInfo     *DiskInfo     `json:"diskInfo,omitempty"`
	CurrentPath  string        `json:"currentPath,omitempty"`
}

// EventKind tags scan messages on the wire.
func (PartialScanResult) EventKind() string { return "scan" }

// DeletionProgress is emitted once per item before it is removed, and once
// more with the aggregate outcome.
type DeletionProgress struct {
	Current      int     `json:"current"`
	Total        int     `json:"total"`
	CurrentPath  string  `json:"currentPath"`
	Success      bool    `json:"success"`
	Completed    bool    `json:"completed"`
	DeletedSize  *uint64 `json:"deletedSize,omitempty"`
	DeletedCount *int    `json:"deletedCount,omitempty"`
	FailedCount  *int    `json:"failedCount,omitempty"`
}

// EventKind tags deletion messages on the wire.
func (DeletionProgress) EventKind() string { return "delete" }
