//go:build windows

package scanner

import "io/fs"

// LocalIdentity has no inode facility on Windows, so hard links and
// re-visited symlink targets are not deduplicated there.
type LocalIdentity struct{}

func (LocalIdentity) Identity(fs.FileInfo) (Identity, bool) { return Identity{}, false }

// AllocatedSize falls back to apparent size on Windows.
func AllocatedSize(info fs.FileInfo) uint64 {
	return apparentSize(info)
}
