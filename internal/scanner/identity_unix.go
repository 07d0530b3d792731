//go:build !windows

package scanner

import (
	"io/fs"
	"syscall"
)

// LocalIdentity identifies local files by device and inode number.
type LocalIdentity struct{}

func (LocalIdentity) Identity(info fs.FileInfo) (Identity, bool) {
	stat, ok := info.Sys().(*syscall.Stat_t)
	if !ok {
		return Identity{}, false
	}
	return Identity{Dev: uint64(stat.Dev), Ino: uint64(stat.Ino)}, true
}

// AllocatedSize returns the on-disk allocation of a file (blocks are
// 512-byte units), falling back to the apparent size.
func AllocatedSize(info fs.FileInfo) uint64 {
	stat, ok := info.Sys().(*syscall.Stat_t)
	if !ok || stat.Blocks < 0 {
		return apparentSize(info)
	}
	return uint64(stat.Blocks) * 512
}
