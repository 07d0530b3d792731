package ops

import (
	"io/fs"
	"os"
	"path/filepath"

	"github.com/sadopc/sizestream/internal/model"
	"github.com/sadopc/sizestream/internal/scanner"
)

// DiskUsage returns the bytes allocated below path, counting each hard-linked
// file once and never following symlinks. Unreadable entries are skipped.
func DiskUsage(path string) (uint64, error) {
	info, err := os.Lstat(path)
	if err != nil {
		return 0, err
	}
	if !info.IsDir() {
		return scanner.AllocatedSize(info), nil
	}

	ids := scanner.LocalIdentity{}
	seen := make(map[scanner.Identity]struct{})
	var total uint64
	err = filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if p == path {
				return err
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		if id, ok := ids.Identity(info); ok {
			if _, dup := seen[id]; dup {
				return nil
			}
			seen[id] = struct{}{}
		}
		total = model.SaturatingAdd(total, scanner.AllocatedSize(info))
		return nil
	})
	return total, err
}
