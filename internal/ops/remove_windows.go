//go:build windows

package ops

import (
	"os"
	"path/filepath"
)

func removeEntry(dir, name string) error {
	p := filepath.Join(dir, name)
	info, err := os.Lstat(p)
	if err != nil {
		return err
	}
	if info.IsDir() {
		return os.RemoveAll(p)
	}
	return os.Remove(p)
}
