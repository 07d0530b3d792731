package remote

import (
	"fmt"
	"io/fs"
	"os"
	pathpkg "path"
	"strings"

	"github.com/pkg/sftp"
	"github.com/sadopc/sizestream/internal/diskinfo"
	"github.com/sadopc/sizestream/internal/model"
)

const defaultBlockSize uint64 = 4096

// client is the subset of *sftp.Client the scanner needs.
type client interface {
	Lstat(string) (os.FileInfo, error)
	Stat(string) (os.FileInfo, error)
	ReadDir(string) ([]os.FileInfo, error)
	RealPath(string) (string, error)
	StatVFS(string) (*sftp.StatVFS, error)
}

// FS is a scanner.FileSystem over an SFTP session. Paths use POSIX
// semantics regardless of the local OS. SFTP exposes no inode numbers, so
// hard links are counted once per path.
type FS struct {
	c client
	// blockSize rounds apparent sizes up to an allocation estimate.
	blockSize uint64
}

func newFS(c client, root string) *FS {
	return &FS{c: c, blockSize: blockSize(c, root)}
}

func (f *FS) Lstat(p string) (fs.FileInfo, error) { return f.c.Lstat(p) }
func (f *FS) Stat(p string) (fs.FileInfo, error)  { return f.c.Stat(p) }

func (f *FS) ReadDir(p string) ([]string, error) {
	entries, err := f.c.ReadDir(p)
	if err != nil {
		return nil, err
	}
	names := make([]string, len(entries))
	for i, e := range entries {
		names[i] = e.Name()
	}
	return names, nil
}

// Abs anchors relative paths at the login directory.
func (f *FS) Abs(p string) (string, error) {
	p = cleanPath(p)
	if pathpkg.IsAbs(p) {
		return p, nil
	}
	home, err := f.c.RealPath(".")
	if err != nil {
		return "", fmt.Errorf("cannot resolve remote home: %w", err)
	}
	return pathpkg.Join(cleanPath(home), p), nil
}

// Canonical relies on the server's realpath, which resolves symlinks on
// OpenSSH.
func (f *FS) Canonical(p string) (string, error) {
	resolved, err := f.c.RealPath(cleanPath(p))
	if err != nil {
		return "", err
	}
	return cleanPath(resolved), nil
}

func (f *FS) Join(elem ...string) string { return pathpkg.Join(elem...) }
func (f *FS) Base(p string) string       { return pathpkg.Base(p) }

func (f *FS) Within(root, target string) bool { return isWithin(root, target) }

func (f *FS) OnDisk(info fs.FileInfo) uint64 {
	if info.Size() <= 0 {
		return 0
	}
	return estimateUsage(uint64(info.Size()), f.blockSize)
}

// Disk resolves capacity with the statvfs@openssh.com extension.
type Disk struct {
	c client
}

func (d *Disk) IsVolumeRoot(p string) bool { return diskinfo.IsVolumeRootPath(p) }

func (d *Disk) Resolve(p string) (model.DiskInfo, error) {
	st, err := d.c.StatVFS(p)
	if err != nil {
		return model.DiskInfo{}, fmt.Errorf("statvfs %s: %w", p, err)
	}
	frsize := st.Frsize
	if frsize == 0 {
		frsize = st.Bsize
	}
	return model.NewDiskInfo(st.Blocks*frsize, st.Bavail*frsize), nil
}

func cleanPath(p string) string {
	if strings.TrimSpace(p) == "" {
		return "."
	}
	return pathpkg.Clean(strings.ReplaceAll(p, "\\", "/"))
}

func isWithin(root, target string) bool {
	root = pathpkg.Clean(root)
	target = pathpkg.Clean(target)
	if root == target || root == "/" {
		return true
	}
	return strings.HasPrefix(target, root+"/")
}

func estimateUsage(size, block uint64) uint64 {
	if size == 0 {
		return 0
	}
	if block == 0 {
		block = defaultBlockSize
	}
	return (size + block - 1) / block * block
}

func blockSize(c client, root string) uint64 {
	st, err := c.StatVFS(root)
	if err != nil || st == nil {
		return defaultBlockSize
	}
	switch {
	case st.Frsize > 0:
		return st.Frsize
	case st.Bsize > 0:
		return st.Bsize
	}
	return defaultBlockSize
}
