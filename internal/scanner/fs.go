package scanner

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// Identity distinguishes filesystem objects independently of the path used
// to reach them. Device and inode are both needed: inode alone collides
// across filesystems.
type Identity struct {
	Dev uint64
	Ino uint64
}

// IdentityProvider extracts an object identity from file metadata.
// Providers return false when the platform offers no such facility.
type IdentityProvider interface {
	Identity(info fs.FileInfo) (Identity, bool)
}

// NoIdentity disables identity-based deduplication.
type NoIdentity struct{}

func (NoIdentity) Identity(fs.FileInfo) (Identity, bool) { return Identity{}, false }

// FileSystem is the view of a directory tree the walker traverses.
type FileSystem interface {
	Lstat(path string) (fs.FileInfo, error)
	// Stat follows symlinks.
	Stat(path string) (fs.FileInfo, error)
	// ReadDir returns the entry names of a directory.
	ReadDir(path string) ([]string, error)
	// Abs makes path absolute without resolving symlinks.
	Abs(path string) (string, error)
	// Canonical returns the absolute, symlink-free form of path.
	Canonical(path string) (string, error)
	Join(elem ...string) string
	Base(path string) string
	// Within reports whether target is root or lies beneath it.
	Within(root, target string) bool
	// OnDisk returns the bytes allocated for the object described by info.
	OnDisk(info fs.FileInfo) uint64
}

// LocalFS is the host filesystem.
type LocalFS struct{}

func (LocalFS) Lstat(path string) (fs.FileInfo, error) { return os.Lstat(path) }
func (LocalFS) Stat(path string) (fs.FileInfo, error)  { return os.Stat(path) }

func (LocalFS) ReadDir(path string) ([]string, error) {
	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, err
	}
	names := make([]string, len(entries))
	for i, e := range entries {
		names[i] = e.Name()
	}
	return names, nil
}

func (LocalFS) Abs(path string) (string, error) { return filepath.Abs(path) }

func (LocalFS) Canonical(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	return filepath.EvalSymlinks(abs)
}

func (LocalFS) Join(elem ...string) string { return filepath.Join(elem...) }

func (LocalFS) Base(path string) string { return filepath.Base(path) }

func (LocalFS) Within(root, target string) bool { return isWithin(root, target) }

func (LocalFS) OnDisk(info fs.FileInfo) uint64 { return AllocatedSize(info) }

func isWithin(root, target string) bool {
	rel, err := filepath.Rel(root, target)
	if err != nil {
		return false
	}
	if rel == "." {
		return true
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

func apparentSize(info fs.FileInfo) uint64 {
	if info.Size() < 0 {
		return 0
	}
	return uint64(info.Size())
}
