//go:build !windows

package ops

import (
	"errors"
	"io/fs"
	"os"

	"golang.org/x/sys/unix"
)

// removeEntry deletes name inside dir. Symlinks below dir are never
// followed: a link is unlinked, never its target.
func removeEntry(dir, name string) error {
	dirFD, err := unix.Open(dir, unix.O_RDONLY|unix.O_DIRECTORY|unix.O_CLOEXEC, 0)
	if err != nil {
		return translateErrno(err)
	}
	defer unix.Close(dirFD)

	return removeAt(dirFD, name)
}

func removeAt(dirFD int, name string) error {
	err := unix.Unlinkat(dirFD, name, 0)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, unix.ENOENT):
		return fs.ErrNotExist
	case !errors.Is(err, unix.EISDIR) && !errors.Is(err, unix.EPERM):
		// Linux reports EISDIR for directories, macOS reports EPERM.
		return err
	}

	fd, err := unix.Openat(dirFD, name, unix.O_RDONLY|unix.O_DIRECTORY|unix.O_NOFOLLOW|unix.O_CLOEXEC, 0)
	if err != nil {
		if errors.Is(err, unix.ENOTDIR) {
			// Replaced by a file or link since the first attempt.
			return translateErrno(unix.Unlinkat(dirFD, name, 0))
		}
		return translateErrno(err)
	}
	if err := removeChildren(fd, name); err != nil {
		return err
	}
	return translateErrno(unix.Unlinkat(dirFD, name, unix.AT_REMOVEDIR))
}

// removeChildren empties the directory open at fd and closes it.
func removeChildren(fd int, name string) error {
	d := os.NewFile(uintptr(fd), name)
	defer d.Close()

	names, err := d.Readdirnames(-1)
	if err != nil {
		return err
	}
	for _, n := range names {
		if err := removeAt(fd, n); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return err
		}
	}
	return nil
}

func translateErrno(err error) error {
	if errors.Is(err, unix.ENOENT) {
		return fs.ErrNotExist
	}
	return err
}
