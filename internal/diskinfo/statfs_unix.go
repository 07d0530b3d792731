//go:build !windows

package diskinfo

import "golang.org/x/sys/unix"

func statCapacity(path string) (capacity, error) {
	var st unix.Statfs_t
	if err := unix.Statfs(path, &st); err != nil {
		return capacity{}, err
	}
	bsize := uint64(st.Bsize)
	return capacity{
		total:     uint64(st.Blocks) * bsize,
		available: uint64(st.Bavail) * bsize,
	}, nil
}
