// Package diskinfo reports the capacity of the volume holding a path.
package diskinfo

import (
	"fmt"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/moby/sys/mountinfo"
	"github.com/sadopc/sizestream/internal/model"
)

// apfsVolumes are the macOS system volumes whose usage is attributed to "/".
var apfsVolumes = []string{
	"/",
	"/System/Volumes/Data",
	"/System/Volumes/Preboot",
	"/System/Volumes/VM",
	"/System/Volumes/Update",
}

// capacity holds raw statfs figures in bytes.
type capacity struct {
	total     uint64
	available uint64
}

func (c capacity) used() uint64 {
	if c.total > c.available {
		return c.total - c.available
	}
	return 0
}

// Local resolves capacity for paths on the host.
type Local struct {
	stat    func(path string) (capacity, error)
	mounted func(path string) (bool, error)
	mounts  func() ([]string, error)
	goos    string
}

// NewLocal returns a resolver backed by the host's statfs and mount table.
func NewLocal() *Local {
	return &Local{
		stat:    statCapacity,
		mounted: mountinfo.Mounted,
		mounts:  mountPoints,
		goos:    runtime.GOOS,
	}
}

// IsVolumeRoot reports whether path is a filesystem root, a well-known
// removable-media mount location, or an active mount point.
func (l *Local) IsVolumeRoot(path string) bool {
	if IsVolumeRootPath(path) {
		return true
	}
	if l.mounted == nil {
		return false
	}
	ok, err := l.mounted(path)
	return err == nil && ok
}

// Resolve returns the capacity of the volume containing path. On macOS the
// root volume's used space is the sum over the APFS system volumes that share
// its container, so UsedSpace may differ from TotalSpace-AvailableSpace.
func (l *Local) Resolve(path string) (model.DiskInfo, error) {
	if l.goos == "darwin" && filepath.Clean(path) == "/" {
		return l.resolveAPFS()
	}

	target := path
	if l.mounts != nil {
		if points, err := l.mounts(); err == nil {
			if mp := longestMountPrefix(path, points); mp != "" {
				target = mp
			}
		}
	}

	c, err := l.stat(target)
	if err != nil {
		return model.DiskInfo{}, fmt.Errorf("cannot stat filesystem of %s: %w", path, err)
	}
	return model.NewDiskInfo(c.total, c.available), nil
}

func (l *Local) resolveAPFS() (model.DiskInfo, error) {
	root, err := l.stat("/")
	if err != nil {
		return model.DiskInfo{}, fmt.Errorf("cannot stat filesystem of /: %w", err)
	}

	var mounted map[string]bool
	if l.mounts != nil {
		if points, err := l.mounts(); err == nil {
			mounted = make(map[string]bool, len(points))
			for _, p := range points {
				mounted[p] = true
			}
		}
	}

	var used uint64
	for _, vol := range apfsVolumes {
		if vol != "/" && mounted != nil && !mounted[vol] {
			continue
		}
		c := root
		if vol != "/" {
			if c, err = l.stat(vol); err != nil {
				continue
			}
		}
		used = model.SaturatingAdd(used, c.used())
	}

	return model.DiskInfo{
		TotalSpace:     root.total,
		AvailableSpace: root.available,
		UsedSpace:      used,
	}, nil
}

// IsVolumeRootPath matches paths that are volume roots by shape alone:
// "/", a drive root such as `C:\`, and /Volumes/<name>, /mnt/<name> or
// /media/<user>/<name>.
func IsVolumeRootPath(path string) bool {
	if path == "" {
		return false
	}
	p := strings.ReplaceAll(path, `\`, "/")
	if p == "/" {
		return true
	}
	if len(p) == 3 && p[1] == ':' && p[2] == '/' && isLetter(p[0]) {
		return true
	}
	if len(p) == 2 && p[1] == ':' && isLetter(p[0]) {
		return true
	}

	parts := strings.Split(strings.Trim(p, "/"), "/")
	if !strings.HasPrefix(p, "/") {
		return false
	}
	switch parts[0] {
	case "Volumes", "mnt":
		return len(parts) == 2 && parts[1] != ""
	case "media":
		return len(parts) == 3 && parts[1] != "" && parts[2] != ""
	}
	return false
}

func isLetter(b byte) bool {
	return (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z')
}

// longestMountPrefix returns the mount point in points that contains path
// and has the longest prefix match.
func longestMountPrefix(path string, points []string) string {
	best := ""
	for _, mp := range points {
		if !within(mp, path) {
			continue
		}
		if len(mp) > len(best) {
			best = mp
		}
	}
	return best
}

func within(root, target string) bool {
	rel, err := filepath.Rel(root, target)
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)))
}

func mountPoints() ([]string, error) {
	infos, err := mountinfo.GetMounts(nil)
	if err != nil {
		return nil, err
	}
	points := make([]string, 0, len(infos))
	for _, info := range infos {
		points = append(points, info.Mountpoint)
	}
	return points, nil
}
