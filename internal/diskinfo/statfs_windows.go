//go:build windows

package diskinfo

import "golang.org/x/sys/windows"

func statCapacity(path string) (capacity, error) {
	p, err := windows.UTF16PtrFromString(path)
	if err != nil {
		return capacity{}, err
	}
	var free, total, totalFree uint64
	if err := windows.GetDiskFreeSpaceEx(p, &free, &total, &totalFree); err != nil {
		return capacity{}, err
	}
	return capacity{total: total, available: free}, nil
}
