package app

import "syscall"

// DiskUsage is the filesystem usage of the data root.
type DiskUsage struct {
	TotalBytes     uint64 `json:"total_bytes"`
	UsedBytes      uint64 `json:"used_bytes"`
	AvailableBytes uint64 `json:"available_bytes"`
}

// diskUsage returns usage for the filesystem holding path, or nil on error.
func diskUsage(path string) *DiskUsage {
	var stat syscall.Statfs_t
	if err := syscall.Statfs(path, &stat); err != nil {
		return nil
	}
	total := stat.Blocks * uint64(stat.Bsize)
	avail := stat.Bavail * uint64(stat.Bsize)
	free := stat.Bfree * uint64(stat.Bsize)
	return &DiskUsage{
		TotalBytes:     total,
		UsedBytes:      total - free,
		AvailableBytes: avail,
	}
}
