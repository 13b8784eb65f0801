package preflight

import (
	"fmt"
	"syscall"

	"github.com/Aman-CERP/docdex/internal/ui"
)

const (
	// MinDiskSpaceBytes is the free space below which snapshots may fail
	// to write.
	MinDiskSpaceBytes = 10 * 1024 * 1024

	// WarnDiskSpaceBytes is the free space below which doctor warns.
	WarnDiskSpaceBytes = 100 * 1024 * 1024
)

// CheckDiskSpace checks the free space on the filesystem holding path.
func (c *Checker) CheckDiskSpace(path string) CheckResult {
	result := CheckResult{
		Name:     "disk_space",
		Required: true,
	}

	var stat syscall.Statfs_t
	if err := syscall.Statfs(path, &stat); err != nil {
		result.Status = StatusFail
		result.Message = fmt.Sprintf("failed to check disk space: %v", err)
		return result
	}

	available := int64(stat.Bavail) * int64(stat.Bsize)
	result.Message = fmt.Sprintf("%s free", ui.FormatBytes(available))

	switch {
	case available < MinDiskSpaceBytes:
		result.Status = StatusFail
	case available < WarnDiskSpaceBytes:
		result.Status = StatusWarn
	default:
		result.Status = StatusPass
	}
	return result
}
