package disk

import (
	"errors"
	"os"
	"syscall"
	"time"
)

// Usage is a capacity snapshot of the filesystem holding a path
type Usage struct {
	TotalBytes int64
	FreeBytes  int64 // available to unprivileged users
}

// FreePercent returns 100 for a filesystem that reports no capacity.
func (u Usage) FreePercent() float64 {
	if u.TotalBytes <= 0 {
		return 100.0
	}
	return float64(u.FreeBytes) / float64(u.TotalBytes) * 100.0
}

// GetUsage stats the filesystem containing path
func GetUsage(path string) (Usage, error) {
	var stat syscall.Statfs_t
	if err := syscall.Statfs(path, &stat); err != nil {
		return Usage{}, &os.PathError{Op: "statfs", Path: path, Err: err}
	}
	return Usage{
		TotalBytes: int64(stat.Blocks) * int64(stat.Bsize),
		FreeBytes:  int64(stat.Bavail) * int64(stat.Bsize),
	}, nil
}

// IsStale reports whether path looks like it sits on a hung network mount:
// the stat does not return within timeout, or fails with EIO/ESTALE/ENXIO.
// A missing path is not stale.
func IsStale(path string, timeout time.Duration) bool {
	done := make(chan error, 1)
	go func() {
		_, err := os.Stat(path)
		done <- err
	}()

	select {
	case err := <-done:
		return errors.Is(err, syscall.EIO) ||
			errors.Is(err, syscall.ESTALE) ||
			errors.Is(err, syscall.ENXIO) ||
			os.IsTimeout(err)
	case <-time.After(timeout):
		return true
	}
}
