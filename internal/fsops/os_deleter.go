package fsops

import (
	"errors"
	"io"
	"os"
	"syscall"
)

// OSDeleter implements Deleter using real syscalls
type OSDeleter struct{}

// Remove unlinks path. Directories are refused with EISDIR, unlike os.Remove
// which would fall back to rmdir.
func (OSDeleter) Remove(path string) error {
	if err := syscall.Unlink(path); err != nil {
		return &os.PathError{Op: "unlink", Path: path, Err: err}
	}
	return nil
}

func (OSDeleter) RemoveDir(path string) error {
	if err := syscall.Rmdir(path); err != nil {
		return &os.PathError{Op: "rmdir", Path: path, Err: err}
	}
	return nil
}

// IsDirEmpty reports whether dir has zero entries, hidden ones included.
func IsDirEmpty(dir string) (bool, error) {
	f, err := os.Open(dir)
	if err != nil {
		return false, err
	}
	defer f.Close()

	_, err = f.Readdirnames(1)
	if errors.Is(err, io.EOF) {
		return true, nil
	}
	return false, err
}
