package fsops

// Deleter abstracts the filesystem mutations a sweep performs.
// Remove unlinks a single non-directory entry; RemoveDir removes an empty directory.
type Deleter interface {
	Remove(path string) error
	RemoveDir(path string) error
}
