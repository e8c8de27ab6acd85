package cleanup

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Entry is one filesystem object seen during a traversal
type Entry struct {
	Path    string
	Name    string
	ModTime time.Time
	Size    int64
	IsDir   bool
	Regular bool
	Ext     string // lowercased, no leading dot
}

// Parent returns the directory holding the entry.
func (e Entry) Parent() string {
	return filepath.Dir(e.Path)
}

func (e Entry) IsDot() bool {
	return e.Name == "." || e.Name == ".."
}

func newEntry(path string, info fs.FileInfo) Entry {
	return Entry{
		Path:    path,
		Name:    info.Name(),
		ModTime: info.ModTime(),
		Size:    info.Size(),
		IsDir:   info.IsDir(),
		Regular: info.Mode().IsRegular(),
		Ext:     extension(info.Name()),
	}
}

// extension is the text after the last dot, so "a.tar.gz" -> "gz" and
// ".bashrc" -> "bashrc".
func extension(name string) string {
	return strings.ToLower(strings.TrimPrefix(filepath.Ext(name), "."))
}

// Lister enumerates candidate entries below root. Implementations must
// release any directory handle before returning.
type Lister interface {
	List(root string, visit func(Entry) error) error
}

// FlatLister yields the direct children of root only.
type FlatLister struct{}

func (FlatLister) List(root string, visit func(Entry) error) error {
	dirEntries, err := os.ReadDir(root)
	if err != nil {
		return err
	}
	for _, d := range dirEntries {
		info, err := d.Info()
		if err != nil {
			// vanished between readdir and lstat
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return err
		}
		if err := visit(newEntry(filepath.Join(root, d.Name()), info)); err != nil {
			return err
		}
	}
	return nil
}

// WalkLister yields every entry below root in lexical pre-order: a directory
// is visited before its contents. Root itself is not yielded and symlinked
// directories are not followed.
type WalkLister struct{}

func (WalkLister) List(root string, visit func(Entry) error) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path != root && errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}
		if path == root {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}
		return visit(newEntry(path, info))
	})
}
