package safety

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"agesweep/internal/fsops"
)

var (
	ErrInvalidPath    = errors.New("invalid path")
	ErrProtectedPath  = errors.New("protected path")
	ErrOutsideAllowed = errors.New("outside allowed roots")
	ErrTraversal      = errors.New("path traversal detected")
	ErrSymlinkEscape  = errors.New("symlink escape detected")
)

// Validator decides whether a path may be deleted
type Validator struct {
	AllowedRoots   []string
	ProtectedPaths []string
}

// NewValidator creates a validator with allowed roots and optional additional protected paths
func NewValidator(allowed []string, extraProtected []string) *Validator {
	return &Validator{
		AllowedRoots:   normalizeRoots(allowed),
		ProtectedPaths: defaultProtected(extraProtected),
	}
}

// ValidateRoot rejects a job root that is, or lies inside, a protected path.
func ValidateRoot(root string, extraProtected []string) error {
	p, err := NormalizePath(root)
	if err != nil {
		return err
	}
	if IsProtectedPath(p, defaultProtected(extraProtected)) {
		return fmt.Errorf("%w: %s", ErrProtectedPath, p)
	}
	return nil
}

// ValidateDeleteTarget returns a typed error when path must not be deleted.
func (v *Validator) ValidateDeleteTarget(path string) error {
	if DetectTraversal(path) {
		return ErrTraversal
	}

	p, err := NormalizePath(path)
	if err != nil {
		return err
	}

	if IsProtectedPath(p, v.ProtectedPaths) {
		return ErrProtectedPath
	}

	if !IsWithinAllowedRoots(p, v.AllowedRoots) {
		return ErrOutsideAllowed
	}

	// Only the parent is resolved: the target itself may be a symlink, and
	// unlinking a symlink never touches what it points to. A root has its
	// parent outside every root, so a root is resolved itself.
	dir := filepath.Dir(p)
	if isAllowedRoot(p, v.AllowedRoots) {
		dir = p
	}
	escaped, err := DetectSymlinkEscape(dir, v.AllowedRoots)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	if escaped {
		return ErrSymlinkEscape
	}

	return nil
}

// Guard wraps next so every Remove and RemoveDir is validated first.
func (v *Validator) Guard(next fsops.Deleter) fsops.Deleter {
	return guardedDeleter{v: v, next: next}
}

type guardedDeleter struct {
	v    *Validator
	next fsops.Deleter
}

func (g guardedDeleter) Remove(path string) error {
	if err := g.v.ValidateDeleteTarget(path); err != nil {
		return &os.PathError{Op: "unlink", Path: path, Err: err}
	}
	return g.next.Remove(path)
}

func (g guardedDeleter) RemoveDir(path string) error {
	if err := g.v.ValidateDeleteTarget(path); err != nil {
		return &os.PathError{Op: "rmdir", Path: path, Err: err}
	}
	return g.next.RemoveDir(path)
}

// NormalizePath converts path to absolute, cleaned form
func NormalizePath(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return "", ErrInvalidPath
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", ErrInvalidPath
	}
	return filepath.Clean(abs), nil
}

// DetectTraversal blocks any ".." segment in raw input
func DetectTraversal(raw string) bool {
	parts := strings.Split(filepath.ToSlash(raw), "/")
	for _, p := range parts {
		if p == ".." {
			return true
		}
	}
	return false
}

// IsWithinAllowedRoots checks if path is within any allowed root
func IsWithinAllowedRoots(path string, allowedRoots []string) bool {
	p := filepath.Clean(path)
	for _, r := range allowedRoots {
		if hasPathPrefix(p, r) {
			return true
		}
	}
	return false
}

// DetectSymlinkEscape resolves symlinks and checks if resolved path escapes allowed roots
func DetectSymlinkEscape(cleanAbs string, allowedRoots []string) (bool, error) {
	resolved, err := filepath.EvalSymlinks(cleanAbs)
	if err != nil {
		return false, err
	}
	resolvedAbs, err := filepath.Abs(resolved)
	if err != nil {
		return false, err
	}
	resolvedClean := filepath.Clean(resolvedAbs)
	if IsWithinAllowedRoots(resolvedClean, allowedRoots) {
		return false, nil
	}
	// Allowed roots may themselves sit behind a symlink (e.g. /tmp on macOS).
	for _, r := range allowedRoots {
		if rr, err := filepath.EvalSymlinks(r); err == nil && hasPathPrefix(resolvedClean, rr) {
			return false, nil
		}
	}
	return true, nil
}

// IsProtectedPath checks if path matches protected system paths
func IsProtectedPath(path string, protected []string) bool {
	p := filepath.Clean(path)

	// Hard block: "/" exact
	if p == string(os.PathSeparator) {
		return true
	}

	for _, prot := range protected {
		if hasPathPrefix(p, prot) {
			return true
		}
	}
	return false
}

func isAllowedRoot(path string, allowedRoots []string) bool {
	for _, r := range allowedRoots {
		if path == r {
			return true
		}
	}
	return false
}

func hasPathPrefix(path, prefix string) bool {
	path = filepath.Clean(path)
	prefix = filepath.Clean(prefix)

	if prefix == string(os.PathSeparator) {
		return path == "/"
	}
	if path == prefix {
		return true
	}
	return strings.HasPrefix(path, prefix+string(os.PathSeparator))
}

func normalizeRoots(roots []string) []string {
	out := make([]string, 0, len(roots))
	for _, r := range roots {
		if strings.TrimSpace(r) == "" {
			continue
		}
		abs, err := filepath.Abs(r)
		if err != nil {
			continue
		}
		out = append(out, filepath.Clean(abs))
	}
	return out
}

// defaultProtected returns the base set of protected paths plus any extras
func defaultProtected(extra []string) []string {
	base := []string{
		"/",
		"/etc",
		"/bin",
		"/usr",
		"/boot",
		"/lib",
		"/lib64",
		"/sbin",
		"/proc",
		"/sys",
		"/dev",
		"/var/lib/agesweep",
		"/etc/agesweep",
	}
	return append(base, extra...)
}
