package cleanup

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"pgregory.net/rapid"
)

// For any set of files and any cutoff, a recursive Delete removes exactly the
// files that are both expired and accepted by the extension filter.
func TestRecursiveDeleteProperty(t *testing.T) {
	exts := []string{"csv", "CSV", "log", "txt", ""}
	dirs := []string{".", "a", "a/b", "c"}

	rapid.Check(t, func(rt *rapid.T) {
		root, err := os.MkdirTemp(t.TempDir(), "prop")
		if err != nil {
			rt.Fatalf("mkdtemp: %v", err)
		}

		ref := time.Now().Truncate(time.Second)
		cutoffHours := rapid.IntRange(1, 96).Draw(rt, "cutoffHours")
		cut := ref.Add(-time.Duration(cutoffHours) * time.Hour)
		filter := rapid.SliceOfDistinct(rapid.SampledFrom([]string{"csv", "log"}), rapid.ID[string]).Draw(rt, "filter")

		job, err := NewJob(root, cut, filter)
		if err != nil {
			rt.Fatalf("NewJob: %v", err)
		}

		want := map[string]bool{}
		n := rapid.IntRange(0, 12).Draw(rt, "files")
		for i := 0; i < n; i++ {
			dir := rapid.SampledFrom(dirs).Draw(rt, "dir")
			ext := rapid.SampledFrom(exts).Draw(rt, "ext")
			ageHours := rapid.IntRange(0, 120).Draw(rt, "ageHours")

			name := fmt.Sprintf("f%d", i)
			if ext != "" {
				name += "." + ext
			}
			path := filepath.Join(root, dir, name)
			mtime := ref.Add(-time.Duration(ageHours) * time.Hour)

			if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
				rt.Fatalf("mkdir: %v", err)
			}
			if err := os.WriteFile(path, nil, 0o644); err != nil {
				rt.Fatalf("write: %v", err)
			}
			if err := os.Chtimes(path, ref, mtime); err != nil {
				rt.Fatalf("chtimes: %v", err)
			}

			want[path] = mtime.Before(cut) && job.MatchesExtension(extension(name))
		}

		expected := 0
		for _, del := range want {
			if del {
				expected++
			}
		}

		count, err := NewRecursive(job, false).Delete()
		if err != nil {
			rt.Fatalf("Delete: %v", err)
		}
		if count != expected {
			rt.Fatalf("deleted %d files, want %d", count, expected)
		}

		for path, del := range want {
			_, err := os.Stat(path)
			if del && err == nil {
				rt.Errorf("%s should have been deleted", path)
			}
			if !del && err != nil {
				rt.Errorf("%s should still exist: %v", path, err)
			}
		}
	})
}
