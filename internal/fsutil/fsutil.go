// Package fsutil holds the filesystem helpers shared by nbgrader commands.
// Everything works against a billy.Filesystem so commands can run on the
// host filesystem (osfs) or in memory (memfs).
package fsutil

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	billy "github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/osfs"
	"github.com/go-git/go-billy/v5/util"
)

const (
	NotebookExt = ".ipynb"
	FeedbackExt = ".html"
)

// NewOS returns a filesystem bound to the host root, so both absolute and
// root-relative paths resolve as they would for the os package.
func NewOS() billy.Filesystem {
	return osfs.New(string(filepath.Separator), osfs.WithBoundOS())
}

// CheckDirectory reports whether path is a directory that grants the
// requested write and execute permissions to the current process.
func CheckDirectory(fs billy.Filesystem, path string, write, execute bool) bool {
	info, err := fs.Stat(path)
	if err != nil || !info.IsDir() {
		return false
	}
	if b, ok := fs.(*osfs.BoundOS); ok {
		return access(filepath.Join(b.Root(), path), write, execute)
	}
	mode := info.Mode().Perm()
	if write && mode&0o200 == 0 {
		return false
	}
	if execute && mode&0o100 == 0 {
		return false
	}
	return true
}

// EnsureDirectory creates path (with parents) unless it is already a
// writable, traversable directory. It reports whether it had to create it.
func EnsureDirectory(fs billy.Filesystem, path string) (bool, error) {
	if CheckDirectory(fs, path, true, true) {
		return false, nil
	}
	if err := fs.MkdirAll(path, 0o755); err != nil {
		return false, fmt.Errorf("create directory %s: %w", path, err)
	}
	return true, nil
}

// FindAllFiles returns every regular file below root in lexical order.
// Symlinks are listed when their target is a regular file; linked
// directories are not descended into and dangling links are skipped.
// Entries whose base name matches one of the exclude globs are skipped,
// directories included. A missing root yields no files and no error.
func FindAllFiles(fs billy.Filesystem, root string, exclude ...string) ([]string, error) {
	if _, err := fs.Stat(root); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("stat %s: %w", root, err)
	}

	var files []string
	err := util.Walk(fs, root, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if p != root && excluded(info.Name(), exclude) {
			if info.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if info.Mode()&os.ModeSymlink != 0 {
			target, err := fs.Stat(p)
			if errors.Is(err, os.ErrNotExist) {
				return nil
			}
			if err != nil {
				return err
			}
			info = target
		}
		if info.Mode().IsRegular() {
			files = append(files, p)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", root, err)
	}
	sort.Strings(files)
	return files, nil
}

// FindAllNotebooks returns the base names of the notebooks directly inside dir.
func FindAllNotebooks(fs billy.Filesystem, dir string) ([]string, error) {
	entries, err := fs.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read dir %s: %w", dir, err)
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), NotebookExt) {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

// FilterSuffix keeps the paths that end in suffix, preserving order.
func FilterSuffix(paths []string, suffix string) []string {
	var out []string
	for _, p := range paths {
		if strings.HasSuffix(p, suffix) {
			out = append(out, p)
		}
	}
	return out
}

func excluded(name string, patterns []string) bool {
	for _, pat := range patterns {
		if ok, _ := filepath.Match(pat, name); ok {
			return true
		}
	}
	return false
}
