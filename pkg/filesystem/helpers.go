package filesystem

import (
	"io/fs"
	"path/filepath"
	"sort"

	"github.com/logannc/janus/pkg/types"
)

// Exists reports whether a path exists, following symlinks. Broken
// symlinks report false.
func Exists(fsys types.FS, path string) bool {
	_, err := fsys.Stat(path)
	return err == nil
}

// IsSymlink reports whether a path is itself a symlink (lstat, no follow).
func IsSymlink(fsys types.FS, path string) bool {
	info, err := fsys.Lstat(path)
	return err == nil && info.Mode()&fs.ModeSymlink != 0
}

// IsDir reports whether a path is a directory, following symlinks.
func IsDir(fsys types.FS, path string) bool {
	info, err := fsys.Stat(path)
	return err == nil && info.IsDir()
}

// CopyFile copies a file's contents and permission bits from src to dst.
func CopyFile(fsys types.FS, src, dst string) error {
	data, err := fsys.ReadFile(src)
	if err != nil {
		return err
	}
	info, err := fsys.Stat(src)
	if err != nil {
		return err
	}
	if err := fsys.WriteFile(dst, data, info.Mode().Perm()); err != nil {
		return err
	}
	return fsys.Chmod(dst, info.Mode().Perm())
}

// WalkFunc is invoked for every entry found by Walk. Directories are
// visited before their contents.
type WalkFunc func(path string, d fs.DirEntry) error

// Walk traverses a directory tree via types.FS up to maxDepth levels below
// root (maxDepth <= 0 means unlimited). Entries within a directory are
// visited in name order.
func Walk(fsys types.FS, root string, maxDepth int, fn WalkFunc) error {
	return walk(fsys, root, 1, maxDepth, fn)
}

func walk(fsys types.FS, dir string, depth, maxDepth int, fn WalkFunc) error {
	if maxDepth > 0 && depth > maxDepth {
		return nil
	}
	entries, err := fsys.ReadDir(dir)
	if err != nil {
		return err
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })
	for _, entry := range entries {
		path := filepath.Join(dir, entry.Name())
		if err := fn(path, entry); err != nil {
			return err
		}
		if entry.IsDir() {
			if err := walk(fsys, path, depth+1, maxDepth, fn); err != nil {
				return err
			}
		}
	}
	return nil
}

// RemoveTree removes a directory tree through types.FS. Files first,
// then directories deepest-first. A missing root is not an error.
func RemoveTree(fsys types.FS, root string) error {
	if _, err := fsys.Lstat(root); err != nil {
		return nil
	}
	var dirs []string
	err := Walk(fsys, root, 0, func(path string, d fs.DirEntry) error {
		if d.IsDir() {
			dirs = append(dirs, path)
			return nil
		}
		return fsys.Remove(path)
	})
	if err != nil {
		return err
	}
	for i := len(dirs) - 1; i >= 0; i-- {
		if err := fsys.Remove(dirs[i]); err != nil {
			return err
		}
	}
	return fsys.Remove(root)
}

// RemoveEmptyParents removes empty parent directories of path, walking up
// until stopAt (exclusive) or the first non-empty directory.
func RemoveEmptyParents(fsys types.FS, path, stopAt string) {
	dir := filepath.Dir(path)
	for dir != stopAt && dir != "/" && dir != "." {
		if err := fsys.Remove(dir); err != nil {
			return
		}
		dir = filepath.Dir(dir)
	}
}
