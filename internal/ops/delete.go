package ops

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// NormalizePath accepts either separator and returns a cleaned OS path.
func NormalizePath(p string) string {
	return filepath.Clean(filepath.FromSlash(strings.ReplaceAll(p, `\`, "/")))
}

// Remove deletes the file, link or directory tree at path. Intermediate
// directories are resolved once; nothing below path is followed.
// A non-empty root constrains deletion to strict descendants of root.
func Remove(path, root string) error {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("cannot resolve path %s: %w", path, err)
	}

	parent := filepath.Dir(absPath)
	if root != "" {
		if err := checkConfined(absPath, root); err != nil {
			return err
		}
		// Resolve the parent too, so a symlinked directory inside root
		// cannot be used to reach outside of it.
		resolvedParent, err := filepath.EvalSymlinks(parent)
		if err != nil {
			return fmt.Errorf("cannot resolve %s: %w", parent, err)
		}
		resolvedRoot, err := filepath.EvalSymlinks(root)
		if err != nil {
			return fmt.Errorf("cannot resolve root %s: %w", root, err)
		}
		if !isWithinOrEqual(resolvedRoot, resolvedParent) {
			return fmt.Errorf("refusing to delete %s: resolves outside %s", absPath, root)
		}
		parent = resolvedParent
	}

	if _, err := os.Lstat(absPath); err != nil {
		return fmt.Errorf("cannot access %s: %w", absPath, err)
	}
	if err := removeEntry(parent, filepath.Base(absPath)); err != nil {
		return fmt.Errorf("cannot delete %s: %w", absPath, err)
	}
	return nil
}

func checkConfined(absPath, root string) error {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return fmt.Errorf("cannot resolve root %s: %w", root, err)
	}
	rel, err := filepath.Rel(absRoot, absPath)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return fmt.Errorf("refusing to delete %s: outside %s", absPath, absRoot)
	}
	return nil
}

func isWithinOrEqual(root, target string) bool {
	rel, err := filepath.Rel(root, target)
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)))
}
