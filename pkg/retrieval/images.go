package retrieval

import (
	"path/filepath"
	"strings"
)

// RelativeImagePath expresses a page image path relative to the image root.
// Backends may report the path absolute, relative to the working directory
// (prefixed with root), or already relative to root. ok is false when the
// path points outside root.
func RelativeImagePath(root, p string) (rel string, ok bool) {
	if p == "" {
		return "", false
	}
	if filepath.IsAbs(p) {
		absRoot, err := filepath.Abs(root)
		if err != nil {
			return "", false
		}
		r, err := filepath.Rel(absRoot, p)
		if err != nil || r == ".." || strings.HasPrefix(r, ".."+string(filepath.Separator)) {
			return "", false
		}
		return r, true
	}

	c := filepath.Clean(p)
	prefix := filepath.Clean(root) + string(filepath.Separator)
	if strings.HasPrefix(c, prefix) {
		return strings.TrimPrefix(c, prefix), true
	}
	if c == ".." || strings.HasPrefix(c, ".."+string(filepath.Separator)) {
		return "", false
	}
	return c, true
}
