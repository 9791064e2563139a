// Package index owns the on-disk index artifacts (one directory per
// session) and the process-wide cache of loaded retrieval handles.
package index

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Directory maps a session id to its index artifact under root. The layout
// inside each artifact belongs to the retrieval backend.
type Directory struct {
	root string
}

func NewDirectory(root string) (*Directory, error) {
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("create index root: %w", err)
	}
	return &Directory{root: root}, nil
}

func (d *Directory) Root() string {
	return d.root
}

// PathFor does no I/O.
func (d *Directory) PathFor(sessionId string) string {
	return filepath.Join(d.root, sessionId)
}

func (d *Directory) Exists(sessionId string) bool {
	if !validKey(sessionId) {
		return false
	}
	info, err := os.Stat(d.PathFor(sessionId))
	return err == nil && info.IsDir()
}

// Delete removes the artifact recursively. Deleting a missing artifact is not an error.
func (d *Directory) Delete(sessionId string) error {
	if !validKey(sessionId) {
		return nil
	}
	if err := os.RemoveAll(d.PathFor(sessionId)); err != nil {
		return fmt.Errorf("remove index %s: %w", sessionId, err)
	}
	return nil
}

// ListIds enumerates every artifact directory currently on disk.
func (d *Directory) ListIds() ([]string, error) {
	entries, err := os.ReadDir(d.root)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("list index root: %w", err)
	}

	ids := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() && validKey(e.Name()) {
			ids = append(ids, e.Name())
		}
	}
	sort.Strings(ids)
	return ids, nil
}

func validKey(id string) bool {
	if id == "" || id == "." || id == ".." {
		return false
	}
	return !strings.ContainsAny(id, `/\`) && !strings.HasPrefix(id, ".")
}
