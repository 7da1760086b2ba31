package repo

import (
	"fmt"
	"strings"

	"github.com/odvcencio/rewind/pkg/object"
)

// FileAt returns the blob entry for relPath in commit h's tree.
func (r *Repo) FileAt(h object.Hash, relPath string) (TreeFileEntry, error) {
	if err := validateRepoPath(relPath); err != nil {
		return TreeFileEntry{}, fmt.Errorf("file at %s: %w", h.Short(), err)
	}
	c, err := r.readCommit(h)
	if err != nil {
		return TreeFileEntry{}, fmt.Errorf("file at %s: %w", h.Short(), err)
	}
	entry, found, err := r.treeEntryAtPath(c.TreeHash, relPath)
	if err != nil {
		return TreeFileEntry{}, fmt.Errorf("file at %s: %w", h.Short(), err)
	}
	if !found {
		return TreeFileEntry{}, fmt.Errorf("file at %s: %q: %w", h.Short(), relPath, object.ErrNotFound)
	}
	return TreeFileEntry{Path: relPath, BlobHash: entry.Hash, Mode: entry.Mode}, nil
}

func (r *Repo) treeEntryAtPath(treeHash object.Hash, relPath string) (object.TreeEntry, bool, error) {
	parts := strings.Split(relPath, "/")
	current := treeHash

	for i, part := range parts {
		treeObj, err := r.Store.ReadTree(current)
		if err != nil {
			return object.TreeEntry{}, false, fmt.Errorf("read tree %s: %w", current, err)
		}

		var (
			entry object.TreeEntry
			found bool
		)
		for _, te := range treeObj.Entries {
			if te.Name == part {
				entry = te
				found = true
				break
			}
		}
		if !found {
			return object.TreeEntry{}, false, nil
		}

		if i == len(parts)-1 {
			if entry.IsDir() {
				return object.TreeEntry{}, false, nil
			}
			return entry, true, nil
		}
		if !entry.IsDir() {
			return object.TreeEntry{}, false, nil
		}
		current = entry.Hash
	}

	return object.TreeEntry{}, false, nil
}
