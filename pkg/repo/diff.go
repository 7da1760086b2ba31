package repo

import (
	"fmt"

	"github.com/odvcencio/rewind/pkg/diff"
	"github.com/odvcencio/rewind/pkg/object"
)

// Diff returns the staged changes relative to HEAD's tree, sorted by path.
// Entries whose staged content equals HEAD's are not reported.
func (r *Repo) Diff() ([]diff.Change, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	head, err := r.headFiles()
	if err != nil {
		return nil, fmt.Errorf("diff: %w", err)
	}
	stg, err := r.readStaging()
	if err != nil {
		return nil, fmt.Errorf("diff: %w", err)
	}
	return diff.Compute(snapshot(head), snapshot(overlayStaging(head, stg))), nil
}

// DiffCommits returns the changes that turn commit a's tree into commit b's.
func (r *Repo) DiffCommits(a, b object.Hash) ([]diff.Change, error) {
	before, err := r.commitFiles(a)
	if err != nil {
		return nil, fmt.Errorf("diff commits: %w", err)
	}
	after, err := r.commitFiles(b)
	if err != nil {
		return nil, fmt.Errorf("diff commits: %w", err)
	}
	return diff.Compute(snapshot(before), snapshot(after)), nil
}

func snapshot(files map[string]TreeFileEntry) map[string]diff.Entry {
	out := make(map[string]diff.Entry, len(files))
	for p, f := range files {
		out[p] = diff.Entry{Hash: f.BlobHash, Mode: normalizeFileMode(f.Mode)}
	}
	return out
}
