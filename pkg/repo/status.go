package repo

import (
	"fmt"
	"sort"

	"github.com/odvcencio/rewind/pkg/diff"
)

// FileStatus represents the state of a file in the working tree or index.
type FileStatus int

const (
	StatusClean     FileStatus = iota // file matches between compared areas
	StatusAdded                       // staged, not in HEAD tree
	StatusModified                    // content or mode differs
	StatusDeleted                     // expected but missing
	StatusUntracked                   // on disk, neither in HEAD nor staged
)

func (s FileStatus) String() string {
	switch s {
	case StatusClean:
		return "clean"
	case StatusAdded:
		return "added"
	case StatusModified:
		return "modified"
	case StatusDeleted:
		return "deleted"
	case StatusUntracked:
		return "untracked"
	default:
		return fmt.Sprintf("FileStatus(%d)", int(s))
	}
}

// StatusEntry records the status of a single file.
type StatusEntry struct {
	Path        string     // repo-relative path
	IndexStatus FileStatus // staging vs HEAD tree
	WorkStatus  FileStatus // working tree vs HEAD with staging applied
}

func statusFromKind(k diff.Kind) FileStatus {
	switch k {
	case diff.Added:
		return StatusAdded
	case diff.Modified:
		return StatusModified
	case diff.Deleted:
		return StatusDeleted
	default:
		return StatusClean
	}
}

// Status computes the working tree status for the repository.
//
// Algorithm:
//  1. Read staging and flatten HEAD's tree.
//  2. Walk the working directory (skipping .rewind/ and ignored paths) and
//     hash every candidate file in parallel.
//  3. Compare staging against HEAD for the index column.
//  4. Compare the disk against HEAD with staging applied for the work column.
//  5. Return the entries that are not clean in both columns, sorted by path.
func (r *Repo) Status() ([]StatusEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	head, err := r.headFiles()
	if err != nil {
		return nil, fmt.Errorf("status: %w", err)
	}
	stg, err := r.readStaging()
	if err != nil {
		return nil, fmt.Errorf("status: %w", err)
	}
	expected := overlayStaging(head, stg)

	ic := NewIgnoreChecker(r.fs, r.RootDir)
	walked, err := r.walkWorktree(ic, ".")
	if err != nil {
		return nil, fmt.Errorf("status: %w", err)
	}
	candidates := make(map[string]bool, len(walked)+len(expected))
	for _, p := range walked {
		candidates[p] = true
	}
	for p := range expected {
		candidates[p] = true
	}
	disk, err := r.hashWorktreeFiles(sortedKeys(candidates), false)
	if err != nil {
		return nil, fmt.Errorf("status: %w", err)
	}

	paths := make(map[string]bool, len(candidates)+len(stg.Entries))
	for p := range candidates {
		paths[p] = true
	}
	for p := range stg.Entries {
		paths[p] = true
	}

	var out []StatusEntry
	for p := range paths {
		e := StatusEntry{Path: p}
		if se, ok := stg.Entries[p]; ok {
			e.IndexStatus = statusFromKind(se.State)
		}

		want, tracked := expected[p]
		d, onDisk := disk[p]
		switch {
		case tracked && !onDisk:
			e.WorkStatus = StatusDeleted
		case tracked && !d.matches(want):
			e.WorkStatus = StatusModified
		case !tracked && onDisk:
			e.WorkStatus = StatusUntracked
		}
		if e.IndexStatus == StatusClean && e.WorkStatus == StatusUntracked {
			e.IndexStatus = StatusUntracked
		}

		if e.IndexStatus != StatusClean || e.WorkStatus != StatusClean {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out, nil
}
