package repo

import (
	"container/heap"
	"fmt"
	"iter"

	"github.com/odvcencio/rewind/pkg/object"
)

// History walks the commits reachable from start over parent edges, newest
// timestamp first with ties broken by ascending id. A parent enters the
// queue only after one of its children was yielded, so along a single line
// of history children always come first. Every reachable commit is yielded
// exactly once. The sequence is lazy and may be ranged over any number of
// times; each range starts afresh.
func (r *Repo) History(start object.Hash) iter.Seq2[CommitEntry, error] {
	return func(yield func(CommitEntry, error) bool) {
		var queue historyHeap
		seen := make(map[object.Hash]bool)

		push := func(h object.Hash) error {
			if seen[h] {
				return nil
			}
			seen[h] = true
			c, err := r.readCommit(h)
			if err != nil {
				return fmt.Errorf("history: %w", err)
			}
			heap.Push(&queue, historyItem{hash: h, commit: c})
			return nil
		}

		if err := push(start); err != nil {
			yield(CommitEntry{}, err)
			return
		}
		for queue.Len() > 0 {
			item := heap.Pop(&queue).(historyItem)
			if !yield(CommitEntry{Hash: item.hash, Commit: item.commit}, nil) {
				return
			}
			for _, p := range item.commit.Parents {
				if err := push(p); err != nil {
					yield(CommitEntry{}, err)
					return
				}
			}
		}
	}
}

// Log returns up to limit commits of History(start). A limit of zero or less
// returns all of them.
func (r *Repo) Log(start object.Hash, limit int) ([]CommitEntry, error) {
	var out []CommitEntry
	for entry, err := range r.History(start) {
		if err != nil {
			return nil, fmt.Errorf("log: %w", err)
		}
		out = append(out, entry)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

// IsAncestor reports whether ancestor is reachable from descendant over
// parent edges. A commit is its own ancestor.
func (r *Repo) IsAncestor(ancestor, descendant object.Hash) (bool, error) {
	if err := r.requireCommit(ancestor); err != nil {
		return false, fmt.Errorf("is ancestor: %w", err)
	}
	for entry, err := range r.History(descendant) {
		if err != nil {
			return false, fmt.Errorf("is ancestor: %w", err)
		}
		if entry.Hash == ancestor {
			return true, nil
		}
	}
	return false, nil
}
