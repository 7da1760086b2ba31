package diff

import (
	"sort"

	"github.com/odvcencio/rewind/pkg/object"
)

// Entry is the state of one path inside a snapshot.
type Entry struct {
	Hash object.Hash
	Mode string
}

// Change is one path-level difference. Old is empty for Added and New is
// empty for Deleted.
type Change struct {
	Path string      `json:"path"`
	Kind Kind        `json:"kind"`
	Old  object.Hash `json:"old,omitempty"`
	New  object.Hash `json:"new,omitempty"`
}

// Compute compares two snapshots keyed by slash path and returns the changes
// sorted by path. A path whose hash or mode differs is Modified.
func Compute(before, after map[string]Entry) []Change {
	var changes []Change
	for p, b := range before {
		a, ok := after[p]
		switch {
		case !ok:
			changes = append(changes, Change{Path: p, Kind: Deleted, Old: b.Hash})
		case a.Hash != b.Hash || a.Mode != b.Mode:
			changes = append(changes, Change{Path: p, Kind: Modified, Old: b.Hash, New: a.Hash})
		}
	}
	for p, a := range after {
		if _, ok := before[p]; !ok {
			changes = append(changes, Change{Path: p, Kind: Added, New: a.Hash})
		}
	}
	sort.Slice(changes, func(i, j int) bool { return changes[i].Path < changes[j].Path })
	return changes
}
