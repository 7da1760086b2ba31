package repo

import "github.com/odvcencio/rewind/pkg/object"

type historyItem struct {
	hash   object.Hash
	commit *object.CommitObj
}

// historyHeap pops the newest commit first; equal timestamps pop in
// ascending id order so traversal is deterministic.
type historyHeap []historyItem

func (h historyHeap) Len() int { return len(h) }

func (h historyHeap) Less(i, j int) bool {
	if h[i].commit.Timestamp == h[j].commit.Timestamp {
		return h[i].hash < h[j].hash
	}
	return h[i].commit.Timestamp > h[j].commit.Timestamp
}

func (h historyHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
}

func (h *historyHeap) Push(x any) {
	*h = append(*h, x.(historyItem))
}

func (h *historyHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}
