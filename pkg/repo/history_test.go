package repo

import (
	"testing"

	"github.com/odvcencio/rewind/pkg/object"
)

// The feature-branch scenario: main gets one commit, a branch is created,
// switched to, and gets a second commit on top.
func TestHistory_FeatureBranch(t *testing.T) {
	r := newMemRepo(t)
	first := commitFiles(t, r, "first", map[string]string{"a.txt": "1"})

	if err := r.CreateBranch("feature", first); err != nil {
		t.Fatalf("CreateBranch: %v", err)
	}
	if err := r.Switch("feature", CheckoutSafe); err != nil {
		t.Fatalf("Switch: %v", err)
	}
	second := commitFiles(t, r, "second", map[string]string{"b.txt": "2"})

	log, err := r.Log(second, 0)
	if err != nil {
		t.Fatalf("Log: %v", err)
	}
	if len(log) != 2 || log[0].Hash != second || log[1].Hash != first {
		t.Fatalf("history = %v, want [%s %s]", hashes(log), second, first)
	}

	mainHead, _ := r.ResolveRef("main")
	if mainHead != first {
		t.Errorf("main moved to %s", mainHead)
	}
}

func TestHistory_OrderedByTimestampThenID(t *testing.T) {
	r := newMemRepo(t)
	tree, _ := r.Store.WriteTree(&object.TreeObj{})
	mk := func(msg string, ts int64, parents ...object.Hash) object.Hash {
		t.Helper()
		e, err := r.CreateCommit(tree, parents, "a", msg, CommitOptions{Timestamp: ts, AllowEmpty: true})
		if err != nil {
			t.Fatalf("CreateCommit(%s): %v", msg, err)
		}
		return e.Hash
	}

	//   root(10) <- left(20)  <- merge(40)
	//            <- right(30) <-
	root := mk("root", 10)
	left := mk("left", 20, root)
	right := mk("right", 30, root)
	merge := mk("merge", 40, left, right)

	log, err := r.Log(merge, 0)
	if err != nil {
		t.Fatalf("Log: %v", err)
	}
	want := []object.Hash{merge, right, left, root}
	got := hashes(log)
	if len(got) != len(want) {
		t.Fatalf("history = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("history[%d] = %s, want %s", i, got[i].Short(), want[i].Short())
		}
	}

	// Equal timestamps fall back to ascending id.
	a := mk("tie-a", 50, root)
	b := mk("tie-b", 50, root)
	tip := mk("tip", 60, a, b)
	log, err = r.Log(tip, 3)
	if err != nil {
		t.Fatalf("Log: %v", err)
	}
	lo, hi := a, b
	if hi < lo {
		lo, hi = hi, lo
	}
	if log[1].Hash != lo || log[2].Hash != hi {
		t.Errorf("tie order = %s, %s; want %s, %s", log[1].Hash.Short(), log[2].Hash.Short(), lo.Short(), hi.Short())
	}
}

func TestHistory_VisitsEachCommitOnce(t *testing.T) {
	r := newMemRepo(t)
	tree, _ := r.Store.WriteTree(&object.TreeObj{})
	root, _ := r.CreateCommit(tree, nil, "a", "root", CommitOptions{Timestamp: 1})
	l, _ := r.CreateCommit(tree, []object.Hash{root.Hash}, "a", "l", CommitOptions{Timestamp: 2, AllowEmpty: true})
	rr, _ := r.CreateCommit(tree, []object.Hash{root.Hash}, "a", "r", CommitOptions{Timestamp: 2, AllowEmpty: true})
	m, err := r.CreateCommit(tree, []object.Hash{l.Hash, rr.Hash}, "a", "m", CommitOptions{Timestamp: 3, AllowEmpty: true})
	if err != nil {
		t.Fatalf("CreateCommit: %v", err)
	}

	seen := make(map[object.Hash]int)
	for entry, err := range r.History(m.Hash) {
		if err != nil {
			t.Fatalf("History: %v", err)
		}
		seen[entry.Hash]++
	}
	if len(seen) != 4 {
		t.Errorf("visited %d commits, want 4", len(seen))
	}
	for h, n := range seen {
		if n != 1 {
			t.Errorf("commit %s visited %d times", h.Short(), n)
		}
	}
}

func TestHistory_Restartable(t *testing.T) {
	r := newMemRepo(t)
	commitFiles(t, r, "one", map[string]string{"a": "1"})
	commitFiles(t, r, "two", map[string]string{"a": "2"})
	tip := commitFiles(t, r, "three", map[string]string{"a": "3"})

	seq := r.History(tip)
	var firstPass, secondPass []object.Hash
	for entry, err := range seq {
		if err != nil {
			t.Fatalf("History: %v", err)
		}
		firstPass = append(firstPass, entry.Hash)
		if len(firstPass) == 2 {
			break
		}
	}
	for entry, err := range seq {
		if err != nil {
			t.Fatalf("History: %v", err)
		}
		secondPass = append(secondPass, entry.Hash)
	}
	if len(firstPass) != 2 || len(secondPass) != 3 {
		t.Fatalf("passes = %d, %d; want 2, 3", len(firstPass), len(secondPass))
	}
	if firstPass[0] != secondPass[0] || firstPass[1] != secondPass[1] {
		t.Error("restarted traversal diverged")
	}
}

func TestHistory_UnknownStart(t *testing.T) {
	r := newMemRepo(t)
	for _, err := range r.History(object.HashBytes([]byte("ghost"))) {
		wantErr(t, err, ErrUnknownCommit)
		return
	}
	t.Fatal("History yielded nothing for an unknown start")
}

func TestLog_Limit(t *testing.T) {
	r := newMemRepo(t)
	commitFiles(t, r, "one", map[string]string{"a": "1"})
	commitFiles(t, r, "two", map[string]string{"a": "2"})
	tip := commitFiles(t, r, "three", map[string]string{"a": "3"})

	log, err := r.Log(tip, 2)
	if err != nil {
		t.Fatalf("Log: %v", err)
	}
	if len(log) != 2 || log[0].Commit.Message != "three" || log[1].Commit.Message != "two" {
		t.Errorf("Log(2) = %v", messages(log))
	}
}

func TestIsAncestor(t *testing.T) {
	r := newMemRepo(t)
	first := commitFiles(t, r, "one", map[string]string{"a": "1"})
	second := commitFiles(t, r, "two", map[string]string{"a": "2"})

	tests := []struct {
		name      string
		anc, desc object.Hash
		want      bool
	}{
		{"parent", first, second, true},
		{"self", second, second, true},
		{"child", second, first, false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := r.IsAncestor(tc.anc, tc.desc)
			if err != nil {
				t.Fatalf("IsAncestor: %v", err)
			}
			if got != tc.want {
				t.Errorf("IsAncestor = %v, want %v", got, tc.want)
			}
		})
	}
}

func hashes(entries []CommitEntry) []object.Hash {
	out := make([]object.Hash, len(entries))
	for i, e := range entries {
		out[i] = e.Hash
	}
	return out
}

func messages(entries []CommitEntry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.Commit.Message
	}
	return out
}
