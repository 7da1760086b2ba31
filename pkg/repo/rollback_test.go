package repo

import (
	"errors"
	"strings"
	"testing"
)

// Test 1: Rollback moves the current branch back and restores its files.
func TestRollback_MovesBranchAndWorkingTree(t *testing.T) {
	r := newMemRepo(t)
	first := commitFiles(t, r, "one", map[string]string{"a.txt": "1"})
	commitFiles(t, r, "two", map[string]string{"a.txt": "2", "b.txt": "b"})
	third := commitFiles(t, r, "three", map[string]string{"a.txt": "3"})

	res, err := r.Rollback("HEAD~2", CheckoutSafe)
	if err != nil {
		t.Fatalf("Rollback: %v", err)
	}
	if res.Branch != DefaultBranch || res.From != third || res.To != first {
		t.Errorf("result = %+v", res)
	}

	head, err := r.Head()
	if err != nil {
		t.Fatalf("Head: %v", err)
	}
	if head != branchRefPrefix+DefaultBranch || headHash(t, r) != first {
		t.Errorf("Head = %q at %s, want %s at %s", head, headHash(t, r).Short(), DefaultBranch, first.Short())
	}
	if got := readFile(t, r, "a.txt"); got != "1" {
		t.Errorf("a.txt = %q", got)
	}
	if fileExists(t, r, "b.txt") {
		t.Error("b.txt should be removed")
	}
}

// Test 2: Commits after the rollback target stay reachable through the
// reflog and can be restored.
func TestRollback_LaterCommitsRecoverable(t *testing.T) {
	r := newMemRepo(t)
	first := commitFiles(t, r, "one", map[string]string{"a.txt": "1"})
	second := commitFiles(t, r, "two", map[string]string{"a.txt": "2"})

	if _, err := r.Rollback(string(first), CheckoutSafe); err != nil {
		t.Fatalf("Rollback: %v", err)
	}
	if _, err := r.ReadCommit(second); err != nil {
		t.Fatalf("rolled-over commit should remain in the store: %v", err)
	}

	entries, err := r.ReadReflog(branchRefPrefix+DefaultBranch, 1)
	if err != nil {
		t.Fatalf("ReadReflog: %v", err)
	}
	if len(entries) != 1 || entries[0].OldHash != second || entries[0].NewHash != first {
		t.Fatalf("reflog = %+v", entries)
	}
	if !strings.HasPrefix(entries[0].Reason, "rollback") {
		t.Errorf("reason = %q", entries[0].Reason)
	}

	if _, err := r.Rollback(string(second), CheckoutSafe); err != nil {
		t.Fatalf("Rollback forward: %v", err)
	}
	if got := readFile(t, r, "a.txt"); got != "2" {
		t.Errorf("a.txt = %q after rolling forward", got)
	}
}

// Test 3: Dirty work blocks a safe rollback and leaves HEAD in place.
func TestRollback_SafeRefusesDirtyTree(t *testing.T) {
	r := newMemRepo(t)
	first := commitFiles(t, r, "one", map[string]string{"a.txt": "1"})
	second := commitFiles(t, r, "two", map[string]string{"a.txt": "2"})
	writeFile(t, r, "a.txt", "wip")

	if _, err := r.Rollback(string(first), CheckoutSafe); !errors.Is(err, ErrDirtyWorkingTree) {
		t.Fatalf("Rollback = %v, want ErrDirtyWorkingTree", err)
	}
	if headHash(t, r) != second {
		t.Error("HEAD moved despite refused rollback")
	}

	if _, err := r.Rollback(string(first), CheckoutForce); err != nil {
		t.Fatalf("Rollback(force): %v", err)
	}
	if got := readFile(t, r, "a.txt"); got != "1" {
		t.Errorf("a.txt = %q", got)
	}
}

// Test 4: On a detached HEAD, rollback moves HEAD only.
func TestRollback_DetachedHead(t *testing.T) {
	r := newMemRepo(t)
	first := commitFiles(t, r, "one", map[string]string{"a.txt": "1"})
	second := commitFiles(t, r, "two", map[string]string{"a.txt": "2"})
	if err := r.Checkout(second, CheckoutSafe); err != nil {
		t.Fatalf("Checkout: %v", err)
	}

	res, err := r.Rollback("HEAD~1", CheckoutSafe)
	if err != nil {
		t.Fatalf("Rollback: %v", err)
	}
	if res.Branch != "" || res.To != first {
		t.Errorf("result = %+v", res)
	}
	main, err := r.ResolveRef(branchRefPrefix + DefaultBranch)
	if err != nil {
		t.Fatalf("ResolveRef: %v", err)
	}
	if main != second {
		t.Error("detached rollback must not move the branch")
	}
}

func TestRollback_UnknownRevision(t *testing.T) {
	r := newMemRepo(t)
	commitFiles(t, r, "one", map[string]string{"a.txt": "1"})

	if _, err := r.Rollback("HEAD~5", CheckoutSafe); err == nil {
		t.Error("Rollback past the root should fail")
	}
	if _, err := r.Rollback("no-such-branch", CheckoutSafe); err == nil {
		t.Error("Rollback to an unknown name should fail")
	}
}
