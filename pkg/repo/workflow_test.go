package repo

import (
	"testing"

	"github.com/odvcencio/rewind/pkg/object"
)

// TestWorkflow_BranchCommitAdvance drives a full session on an in-memory
// filesystem: commit, branch, commit on the branch, fast-forward main, and
// verify the store.
func TestWorkflow_BranchCommitAdvance(t *testing.T) {
	r := newMemRepo(t)

	base := commitFiles(t, r, "base", map[string]string{"README.md": "# demo\n", "src/app.go": "package src\n"})
	if err := r.CreateBranch("feature", base); err != nil {
		t.Fatalf("CreateBranch: %v", err)
	}
	if err := r.Switch("feature", CheckoutSafe); err != nil {
		t.Fatalf("Switch: %v", err)
	}
	tip := commitFiles(t, r, "feature work", map[string]string{"src/app.go": "package src\n\nfunc Run() {}\n"})

	if err := r.Switch(DefaultBranch, CheckoutSafe); err != nil {
		t.Fatalf("Switch(main): %v", err)
	}
	if got := readFile(t, r, "src/app.go"); got != "package src\n" {
		t.Errorf("src/app.go on main = %q", got)
	}

	res, err := r.AdvanceBranch(DefaultBranch, tip, false)
	if err != nil {
		t.Fatalf("AdvanceBranch: %v", err)
	}
	if !res.FastForward || res.Old != base || res.New != tip {
		t.Errorf("advance result = %+v", res)
	}
	// Advancing a branch does not touch the working tree.
	if got := readFile(t, r, "src/app.go"); got != "package src\n" {
		t.Errorf("src/app.go after advance = %q", got)
	}
	if err := r.Checkout(tip, CheckoutForce); err != nil {
		t.Fatalf("Checkout: %v", err)
	}
	if got := readFile(t, r, "src/app.go"); got != "package src\n\nfunc Run() {}\n" {
		t.Errorf("src/app.go at tip = %q", got)
	}

	log, err := r.Log(tip, 0)
	if err != nil {
		t.Fatalf("Log: %v", err)
	}
	if got := messages(log); len(got) != 2 || got[0] != "feature work" || got[1] != "base" {
		t.Errorf("log = %v", got)
	}

	entry, err := r.FileAt(tip, "README.md")
	if err != nil {
		t.Fatalf("FileAt: %v", err)
	}
	data, err := r.Store.Get(entry.BlobHash)
	if err != nil || string(data) != "# demo\n" {
		t.Errorf("README.md blob = %q, %v", data, err)
	}

	report, err := r.Store.Verify()
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if len(report.Corrupt) != 0 {
		t.Errorf("corrupt objects: %v", report.Corrupt)
	}
	reach, err := r.Store.ReachableSet([]object.Hash{tip})
	if err != nil {
		t.Fatalf("ReachableSet: %v", err)
	}
	if report.Objects != len(reach) {
		t.Errorf("stored %d objects, %d reachable from tip", report.Objects, len(reach))
	}
}
