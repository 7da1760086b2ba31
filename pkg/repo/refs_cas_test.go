package repo

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/odvcencio/rewind/pkg/object"
)

func TestUpdateRefCAS_ConcurrentSingleWinner(t *testing.T) {
	r := newTestRepo(t)

	base := object.Hash(strings.Repeat("a", 64))
	if err := r.UpdateRefCAS("refs/heads/main", base); err != nil {
		t.Fatalf("UpdateRefCAS(base): %v", err)
	}

	const workers = 16
	var wg sync.WaitGroup
	wg.Add(workers)

	successCh := make(chan object.Hash, workers)
	errCh := make(chan error, workers)

	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			// Separate handles share only the lockfile, as separate processes would.
			handle, err := Open(r.RootDir)
			if err != nil {
				errCh <- err
				return
			}
			next := object.Hash(fmt.Sprintf("%064x", i+1))
			if err := handle.UpdateRefCAS("refs/heads/main", next, base); err != nil {
				errCh <- err
				return
			}
			successCh <- next
		}()
	}

	wg.Wait()
	close(successCh)
	close(errCh)

	var winner object.Hash
	successes := 0
	for h := range successCh {
		successes++
		winner = h
	}
	if successes != 1 {
		t.Fatalf("successful CAS updates = %d, want 1", successes)
	}
	for err := range errCh {
		if !errors.Is(err, ErrRefCASMismatch) {
			t.Errorf("loser error = %v, want ErrRefCASMismatch", err)
		}
	}

	got, err := r.ResolveRef("main")
	if err != nil {
		t.Fatalf("ResolveRef: %v", err)
	}
	if got != winner {
		t.Errorf("main = %s, want winner %s", got, winner)
	}
	if _, err := os.Stat(filepath.Join(r.Dir, "refs", "heads", "main.lock")); !os.IsNotExist(err) {
		t.Errorf("lockfile left behind: %v", err)
	}
}

func TestUpdateRefCAS_StaleOldValue(t *testing.T) {
	r := newMemRepo(t)
	a := object.Hash(strings.Repeat("a", 64))
	b := object.Hash(strings.Repeat("b", 64))
	c := object.Hash(strings.Repeat("c", 64))

	if err := r.UpdateRefCAS("refs/heads/x", a, ""); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := r.UpdateRefCAS("refs/heads/x", b, a); err != nil {
		t.Fatalf("a -> b: %v", err)
	}
	err := r.UpdateRefCAS("refs/heads/x", c, a)
	wantErr(t, err, ErrRefCASMismatch)

	if got, _ := r.ResolveRef("x"); got != b {
		t.Errorf("x = %s, want %s", got, b)
	}

	err = r.UpdateRefCAS("refs/heads/x", c, "")
	wantErr(t, err, ErrRefCASMismatch)
}

func TestUpdateRefCAS_RejectsInvalidHash(t *testing.T) {
	r := newMemRepo(t)
	if err := r.UpdateRefCAS("refs/heads/x", "not-a-hash"); err == nil {
		t.Fatal("invalid hash should be rejected")
	}
}

func TestUpdateRefCAS_HeldLockTimesOut(t *testing.T) {
	r := newMemRepo(t)
	lock := filepath.Join(r.Dir, "refs", "heads", "main.lock")
	f, err := r.Fs().Create(lock)
	if err != nil {
		t.Fatalf("create lock: %v", err)
	}
	f.Close()

	err = r.UpdateRefCAS("refs/heads/main", object.Hash(strings.Repeat("d", 64)))
	if err == nil || !strings.Contains(err.Error(), "timeout") {
		t.Fatalf("UpdateRefCAS with held lock = %v, want timeout", err)
	}
}

func TestResolveRef_Errors(t *testing.T) {
	r := newMemRepo(t)
	_, err := r.ResolveRef("HEAD")
	wantErr(t, err, ErrNoCommits)

	_, err = r.ResolveRef("nope")
	wantErr(t, err, ErrUnknownBranch)
}

func TestResolveRevision(t *testing.T) {
	r := newMemRepo(t)
	first := commitFiles(t, r, "one", map[string]string{"a": "1"})
	second := commitFiles(t, r, "two", map[string]string{"a": "2"})
	third := commitFiles(t, r, "three", map[string]string{"a": "3"})
	if err := r.CreateBranch("old", first); err != nil {
		t.Fatalf("CreateBranch: %v", err)
	}

	tests := []struct {
		rev  string
		want object.Hash
	}{
		{"HEAD", third},
		{"main", third},
		{"old", first},
		{string(second), second},
		{strings.ToUpper(string(second)), second},
		{string(second[:12]), second},
		{"HEAD~1", second},
		{"HEAD~", second},
		{"main~2", first},
		{string(third[:10]) + "~2", first},
		{"HEAD~0", third},
	}
	for _, tc := range tests {
		t.Run(tc.rev, func(t *testing.T) {
			got, err := r.ResolveRevision(tc.rev)
			if err != nil {
				t.Fatalf("ResolveRevision(%q): %v", tc.rev, err)
			}
			if got != tc.want {
				t.Errorf("ResolveRevision(%q) = %s, want %s", tc.rev, got.Short(), tc.want.Short())
			}
		})
	}

	for _, rev := range []string{"", "HEAD~3", "abc", "zzzzzz", "missing", "HEAD~x"} {
		if _, err := r.ResolveRevision(rev); !errors.Is(err, ErrUnknownCommit) && !errors.Is(err, ErrUnknownBranch) {
			t.Errorf("ResolveRevision(%q) = %v, want unknown commit", rev, err)
		}
	}

	// A blob digest is not a commit.
	blob, _ := r.Store.Put([]byte("blob"))
	_, err := r.ResolveRevision(string(blob))
	wantErr(t, err, ErrUnknownCommit)
}

func TestListRefs(t *testing.T) {
	r := newMemRepo(t)
	h := commitFiles(t, r, "one", map[string]string{"a": "1"})
	if err := r.CreateBranch("feature/x", h); err != nil {
		t.Fatalf("CreateBranch: %v", err)
	}

	refs, err := r.ListRefs("")
	if err != nil {
		t.Fatalf("ListRefs: %v", err)
	}
	if refs["heads/main"] != h || refs["heads/feature/x"] != h || len(refs) != 2 {
		t.Errorf("ListRefs = %v", refs)
	}
}
