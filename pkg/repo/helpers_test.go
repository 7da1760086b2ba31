package repo

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/afero"

	"github.com/odvcencio/rewind/pkg/object"
)

// newTestRepo initializes a repository in a fresh temp directory on the OS
// filesystem.
func newTestRepo(t *testing.T) *Repo {
	t.Helper()
	r, err := Init(t.TempDir())
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	return r
}

// newMemRepo initializes a repository on an in-memory filesystem.
func newMemRepo(t *testing.T) *Repo {
	t.Helper()
	r, err := Init("/work", WithFs(afero.NewMemMapFs()))
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	return r
}

func writeFile(t *testing.T, r *Repo, rel, content string) {
	t.Helper()
	writeFileMode(t, r, rel, content, 0o644)
}

func writeFileMode(t *testing.T, r *Repo, rel, content string, perm os.FileMode) {
	t.Helper()
	abs := filepath.Join(r.RootDir, filepath.FromSlash(rel))
	if err := r.Fs().MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	if err := afero.WriteFile(r.Fs(), abs, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", rel, err)
	}
	if err := r.Fs().Chmod(abs, perm); err != nil {
		t.Fatalf("chmod %s: %v", rel, err)
	}
}

func readFile(t *testing.T, r *Repo, rel string) string {
	t.Helper()
	data, err := afero.ReadFile(r.Fs(), filepath.Join(r.RootDir, filepath.FromSlash(rel)))
	if err != nil {
		t.Fatalf("read %s: %v", rel, err)
	}
	return string(data)
}

func fileExists(t *testing.T, r *Repo, rel string) bool {
	t.Helper()
	ok, err := afero.Exists(r.Fs(), filepath.Join(r.RootDir, filepath.FromSlash(rel)))
	if err != nil {
		t.Fatalf("exists %s: %v", rel, err)
	}
	return ok
}

// commitFiles writes each file, stages the whole tree and commits.
func commitFiles(t *testing.T, r *Repo, msg string, files map[string]string) object.Hash {
	t.Helper()
	for rel, content := range files {
		writeFile(t, r, rel, content)
	}
	if err := r.Add([]string{"."}); err != nil {
		t.Fatalf("Add: %v", err)
	}
	entry, err := r.CommitStaged("tester", msg, CommitOptions{})
	if err != nil {
		t.Fatalf("CommitStaged(%q): %v", msg, err)
	}
	return entry.Hash
}

func headHash(t *testing.T, r *Repo) object.Hash {
	t.Helper()
	h, err := r.ResolveRef("HEAD")
	if err != nil {
		t.Fatalf("ResolveRef(HEAD): %v", err)
	}
	return h
}

func wantErr(t *testing.T, err, target error) {
	t.Helper()
	if !errors.Is(err, target) {
		t.Fatalf("error = %v, want %v", err, target)
	}
}

func isErr(err, target error) bool {
	return errors.Is(err, target)
}
