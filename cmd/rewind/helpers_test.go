package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/odvcencio/rewind/pkg/repo"
)

// runRewind executes the CLI against dir with args and returns combined
// output.
func runRewind(t *testing.T, dir string, args ...string) (string, error) {
	t.Helper()
	return runRewindWithInput(t, dir, "", args...)
}

func runRewindWithInput(t *testing.T, dir, stdin string, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetIn(strings.NewReader(stdin))
	root.SetArgs(append([]string{"-C", dir}, args...))
	err := root.Execute()
	return out.String(), err
}

// mustRewind is runRewind that fails the test on error.
func mustRewind(t *testing.T, dir string, args ...string) string {
	t.Helper()
	out, err := runRewind(t, dir, args...)
	if err != nil {
		t.Fatalf("rewind %s: %v\noutput:\n%s", strings.Join(args, " "), err, out)
	}
	return out
}

func initCmdRepo(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	mustRewind(t, dir, "init")
	return dir
}

func writeRepoFile(t *testing.T, dir, rel, content string) {
	t.Helper()
	path := filepath.Join(dir, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", rel, err)
	}
}

func readRepoFile(t *testing.T, dir, rel string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(dir, filepath.FromSlash(rel)))
	if err != nil {
		t.Fatalf("read %s: %v", rel, err)
	}
	return string(data)
}

// commitAll stages the whole tree and commits it.
func commitAll(t *testing.T, dir, msg string) {
	t.Helper()
	mustRewind(t, dir, "add", ".")
	mustRewind(t, dir, "commit", "-m", msg, "--author", "tester")
}

func openRepo(t *testing.T, dir string) *repo.Repo {
	t.Helper()
	r, err := repo.Open(dir)
	if err != nil {
		t.Fatalf("repo.Open: %v", err)
	}
	return r
}
