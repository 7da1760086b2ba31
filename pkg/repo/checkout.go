package repo

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/afero"

	"github.com/odvcencio/rewind/pkg/object"
)

// CheckoutMode selects how Checkout treats local changes.
type CheckoutMode int

const (
	// CheckoutSafe refuses to run over uncommitted or untracked work.
	CheckoutSafe CheckoutMode = iota
	// CheckoutForce overwrites local changes.
	CheckoutForce
)

func (m CheckoutMode) String() string {
	switch m {
	case CheckoutSafe:
		return "safe"
	case CheckoutForce:
		return "force"
	default:
		return fmt.Sprintf("CheckoutMode(%d)", int(m))
	}
}

// Checkout rewrites the working directory to the tree of commit h and
// detaches HEAD at h.
//
// Algorithm:
//  1. Flatten the target tree and HEAD's tree; hash the affected files on disk.
//  2. In safe mode, refuse with *DirtyError if staging is non-empty, a tracked
//     file differs from HEAD, or an untracked file would be overwritten.
//  3. Load every blob to be written, so a missing object fails before any
//     file is touched.
//  4. Remove tracked files absent from the target and prune empty directories.
//  5. Write target files that differ from what is on disk.
//  6. Clear staging and move HEAD.
//
// Checking out the same commit twice leaves the tree unchanged.
func (r *Repo) Checkout(h object.Hash, mode CheckoutMode) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	before, err := r.readHead()
	if err != nil {
		return fmt.Errorf("checkout: %w", err)
	}
	if err := r.materialize(before, h, mode); err != nil {
		return fmt.Errorf("checkout %s: %w", h.Short(), err)
	}
	if err := r.setHead("", h, "checkout: moving to "+h.Short()); err != nil {
		return fmt.Errorf("checkout: %w", err)
	}
	r.logger.Info("checked out", "op", "checkout", "commit", h, "mode", mode)
	return nil
}

// materialize makes the working tree match commit target, given that it
// currently derives from before. HEAD is not modified.
func (r *Repo) materialize(before headState, target object.Hash, mode CheckoutMode) error {
	targetFiles, err := r.commitFiles(target)
	if err != nil {
		return err
	}
	headFiles := map[string]TreeFileEntry{}
	if before.Hash != "" {
		if headFiles, err = r.commitFiles(before.Hash); err != nil {
			return fmt.Errorf("HEAD tree: %w", err)
		}
	}
	stg, err := r.readStaging()
	if err != nil {
		return err
	}

	affected := make(map[string]bool, len(targetFiles)+len(headFiles)+len(stg.Entries))
	for p := range targetFiles {
		affected[p] = true
	}
	for p := range headFiles {
		affected[p] = true
	}
	for p := range stg.Entries {
		affected[p] = true
	}
	disk, err := r.hashWorktreeFiles(sortedKeys(affected), false)
	if err != nil {
		return err
	}

	if mode == CheckoutSafe {
		dirty, err := r.dirtyPaths(headFiles, targetFiles, stg, disk)
		if err != nil {
			return err
		}
		if len(dirty) > 0 {
			return &DirtyError{Paths: dirty}
		}
	}

	var writes []TreeFileEntry
	for p, tf := range targetFiles {
		if d, ok := disk[p]; ok && d.matches(tf) {
			continue
		}
		writes = append(writes, tf)
	}
	sort.Slice(writes, func(i, j int) bool { return writes[i].Path < writes[j].Path })
	blobs := make(map[object.Hash][]byte, len(writes))
	for _, w := range writes {
		if _, ok := blobs[w.BlobHash]; ok {
			continue
		}
		data, err := r.Store.Get(w.BlobHash)
		if err != nil {
			return fmt.Errorf("read blob for %q: %w", w.Path, err)
		}
		blobs[w.BlobHash] = data
	}

	var removals []string
	for p := range headFiles {
		if _, keep := targetFiles[p]; !keep {
			removals = append(removals, p)
		}
	}
	for p := range stg.Entries {
		_, keep := targetFiles[p]
		_, tracked := headFiles[p]
		if !keep && !tracked {
			removals = append(removals, p)
		}
	}
	sort.Strings(removals)
	for _, p := range removals {
		abs := r.absPath(p)
		if err := r.fs.Remove(abs); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return &object.StorageError{Op: "remove", Path: p, Err: err}
		}
		r.removeEmptyParents(filepath.Dir(abs))
	}

	for _, w := range writes {
		if err := r.writeWorktreeFile(w.Path, blobs[w.BlobHash], w.Mode); err != nil {
			return err
		}
	}

	if err := r.clearStaging(); err != nil {
		return err
	}
	r.logger.Debug("working tree materialized", "commit", target, "written", len(writes), "removed", len(removals))
	return nil
}

// dirtyPaths lists the paths that block a safe checkout, sorted.
func (r *Repo) dirtyPaths(headFiles, targetFiles map[string]TreeFileEntry, stg *Staging, disk map[string]worktreeFile) ([]string, error) {
	dirty := make(map[string]bool)
	for p := range stg.Entries {
		dirty[p] = true
	}
	for p, hf := range headFiles {
		d, ok := disk[p]
		if !ok || !d.matches(hf) {
			dirty[p] = true
		}
	}
	for p, tf := range targetFiles {
		if _, tracked := headFiles[p]; tracked {
			continue
		}
		if d, ok := disk[p]; ok && !d.matches(tf) {
			dirty[p] = true
		}
		blocked, err := r.blockingPaths(p, headFiles, targetFiles)
		if err != nil {
			return nil, err
		}
		for _, b := range blocked {
			dirty[b] = true
		}
	}
	return sortedKeys(dirty), nil
}

// blockingPaths returns untracked files that would prevent writing target
// path p: a file standing where a parent directory must go, or files inside
// a directory standing where p must go.
func (r *Repo) blockingPaths(p string, headFiles, targetFiles map[string]TreeFileEntry) ([]string, error) {
	var blocked []string
	parts := strings.Split(p, "/")
	for i := 1; i < len(parts); i++ {
		anc := strings.Join(parts[:i], "/")
		info, err := r.fs.Stat(r.absPath(anc))
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				break
			}
			return nil, &object.StorageError{Op: "stat", Path: anc, Err: err}
		}
		if !info.IsDir() {
			if _, tracked := headFiles[anc]; !tracked {
				blocked = append(blocked, anc)
			}
			break
		}
	}

	info, err := r.fs.Stat(r.absPath(p))
	if err != nil || !info.IsDir() {
		return blocked, nil
	}
	err = afero.Walk(r.fs, r.absPath(p), func(fp string, fi os.FileInfo, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if fi.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(r.RootDir, fp)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		_, tracked := headFiles[rel]
		_, kept := targetFiles[rel]
		if !tracked || kept {
			blocked = append(blocked, rel)
		}
		return nil
	})
	if err != nil {
		return nil, &object.StorageError{Op: "walk", Path: p, Err: err}
	}
	return blocked, nil
}

// writeWorktreeFile writes data at rel with the permissions of mode,
// clearing any file or directory standing in the way.
func (r *Repo) writeWorktreeFile(rel string, data []byte, mode string) error {
	abs := r.absPath(rel)
	parts := strings.Split(rel, "/")
	for i := 1; i < len(parts); i++ {
		anc := r.absPath(strings.Join(parts[:i], "/"))
		if info, err := r.fs.Stat(anc); err == nil && !info.IsDir() {
			if err := r.fs.Remove(anc); err != nil {
				return &object.StorageError{Op: "remove", Path: anc, Err: err}
			}
		}
	}
	if info, err := r.fs.Stat(abs); err == nil && info.IsDir() {
		if err := r.fs.RemoveAll(abs); err != nil {
			return &object.StorageError{Op: "remove", Path: abs, Err: err}
		}
	}

	dir := filepath.Dir(abs)
	if err := r.fs.MkdirAll(dir, 0o755); err != nil {
		return &object.StorageError{Op: "mkdir", Path: dir, Err: err}
	}
	perm := worktreePerm(mode)
	if err := afero.WriteFile(r.fs, abs, data, perm); err != nil {
		return &object.StorageError{Op: "write", Path: rel, Err: err}
	}
	if err := r.fs.Chmod(abs, perm); err != nil {
		return &object.StorageError{Op: "chmod", Path: rel, Err: err}
	}
	return nil
}

func sortedKeys(set map[string]bool) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
