package repo

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"

	"github.com/sourcegraph/conc/pool"
	"github.com/spf13/afero"

	"github.com/odvcencio/rewind/pkg/object"
)

// worktreeFile is the observed state of one file on disk.
type worktreeFile struct {
	Path string
	Hash object.Hash
	Mode string
}

// matches reports whether the file on disk holds e's content with e's mode.
func (wf worktreeFile) matches(e TreeFileEntry) bool {
	return wf.Hash == e.BlobHash && wf.Mode == normalizeFileMode(e.Mode)
}

// treeMode records any execute bit on disk as an executable entry. Only the
// two file modes are tracked; symlinks and other types are never staged.
func treeMode(info fs.FileInfo) string {
	if info.Mode().Perm()&0o111 != 0 {
		return object.TreeModeExecutable
	}
	return object.TreeModeFile
}

// normalizeFileMode folds unknown or empty modes to a regular file.
func normalizeFileMode(mode string) string {
	if mode == object.TreeModeExecutable {
		return mode
	}
	return object.TreeModeFile
}

// worktreePerm is the permission a checked-out file gets for mode.
func worktreePerm(mode string) os.FileMode {
	if normalizeFileMode(mode) == object.TreeModeExecutable {
		return 0o755
	}
	return 0o644
}

// walkWorktree lists the regular files beneath rel ("." for the whole tree),
// skipping ignored paths and the metadata directory. Paths are sorted.
func (r *Repo) walkWorktree(ic *IgnoreChecker, rel string) ([]string, error) {
	start := r.RootDir
	if rel != "." {
		start = r.absPath(rel)
	}

	var files []string
	err := afero.Walk(r.fs, start, func(p string, info os.FileInfo, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		relPath, err := filepath.Rel(r.RootDir, p)
		if err != nil {
			return err
		}
		relPath = filepath.ToSlash(relPath)
		if relPath == "." {
			return nil
		}
		if ic.IsIgnored(relPath) {
			if info.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if info.Mode().IsRegular() {
			files = append(files, relPath)
		}
		return nil
	})
	if err != nil {
		return nil, &object.StorageError{Op: "walk", Path: start, Err: err}
	}
	sort.Strings(files)
	return files, nil
}

// hashWorktreeFiles reads and hashes paths in parallel. With store set, each
// file's content is also written to the object store. Paths that vanished
// are omitted from the result.
func (r *Repo) hashWorktreeFiles(paths []string, store bool) (map[string]worktreeFile, error) {
	p := pool.NewWithResults[worktreeFile]().
		WithErrors().
		WithMaxGoroutines(runtime.GOMAXPROCS(0))

	for _, rel := range paths {
		p.Go(func() (worktreeFile, error) {
			abs := r.absPath(rel)
			info, err := r.fs.Stat(abs)
			if err != nil {
				if errors.Is(err, fs.ErrNotExist) {
					return worktreeFile{}, nil
				}
				return worktreeFile{}, &object.StorageError{Op: "stat", Path: rel, Err: err}
			}
			if !info.Mode().IsRegular() {
				return worktreeFile{}, nil
			}
			data, err := afero.ReadFile(r.fs, abs)
			if err != nil {
				return worktreeFile{}, &object.StorageError{Op: "read", Path: rel, Err: err}
			}
			h := object.HashObject(object.TypeBlob, data)
			if store {
				if h, err = r.Store.Put(data); err != nil {
					return worktreeFile{}, fmt.Errorf("store %q: %w", rel, err)
				}
			}
			return worktreeFile{Path: rel, Hash: h, Mode: treeMode(info)}, nil
		})
	}

	results, err := p.Wait()
	if err != nil {
		return nil, err
	}
	out := make(map[string]worktreeFile, len(results))
	for _, wf := range results {
		if wf.Path != "" {
			out[wf.Path] = wf
		}
	}
	return out, nil
}

// removeEmptyParents removes empty directories up to (but not including)
// the repository root.
func (r *Repo) removeEmptyParents(dir string) {
	for {
		if dir == r.RootDir || !strings.HasPrefix(dir, r.RootDir+string(filepath.Separator)) {
			return
		}

		entries, err := afero.ReadDir(r.fs, dir)
		if err != nil || len(entries) > 0 {
			return
		}

		_ = r.fs.Remove(dir)
		dir = filepath.Dir(dir)
	}
}
