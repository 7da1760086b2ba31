package repo

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/afero"

	"github.com/odvcencio/rewind/pkg/diff"
	"github.com/odvcencio/rewind/pkg/object"
)

// StagingEntry records one pending change. BlobHash and Mode are empty for
// Deleted entries.
type StagingEntry struct {
	Path     string      `json:"path"`
	BlobHash object.Hash `json:"blob_hash,omitempty"`
	Mode     string      `json:"mode,omitempty"`
	State    diff.Kind   `json:"state"`
}

// Staging holds the pending changes keyed by slash path.
type Staging struct {
	Entries map[string]*StagingEntry `json:"entries"`
}

func newStaging() *Staging {
	return &Staging{Entries: make(map[string]*StagingEntry)}
}

// Paths returns the staged paths, sorted.
func (s *Staging) Paths() []string {
	paths := make([]string, 0, len(s.Entries))
	for p := range s.Entries {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// indexPath returns the filesystem path to the staging index file.
func (r *Repo) indexPath() string {
	return filepath.Join(r.Dir, "index")
}

// ReadStaging loads the staging area from .rewind/index. If the file does not
// exist, an empty Staging is returned (no error).
func (r *Repo) ReadStaging() (*Staging, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.readStaging()
}

func (r *Repo) readStaging() (*Staging, error) {
	data, err := afero.ReadFile(r.fs, r.indexPath())
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return newStaging(), nil
		}
		return nil, fmt.Errorf("read staging: %w", &object.StorageError{Op: "read", Path: r.indexPath(), Err: err})
	}

	var stg Staging
	if err := json.Unmarshal(data, &stg); err != nil {
		return nil, fmt.Errorf("read staging: unmarshal: %w", err)
	}
	if stg.Entries == nil {
		stg.Entries = make(map[string]*StagingEntry)
	}
	return &stg, nil
}

// writeStaging atomically replaces .rewind/index.
func (r *Repo) writeStaging(s *Staging) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("write staging: marshal: %w", err)
	}
	if err := writeFileAtomic(r.fs, r.indexPath(), data, 0o644); err != nil {
		return fmt.Errorf("write staging: %w", err)
	}
	return nil
}

func (r *Repo) clearStaging() error {
	return r.writeStaging(newStaging())
}

// Stage records contents as the new version of path. The entry is Modified
// when HEAD tracks the path and Added otherwise; staging the same path again
// overwrites the earlier entry. The file mode follows HEAD's, defaulting to
// a regular file.
func (r *Repo) Stage(p string, contents []byte) error {
	rel := cleanSlashPath(p)
	if err := validateRepoPath(rel); err != nil {
		return fmt.Errorf("stage: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	head, err := r.headFiles()
	if err != nil {
		return fmt.Errorf("stage: %w", err)
	}
	stg, err := r.readStaging()
	if err != nil {
		return fmt.Errorf("stage: %w", err)
	}

	mode := object.TreeModeFile
	state := diff.Added
	if he, ok := head[rel]; ok {
		mode = normalizeFileMode(he.Mode)
		state = diff.Modified
	}
	entry := &StagingEntry{Path: rel, Mode: mode, State: state}
	entry.BlobHash = object.HashObject(object.TypeBlob, contents)
	stg.Entries[rel] = entry
	if err := checkPathConflicts(head, stg); err != nil {
		return fmt.Errorf("stage: %w", err)
	}

	if _, err := r.Store.Put(contents); err != nil {
		return fmt.Errorf("stage %q: %w", rel, err)
	}
	if err := r.writeStaging(stg); err != nil {
		return fmt.Errorf("stage: %w", err)
	}
	r.logger.Debug("staged", "op", "stage", "path", rel, "state", state, "blob", entry.BlobHash)
	return nil
}

// Add stages files from the working tree. Directories are walked
// recursively, skipping ignored paths. A file identical to HEAD's version
// drops any staged entry for it; a tracked file missing on disk is staged as
// Deleted.
func (r *Repo) Add(paths []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	head, err := r.headFiles()
	if err != nil {
		return fmt.Errorf("add: %w", err)
	}
	stg, err := r.readStaging()
	if err != nil {
		return fmt.Errorf("add: %w", err)
	}
	ic := NewIgnoreChecker(r.fs, r.RootDir)

	var present []string
	deleted := make(map[string]bool)
	for _, p := range paths {
		rel, err := r.repoRelPath(p)
		if err != nil {
			return fmt.Errorf("add: resolve path %q: %w", p, err)
		}
		if rel != "." {
			if err := validateRepoPath(rel); err != nil {
				return fmt.Errorf("add: %w", err)
			}
		}

		info, err := r.fs.Stat(r.absPath(rel))
		switch {
		case errors.Is(err, fs.ErrNotExist):
			matched := false
			for _, tp := range pathsUnder(head, rel) {
				deleted[tp] = true
				matched = true
			}
			for sp, se := range stg.Entries {
				if se.State == diff.Added && underPath(sp, rel) {
					delete(stg.Entries, sp)
					matched = true
				}
			}
			if !matched {
				return fmt.Errorf("add %q: %w", rel, fs.ErrNotExist)
			}
		case err != nil:
			return fmt.Errorf("add: %w", &object.StorageError{Op: "stat", Path: rel, Err: err})
		case info.IsDir():
			files, err := r.walkWorktree(ic, rel)
			if err != nil {
				return fmt.Errorf("add: %w", err)
			}
			present = append(present, files...)
			onDisk := make(map[string]bool, len(files))
			for _, f := range files {
				onDisk[f] = true
			}
			for _, tp := range pathsUnder(head, rel) {
				if !onDisk[tp] && !ic.IsIgnored(tp) {
					deleted[tp] = true
				}
			}
		default:
			present = append(present, rel)
		}
	}

	hashed, err := r.hashWorktreeFiles(present, true)
	if err != nil {
		return fmt.Errorf("add: %w", err)
	}
	for _, wf := range hashed {
		he, tracked := head[wf.Path]
		switch {
		case tracked && wf.matches(he):
			delete(stg.Entries, wf.Path)
		case tracked:
			stg.Entries[wf.Path] = &StagingEntry{Path: wf.Path, BlobHash: wf.Hash, Mode: wf.Mode, State: diff.Modified}
		default:
			stg.Entries[wf.Path] = &StagingEntry{Path: wf.Path, BlobHash: wf.Hash, Mode: wf.Mode, State: diff.Added}
		}
	}
	for p := range deleted {
		stg.Entries[p] = &StagingEntry{Path: p, State: diff.Deleted}
	}
	if err := checkPathConflicts(head, stg); err != nil {
		return fmt.Errorf("add: %w", err)
	}

	if err := r.writeStaging(stg); err != nil {
		return fmt.Errorf("add: %w", err)
	}
	r.logger.Debug("added", "op", "add", "files", len(hashed), "deleted", len(deleted))
	return nil
}

// Remove deletes tracked paths from the working tree and stages their
// deletion. A path that is only staged as Added is dropped from staging and
// removed from disk. Directories remove every tracked file beneath them.
func (r *Repo) Remove(paths []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	head, err := r.headFiles()
	if err != nil {
		return fmt.Errorf("remove: %w", err)
	}
	stg, err := r.readStaging()
	if err != nil {
		return fmt.Errorf("remove: %w", err)
	}

	targets := make(map[string]bool)
	for _, p := range paths {
		rel, err := r.repoRelPath(p)
		if err != nil {
			return fmt.Errorf("remove: resolve path %q: %w", p, err)
		}
		if err := validateRepoPath(rel); err != nil {
			return fmt.Errorf("remove: %w", err)
		}
		matched := false
		for _, tp := range pathsUnder(head, rel) {
			targets[tp] = true
			matched = true
		}
		for sp, se := range stg.Entries {
			if se.State == diff.Added && underPath(sp, rel) {
				targets[sp] = true
				matched = true
			}
		}
		if !matched {
			return fmt.Errorf("remove %q: not tracked: %w", rel, ErrInvalidPath)
		}
	}

	for p := range targets {
		abs := r.absPath(p)
		if err := r.fs.Remove(abs); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("remove: %w", &object.StorageError{Op: "remove", Path: p, Err: err})
		}
		r.removeEmptyParents(filepath.Dir(abs))
		if _, tracked := head[p]; tracked {
			stg.Entries[p] = &StagingEntry{Path: p, State: diff.Deleted}
		} else {
			delete(stg.Entries, p)
		}
	}

	if err := r.writeStaging(stg); err != nil {
		return fmt.Errorf("remove: %w", err)
	}
	r.logger.Debug("removed", "op", "remove", "paths", len(targets))
	return nil
}

// Unstage drops the staged entries for paths (and everything staged beneath
// a directory path). Paths without an entry are ignored; an empty path or
// "." is rejected with ErrInvalidPath. Only a call with no arguments clears
// the whole staging area.
func (r *Repo) Unstage(paths ...string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(paths) == 0 {
		if err := r.clearStaging(); err != nil {
			return fmt.Errorf("unstage: %w", err)
		}
		return nil
	}

	rels := make([]string, 0, len(paths))
	for _, p := range paths {
		rel := cleanSlashPath(p)
		if err := validateRepoPath(rel); err != nil {
			return fmt.Errorf("unstage: %w", err)
		}
		rels = append(rels, rel)
	}

	stg, err := r.readStaging()
	if err != nil {
		return fmt.Errorf("unstage: %w", err)
	}
	removed := 0
	for _, rel := range rels {
		for sp := range stg.Entries {
			if underPath(sp, rel) {
				delete(stg.Entries, sp)
				removed++
			}
		}
	}
	if removed == 0 {
		return nil
	}
	if err := r.writeStaging(stg); err != nil {
		return fmt.Errorf("unstage: %w", err)
	}
	r.logger.Debug("unstaged", "op", "unstage", "paths", removed)
	return nil
}

// checkPathConflicts rejects a staging overlay in which some path is both a
// file and a directory.
func checkPathConflicts(head map[string]TreeFileEntry, s *Staging) error {
	root := newTreeNode()
	for _, f := range overlayStaging(head, s) {
		if err := root.insert(f); err != nil {
			return err
		}
	}
	return nil
}

// pathsUnder returns the tracked paths equal to rel or beneath it.
func pathsUnder(files map[string]TreeFileEntry, rel string) []string {
	var out []string
	for p := range files {
		if underPath(p, rel) {
			out = append(out, p)
		}
	}
	return out
}

func underPath(p, dir string) bool {
	return dir == "." || p == dir || strings.HasPrefix(p, dir+"/")
}

// cleanSlashPath normalizes separators and dot segments. Surrounding spaces
// are part of the name.
func cleanSlashPath(p string) string {
	return path.Clean(filepath.ToSlash(p))
}

func (r *Repo) absPath(rel string) string {
	return filepath.Join(r.RootDir, filepath.FromSlash(rel))
}

// repoRelPath converts a path (absolute, or relative to CWD) into a path
// relative to the repository root. If the path is already relative and does
// not start with the repo root, it is assumed to already be repo-relative.
func (r *Repo) repoRelPath(p string) (string, error) {
	if filepath.IsAbs(p) {
		rel, err := filepath.Rel(r.RootDir, p)
		if err != nil {
			return "", fmt.Errorf("cannot make %q relative to %q: %w", p, r.RootDir, err)
		}
		if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			return "", fmt.Errorf("%w: %q is outside the repository", ErrInvalidPath, p)
		}
		return filepath.ToSlash(rel), nil
	}

	// Try to resolve via CWD.
	cwd, err := os.Getwd()
	if err != nil {
		return cleanSlashPath(p), nil
	}

	abs := filepath.Join(cwd, p)
	rel, err := filepath.Rel(r.RootDir, abs)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		// Not under the repo root from here; treat p as repo-relative.
		return cleanSlashPath(p), nil
	}
	return filepath.ToSlash(rel), nil
}
