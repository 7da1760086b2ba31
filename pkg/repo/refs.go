package repo

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"github.com/spf13/afero"

	"github.com/odvcencio/rewind/pkg/object"
)

const (
	symbolicRefPrefix = "ref: "
	branchRefPrefix   = "refs/heads/"
	headRef           = "HEAD"
)

// minPrefixLen is the shortest digest prefix ResolveRevision accepts.
const minPrefixLen = 4

// headState is the decoded content of HEAD. Branch is empty when HEAD is
// detached; Hash is empty when the attached branch has no commits yet.
type headState struct {
	Branch string
	Hash   object.Hash
}

func (h headState) detached() bool { return h.Branch == "" }

func (r *Repo) refPath(name string) string {
	return filepath.Join(r.Dir, filepath.FromSlash(name))
}

// validateRefName accepts HEAD and names under refs/ whose remainder is a
// valid branch name, so no ref can escape the refs directory.
func validateRefName(name string) error {
	if name == headRef {
		return nil
	}
	rest, ok := strings.CutPrefix(name, "refs/")
	if !ok {
		return fmt.Errorf("%w %q: not under refs/", ErrInvalidBranchName, name)
	}
	return validateBranchName(rest)
}

// Head reads .rewind/HEAD. If the content starts with "ref: ", it returns the
// ref path (e.g., "refs/heads/main"). Otherwise it returns the raw content
// as a detached hash string.
func (r *Repo) Head() (string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.rawHead()
}

func (r *Repo) rawHead() (string, error) {
	path := r.refPath(headRef)
	data, err := afero.ReadFile(r.fs, path)
	if err != nil {
		return "", &object.StorageError{Op: "read", Path: path, Err: err}
	}
	content := strings.TrimSpace(string(data))
	return strings.TrimPrefix(content, symbolicRefPrefix), nil
}

func (r *Repo) readHead() (headState, error) {
	head, err := r.rawHead()
	if err != nil {
		return headState{}, fmt.Errorf("head: %w", err)
	}
	if !strings.HasPrefix(head, "refs/") {
		return headState{Hash: object.Hash(head)}, nil
	}
	if !strings.HasPrefix(head, branchRefPrefix) {
		return headState{}, fmt.Errorf("head: unsupported symbolic ref %q", head)
	}
	h, err := readRefHash(r.fs, r.refPath(head))
	if err != nil {
		return headState{}, fmt.Errorf("head: %w", err)
	}
	return headState{Branch: strings.TrimPrefix(head, branchRefPrefix), Hash: h}, nil
}

// ResolveRef resolves a ref name to an object hash.
//
// Resolution order:
//  1. If name is "HEAD", read HEAD. If HEAD is symbolic, resolve the target ref.
//  2. If name starts with "refs/", read .rewind/<name>.
//  3. Otherwise, try "refs/heads/<name>".
//
// An unborn HEAD yields ErrNoCommits; a missing ref yields ErrUnknownBranch.
func (r *Repo) ResolveRef(name string) (object.Hash, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.resolveRef(name)
}

func (r *Repo) resolveRef(name string) (object.Hash, error) {
	if name == headRef {
		hs, err := r.readHead()
		if err != nil {
			return "", err
		}
		if hs.Hash == "" {
			return "", fmt.Errorf("resolve ref %q: %w", name, ErrNoCommits)
		}
		return hs.Hash, nil
	}

	refName := name
	if !strings.HasPrefix(name, "refs/") {
		refName = branchRefPrefix + name
	}
	h, err := readRefHash(r.fs, r.refPath(refName))
	if err != nil {
		return "", fmt.Errorf("resolve ref %q: %w", name, err)
	}
	if h == "" {
		return "", fmt.Errorf("resolve ref %q: %w", name, ErrUnknownBranch)
	}
	return h, nil
}

// UpdateRefCAS writes a hash to the named ref file under .rewind/ using
// lockfile + rename atomic semantics. If expectedOld is provided, the
// update only succeeds when the current ref hash matches it; an empty
// expected hash means the ref must not exist yet.
//
// Reflog append happens after the ref rename; if reflog append fails, the ref
// update remains committed and a RefUpdateReflogError is returned.
func (r *Repo) UpdateRefCAS(name string, h object.Hash, expectedOld ...object.Hash) error {
	if err := validateRefName(name); err != nil {
		return fmt.Errorf("update ref: %w", err)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.updateRef(name, h, "update", expectedOld...)
}

func (r *Repo) updateRef(name string, h object.Hash, reason string, expectedOld ...object.Hash) error {
	if len(expectedOld) > 1 {
		return fmt.Errorf("update ref %q: expected at most one old hash", name)
	}
	if !h.Valid() {
		return fmt.Errorf("update ref %q: invalid hash %q", name, h)
	}

	var oldHash object.Hash
	_, err := r.replaceRefFile(name, func(old string) (string, error) {
		oldHash = object.Hash(old)
		if len(expectedOld) == 1 && oldHash != expectedOld[0] {
			return "", fmt.Errorf("%w (expected %s, found %s)", ErrRefCASMismatch, orNone(expectedOld[0]), orNone(oldHash))
		}
		return string(h), nil
	})
	if err != nil {
		return fmt.Errorf("update ref %q: %w", name, err)
	}

	r.logger.Debug("ref updated", "ref", name, "old", oldHash, "new", h, "reason", reason)
	if err := r.appendReflog(name, oldHash, h, reason); err != nil {
		return &RefUpdateReflogError{Ref: name, OldHash: oldHash, NewHash: h, Err: err}
	}
	return nil
}

// replaceRefFile holds the ref lock while next computes the new content from
// the old one. The new content is written to the lockfile, synced, and
// renamed over the ref.
func (r *Repo) replaceRefFile(name string, next func(old string) (string, error)) (string, error) {
	refPath := r.refPath(name)
	dir := filepath.Dir(refPath)
	if err := r.fs.MkdirAll(dir, 0o755); err != nil {
		return "", &object.StorageError{Op: "mkdir", Path: dir, Err: err}
	}

	lockPath := refPath + ".lock"
	lockFile, err := acquireRefLock(r.fs, lockPath)
	if err != nil {
		return "", fmt.Errorf("lock: %w", err)
	}
	cleanupLock := true
	defer func() {
		if lockFile != nil {
			_ = lockFile.Close()
		}
		if cleanupLock {
			_ = r.fs.Remove(lockPath)
		}
	}()

	old, err := readRefContent(r.fs, refPath)
	if err != nil {
		return "", err
	}
	content, err := next(old)
	if err != nil {
		return "", err
	}

	if _, err := lockFile.WriteString(content + "\n"); err != nil {
		return "", &object.StorageError{Op: "write", Path: lockPath, Err: err}
	}
	if err := lockFile.Sync(); err != nil {
		return "", &object.StorageError{Op: "sync", Path: lockPath, Err: err}
	}
	if err := lockFile.Close(); err != nil {
		lockFile = nil
		return "", &object.StorageError{Op: "close", Path: lockPath, Err: err}
	}
	lockFile = nil

	if err := r.fs.Rename(lockPath, refPath); err != nil {
		return "", &object.StorageError{Op: "rename", Path: refPath, Err: err}
	}
	cleanupLock = false
	return old, nil
}

// deleteRef removes a ref file under its lock. expected guards against a
// concurrent move.
func (r *Repo) deleteRef(name string, expected object.Hash) error {
	refPath := r.refPath(name)
	lockPath := refPath + ".lock"
	lockFile, err := acquireRefLock(r.fs, lockPath)
	if err != nil {
		return fmt.Errorf("delete ref %q: lock: %w", name, err)
	}
	defer func() {
		_ = lockFile.Close()
		_ = r.fs.Remove(lockPath)
	}()

	old, err := readRefContent(r.fs, refPath)
	if err != nil {
		return fmt.Errorf("delete ref %q: %w", name, err)
	}
	if object.Hash(old) != expected {
		return fmt.Errorf("delete ref %q: %w (expected %s, found %s)", name, ErrRefCASMismatch, orNone(expected), orNone(object.Hash(old)))
	}
	if err := r.fs.Remove(refPath); err != nil {
		return &object.StorageError{Op: "remove", Path: refPath, Err: err}
	}
	// The log goes with the ref, so a later ref may reuse the name as a
	// directory (feat/x deleted, feat created).
	logPath := r.reflogPath(name)
	if err := r.fs.Remove(logPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return &object.StorageError{Op: "remove", Path: logPath, Err: err}
	}
	r.pruneEmptyDirs(filepath.Dir(refPath), r.refPath(branchRefPrefix))
	r.pruneEmptyDirs(filepath.Dir(logPath), r.reflogPath(branchRefPrefix))
	r.logger.Debug("ref deleted", "ref", name, "old", expected)
	return nil
}

// pruneEmptyDirs removes dir and its empty parents up to, but not including,
// stop.
func (r *Repo) pruneEmptyDirs(dir, stop string) {
	for dir != stop && strings.HasPrefix(dir, stop+string(filepath.Separator)) {
		entries, err := afero.ReadDir(r.fs, dir)
		if err != nil || len(entries) > 0 {
			return
		}
		if err := r.fs.Remove(dir); err != nil {
			return
		}
		dir = filepath.Dir(dir)
	}
}

// setHead points HEAD at a branch (attached) or a commit (detached) and
// records the move in the HEAD reflog.
func (r *Repo) setHead(branch string, detached object.Hash, reason string) error {
	before, err := r.readHead()
	if err != nil {
		return err
	}

	content := string(detached)
	after := detached
	if branch != "" {
		content = symbolicRefPrefix + branchRefPrefix + branch
		after, err = readRefHash(r.fs, r.refPath(branchRefPrefix+branch))
		if err != nil {
			return fmt.Errorf("set HEAD: %w", err)
		}
	}
	if _, err := r.replaceRefFile(headRef, func(string) (string, error) { return content, nil }); err != nil {
		return fmt.Errorf("set HEAD: %w", err)
	}

	r.logger.Debug("HEAD moved", "branch", branch, "old", before.Hash, "new", after, "reason", reason)
	if err := r.appendReflog(headRef, before.Hash, after, reason); err != nil {
		return &RefUpdateReflogError{Ref: headRef, OldHash: before.Hash, NewHash: after, Err: err}
	}
	return nil
}

// ListRefs lists references under .rewind/refs.
// Names are returned relative to refs root, e.g. "heads/main".
func (r *Repo) ListRefs(prefix string) (map[string]object.Hash, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	root := filepath.Join(r.Dir, "refs")
	dir := root
	if strings.TrimSpace(prefix) != "" {
		dir = filepath.Join(root, filepath.FromSlash(prefix))
	}

	refs := make(map[string]object.Hash)
	if _, err := r.fs.Stat(dir); errors.Is(err, fs.ErrNotExist) {
		return refs, nil
	}
	err := afero.Walk(r.fs, dir, func(path string, info os.FileInfo, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if info.IsDir() || strings.HasSuffix(path, ".lock") {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		h, err := readRefHash(r.fs, path)
		if err != nil {
			return err
		}
		refs[filepath.ToSlash(rel)] = h
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list refs: %w", err)
	}
	return refs, nil
}

// ResolveRevision turns a user-supplied revision into a commit hash. It
// accepts "HEAD", a branch name, a full digest, or a unique digest prefix of
// at least four characters, each optionally followed by "~N" to walk N
// first parents back.
func (r *Repo) ResolveRevision(rev string) (object.Hash, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.resolveRevision(rev)
}

func (r *Repo) resolveRevision(rev string) (object.Hash, error) {
	rev = strings.TrimSpace(rev)
	if rev == "" {
		return "", fmt.Errorf("resolve revision: empty revision: %w", ErrUnknownCommit)
	}

	base, steps := rev, 0
	if i := strings.LastIndexByte(rev, '~'); i >= 0 {
		n := 1
		if i+1 < len(rev) {
			var err error
			n, err = strconv.Atoi(rev[i+1:])
			if err != nil || n < 0 {
				return "", fmt.Errorf("resolve revision %q: bad ancestor count: %w", rev, ErrUnknownCommit)
			}
		}
		base, steps = rev[:i], n
	}

	h, err := r.resolveRevisionBase(base)
	if err != nil {
		return "", fmt.Errorf("resolve revision %q: %w", rev, err)
	}
	for i := 0; i < steps; i++ {
		c, err := r.Store.ReadCommit(h)
		if err != nil {
			return "", fmt.Errorf("resolve revision %q: %w", rev, err)
		}
		if len(c.Parents) == 0 {
			return "", fmt.Errorf("resolve revision %q: %s has no parent: %w", rev, h.Short(), ErrUnknownCommit)
		}
		h = c.Parents[0]
	}
	return h, nil
}

func (r *Repo) resolveRevisionBase(base string) (object.Hash, error) {
	if base == headRef {
		return r.resolveRef(headRef)
	}
	if validateBranchName(base) == nil {
		h, err := r.resolveRef(base)
		if err == nil {
			return h, nil
		}
		if !errors.Is(err, ErrUnknownBranch) {
			return "", err
		}
	}

	if full := object.Hash(strings.ToLower(base)); full.Valid() {
		if err := r.requireCommit(full); err != nil {
			return "", err
		}
		return full, nil
	}

	if len(base) < minPrefixLen || !isHex(base) {
		return "", ErrUnknownCommit
	}
	candidates, err := r.Store.FindByPrefix(base)
	if err != nil {
		return "", err
	}
	var commits []object.Hash
	for _, c := range candidates {
		typ, _, err := r.Store.Read(c)
		if err != nil {
			return "", err
		}
		if typ == object.TypeCommit {
			commits = append(commits, c)
		}
	}
	switch len(commits) {
	case 0:
		return "", ErrUnknownCommit
	case 1:
		return commits[0], nil
	default:
		return "", fmt.Errorf("%w: prefix %q matches %d commits", ErrAmbiguousRevision, base, len(commits))
	}
}

// readRefContent returns "" for a missing ref. A directory where the ref
// would be, or a file where one of its parents would be, also means the ref
// does not exist.
func readRefContent(fsys afero.Fs, refPath string) (string, error) {
	if info, err := fsys.Stat(refPath); err == nil && info.IsDir() {
		return "", nil
	}
	data, err := afero.ReadFile(fsys, refPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) || errors.Is(err, syscall.ENOTDIR) || errors.Is(err, syscall.EISDIR) {
			return "", nil
		}
		return "", &object.StorageError{Op: "read", Path: refPath, Err: err}
	}
	return strings.TrimSpace(string(data)), nil
}

func readRefHash(fsys afero.Fs, refPath string) (object.Hash, error) {
	content, err := readRefContent(fsys, refPath)
	return object.Hash(content), err
}

func isHex(s string) bool {
	for i := 0; i < len(s); i++ {
		c := s[i]
		if !('0' <= c && c <= '9' || 'a' <= c && c <= 'f' || 'A' <= c && c <= 'F') {
			return false
		}
	}
	return true
}

func orNone(h object.Hash) string {
	if h == "" {
		return "<none>"
	}
	return string(h)
}
