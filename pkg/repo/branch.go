package repo

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"unicode"

	"github.com/spf13/afero"

	"github.com/odvcencio/rewind/pkg/object"
)

// Branch is a named, movable pointer to a commit.
type Branch struct {
	Name string
	Head object.Hash
}

// AdvanceResult describes a branch move made by AdvanceBranch.
type AdvanceResult struct {
	Branch      string
	Old         object.Hash
	New         object.Hash
	FastForward bool // Old is an ancestor of New
	Forced      bool // the move discarded commits reachable only from Old
}

// validateBranchName rejects names that cannot be stored as a ref file or
// would be confused with revision syntax.
func validateBranchName(name string) error {
	bad := func(why string) error {
		return fmt.Errorf("%w %q: %s", ErrInvalidBranchName, name, why)
	}
	switch {
	case name == "":
		return bad("empty")
	case name == headRef:
		return bad("reserved")
	case strings.HasPrefix(name, "-"):
		return bad("starts with '-'")
	case strings.HasPrefix(name, "/") || strings.HasSuffix(name, "/"):
		return bad("leading or trailing '/'")
	case strings.HasSuffix(name, ".lock") || strings.HasSuffix(name, "."):
		return bad("bad suffix")
	case strings.Contains(name, "..") || strings.Contains(name, "//") || strings.Contains(name, "@{"):
		return bad("bad sequence")
	case strings.ContainsAny(name, "~^:?*[\\"):
		return bad("contains a special character")
	}
	for _, seg := range strings.Split(name, "/") {
		if strings.HasPrefix(seg, ".") {
			return bad("component starts with '.'")
		}
	}
	for _, r := range name {
		if unicode.IsSpace(r) || unicode.IsControl(r) {
			return bad("contains whitespace or control characters")
		}
	}
	return nil
}

// CreateBranch creates a new branch pointing at commit at.
func (r *Repo) CreateBranch(name string, at object.Hash) error {
	if err := validateBranchName(name); err != nil {
		return fmt.Errorf("create branch: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	refName := branchRefPrefix + name
	existing, err := readRefHash(r.fs, r.refPath(refName))
	if err != nil {
		return fmt.Errorf("create branch %q: %w", name, err)
	}
	if existing != "" {
		return fmt.Errorf("create branch %q: %w", name, ErrDuplicateBranch)
	}
	if err := r.checkBranchNesting(name); err != nil {
		return fmt.Errorf("create branch %q: %w", name, err)
	}
	if err := r.requireCommit(at); err != nil {
		return fmt.Errorf("create branch %q: %w", name, err)
	}

	if err := r.updateRef(refName, at, "branch: created from "+at.Short(), ""); err != nil {
		if errors.Is(err, ErrRefCASMismatch) {
			return fmt.Errorf("create branch %q: %w", name, ErrDuplicateBranch)
		}
		return fmt.Errorf("create branch %q: %w", name, err)
	}
	r.logger.Info("branch created", "op", "branch", "branch", name, "commit", at)
	return nil
}

// checkBranchNesting rejects a name that would need an existing branch to be
// a directory ("feat/x" when "feat" exists) or that is a directory of
// existing branches ("feat" when "feat/x" exists).
func (r *Repo) checkBranchNesting(name string) error {
	parts := strings.Split(name, "/")
	for i := 1; i < len(parts); i++ {
		parent := strings.Join(parts[:i], "/")
		h, err := readRefHash(r.fs, r.refPath(branchRefPrefix+parent))
		if err != nil {
			return err
		}
		if h != "" {
			return fmt.Errorf("%w: conflicts with branch %q", ErrDuplicateBranch, parent)
		}
	}

	dir := r.refPath(branchRefPrefix + name)
	info, err := r.fs.Stat(dir)
	if err != nil || !info.IsDir() {
		return nil
	}
	var nested string
	walkErr := afero.Walk(r.fs, dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() || strings.HasSuffix(path, ".lock") {
			return nil
		}
		rel, err := filepath.Rel(r.refPath(branchRefPrefix), path)
		if err != nil {
			return err
		}
		nested = filepath.ToSlash(rel)
		return filepath.SkipAll
	})
	if walkErr != nil && !errors.Is(walkErr, filepath.SkipAll) {
		return &object.StorageError{Op: "walk", Path: dir, Err: walkErr}
	}
	if nested != "" {
		return fmt.Errorf("%w: conflicts with branch %q", ErrDuplicateBranch, nested)
	}
	return nil
}

// DeleteBranch removes the branch ref and its reflog. The current branch
// cannot be deleted.
func (r *Repo) DeleteBranch(name string) error {
	if validateBranchName(name) != nil {
		return fmt.Errorf("delete branch %q: %w", name, ErrUnknownBranch)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	hs, err := r.readHead()
	if err != nil {
		return fmt.Errorf("delete branch: %w", err)
	}
	if hs.Branch == name {
		return fmt.Errorf("delete branch %q: %w", name, ErrCannotDeleteCurrent)
	}

	refName := branchRefPrefix + name
	h, err := readRefHash(r.fs, r.refPath(refName))
	if err != nil {
		return fmt.Errorf("delete branch %q: %w", name, err)
	}
	if h == "" {
		return fmt.Errorf("delete branch %q: %w", name, ErrUnknownBranch)
	}
	if err := r.deleteRef(refName, h); err != nil {
		return fmt.Errorf("delete branch %q: %w", name, err)
	}
	r.logger.Info("branch deleted", "op", "branch", "branch", name, "commit", h)
	return nil
}

// branchHead returns the commit branch name points at, or ErrUnknownBranch.
func (r *Repo) branchHead(name string) (object.Hash, error) {
	if validateBranchName(name) != nil {
		return "", fmt.Errorf("branch %q: %w", name, ErrUnknownBranch)
	}
	return r.resolveRef(branchRefPrefix + name)
}

// ListBranches returns every branch sorted by name.
func (r *Repo) ListBranches() ([]Branch, error) {
	refs, err := r.ListRefs("heads")
	if err != nil {
		return nil, fmt.Errorf("list branches: %w", err)
	}
	branches := make([]Branch, 0, len(refs))
	for name, h := range refs {
		branches = append(branches, Branch{Name: strings.TrimPrefix(name, "heads/"), Head: h})
	}
	sort.Slice(branches, func(i, j int) bool { return branches[i].Name < branches[j].Name })
	return branches, nil
}

// CurrentBranch reads HEAD and returns the branch name if HEAD is a symbolic
// ref (e.g. "ref: refs/heads/main" → "main"). If HEAD is detached, it
// returns "".
func (r *Repo) CurrentBranch() (string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	hs, err := r.readHead()
	if err != nil {
		return "", fmt.Errorf("current branch: %w", err)
	}
	return hs.Branch, nil
}

// Switch checks out the head of branch name and attaches HEAD to it.
func (r *Repo) Switch(name string, mode CheckoutMode) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	target, err := r.branchHead(name)
	if err != nil {
		return fmt.Errorf("switch: %w", err)
	}
	before, err := r.readHead()
	if err != nil {
		return fmt.Errorf("switch: %w", err)
	}
	if err := r.materialize(before, target, mode); err != nil {
		return fmt.Errorf("switch to %q: %w", name, err)
	}
	from := before.Branch
	if from == "" {
		from = before.Hash.Short()
	}
	if err := r.setHead(name, "", fmt.Sprintf("switch: moving from %s to %s", from, name)); err != nil {
		return fmt.Errorf("switch: %w", err)
	}
	r.logger.Info("switched branch", "op", "switch", "branch", name, "commit", target)
	return nil
}

// AdvanceBranch moves branch name to newHead. The move must be a
// fast-forward (the current head is an ancestor of newHead) unless force is
// set. The working tree is not touched.
func (r *Repo) AdvanceBranch(name string, newHead object.Hash, force bool) (AdvanceResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.advanceBranch(name, newHead, force, "advance")
}

func (r *Repo) advanceBranch(name string, newHead object.Hash, force bool, reason string) (AdvanceResult, error) {
	res := AdvanceResult{Branch: name, New: newHead}

	old, err := r.branchHead(name)
	if err != nil {
		return res, fmt.Errorf("advance branch: %w", err)
	}
	res.Old = old
	if err := r.requireCommit(newHead); err != nil {
		return res, fmt.Errorf("advance branch %q: %w", name, err)
	}
	if old == newHead {
		res.FastForward = true
		return res, nil
	}

	ff, err := r.IsAncestor(old, newHead)
	if err != nil {
		return res, fmt.Errorf("advance branch %q: %w", name, err)
	}
	if !ff && !force {
		return res, fmt.Errorf("advance branch %q: %s is not an ancestor of %s: %w", name, old.Short(), newHead.Short(), ErrNotFastForward)
	}
	res.FastForward = ff
	res.Forced = !ff

	kind := "fast-forward"
	if res.Forced {
		kind = "forced"
	}
	msg := fmt.Sprintf("%s: %s %s..%s", reason, kind, old.Short(), newHead.Short())
	if err := r.updateRef(branchRefPrefix+name, newHead, msg, old); err != nil {
		return res, fmt.Errorf("advance branch %q: %w", name, err)
	}

	hs, err := r.readHead()
	if err == nil && hs.Branch == name {
		if err := r.appendReflog(headRef, old, newHead, msg); err != nil {
			return res, &RefUpdateReflogError{Ref: headRef, OldHash: old, NewHash: newHead, Err: err}
		}
	}
	r.logger.Info("branch moved", "op", reason, "branch", name, "old", old, "new", newHead, "forced", res.Forced)
	return res, nil
}
