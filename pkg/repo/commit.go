package repo

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/odvcencio/rewind/pkg/object"
)

// CommitSigner signs canonical commit payload bytes and returns an encoded
// signature string to be persisted in CommitObj.Signature.
type CommitSigner func(payload []byte) (string, error)

// CommitVerifier checks a signature produced by a CommitSigner.
type CommitVerifier func(payload []byte, signature string) error

// CommitOptions tunes CreateCommit and CommitStaged.
type CommitOptions struct {
	// AllowEmpty permits a single-parent commit whose tree equals the
	// parent's tree. Merge commits set it since they may not change the tree.
	AllowEmpty bool
	// Signer, when set, signs the commit payload.
	Signer CommitSigner
	// Timestamp overrides the commit time (unix seconds). Zero means now.
	Timestamp int64
}

// CommitEntry pairs a commit with its id.
type CommitEntry struct {
	Hash   object.Hash
	Commit *object.CommitObj
}

// CreateCommit writes a commit object for tree with the given parents. Every
// parent must already be stored, so the graph stays acyclic. A single-parent
// commit whose tree equals the parent's is rejected with ErrEmptyCommit
// unless opts.AllowEmpty is set.
func (r *Repo) CreateCommit(tree object.Hash, parents []object.Hash, author, message string, opts CommitOptions) (*CommitEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.createCommit(tree, parents, author, message, opts)
}

func (r *Repo) createCommit(tree object.Hash, parents []object.Hash, author, message string, opts CommitOptions) (*CommitEntry, error) {
	if _, err := r.Store.ReadTree(tree); err != nil {
		return nil, fmt.Errorf("create commit: tree %s: %w", tree.Short(), err)
	}

	seen := make(map[object.Hash]bool, len(parents))
	var parentTrees []object.Hash
	for _, p := range parents {
		if seen[p] {
			return nil, fmt.Errorf("create commit: duplicate parent %s", p.Short())
		}
		seen[p] = true
		pc, err := r.Store.ReadCommit(p)
		if err != nil {
			if errors.Is(err, object.ErrNotFound) || errors.Is(err, object.ErrTypeMismatch) {
				return nil, fmt.Errorf("create commit: parent %s: %w", p.Short(), ErrUnknownParent)
			}
			return nil, fmt.Errorf("create commit: parent %s: %w", p.Short(), err)
		}
		parentTrees = append(parentTrees, pc.TreeHash)
	}
	if len(parentTrees) == 1 && parentTrees[0] == tree && !opts.AllowEmpty {
		return nil, fmt.Errorf("create commit: %w", ErrEmptyCommit)
	}

	ts := opts.Timestamp
	if ts == 0 {
		ts = time.Now().Unix()
	}
	commitObj := &object.CommitObj{
		TreeHash:  tree,
		Parents:   append([]object.Hash(nil), parents...),
		Author:    author,
		Timestamp: ts,
		Message:   message,
	}
	if opts.Signer != nil {
		signature, err := opts.Signer(object.SigningPayload(commitObj))
		if err != nil {
			return nil, fmt.Errorf("create commit: sign commit: %w", err)
		}
		commitObj.Signature = signature
	}

	h, err := r.Store.WriteCommit(commitObj)
	if err != nil {
		return nil, fmt.Errorf("create commit: write commit: %w", err)
	}
	r.logger.Debug("commit written", "op", "commit", "commit", h, "tree", tree, "parents", len(parents))
	return &CommitEntry{Hash: h, Commit: commitObj}, nil
}

// CommitStaged turns the staging area into a commit on top of HEAD.
//
//  1. Read staging; empty staging is ErrNothingStaged
//  2. Overlay staging on HEAD's tree and write the tree objects
//  3. Create the commit with HEAD's commit as sole parent (none if unborn)
//  4. Advance the attached branch (or detached HEAD) by compare-and-swap
//  5. Clear staging
//
// A crash between steps 4 and 5 leaves staging that matches the new HEAD; the
// next commit then reports ErrEmptyCommit.
func (r *Repo) CommitStaged(author, message string, opts CommitOptions) (*CommitEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	stg, err := r.readStaging()
	if err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	if len(stg.Entries) == 0 {
		return nil, fmt.Errorf("commit: %w", ErrNothingStaged)
	}

	hs, err := r.readHead()
	if err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	base := map[string]TreeFileEntry{}
	var parents []object.Hash
	if hs.Hash != "" {
		base, err = r.commitFiles(hs.Hash)
		if err != nil {
			return nil, fmt.Errorf("commit: HEAD tree: %w", err)
		}
		parents = append(parents, hs.Hash)
	}

	tree, err := r.buildTree(base, stg)
	if err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	entry, err := r.createCommit(tree, parents, author, message, opts)
	if err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}

	if err := r.moveHead(hs, entry.Hash, "commit: "+firstLine(message)); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	if err := r.clearStaging(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}

	r.logger.Info("committed", "op", "commit", "commit", entry.Hash, "branch", hs.Branch, "paths", len(stg.Entries))
	return entry, nil
}

// moveHead advances whatever HEAD designates from hs.Hash to h: the attached
// branch by CAS, or HEAD itself when detached.
func (r *Repo) moveHead(hs headState, h object.Hash, reason string) error {
	if hs.detached() {
		return r.updateRef(headRef, h, reason, hs.Hash)
	}
	if err := r.updateRef(branchRefPrefix+hs.Branch, h, reason, hs.Hash); err != nil {
		return err
	}
	if err := r.appendReflog(headRef, hs.Hash, h, reason); err != nil {
		return &RefUpdateReflogError{Ref: headRef, OldHash: hs.Hash, NewHash: h, Err: err}
	}
	return nil
}

// ReadCommit returns the commit stored under h. A missing object, or one
// that is not a commit, yields ErrUnknownCommit.
func (r *Repo) ReadCommit(h object.Hash) (*object.CommitObj, error) {
	return r.readCommit(h)
}

func (r *Repo) readCommit(h object.Hash) (*object.CommitObj, error) {
	c, err := r.Store.ReadCommit(h)
	if err != nil {
		if errors.Is(err, object.ErrNotFound) || errors.Is(err, object.ErrTypeMismatch) {
			return nil, fmt.Errorf("commit %s: %w", h.Short(), ErrUnknownCommit)
		}
		return nil, err
	}
	return c, nil
}

func (r *Repo) requireCommit(h object.Hash) error {
	_, err := r.readCommit(h)
	return err
}

// Parents returns the parent ids of commit h in recorded order.
func (r *Repo) Parents(h object.Hash) ([]object.Hash, error) {
	c, err := r.readCommit(h)
	if err != nil {
		return nil, fmt.Errorf("parents: %w", err)
	}
	return c.Parents, nil
}

// VerifyCommitSignature checks the signature of commit h with verify. It
// reports false without error for unsigned commits.
func (r *Repo) VerifyCommitSignature(h object.Hash, verify CommitVerifier) (bool, error) {
	c, err := r.readCommit(h)
	if err != nil {
		return false, fmt.Errorf("verify commit: %w", err)
	}
	if c.Signature == "" {
		return false, nil
	}
	if verify == nil {
		return true, fmt.Errorf("verify commit %s: no verifier configured", h.Short())
	}
	if err := verify(object.SigningPayload(c), c.Signature); err != nil {
		return true, fmt.Errorf("verify commit %s: %w", h.Short(), err)
	}
	return true, nil
}

func firstLine(msg string) string {
	line, _, _ := strings.Cut(strings.TrimSpace(msg), "\n")
	return line
}
