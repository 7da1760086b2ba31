package repo

import (
	"errors"
	"fmt"
	"strings"

	"github.com/odvcencio/rewind/pkg/object"
)

var (
	ErrNotRepository      = errors.New("not a rewind repository")
	ErrAlreadyInitialized = errors.New("repository already exists")
	ErrNoCommits          = errors.New("no commits yet")

	ErrUnknownCommit     = errors.New("unknown commit")
	ErrUnknownParent     = errors.New("unknown parent commit")
	ErrEmptyCommit       = errors.New("commit tree is identical to its parent")
	ErrNothingStaged     = errors.New("nothing staged")
	ErrAmbiguousRevision = errors.New("ambiguous revision")

	ErrInvalidBranchName   = errors.New("invalid branch name")
	ErrDuplicateBranch     = errors.New("branch already exists")
	ErrUnknownBranch       = errors.New("unknown branch")
	ErrCannotDeleteCurrent = errors.New("cannot delete the current branch")
	ErrNotFastForward      = errors.New("not a fast-forward")

	ErrInvalidPath      = errors.New("invalid path")
	ErrDirtyWorkingTree = errors.New("working tree has uncommitted changes")

	ErrRefCASMismatch                  = errors.New("ref compare-and-swap mismatch")
	ErrRefUpdatedButReflogAppendFailed = errors.New("ref updated but reflog append failed")
)

// DirtyError lists the paths that block a safe checkout.
type DirtyError struct {
	Paths []string
}

func (e *DirtyError) Error() string {
	if e == nil {
		return "<nil>"
	}
	const maxShown = 5
	shown := e.Paths
	suffix := ""
	if len(shown) > maxShown {
		suffix = fmt.Sprintf(" (and %d more)", len(shown)-maxShown)
		shown = shown[:maxShown]
	}
	return fmt.Sprintf("%s: %s%s", ErrDirtyWorkingTree, strings.Join(shown, ", "), suffix)
}

func (e *DirtyError) Is(target error) bool {
	return target == ErrDirtyWorkingTree
}

// RefUpdateReflogError indicates the ref file update succeeded, but appending
// the corresponding reflog entry failed.
type RefUpdateReflogError struct {
	Ref     string
	OldHash object.Hash
	NewHash object.Hash
	Err     error
}

func (e *RefUpdateReflogError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return fmt.Sprintf(
		"update ref %q: %s (old=%s new=%s): %v",
		e.Ref,
		ErrRefUpdatedButReflogAppendFailed,
		e.OldHash,
		e.NewHash,
		e.Err,
	)
}

func (e *RefUpdateReflogError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func (e *RefUpdateReflogError) Is(target error) bool {
	return target == ErrRefUpdatedButReflogAppendFailed
}

// IsStorageFailure reports whether err was caused by the storage medium
// rather than by a logical condition such as an unknown branch.
func IsStorageFailure(err error) bool {
	var se *object.StorageError
	return errors.As(err, &se)
}
