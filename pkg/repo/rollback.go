package repo

import (
	"fmt"

	"github.com/odvcencio/rewind/pkg/object"
)

// RollbackResult reports where a rollback moved HEAD.
type RollbackResult struct {
	Branch string // empty when HEAD was detached
	From   object.Hash
	To     object.Hash
}

// Rollback resets the current branch to revision rev and rewrites the
// working tree to match. The branch is force-moved, so commits after rev stay
// in the store and remain reachable through the reflog. On a detached HEAD
// it behaves like Checkout.
func (r *Repo) Rollback(rev string, mode CheckoutMode) (RollbackResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	target, err := r.resolveRevision(rev)
	if err != nil {
		return RollbackResult{}, fmt.Errorf("rollback: %w", err)
	}
	hs, err := r.readHead()
	if err != nil {
		return RollbackResult{}, fmt.Errorf("rollback: %w", err)
	}
	res := RollbackResult{Branch: hs.Branch, From: hs.Hash, To: target}

	if err := r.materialize(hs, target, mode); err != nil {
		return res, fmt.Errorf("rollback to %s: %w", target.Short(), err)
	}

	reason := "rollback: to " + target.Short()
	switch {
	case hs.detached():
		err = r.setHead("", target, reason)
	case hs.Hash == "":
		err = r.moveHead(hs, target, reason)
	default:
		_, err = r.advanceBranch(hs.Branch, target, true, "rollback")
	}
	if err != nil {
		return res, fmt.Errorf("rollback: %w", err)
	}
	r.logger.Info("rolled back", "op", "rollback", "branch", hs.Branch, "from", hs.Hash, "to", target)
	return res, nil
}
