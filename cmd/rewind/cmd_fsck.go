package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/odvcencio/rewind/pkg/object"
	"github.com/odvcencio/rewind/pkg/repo"
)

func newFsckCmd(s *settings) *cobra.Command {
	return &cobra.Command{
		Use:   "fsck",
		Short: "Verify object integrity, reachability and commit signatures",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := s.openRepo()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			report, err := r.Store.Verify()
			if err != nil {
				return err
			}
			for _, h := range report.Corrupt {
				fmt.Fprintf(out, "corrupt %s\n", h)
			}

			roots, err := refRoots(r)
			if err != nil {
				return err
			}
			reachable, err := r.Store.ReachableSet(roots)
			if err != nil {
				if len(report.Corrupt) > 0 {
					return fmt.Errorf("fsck: %d corrupt object(s), history walk stopped: %w", len(report.Corrupt), err)
				}
				return fmt.Errorf("fsck: %w", err)
			}

			var commits []object.Hash
			for h := range reachable {
				if typ, _, err := r.Store.Read(h); err == nil && typ == object.TypeCommit {
					commits = append(commits, h)
				}
			}
			sort.Slice(commits, func(i, j int) bool { return commits[i] < commits[j] })
			signed, badSigs := 0, 0
			for _, h := range commits {
				ok, err := r.VerifyCommitSignature(h, verifySSHSignature)
				if ok {
					signed++
				}
				if err != nil {
					badSigs++
					fmt.Fprintf(out, "bad signature %s: %v\n", h, err)
				}
			}

			dangling := report.Objects - len(reachable)
			fmt.Fprintf(out, "checked %d object(s): %d reachable, %d unreachable, %d corrupt, %d signed commit(s)\n",
				report.Objects, len(reachable), dangling, len(report.Corrupt), signed)
			if len(report.Corrupt) > 0 || badSigs > 0 {
				return fmt.Errorf("fsck: %d corrupt object(s), %d bad signature(s): %w", len(report.Corrupt), badSigs, object.ErrCorruptObject)
			}
			return nil
		},
	}
}

// refRoots lists every branch head plus HEAD.
func refRoots(r *repo.Repo) ([]object.Hash, error) {
	refs, err := r.ListRefs("")
	if err != nil {
		return nil, err
	}
	roots := make([]object.Hash, 0, len(refs)+1)
	for _, h := range refs {
		roots = append(roots, h)
	}
	if h, err := r.ResolveRef("HEAD"); err == nil {
		roots = append(roots, h)
	}
	return roots, nil
}
