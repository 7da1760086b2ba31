package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/odvcencio/rewind/pkg/repo"
)

func newBranchCmd(s *settings) *cobra.Command {
	var deleteBranch string

	cmd := &cobra.Command{
		Use:   "branch [name [revision]]",
		Short: "List, create, or delete branches",
		Args:  cobra.MaximumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := s.openRepo()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			if deleteBranch != "" {
				if err := r.DeleteBranch(deleteBranch); err != nil {
					return err
				}
				fmt.Fprintf(out, "deleted branch '%s'\n", deleteBranch)
				return nil
			}

			if len(args) >= 1 {
				rev := "HEAD"
				if len(args) == 2 {
					rev = args[1]
				}
				at, err := r.ResolveRevision(rev)
				if err != nil {
					return fmt.Errorf("branch %q: %w", args[0], err)
				}
				if err := r.CreateBranch(args[0], at); err != nil {
					return err
				}
				fmt.Fprintf(out, "created branch '%s' at %s\n", args[0], at.Short())
				return nil
			}

			branches, err := r.ListBranches()
			if err != nil {
				return err
			}
			current, _ := r.CurrentBranch()
			for _, b := range branches {
				marker := " "
				if b.Name == current {
					marker = "*"
				}
				fmt.Fprintf(out, "%s %s %s\n", marker, b.Name, b.Head.Short())
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&deleteBranch, "delete", "d", "", "delete the named branch")

	return cmd
}

func newSwitchCmd(s *settings) *cobra.Command {
	var force bool
	var create bool

	cmd := &cobra.Command{
		Use:   "switch <branch>",
		Short: "Check out a branch and attach HEAD to it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := s.openRepo()
			if err != nil {
				return err
			}
			name := args[0]
			if create {
				head, err := r.ResolveRef("HEAD")
				if err != nil {
					return fmt.Errorf("switch -c %q: %w", name, err)
				}
				if err := r.CreateBranch(name, head); err != nil {
					return err
				}
			}
			if err := r.Switch(name, checkoutMode(force)); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "switched to branch '%s'\n", name)
			return nil
		},
	}
	cmd.Flags().BoolVarP(&force, "force", "f", false, "discard local changes")
	cmd.Flags().BoolVarP(&create, "create", "c", false, "create the branch at HEAD first")
	return cmd
}

func newAdvanceCmd(s *settings) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "advance <branch> <revision>",
		Short: "Move a branch to a revision (fast-forward only unless --force)",
		Long: `advance moves a branch pointer without touching the working tree. The
current head of the branch must be an ancestor of the target unless --force
is given.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := s.openRepo()
			if err != nil {
				return err
			}
			target, err := r.ResolveRevision(args[1])
			if err != nil {
				return err
			}
			res, err := r.AdvanceBranch(args[0], target, force)
			if err != nil {
				return err
			}

			kind := "fast-forward"
			switch {
			case res.Old == res.New:
				kind = "up to date"
			case res.Forced:
				kind = "forced"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %s..%s (%s)\n", res.Branch, res.Old.Short(), res.New.Short(), kind)
			return nil
		},
	}
	cmd.Flags().BoolVarP(&force, "force", "f", false, "allow moves that are not fast-forwards")
	return cmd
}

func checkoutMode(force bool) repo.CheckoutMode {
	if force {
		return repo.CheckoutForce
	}
	return repo.CheckoutSafe
}
