package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newCheckoutCmd(s *settings) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "checkout <revision>",
		Short: "Restore the working tree to a revision and detach HEAD there",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := s.openRepo()
			if err != nil {
				return err
			}
			h, err := r.ResolveRevision(args[0])
			if err != nil {
				return err
			}
			if err := r.Checkout(h, checkoutMode(force)); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "HEAD is now at %s\n", h.Short())
			return nil
		},
	}
	cmd.Flags().BoolVarP(&force, "force", "f", false, "discard local changes")
	return cmd
}

func newRollbackCmd(s *settings) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "rollback <revision>",
		Short: "Move the current branch back to a revision and restore its files",
		Long: `rollback force-moves the current branch to the given revision and rewrites
the working tree to match. Later commits are kept in the store and listed in
the reflog, so rolling forward again is always possible.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := s.openRepo()
			if err != nil {
				return err
			}
			res, err := r.Rollback(args[0], checkoutMode(force))
			if err != nil {
				return err
			}
			label := res.Branch
			if label == "" {
				label = "HEAD"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "rolled back %s: %s -> %s\n", label, orNone(res.From.Short()), res.To.Short())
			return nil
		},
	}
	cmd.Flags().BoolVarP(&force, "force", "f", false, "discard local changes")
	return cmd
}

func orNone(s string) string {
	if s == "" {
		return "<none>"
	}
	return s
}
