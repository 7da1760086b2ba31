package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/odvcencio/rewind/pkg/repo"
)

func newInitCmd(s *settings) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init [path]",
		Short: "Create an empty rewind repository",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := s.repoPath()
			if len(args) > 0 {
				path = args[0]
			}

			abs, err := filepath.Abs(path)
			if err != nil {
				return fmt.Errorf("resolve path: %w", err)
			}
			if err := os.MkdirAll(abs, 0o755); err != nil {
				return fmt.Errorf("create directory: %w", err)
			}

			opts := []repo.Option{repo.WithLogger(s.log)}
			if b := s.v.GetString(keyDefaultBranch); b != "" {
				opts = append(opts, repo.WithDefaultBranch(b))
			}
			r, err := repo.Init(abs, opts...)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "initialized empty rewind repository in %s\n", r.Dir+string(filepath.Separator))
			return nil
		},
	}
	cmd.Flags().StringP("branch", "b", "", "name of the initial branch (default main)")
	s.bindFlag(cmd, keyDefaultBranch, "branch")
	return cmd
}
