package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/odvcencio/rewind/pkg/diff"
	"github.com/odvcencio/rewind/pkg/repo"
)

func newDiffCmd(s *settings) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "diff [from to]",
		Short: "Show staged changes against HEAD, or changes between two revisions",
		Long: `Without arguments, diff lists what the next commit would change relative
to HEAD. With two revisions it compares their trees.

--format json and --format toon emit {path, kind, old, new} tuples for tools
and agents.`,
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) != 0 && len(args) != 2 {
				return fmt.Errorf("diff takes no revisions or exactly two, got %d", len(args))
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := diff.ParseFormat(s.v.GetString(keyDiffFormat))
			if err != nil {
				return err
			}

			r, err := s.openRepo()
			if err != nil {
				return err
			}

			changes, err := selectChanges(r, args)
			if err != nil {
				return err
			}
			text, err := diff.Render(changes, format)
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), text)
			return nil
		},
	}
	cmd.Flags().String("format", "text", "output format: text, json or toon")
	s.bindFlag(cmd, keyDiffFormat, "format")
	return cmd
}

func selectChanges(r *repo.Repo, args []string) ([]diff.Change, error) {
	if len(args) == 0 {
		return r.Diff()
	}
	from, err := r.ResolveRevision(args[0])
	if err != nil {
		return nil, err
	}
	to, err := r.ResolveRevision(args[1])
	if err != nil {
		return nil, err
	}
	return r.DiffCommits(from, to)
}
