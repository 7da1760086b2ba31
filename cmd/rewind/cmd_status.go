package main

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/odvcencio/rewind/pkg/object"
	"github.com/odvcencio/rewind/pkg/repo"
)

func newStatusCmd(s *settings) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show working tree status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := s.openRepo()
			if err != nil {
				return err
			}

			entries, err := r.Status()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if err := printHeadLine(out, r); err != nil {
				return err
			}

			var staged, unstaged, untracked []string
			for _, e := range entries {
				switch e.IndexStatus {
				case repo.StatusAdded:
					staged = append(staged, "  + "+e.Path)
				case repo.StatusModified:
					staged = append(staged, "  ~ "+e.Path)
				case repo.StatusDeleted:
					staged = append(staged, "  - "+e.Path)
				}

				switch e.WorkStatus {
				case repo.StatusModified:
					unstaged = append(unstaged, "  ~ "+e.Path)
				case repo.StatusDeleted:
					unstaged = append(unstaged, "  - "+e.Path)
				case repo.StatusUntracked:
					untracked = append(untracked, "  "+e.Path)
				}
			}

			printSection(out, "staged:", staged)
			printSection(out, "unstaged:", unstaged)
			printSection(out, "untracked:", untracked)
			if len(entries) == 0 {
				fmt.Fprintln(out, "nothing to commit, working tree clean")
			}
			return nil
		},
	}
}

// printHeadLine writes "on <branch>", "on <branch> (no commits yet)" or
// "HEAD detached at <short>".
func printHeadLine(out io.Writer, r *repo.Repo) error {
	head, err := r.Head()
	if err != nil {
		return err
	}
	if branch, ok := strings.CutPrefix(head, "refs/heads/"); ok {
		if _, err := r.ResolveRef("HEAD"); errors.Is(err, repo.ErrNoCommits) {
			fmt.Fprintf(out, "on %s (no commits yet)\n", branch)
			return nil
		}
		fmt.Fprintf(out, "on %s\n", branch)
		return nil
	}
	fmt.Fprintf(out, "HEAD detached at %s\n", object.Hash(head).Short())
	return nil
}

func printSection(out io.Writer, title string, lines []string) {
	if len(lines) == 0 {
		return
	}
	fmt.Fprintln(out)
	fmt.Fprintln(out, title)
	for _, l := range lines {
		fmt.Fprintln(out, l)
	}
}

// currentLabel names what HEAD designates, for one-line summaries.
func currentLabel(r *repo.Repo) string {
	branch, err := r.CurrentBranch()
	if err != nil || branch == "" {
		return "HEAD"
	}
	return branch
}
