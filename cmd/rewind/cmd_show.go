package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/odvcencio/rewind/pkg/diff"
	"github.com/odvcencio/rewind/pkg/object"
	"github.com/odvcencio/rewind/pkg/repo"
)

func newShowCmd(s *settings) *cobra.Command {
	return &cobra.Command{
		Use:   "show [revision][:path]",
		Short: "Show a commit and its changes, or a file as of a revision",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := s.openRepo()
			if err != nil {
				return err
			}

			target := "HEAD"
			if len(args) == 1 && strings.TrimSpace(args[0]) != "" {
				target = strings.TrimSpace(args[0])
			}
			rev, path, hasPath := strings.Cut(target, ":")
			if rev == "" {
				rev = "HEAD"
			}

			h, err := r.ResolveRevision(rev)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			if hasPath {
				entry, err := r.FileAt(h, path)
				if err != nil {
					return fmt.Errorf("show %s: %w", target, err)
				}
				data, err := r.Store.Get(entry.BlobHash)
				if err != nil {
					return fmt.Errorf("show %s: %w", target, err)
				}
				_, err = out.Write(data)
				return err
			}

			commit, err := r.ReadCommit(h)
			if err != nil {
				return err
			}
			printCommitHeader(out, h, commit, "")
			if commit.Signature != "" {
				if _, err := r.VerifyCommitSignature(h, verifySSHSignature); err != nil {
					fmt.Fprintf(out, "Signature: BAD (%v)\n\n", err)
				} else {
					fmt.Fprintf(out, "Signature: good %s\n\n", signerFingerprint(commit.Signature))
				}
			}

			changes, err := commitChanges(r, h, commit.Parents)
			if err != nil {
				return err
			}
			if len(changes) == 0 {
				return nil
			}
			text, err := diff.Render(changes, diff.FormatText)
			if err != nil {
				return err
			}
			fmt.Fprintln(out, "Changes:")
			for _, line := range strings.Split(strings.TrimRight(text, "\n"), "\n") {
				fmt.Fprintf(out, "  %s\n", line)
			}
			return nil
		},
	}
}

// commitChanges diffs a commit against its first parent, or against the
// empty tree for a root commit.
func commitChanges(r *repo.Repo, h object.Hash, parents []object.Hash) ([]diff.Change, error) {
	if len(parents) > 0 {
		return r.DiffCommits(parents[0], h)
	}
	c, err := r.ReadCommit(h)
	if err != nil {
		return nil, err
	}
	files, err := r.FlattenTree(c.TreeHash)
	if err != nil {
		return nil, err
	}
	after := make(map[string]diff.Entry, len(files))
	for _, f := range files {
		after[f.Path] = diff.Entry{Hash: f.BlobHash, Mode: f.Mode}
	}
	return diff.Compute(nil, after), nil
}
