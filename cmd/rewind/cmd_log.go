package main

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/odvcencio/rewind/pkg/object"
	"github.com/odvcencio/rewind/pkg/repo"
)

func newLogCmd(s *settings) *cobra.Command {
	var oneline bool

	cmd := &cobra.Command{
		Use:   "log [revision]",
		Short: "Show commit history, newest first",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := s.openRepo()
			if err != nil {
				return err
			}

			rev := "HEAD"
			if len(args) == 1 {
				rev = args[0]
			}
			start, err := r.ResolveRevision(rev)
			if err != nil {
				if rev == "HEAD" && errors.Is(err, repo.ErrNoCommits) {
					fmt.Fprintln(cmd.OutOrStdout(), "no commits yet")
					return nil
				}
				return err
			}

			entries, err := r.Log(start, s.v.GetInt(keyLogLimit))
			if err != nil {
				return err
			}
			decorations, err := refDecorations(r)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			for _, e := range entries {
				if oneline {
					line := e.Hash.Short()
					if d := decorations[e.Hash]; d != "" {
						line += " " + d
					}
					fmt.Fprintf(out, "%s %s\n", line, firstLine(e.Commit.Message))
					continue
				}
				printCommitHeader(out, e.Hash, e.Commit, decorations[e.Hash])
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&oneline, "oneline", false, "compact one-line format")
	cmd.Flags().IntP("limit", "n", 0, "maximum number of commits to show (0 for all)")
	s.bindFlag(cmd, keyLogLimit, "limit")

	return cmd
}

// refDecorations maps commits to labels like "(HEAD -> main, feature)".
func refDecorations(r *repo.Repo) (map[object.Hash]string, error) {
	branches, err := r.ListBranches()
	if err != nil {
		return nil, err
	}
	current, err := r.CurrentBranch()
	if err != nil {
		return nil, err
	}
	headHash, err := r.ResolveRef("HEAD")
	if err != nil && !errors.Is(err, repo.ErrNoCommits) {
		return nil, err
	}

	labels := make(map[object.Hash][]string)
	if headHash != "" && current == "" {
		labels[headHash] = append(labels[headHash], "HEAD")
	}
	for _, b := range branches {
		name := b.Name
		if b.Name == current {
			name = "HEAD -> " + b.Name
			labels[b.Head] = append([]string{name}, labels[b.Head]...)
			continue
		}
		labels[b.Head] = append(labels[b.Head], name)
	}

	out := make(map[object.Hash]string, len(labels))
	for h, names := range labels {
		out[h] = "(" + strings.Join(names, ", ") + ")"
	}
	return out, nil
}

func printCommitHeader(out io.Writer, h object.Hash, c *object.CommitObj, decoration string) {
	if decoration != "" {
		fmt.Fprintf(out, "commit %s %s\n", h, decoration)
	} else {
		fmt.Fprintf(out, "commit %s\n", h)
	}
	if len(c.Parents) > 1 {
		shorts := make([]string, len(c.Parents))
		for i, p := range c.Parents {
			shorts[i] = p.Short()
		}
		fmt.Fprintf(out, "Merge:  %s\n", strings.Join(shorts, " "))
	}
	fmt.Fprintf(out, "Author: %s\n", c.Author)
	fmt.Fprintf(out, "Date:   %s\n", time.Unix(c.Timestamp, 0).Format("2006-01-02 15:04:05"))
	fmt.Fprintln(out)
	for _, line := range strings.Split(strings.TrimRight(c.Message, "\n"), "\n") {
		fmt.Fprintf(out, "    %s\n", line)
	}
	fmt.Fprintln(out)
}

func firstLine(msg string) string {
	line, _, _ := strings.Cut(strings.TrimSpace(msg), "\n")
	return line
}
