package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/odvcencio/rewind/pkg/object"
	"github.com/odvcencio/rewind/pkg/repo"
)

func newCatObjectCmd(s *settings) *cobra.Command {
	var typeOnly bool

	cmd := &cobra.Command{
		Use:   "cat-object <hash>",
		Short: "Print a stored object by digest or unique digest prefix",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := s.openRepo()
			if err != nil {
				return err
			}
			h, err := resolveObject(r, args[0])
			if err != nil {
				return err
			}
			objType, data, err := r.Store.Read(h)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if typeOnly {
				fmt.Fprintln(out, objType)
				return nil
			}
			_, err = out.Write(data)
			return err
		},
	}
	cmd.Flags().BoolVarP(&typeOnly, "type", "t", false, "print only the object type")
	return cmd
}

// resolveObject expands a digest prefix to the single stored object it
// names, of any type.
func resolveObject(r *repo.Repo, arg string) (object.Hash, error) {
	arg = strings.ToLower(strings.TrimSpace(arg))
	if h := object.Hash(arg); h.Valid() {
		return h, nil
	}
	matches, err := r.Store.FindByPrefix(arg)
	if err != nil {
		return "", err
	}
	switch len(matches) {
	case 0:
		return "", fmt.Errorf("cat-object %q: %w", arg, object.ErrNotFound)
	case 1:
		return matches[0], nil
	default:
		return "", fmt.Errorf("cat-object %q: %w: %d objects match", arg, repo.ErrAmbiguousRevision, len(matches))
	}
}

func newCountObjectsCmd(s *settings) *cobra.Command {
	return &cobra.Command{
		Use:   "count-objects",
		Short: "Count stored objects and their size on disk",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := s.openRepo()
			if err != nil {
				return err
			}
			st, err := r.Store.Stats()
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d objects, %d bytes\n", st.Objects, st.Bytes)
			return nil
		},
	}
}
