package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
)

func newAddCmd(s *settings) *cobra.Command {
	return &cobra.Command{
		Use:   "add <path>...",
		Short: "Stage working tree files (directories recursively)",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := s.openRepo()
			if err != nil {
				return err
			}
			return r.Add(args)
		},
	}
}

func newStageCmd(s *settings) *cobra.Command {
	var fromFile string

	cmd := &cobra.Command{
		Use:   "stage <path>",
		Short: "Stage content for a path from stdin or a file, without touching the working tree",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := s.openRepo()
			if err != nil {
				return err
			}

			var data []byte
			if fromFile != "" {
				data, err = os.ReadFile(fromFile)
			} else {
				data, err = io.ReadAll(cmd.InOrStdin())
			}
			if err != nil {
				return fmt.Errorf("read content: %w", err)
			}
			if err := r.Stage(args[0], data); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "staged %s (%d bytes)\n", args[0], len(data))
			return nil
		},
	}
	cmd.Flags().StringVarP(&fromFile, "file", "f", "", "read content from this file instead of stdin")
	return cmd
}

func newRmCmd(s *settings) *cobra.Command {
	return &cobra.Command{
		Use:   "rm <path>...",
		Short: "Remove tracked files and stage their deletion",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := s.openRepo()
			if err != nil {
				return err
			}
			return r.Remove(args)
		},
	}
}

func newUnstageCmd(s *settings) *cobra.Command {
	return &cobra.Command{
		Use:   "unstage [path]...",
		Short: "Drop staged entries (all of them when no path is given)",
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := s.openRepo()
			if err != nil {
				return err
			}
			return r.Unstage(args...)
		},
	}
}
