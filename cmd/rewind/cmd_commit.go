package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/odvcencio/rewind/pkg/repo"
)

func newCommitCmd(s *settings) *cobra.Command {
	var message string
	var allowEmpty bool
	var sign bool

	cmd := &cobra.Command{
		Use:   "commit",
		Short: "Record staged changes as a new commit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if message == "" {
				return fmt.Errorf("commit message is required (-m)")
			}

			r, err := s.openRepo()
			if err != nil {
				return err
			}

			opts := repo.CommitOptions{AllowEmpty: allowEmpty}
			if sign {
				signer, keyPath, err := newSSHCommitSigner(s.layered(r, keySigningKey))
				if err != nil {
					return err
				}
				opts.Signer = signer
				s.log.Debug("signing commit", "key", keyPath)
			}

			entry, err := r.CommitStaged(s.author(r), message, opts)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "[%s %s] %s\n", currentLabel(r), entry.Hash.Short(), message)
			return nil
		},
	}

	cmd.Flags().StringVarP(&message, "message", "m", "", "commit message")
	cmd.Flags().String("author", "", "override author (default: user.name, then $USER)")
	cmd.Flags().String("key", "", "SSH private key used with --sign (default: user.signing_key, then ~/.ssh)")
	cmd.Flags().BoolVar(&allowEmpty, "allow-empty", false, "allow a commit whose tree matches its parent")
	cmd.Flags().BoolVarP(&sign, "sign", "S", false, "sign the commit with an SSH key")
	s.bindFlag(cmd, keyUserName, "author")
	s.bindFlag(cmd, keySigningKey, "key")

	return cmd
}
