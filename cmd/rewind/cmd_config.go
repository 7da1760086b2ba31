package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/odvcencio/rewind/pkg/repo"
)

func newConfigCmd(s *settings) *cobra.Command {
	var list bool

	cmd := &cobra.Command{
		Use:   "config [key [value]]",
		Short: "Get or set repository configuration",
		Long: `config reads and writes .rewind/config.toml. With a key it prints the
value; with a key and value it stores the value. --list prints every key.`,
		Args: cobra.MaximumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := s.openRepo()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			switch {
			case list || len(args) == 0:
				for _, key := range repo.ConfigKeys() {
					v, err := r.GetConfig(key)
					if err != nil {
						return err
					}
					fmt.Fprintf(out, "%s=%s\n", key, v)
				}
				return nil
			case len(args) == 1:
				v, err := r.GetConfig(args[0])
				if err != nil {
					return err
				}
				fmt.Fprintln(out, v)
				return nil
			default:
				return r.SetConfig(args[0], args[1])
			}
		},
	}
	cmd.Flags().BoolVarP(&list, "list", "l", false, "list all keys")
	return cmd
}
