package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/odvcencio/rewind/pkg/repo"
)

const version = "0.1.0-dev"

func main() {
	root := newRootCmd()
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(exitCode(err))
	}
}

// exitCode maps storage-medium failures to 2 and everything else to 1.
func exitCode(err error) int {
	if repo.IsStorageFailure(err) {
		return 2
	}
	return 1
}

func newRootCmd() *cobra.Command {
	s := newSettings()

	root := &cobra.Command{
		Use:           "rewind",
		Short:         "Local version control with time travel for humans and agents",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return s.load(cmd.ErrOrStderr())
		},
	}
	s.bindRootFlags(root)

	root.AddCommand(newVersionCmd())
	root.AddCommand(newInitCmd(s))
	root.AddCommand(newAddCmd(s))
	root.AddCommand(newStageCmd(s))
	root.AddCommand(newRmCmd(s))
	root.AddCommand(newUnstageCmd(s))
	root.AddCommand(newStatusCmd(s))
	root.AddCommand(newCommitCmd(s))
	root.AddCommand(newLogCmd(s))
	root.AddCommand(newShowCmd(s))
	root.AddCommand(newDiffCmd(s))
	root.AddCommand(newBranchCmd(s))
	root.AddCommand(newSwitchCmd(s))
	root.AddCommand(newCheckoutCmd(s))
	root.AddCommand(newRollbackCmd(s))
	root.AddCommand(newAdvanceCmd(s))
	root.AddCommand(newReflogCmd(s))
	root.AddCommand(newCatObjectCmd(s))
	root.AddCommand(newCountObjectsCmd(s))
	root.AddCommand(newFsckCmd(s))
	root.AddCommand(newConfigCmd(s))
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "rewind %s\n", version)
		},
	}
}
