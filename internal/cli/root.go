package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	Version   = "dev"
	CommitSHA = "none"
	BuildDate = "unknown"
)

func NewRootCmd() *cobra.Command {
	var envFile string

	root := &cobra.Command{
		Use:           "courtwatch",
		Short:         "Watches the Meguro facility reservation site for open tennis courts and mails them",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&envFile, "env-file", ".env", "optional env file read before the environment")

	root.AddCommand(newVersionCmd())
	root.AddCommand(newRunCmd(&envFile))
	root.AddCommand(newServeCmd(&envFile))
	root.AddCommand(newExtractCmd())

	return root
}

func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
