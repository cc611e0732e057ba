package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/civicdesk/civicdesk/pkg/config"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var cfg config.Config
	root := &cobra.Command{
		Use:           "civicdesk",
		Short:         "Civic complaint intake and case management API",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(*cobra.Command, []string) {
			cfg = config.Load()
		},
	}
	serve := newServeCmd(&cfg)
	root.RunE = serve.RunE
	root.AddCommand(serve, newMigrateCmd(&cfg), newIntakeTokenCmd(&cfg))
	return root
}
