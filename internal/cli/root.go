package cli

import (
	"fmt"
	"os"

	"github.com/SigNoz/storefront-api/pkg/config"
	"github.com/spf13/cobra"
)

// NewRootCommand creates the storefront command tree. Running it without a
// subcommand starts the HTTP server.
func NewRootCommand() *cobra.Command {
	serve := NewServeCommand()

	cmd := &cobra.Command{
		Use:           "storefront",
		Short:         "Storefront API - catalog, cart and order service",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          serve.RunE,
	}

	cmd.AddCommand(serve)
	cmd.AddCommand(NewMigrateCommand())
	cmd.AddCommand(NewSeedCommand())

	return cmd
}

// Execute runs the root command and exits non-zero on failure
func Execute() {
	if err := NewRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig is swapped in tests
var loadConfig = config.LoadConfig
