package main

import (
	"github.com/spf13/cobra"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

// newRootCmd creates the root shikijin command with all subcommands attached.
func newRootCmd() *cobra.Command {
	var configPath string
	cmd := &cobra.Command{
		Use:           "shikijin",
		Short:         "Capability-matched task distribution",
		Long:          "shikijin runs workers that lease tasks matching their capabilities\nfrom a shared store, and submits tasks and blobs to that store.",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.SetVersionTemplate("shikijin {{.Version}}\n")
	cmd.PersistentFlags().StringVar(&configPath, "config", "", "path to a .yaml/.yml/.toml settings file")

	cmd.AddCommand(
		newWorkerCmd(&configPath),
		newSubmitCmd(&configPath),
		newBlobCmd(&configPath),
		newStatusCmd(&configPath),
	)
	return cmd
}
