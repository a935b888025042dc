package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var version = "dev" // Will be set during build

var rootCmd = &cobra.Command{
	Use:   "hookdeploy",
	Short: "Webhook-driven git deployment",
	Long: `Hookdeploy receives Bitbucket and GitHub push webhooks and synchronizes
local working directories to the pushed commits.

Deployment policy is driven by commit-message markers: with auto-deploy on,
every commit deploys unless its message carries [skipdeploy]; with auto-deploy
off, only commits carrying [deploy] are deployed.`,
	Version: version,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	// Register subcommands
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(deployCmd)
	rootCmd.AddCommand(versionCmd)
}
