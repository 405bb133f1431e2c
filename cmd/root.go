package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

// rootCmd represents the base command for the gmailgate application
var rootCmd = &cobra.Command{
	Use:   "gmailgate",
	Short: "Local HTTP API for a Gmail mailbox",
	Long: `gmailgate exposes a Gmail mailbox as a small JSON API on localhost.

It lists and creates labels, searches, reads, sends and deletes messages, and
runs bulk deletions (by id list or by search query) in provider-sized chunks.
Every /api route requires the x-api-key header.`,
	SilenceUsage: true,
}

// version will be set by main
var version = "dev"

// SetVersion sets the version for the root command
func SetVersion(v string) {
	version = v
	rootCmd.Version = v
}

// Execute is the main entry point for the CLI application
func Execute() {
	rootCmd.SetVersionTemplate(`{{printf "gmailgate version %s\n" .Version}}`)

	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newGenerateDocsCmd())
}
