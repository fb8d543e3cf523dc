package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"menagerie/internal/client"
)

// serverAddr points the client commands at a running control process.
var serverAddr string

// rootCmd represents the base command for the menagerie application.
var rootCmd = &cobra.Command{
	Use:   "menagerie",
	Short: "Run and manage a menagerie of chat bot instances",
	Long: `menagerie is a multi-instance bot platform: one control process runs
any number of isolated bot workers, each with its own credential,
personality template, and fact database.

Start the control process with 'menagerie serve', then manage instances
from another terminal with the instance, template, and credential
commands.`,
	// SilenceUsage prevents Cobra from printing the usage message on errors
	// that are handled by the application.
	SilenceUsage: true,
}

// SetVersion sets the version for the root command, injected by main at
// build time.
func SetVersion(v string) {
	rootCmd.Version = v
}

// GetVersion returns the current version of the application.
func GetVersion() string {
	return rootCmd.Version
}

// Execute is the main entry point for the CLI application, called by
// main.main().
func Execute() {
	rootCmd.SetVersionTemplate(`{{printf "menagerie version %s\n" .Version}}`)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// apiClient builds the management API client for the configured server.
func apiClient() *client.Client {
	return client.New(serverAddr)
}

func init() {
	rootCmd.PersistentFlags().StringVar(&serverAddr, "server", "http://localhost:8080",
		"Management API address of the running control process")

	rootCmd.AddCommand(newVersionCmd())
}
