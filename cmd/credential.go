package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"menagerie/internal/formatting"
)

var credentialToken string

var credentialCmd = &cobra.Command{
	Use:   "credential",
	Short: "Manage stored gateway credentials",
}

var credentialListCmd = &cobra.Command{
	Use:   "list",
	Short: "List credentials (tokens shown redacted)",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		creds, err := apiClient().ListCredentials(cmd.Context())
		if err != nil {
			return err
		}
		formatting.RenderCredentials(os.Stdout, creds)
		return nil
	},
}

var credentialAddCmd = &cobra.Command{
	Use:   "add NAME",
	Short: "Store a new gateway credential",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		info, err := apiClient().AddCredential(cmd.Context(), args[0], credentialToken)
		if err != nil {
			return err
		}
		fmt.Printf("Added credential %s (%s)\n", info.ID, info.Display)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(credentialCmd)
	credentialCmd.AddCommand(credentialListCmd)
	credentialCmd.AddCommand(credentialAddCmd)

	credentialAddCmd.Flags().StringVar(&credentialToken, "token", "", "Gateway token (required)")
	credentialAddCmd.MarkFlagRequired("token")
}
