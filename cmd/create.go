package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"menagerie/internal/api"
)

var (
	createTemplate    string
	createCredential  string
	createPersonality string
	createAutoStart   bool
)

var createCmd = &cobra.Command{
	Use:   "create NAME",
	Short: "Create a new bot instance",
	Long: `Creates a bot instance from a template and a stored credential. The
instance starts stopped; use 'menagerie start' to bring it up, or pass
--auto-start to have it come up on every boot of the control process.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		status, err := apiClient().CreateInstance(cmd.Context(), api.CreateInstanceRequest{
			Name:        args[0],
			Template:    createTemplate,
			Credential:  createCredential,
			Personality: createPersonality,
			AutoStart:   createAutoStart,
		})
		if err != nil {
			return err
		}
		fmt.Printf("Created instance %s (%s)\n", status.ID, status.Name)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(createCmd)

	createCmd.Flags().StringVar(&createTemplate, "template", "", "Template id (required)")
	createCmd.Flags().StringVar(&createCredential, "credential", "", "Credential id (required)")
	createCmd.Flags().StringVar(&createPersonality, "personality", "", "Personality override (grug, big_rob, adaptive)")
	createCmd.Flags().BoolVar(&createAutoStart, "auto-start", false, "Start this instance on boot")
	createCmd.MarkFlagRequired("template")
	createCmd.MarkFlagRequired("credential")
}
