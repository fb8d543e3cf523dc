package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"menagerie/internal/formatting"
)

var templateCmd = &cobra.Command{
	Use:   "template",
	Short: "Manage configuration templates",
}

var templateListCmd = &cobra.Command{
	Use:   "list",
	Short: "List templates",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		templates, err := apiClient().ListTemplates(cmd.Context())
		if err != nil {
			return err
		}
		formatting.RenderTemplates(os.Stdout, templates)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(templateCmd)
	templateCmd.AddCommand(templateListCmd)
}
