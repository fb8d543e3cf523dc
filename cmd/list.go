package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"menagerie/internal/formatting"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List all bot instances and their observed state",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		instances, err := apiClient().ListInstances(cmd.Context())
		if err != nil {
			return err
		}
		formatting.RenderInstances(os.Stdout, instances)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(listCmd)
}
