package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"menagerie/internal/formatting"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show control process statistics",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		stats, err := apiClient().Stats(cmd.Context())
		if err != nil {
			return err
		}
		formatting.RenderStats(os.Stdout, stats)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statsCmd)
}
