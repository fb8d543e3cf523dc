package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/briandowns/spinner"
	"github.com/spf13/cobra"

	"menagerie/internal/api"
)

// withSpinner runs a lifecycle operation against the server with a progress
// spinner, printing the resulting state.
func withSpinner(ctx context.Context, message string,
	op func(context.Context) (*api.InstanceStatus, error)) error {
	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond)
	s.Suffix = " " + message
	s.Start()

	status, err := op(ctx)
	s.Stop()
	if err != nil {
		return err
	}

	fmt.Printf("Instance %s is now %s\n", status.ID, status.State)
	if status.State == api.StateError && status.LastError != "" {
		fmt.Printf("  last error: %s\n", status.LastError)
	}
	return nil
}

var startCmd = &cobra.Command{
	Use:   "start ID",
	Short: "Start a bot instance",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c := apiClient()
		return withSpinner(cmd.Context(), "starting "+args[0], func(ctx context.Context) (*api.InstanceStatus, error) {
			return c.StartInstance(ctx, args[0])
		})
	},
}

var stopCmd = &cobra.Command{
	Use:   "stop ID",
	Short: "Stop a bot instance, awaiting its graceful disconnect",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c := apiClient()
		return withSpinner(cmd.Context(), "stopping "+args[0], func(ctx context.Context) (*api.InstanceStatus, error) {
			return c.StopInstance(ctx, args[0])
		})
	},
}

var restartCmd = &cobra.Command{
	Use:   "restart ID",
	Short: "Restart a bot instance (stop fully, then start)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c := apiClient()
		return withSpinner(cmd.Context(), "restarting "+args[0], func(ctx context.Context) (*api.InstanceStatus, error) {
			return c.RestartInstance(ctx, args[0])
		})
	},
}

var deleteCmd = &cobra.Command{
	Use:   "delete ID",
	Short: "Delete a bot instance, stopping it first if live",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c := apiClient()
		s := spinner.New(spinner.CharSets[14], 100*time.Millisecond)
		s.Suffix = " deleting " + args[0]
		s.Start()
		err := c.DeleteInstance(cmd.Context(), args[0])
		s.Stop()
		if err != nil {
			return err
		}
		fmt.Printf("Deleted instance %s\n", args[0])
		return nil
	},
}

func init() {
	rootCmd.AddCommand(startCmd)
	rootCmd.AddCommand(stopCmd)
	rootCmd.AddCommand(restartCmd)
	rootCmd.AddCommand(deleteCmd)
}
