package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"menagerie/internal/app"
	"menagerie/internal/gateway"
)

var (
	serveDebug      bool
	serveSilent     bool
	serveConfigPath string
	serveGatewayURL string
)

// serveCmd starts the control process: the orchestrator, the config watcher,
// and the management API server.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the control process and its management API",
	Long: `Starts the menagerie control process. On boot it reconciles the
persisted configuration: every instance marked auto-start is brought up
fresh, staggered to respect gateway rate limits.

The process then serves the management API (REST plus a websocket status
feed) and watches the config document for external edits, applying
changes without a restart. It runs until interrupted; on shutdown every
worker is disconnected gracefully.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := app.NewConfig(serveConfigPath, serveDebug, serveSilent)
	if serveGatewayURL != "" {
		cfg.GatewayURL = serveGatewayURL
	}

	var gw gateway.Client
	application, err := app.NewApplication(cfg, gw)
	if err != nil {
		return fmt.Errorf("failed to initialize application: %w", err)
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	return application.Run(ctx)
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().BoolVar(&serveDebug, "debug", false, "Enable debug logging")
	serveCmd.Flags().BoolVar(&serveSilent, "silent", false, "Suppress all log output")
	serveCmd.Flags().StringVar(&serveConfigPath, "config", "", "Config document path (default menagerie.yaml)")
	serveCmd.Flags().StringVar(&serveGatewayURL, "gateway-url", "", "Override the chat gateway endpoint")
}
