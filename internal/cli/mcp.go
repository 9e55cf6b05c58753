package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	bpmcp "github.com/valter-silva-au/blockplan/internal/mcp"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "MCP server commands",
	Long:  "Commands for running the blockplan MCP (Model Context Protocol) server.",
}

var mcpServeCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the blockplan MCP server on stdio",
	Long: `Start the blockplan MCP server on stdio transport.

The server exposes these tools: validate_task, preview_schedule,
list_events, get_metrics.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if Scheduler == nil {
			return fmt.Errorf("scheduler not initialized")
		}

		var events bpmcp.EventLister
		if Calendar != nil {
			events = Calendar
		}
		srv := bpmcp.NewServer(Scheduler, events, MetricsCalc, Clock, appVersion)

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		if err := srv.Run(ctx); err != nil {
			return fmt.Errorf("running MCP server: %w", err)
		}
		return nil
	},
}

func init() {
	mcpCmd.AddCommand(mcpServeCmd)
	rootCmd.AddCommand(mcpCmd)
}
