package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	mcpserver "github.com/ziadkadry99/diagramstudio/internal/mcp"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the MCP server for AI agent integration",
	Long:  `Starts a Model Context Protocol (MCP) server on stdio, exposing tools to list, read, save, delete and render diagrams.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(context.Background())
		if err != nil {
			return err
		}
		defer a.Close()

		// Set version from the cmd package variable.
		mcpserver.Version = Version

		all, err := a.store.List(context.Background())
		if err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "diagramstudio MCP server started on stdio (diagrams=%d)\n", len(all))

		srv := mcpserver.NewServer(a.store,
			mcpserver.WithEngine(a.renderEngine(), a.themes.Current),
			mcpserver.WithLogger(a.logger.Named("mcp")),
		)
		return srv.Serve()
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
