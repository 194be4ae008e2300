package cmd

import (
	"github.com/spf13/cobra"
)

var (
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "diagramstudio",
	Short: "Browser-based Mermaid diagram editor with a local gallery",
	Long: `Diagram Studio is a Mermaid editor that runs in your browser. Diagrams
render live as you type, autosave to a local store and can be exported
as SVG or PNG. The CLI manages the same collection from the terminal and
exposes it to AI agents over MCP.`,
	SilenceUsage: true,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", ".diagramstudio.yml", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}

