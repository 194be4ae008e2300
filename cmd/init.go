package cmd

import (
	"github.com/spf13/cobra"

	"github.com/ziadkadry99/diagramstudio/internal/config"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize diagramstudio configuration with an interactive wizard",
	Long:  `Runs an interactive wizard to choose storage, theme and server settings and writes a .diagramstudio.yml file.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		_, err := config.RunWizard()
		return err
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
}
