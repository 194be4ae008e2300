package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ziadkadry99/diagramstudio/internal/theme"
)

var themeCmd = &cobra.Command{
	Use:       "theme [light|dark|toggle|system]",
	Short:     "Show or change the editor theme",
	Long:      `Prints the current theme, or sets it. "system" forgets the explicit choice and follows the terminal or browser preference again.`,
	Args:      cobra.MaximumNArgs(1),
	ValidArgs: []string{"light", "dark", "toggle", "system"},
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := openApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		if len(args) == 1 {
			switch args[0] {
			case "toggle":
				_, err = a.themes.Toggle(ctx)
			case "system":
				err = a.themes.Clear(ctx)
			default:
				t, ok := theme.Parse(args[0])
				if !ok {
					return fmt.Errorf("unknown theme %q: want light, dark, toggle or system", args[0])
				}
				err = a.themes.Set(ctx, t)
			}
			if err != nil {
				return err
			}
		}

		source := "system"
		if a.themes.Explicit() {
			source = "saved"
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s (%s)\n", a.themes.Current(), source)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(themeCmd)
}
