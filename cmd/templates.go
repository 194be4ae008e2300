package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/ziadkadry99/diagramstudio/internal/templates"
)

var templatesCmd = &cobra.Command{
	Use:   "templates [NAME]",
	Short: "List diagram templates or print one",
	Long: `Without arguments lists the template catalog, grouped by category.
With a NAME prints that template's Mermaid source, ready to pipe into
"diagramstudio save".`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) == 1 {
			tpl, ok := templates.Find(args[0])
			if !ok {
				return fmt.Errorf("unknown template %q (run `diagramstudio templates` to list them)", args[0])
			}
			fmt.Fprintln(cmd.OutOrStdout(), tpl.Source)
			return nil
		}

		search, _ := cmd.Flags().GetString("search")
		cats := templates.Search(search)
		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			return writeJSON(cmd, cats)
		}
		if len(cats) == 0 {
			fmt.Fprintln(os.Stderr, "No templates found.")
			return nil
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		for _, c := range cats {
			fmt.Fprintf(w, "%s\n", c.Name)
			for _, t := range c.Templates {
				fmt.Fprintf(w, "  %s\t%s\t%s\n", t.Name, t.Type, t.Description)
			}
		}
		return w.Flush()
	},
}

func init() {
	templatesCmd.Flags().String("search", "", "filter by name, description or type")
	templatesCmd.Flags().Bool("json", false, "print as JSON")
	rootCmd.AddCommand(templatesCmd)
}
