package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ziadkadry99/diagramstudio/internal/importers"
	"github.com/ziadkadry99/diagramstudio/internal/progress"
	"github.com/ziadkadry99/diagramstudio/internal/walker"
)

var importCmd = &cobra.Command{
	Use:   "import [DIR] [PATTERN...]",
	Short: "Import Mermaid diagrams from files",
	Long: `Walks DIR (default ".") for .mmd, .mermaid and Markdown files and saves
every diagram found. A Mermaid file becomes one diagram; each mermaid
code block in a Markdown file becomes one diagram titled by the heading
above it. PATTERNs are include globs and replace the configured ones.
Diagrams whose source is already saved are skipped.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := openApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		root := "."
		if len(args) > 0 {
			root = args[0]
		}
		include := a.cfg.Include
		if len(args) > 1 {
			include = args[1:]
		}
		exclude := a.cfg.Exclude
		if extra, _ := cmd.Flags().GetStringSlice("exclude"); len(extra) > 0 {
			exclude = append(append([]string{}, exclude...), extra...)
		}
		dryRun, _ := cmd.Flags().GetBool("dry-run")
		allowDup, _ := cmd.Flags().GetBool("allow-duplicates")

		im := importers.New(a.store,
			importers.WithRuns(importers.NewStore(a.db)),
			importers.WithReporter(progress.NewReporter()),
			importers.WithLogger(a.logger.Named("import")),
			importers.WithMetrics(a.metrics),
		)
		res, err := im.Import(ctx, walker.Config{
			RootDir: root,
			Include: include,
			Exclude: exclude,
		}, importers.Options{DryRun: dryRun, AllowDuplicates: allowDup})
		if res != nil {
			printImportResult(res, dryRun)
		}
		return err
	},
}

func printImportResult(res *importers.Result, dryRun bool) {
	for _, d := range res.Imported {
		if dryRun {
			fmt.Fprintf(os.Stderr, "  would import %q from %s\n", d.Title, d.Source)
		} else if verbose {
			fmt.Fprintf(os.Stderr, "  %s  %q from %s\n", d.ID, d.Title, d.Source)
		}
	}
	for _, e := range res.Errors {
		fmt.Fprintf(os.Stderr, "  warning: %s\n", e)
	}

	verb := "Imported"
	if dryRun {
		verb = "Would import"
	}
	fmt.Fprintf(os.Stderr, "%s %d diagram(s) from %d file(s)", verb, len(res.Imported), res.FilesScanned)
	if res.Duplicates > 0 {
		fmt.Fprintf(os.Stderr, ", skipped %d already saved", res.Duplicates)
	}
	fmt.Fprintln(os.Stderr, ".")
	if res.RunID != "" && verbose {
		fmt.Fprintf(os.Stderr, "Run id: %s\n", res.RunID)
	}
}

func init() {
	importCmd.Flags().StringSlice("exclude", nil, "additional exclude globs")
	importCmd.Flags().Bool("dry-run", false, "list what would be imported without saving")
	importCmd.Flags().Bool("allow-duplicates", false, "import diagrams even when the same source is already saved")
	rootCmd.AddCommand(importCmd)
}
