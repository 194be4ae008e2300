package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ziadkadry99/diagramstudio/internal/progress"
	"github.com/ziadkadry99/diagramstudio/internal/render"
)

var exportCmd = &cobra.Command{
	Use:   "export ID",
	Short: "Export a diagram as SVG or PNG",
	Long: `Renders a saved diagram in the current theme and writes it as SVG or PNG.
The file is named after the diagram title unless --output is given; use
--output - to write to stdout.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := openApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		d, err := a.mustFind(ctx, args[0])
		if err != nil {
			return err
		}

		opts := a.exportDefaults()
		if cmd.Flags().Changed("format") {
			opts.Format, _ = cmd.Flags().GetString("format")
		}
		if cmd.Flags().Changed("transparent") {
			opts.Transparent, _ = cmd.Flags().GetBool("transparent")
		}
		if cmd.Flags().Changed("scale") {
			opts.Scale, _ = cmd.Flags().GetFloat64("scale")
		}

		artifact, err := a.exporter().RenderAndExport(ctx, a.renderEngine(), d.Content, d.Title, a.themes.Current(), opts)
		if err != nil {
			var syntax *render.SyntaxError
			if errors.As(err, &syntax) {
				return fmt.Errorf("diagram %s does not render: %s", d.ID, syntax.Message)
			}
			return err
		}

		output, _ := cmd.Flags().GetString("output")
		if output == "-" {
			_, err := cmd.OutOrStdout().Write(artifact.Data)
			return err
		}
		if output == "" {
			output = artifact.FileName
		}
		if err := os.WriteFile(output, artifact.Data, 0o644); err != nil {
			return fmt.Errorf("writing %s: %w", output, err)
		}
		fmt.Fprintf(os.Stderr, "Exported %s (%d bytes)\n", output, len(artifact.Data))
		return nil
	},
}

var thumbnailsCmd = &cobra.Command{
	Use:   "thumbnails",
	Short: "Regenerate gallery thumbnails",
	Long:  `Renders every saved diagram and stores a fresh gallery thumbnail for it.`,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := openApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		all, err := a.store.List(ctx)
		if err != nil {
			return err
		}
		missingOnly, _ := cmd.Flags().GetBool("missing")

		todo := all[:0]
		for _, d := range all {
			if !missingOnly || d.PreviewImage == "" {
				todo = append(todo, d)
			}
		}
		if len(todo) == 0 {
			fmt.Fprintln(os.Stderr, "Nothing to do.")
			return nil
		}

		exporter := a.exporter()
		engine := a.renderEngine()
		t := a.themes.Current()
		reporter := progress.NewReporter()
		reporter.Start(len(todo), "Thumbnails")

		var updated, failed int
		for i, d := range todo {
			if err := ctx.Err(); err != nil {
				reporter.Finish()
				return err
			}
			reporter.Update(i+1, d.DisplayTitle())

			thumb := exporter.ThumbnailSource(ctx, engine, d.Content, t)
			if thumb == "" {
				failed++
				continue
			}
			if err := a.store.SetPreview(ctx, d.ID, thumb); err != nil {
				reporter.Finish()
				return err
			}
			updated++
		}
		reporter.Finish()

		fmt.Fprintf(os.Stderr, "Updated %d thumbnail(s)", updated)
		if failed > 0 {
			fmt.Fprintf(os.Stderr, ", %d diagram(s) did not render", failed)
		}
		fmt.Fprintln(os.Stderr, ".")
		return nil
	},
}

func init() {
	exportCmd.Flags().String("format", "", "svg or png (default from config)")
	exportCmd.Flags().Bool("transparent", true, "keep the background transparent")
	exportCmd.Flags().Float64("scale", 1, "PNG scale factor (0.5 to 3)")
	exportCmd.Flags().StringP("output", "o", "", "output file, or - for stdout")

	thumbnailsCmd.Flags().Bool("missing", false, "only diagrams without a thumbnail")

	rootCmd.AddCommand(exportCmd, thumbnailsCmd)
}
