package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/ziadkadry99/diagramstudio/internal/diagrams"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List saved diagrams",
	Long:  `Lists the diagram gallery, optionally filtered by a search term or diagram type.`,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := openApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		search, _ := cmd.Flags().GetString("search")
		kindFlag, _ := cmd.Flags().GetString("type")
		sortFlag, _ := cmd.Flags().GetString("sort")
		asJSON, _ := cmd.Flags().GetBool("json")

		kind, err := diagrams.ParseKind(kindFlag)
		if err != nil {
			return err
		}
		all, err := a.store.List(ctx)
		if err != nil {
			return err
		}
		matched := diagrams.Filter(all, diagrams.Query{
			Search: search,
			Kind:   kind,
			Sort:   diagrams.ParseSort(sortFlag),
		})

		rows := make([]diagrams.Summary, 0, len(matched))
		for _, d := range matched {
			rows = append(rows, diagrams.Summarize(d))
		}
		if asJSON {
			return writeJSON(cmd, rows)
		}
		if len(rows) == 0 {
			if len(all) == 0 {
				fmt.Fprintln(os.Stderr, "No diagrams saved yet. Run `diagramstudio server` to create one.")
			} else {
				fmt.Fprintln(os.Stderr, "No diagrams match.")
			}
			return nil
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tTITLE\tTYPE\tUPDATED\tPREVIEW")
		for _, r := range rows {
			title := r.DisplayTitle
			if len(title) > 40 {
				title = title[:37] + "..."
			}
			preview := "-"
			if r.HasPreview {
				preview = "yes"
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", r.ID, title, r.KindLabel, formatMillis(r.UpdatedAt), preview)
		}
		return w.Flush()
	},
}

var showCmd = &cobra.Command{
	Use:   "show ID",
	Short: "Print a diagram's Mermaid source",
	Args:  cobra.ExactArgs(1),
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
		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			return writeJSON(cmd, d)
		}
		out := cmd.OutOrStdout()
		fmt.Fprintln(out, d.Content)
		if verbose {
			fmt.Fprintf(os.Stderr, "\n%s | %s | updated %s\n", d.DisplayTitle(), d.Kind().Label(), formatMillis(d.UpdatedAt))
		}
		return nil
	},
}

var saveCmd = &cobra.Command{
	Use:   "save [FILE]",
	Short: "Save Mermaid source as a diagram",
	Long: `Saves Mermaid source read from FILE (or stdin) as a new diagram, or as an
update when --id names an existing one. Prints the diagram id.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := openApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		path := ""
		if len(args) == 1 {
			path = args[0]
		}
		content, err := readSource(path)
		if err != nil {
			return err
		}
		if strings.TrimSpace(content) == "" {
			return fmt.Errorf("diagram source is empty")
		}

		id, _ := cmd.Flags().GetString("id")
		title, _ := cmd.Flags().GetString("title")
		thumb, _ := cmd.Flags().GetBool("thumbnail")

		draft := diagrams.Draft{ID: id, Title: title, Content: content}
		if id != "" && !cmd.Flags().Changed("title") {
			if existing, err := a.store.Get(ctx, id); err == nil && existing != nil {
				draft.Title = existing.Title
			}
		}
		if thumb {
			draft.PreviewImage = a.exporter().ThumbnailSource(ctx, a.renderEngine(), content, a.themes.Current())
		}

		saved, err := a.store.Save(ctx, draft)
		if err != nil {
			return err
		}
		if id != "" && saved != id {
			fmt.Fprintf(os.Stderr, "No diagram %s; saved as a new diagram.\n", id)
		}
		fmt.Fprintln(cmd.OutOrStdout(), saved)
		return nil
	},
}

var deleteCmd = &cobra.Command{
	Use:   "delete ID...",
	Short: "Delete diagrams",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := openApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		if yes, _ := cmd.Flags().GetBool("yes"); !yes {
			label := fmt.Sprintf("Delete %d diagram(s)? This cannot be undone", len(args))
			if len(args) == 1 {
				d, err := a.mustFind(ctx, args[0])
				if err != nil {
					return err
				}
				label = fmt.Sprintf("Delete %q? This cannot be undone", d.DisplayTitle())
			}
			ok, err := confirm(label)
			if err != nil {
				return err
			}
			if !ok {
				fmt.Fprintln(os.Stderr, "Cancelled.")
				return nil
			}
		}

		n, err := a.store.DeleteMany(ctx, args)
		if err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "Deleted %d diagram(s).\n", n)
		return nil
	},
}

var duplicateCmd = &cobra.Command{
	Use:   "duplicate ID",
	Short: "Copy a diagram and print the copy's id",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := openApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		id, err := a.store.Duplicate(ctx, args[0])
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), id)
		return nil
	},
}

func writeJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func formatMillis(ms int64) string {
	return time.UnixMilli(ms).Local().Format("2006-01-02 15:04")
}

func init() {
	listCmd.Flags().String("search", "", "filter by title or type")
	listCmd.Flags().String("type", "all", "filter by diagram type (flowchart, sequence, class, ...)")
	listCmd.Flags().String("sort", "newest", "order: newest, oldest or name")
	listCmd.Flags().Bool("json", false, "print JSON")

	showCmd.Flags().Bool("json", false, "print the whole record as JSON")

	saveCmd.Flags().String("id", "", "update this diagram instead of creating one")
	saveCmd.Flags().String("title", "", "diagram title")
	saveCmd.Flags().Bool("thumbnail", false, "render a gallery thumbnail (starts a headless browser)")

	deleteCmd.Flags().BoolP("yes", "y", false, "skip the confirmation prompt")

	rootCmd.AddCommand(listCmd, showCmd, saveCmd, deleteCmd, duplicateCmd)
}
