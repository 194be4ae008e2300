package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ziadkadry99/diagramstudio/internal/render"
	"github.com/ziadkadry99/diagramstudio/internal/session"
	"github.com/ziadkadry99/diagramstudio/internal/watch"
)

var editCmd = &cobra.Command{
	Use:   "edit FILE",
	Short: "Edit a Mermaid file in your own editor with autosave",
	Long: `Watches FILE and loads every change into an editor session, which
renders it and autosaves it to the diagram store after you stop typing.
Pass --id to keep editing an existing diagram. On Ctrl+C any unsaved
changes can be saved before exiting.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		a, err := openApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		id, _ := cmd.Flags().GetString("id")
		title, _ := cmd.Flags().GetString("title")
		svgOut, _ := cmd.Flags().GetString("output-svg")
		if id != "" {
			if _, err := a.mustFind(ctx, id); err != nil {
				return err
			}
		}

		logger := a.logger.Named("edit")
		preview := render.NewPreview(a.renderEngine(), logger, a.metrics)
		preview.OnUpdate(func(out render.Output) {
			if out.Error != "" {
				fmt.Fprintf(os.Stderr, "Syntax error: %s\n", out.Error)
				return
			}
			if svgOut == "" {
				return
			}
			if err := os.WriteFile(svgOut, []byte(out.SVG), 0o644); err != nil {
				logger.Warn("writing preview", zap.String("path", svgOut), zap.Error(err))
			}
		})

		sess := session.New(a.store, preview,
			session.WithAutosave(a.cfg.Autosave.Enabled, a.cfg.Autosave.Delay),
			session.WithTheme(a.themes.Current()),
			session.WithThumbnailer(a.exporter()),
			session.WithLogger(logger),
			session.WithMetrics(a.metrics),
		)
		defer sess.Close()
		unsubscribe := a.themes.Subscribe(sess.SetTheme)
		defer unsubscribe()

		var lastStatus session.Status
		sess.OnState(func(st session.State) {
			if st.Status == lastStatus && st.Error == "" {
				return
			}
			lastStatus = st.Status
			printEditState(st)
		})

		fe, err := watch.New(args[0], sess, logger)
		if err != nil {
			return err
		}
		if err := sess.Open(ctx, session.LoadRequest{ID: id}); err != nil {
			fe.Close()
			return err
		}
		if err := fe.Load(); err != nil {
			fe.Close()
			return err
		}
		if title == "" && id == "" {
			base := filepath.Base(fe.Path())
			title = strings.TrimSuffix(base, filepath.Ext(base))
		}
		if title != "" {
			sess.SetTitle(title)
		}

		fmt.Fprintf(os.Stderr, "Editing %s. Press Ctrl+C to stop.\n", fe.Path())

		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error { return fe.Run(gctx) })
		if err := g.Wait(); err != nil {
			return err
		}

		fmt.Fprintln(os.Stderr)
		saved, err := fe.Finish(cmd.Context(), func(st session.State) bool {
			ok, err := confirm("Save unsaved changes")
			return err == nil && ok
		})
		if err != nil {
			return fmt.Errorf("saving on exit: %w", err)
		}
		if saved {
			fmt.Fprintf(os.Stderr, "Saved %s.\n", sess.State().ID)
		}
		return nil
	},
}

func printEditState(st session.State) {
	switch {
	case st.Error != "":
		fmt.Fprintf(os.Stderr, "Save failed: %s\n", st.Error)
	case st.Status == session.StatusSaving:
		fmt.Fprintln(os.Stderr, "Saving...")
	case st.Status == session.StatusSaved:
		at := time.UnixMilli(st.LastSavedAt).Format("15:04:05")
		fmt.Fprintf(os.Stderr, "Saved %s at %s\n", st.ID, at)
	case st.Dirty:
		fmt.Fprintln(os.Stderr, "Unsaved changes")
	}
}

func init() {
	editCmd.Flags().String("id", "", "diagram id to keep editing")
	editCmd.Flags().String("title", "", "diagram title (default file name)")
	editCmd.Flags().String("output-svg", "", "also write every successful render to this SVG file")
	rootCmd.AddCommand(editCmd)
}
