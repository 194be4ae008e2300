package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ziadkadry99/diagramstudio/internal/diagrams"
	"github.com/ziadkadry99/diagramstudio/internal/editor"
	"github.com/ziadkadry99/diagramstudio/internal/importers"
	"github.com/ziadkadry99/diagramstudio/internal/render"
	"github.com/ziadkadry99/diagramstudio/internal/server"
	"github.com/ziadkadry99/diagramstudio/internal/site"
	"github.com/ziadkadry99/diagramstudio/internal/templates"
	"github.com/ziadkadry99/diagramstudio/internal/theme"
)

var (
	serverPort int
	serverOpen bool
)

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Start the web editor",
	Long:  `Starts the HTTP server hosting the live editor, the gallery and the JSON API.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		a, err := openApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		port := a.cfg.Server.Port
		if cmd.Flags().Changed("port") {
			port = serverPort
		}

		srv := server.New(server.Config{
			Port:     port,
			AllowAll: a.cfg.Server.AllowAllOrigins,
		}, a.logger.Named("http"), a.metrics)
		registerAllRoutes(srv, a)

		url := fmt.Sprintf("http://localhost:%d", port)
		fmt.Fprintf(os.Stderr, "diagramstudio %s serving %s\n", Version, url)
		fmt.Fprintf(os.Stderr, "  Data: %s (%s storage)\n", filepath.Join(a.cfg.DataDir, dbFileName), a.cfg.Storage.Backend)
		fmt.Fprintln(os.Stderr, "Press Ctrl+C to stop.")

		if serverOpen {
			go func() {
				time.Sleep(300 * time.Millisecond)
				if err := site.OpenBrowser(url); err != nil {
					a.logger.Warn("opening browser", zap.Error(err))
				}
			}()
		}

		err = srv.Run(ctx, 10*time.Second)
		fmt.Fprintln(os.Stderr, "\nServer stopped.")
		return err
	},
}

// registerAllRoutes wires every feature's routes onto the server.
func registerAllRoutes(srv *server.Server, a *app) {
	r := srv.Router()
	engine := a.renderEngine()
	exporter := a.exporter()

	// Diagram collection and export
	diagrams.RegisterRoutes(r, a.store, &diagrams.ExportDeps{
		Exporter: exporter,
		Engine:   engine,
		Theme:    a.themes.Current,
		Defaults: a.exportDefaults(),
	})

	// Theme preference
	theme.RegisterRoutes(r, a.themes)

	// One-off rendering
	render.RegisterRoutes(r, engine, a.themes.Current)

	// Template catalog
	templates.RegisterRoutes(r)

	// Import history
	importers.RegisterRoutes(r, importers.NewStore(a.db))

	// Live editor pages and sockets
	ed := editor.New(a.store, engine, a.themes, editor.Options{
		Exporter: exporter,
		Autosave: a.cfg.Autosave.Enabled,
		Delay:    a.cfg.Autosave.Delay,
		Logger:   a.logger.Named("editor"),
		Metrics:  a.metrics,

		CheckOrigin: srv.CheckOrigin,
	})
	ed.RegisterRoutes(r)

	// Landing and help pages
	site.New(a.store, a.themes, site.Options{
		Autosave: a.cfg.Autosave.Enabled,
		Delay:    a.cfg.Autosave.Delay.String(),
		Logger:   a.logger.Named("site"),
	}).RegisterRoutes(r)
}

func init() {
	serverCmd.Flags().IntVar(&serverPort, "port", 8080, "Port to listen on (overrides config)")
	serverCmd.Flags().BoolVar(&serverOpen, "open", false, "Open the editor in the default browser")
	rootCmd.AddCommand(serverCmd)
}
