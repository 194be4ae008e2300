// Package editor serves the live editor: its HTML pages and the WebSocket
// that binds each open page to its own editor session.
package editor

import (
	_ "embed"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/ziadkadry99/diagramstudio/internal/diagrams"
	"github.com/ziadkadry99/diagramstudio/internal/export"
	"github.com/ziadkadry99/diagramstudio/internal/metrics"
	"github.com/ziadkadry99/diagramstudio/internal/render"
	"github.com/ziadkadry99/diagramstudio/internal/session"
	"github.com/ziadkadry99/diagramstudio/internal/theme"
)

//go:embed editor.html
var editorHTML []byte

//go:embed gallery.html
var galleryHTML []byte

// Options tunes the sessions the editor opens.
type Options struct {
	// Exporter makes thumbnails on save. Nil saves without them.
	Exporter *export.Exporter
	Autosave bool
	Delay    time.Duration
	// Scheduler drives autosave timers. Nil uses the wall clock.
	Scheduler session.Scheduler
	Logger    *zap.Logger
	Metrics   *metrics.Collector
	// CheckOrigin vets WebSocket upgrades. Nil accepts only same-host
	// origins.
	CheckOrigin func(r *http.Request) bool
}

// Editor hosts editor sessions over WebSocket.
type Editor struct {
	store    *diagrams.Store
	engine   render.Engine
	themes   *theme.Manager
	opts     Options
	logger   *zap.Logger
	upgrader websocket.Upgrader
}

// New creates an Editor. themes may be nil, in which case every session
// renders in the light theme and theme messages only affect that session.
func New(store *diagrams.Store, engine render.Engine, themes *theme.Manager, opts Options) *Editor {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Editor{
		store:  store,
		engine: engine,
		themes: themes,
		opts:   opts,
		logger: logger,
		upgrader: websocket.Upgrader{
			CheckOrigin: opts.CheckOrigin,
		},
	}
}

// RegisterRoutes mounts the editor pages and socket.
func (e *Editor) RegisterRoutes(r chi.Router) {
	r.Get("/editor", serveHTML(editorHTML))
	r.Get("/editor/{id}", serveHTML(editorHTML))
	r.Get("/diagrams", serveHTML(galleryHTML))
	r.Get("/api/shortcuts", handleShortcuts)
	r.Get("/ws/editor", e.handleWebSocket)
	r.Get("/ws/editor/{id}", e.handleWebSocket)
}

func serveHTML(page []byte) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write(page)
	}
}

func handleShortcuts(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(session.Shortcuts())
}

func (e *Editor) currentTheme() theme.Theme {
	if e.themes == nil {
		return theme.Light
	}
	return e.themes.Current()
}

func (e *Editor) newSession(preview *render.Preview, logger *zap.Logger) *session.Session {
	opts := []session.Option{
		session.WithAutosave(e.opts.Autosave, e.opts.Delay),
		session.WithTheme(e.currentTheme()),
		session.WithLogger(logger),
		session.WithMetrics(e.opts.Metrics),
	}
	if e.opts.Exporter != nil {
		opts = append(opts, session.WithThumbnailer(e.opts.Exporter))
	}
	if e.opts.Scheduler != nil {
		opts = append(opts, session.WithScheduler(e.opts.Scheduler))
	}
	return session.New(e.store, preview, opts...)
}
