package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/manifoldco/promptui"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/ziadkadry99/diagramstudio/internal/config"
	"github.com/ziadkadry99/diagramstudio/internal/db"
	"github.com/ziadkadry99/diagramstudio/internal/diagrams"
	"github.com/ziadkadry99/diagramstudio/internal/export"
	"github.com/ziadkadry99/diagramstudio/internal/kv"
	"github.com/ziadkadry99/diagramstudio/internal/logging"
	"github.com/ziadkadry99/diagramstudio/internal/metrics"
	"github.com/ziadkadry99/diagramstudio/internal/render"
	"github.com/ziadkadry99/diagramstudio/internal/theme"
)

// dbFileName is the SQLite file inside the data directory.
const dbFileName = "diagramstudio.db"

// loadConfig loads and validates the config, providing a user-friendly error.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w\nRun `diagramstudio init` to create a config file", err)
	}
	if verbose {
		cfg.Log.Level = zapcore.DebugLevel.String()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// app holds what most commands need: config, logger, database, storage,
// the diagram store and the theme manager. The browser engine is started
// lazily because only rendering commands need it.
type app struct {
	cfg     *config.Config
	logger  *zap.Logger
	metrics *metrics.Collector
	db      *db.DB
	storage kv.Storage
	store   *diagrams.Store
	themes  *theme.Manager

	engine  *render.RodEngine
	closers []func() error
}

func openApp(ctx context.Context) (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	logger, err := logging.New(cfg.Log)
	if err != nil {
		return nil, err
	}

	a := &app{cfg: cfg, logger: logger, metrics: metrics.New()}
	a.closers = append(a.closers, func() error {
		_ = logger.Sync()
		return nil
	})

	dbPath := filepath.Join(cfg.DataDir, dbFileName)
	a.db, err = db.Open(dbPath)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("opening database: %w", err)
	}
	a.closers = append(a.closers, a.db.Close)

	storage, closeStorage, err := kv.Open(ctx, cfg.Storage, a.db)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.storage = storage
	a.closers = append(a.closers, closeStorage)

	a.store = diagrams.NewStore(storage,
		diagrams.WithLogger(logger.Named("store")),
		diagrams.WithMetrics(a.metrics),
	)
	a.themes, err = theme.NewManager(ctx, storage, theme.Resolve(cfg.Theme.Default), logger.Named("theme"))
	if err != nil {
		a.Close()
		return nil, err
	}

	logger.Debug("opened app",
		zap.String("db", dbPath),
		zap.String("storage", string(cfg.Storage.Backend)),
	)
	return a, nil
}

// renderEngine returns the headless browser engine, creating it on first use.
func (a *app) renderEngine() *render.RodEngine {
	if a.engine == nil {
		a.engine = render.NewRodEngine(render.RodConfig{
			ChromeBin:     a.cfg.Render.ChromeBin,
			ControlURL:    a.cfg.Render.ControlURL,
			Headless:      a.cfg.Render.Headless,
			MermaidScript: a.cfg.Render.MermaidScript,
			Timeout:       a.cfg.Render.Timeout,
		}, a.logger.Named("render"))
		a.closers = append(a.closers, a.engine.Close)
	}
	return a.engine
}

func (a *app) exporter() *export.Exporter {
	return export.New(a.renderEngine(), a.logger.Named("export"), a.metrics)
}

func (a *app) exportDefaults() export.Options {
	return export.Options{
		Format:      a.cfg.Export.Format,
		Transparent: a.cfg.Export.Transparent,
		Scale:       a.cfg.Export.Scale,
	}
}

// Close releases everything in reverse order of acquisition.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil && a.logger != nil {
			a.logger.Debug("closing", zap.Error(err))
		}
	}
	a.closers = nil
}

// mustFind loads a diagram or reports a user-facing not-found error.
func (a *app) mustFind(ctx context.Context, id string) (*diagrams.SavedDiagram, error) {
	d, err := a.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if d == nil {
		return nil, fmt.Errorf("%w: %s (run `diagramstudio list` to see ids)", diagrams.ErrNotFound, id)
	}
	return d, nil
}

// confirm asks a yes/no question. Ctrl+C and "no" both answer false.
func confirm(label string) (bool, error) {
	p := promptui.Prompt{
		Label:     label,
		IsConfirm: true,
	}
	_, err := p.Run()
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, promptui.ErrAbort), errors.Is(err, promptui.ErrInterrupt):
		return false, nil
	default:
		return false, err
	}
}

// readSource reads Mermaid source from a file, or stdin for "-" or no path.
func readSource(path string) (string, error) {
	var (
		data []byte
		err  error
	)
	if path == "" || path == "-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return "", fmt.Errorf("reading diagram source: %w", err)
	}
	return string(data), nil
}
