// Package importers bulk-imports Mermaid diagrams from files on disk into
// the diagram store and records each run.
package importers

import (
	"context"
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"

	"github.com/ziadkadry99/diagramstudio/internal/diagrams"
	"github.com/ziadkadry99/diagramstudio/internal/metrics"
	"github.com/ziadkadry99/diagramstudio/internal/progress"
	"github.com/ziadkadry99/diagramstudio/internal/walker"
)

// Importer walks a directory and saves every diagram it finds.
type Importer struct {
	diagrams *diagrams.Store
	runs     *Store
	reporter progress.Reporter
	logger   *zap.Logger
	metrics  *metrics.Collector
}

// Option configures an Importer.
type Option func(*Importer)

// WithRuns records each run in store.
func WithRuns(store *Store) Option {
	return func(im *Importer) { im.runs = store }
}

// WithReporter reports per-file progress.
func WithReporter(r progress.Reporter) Option {
	return func(im *Importer) { im.reporter = r }
}

func WithLogger(l *zap.Logger) Option {
	return func(im *Importer) { im.logger = l }
}

func WithMetrics(c *metrics.Collector) Option {
	return func(im *Importer) { im.metrics = c }
}

// New creates an Importer that saves into store.
func New(store *diagrams.Store, opts ...Option) *Importer {
	im := &Importer{
		diagrams: store,
		reporter: progress.Nop{},
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(im)
	}
	return im
}

// Import walks cfg.RootDir and saves each diagram found. Files that cannot
// be read are noted in Result.Errors and skipped; a store failure aborts
// the run. Diagrams whose source already exists in the store are skipped
// unless opts.AllowDuplicates is set.
func (im *Importer) Import(ctx context.Context, cfg walker.Config, opts Options) (*Result, error) {
	files, err := walker.Walk(cfg)
	if err != nil {
		return nil, fmt.Errorf("scanning %s: %w", cfg.RootDir, err)
	}

	existing := map[string]bool{}
	if !opts.AllowDuplicates {
		all, err := im.diagrams.List(ctx)
		if err != nil {
			return nil, err
		}
		for _, d := range all {
			existing[normalize(d.Content)] = true
		}
	}

	var run *Run
	if im.runs != nil && !opts.DryRun {
		if run, err = im.runs.Start(ctx, cfg.RootDir); err != nil {
			return nil, err
		}
	}

	res := &Result{Imported: []Imported{}}
	if run != nil {
		res.RunID = run.ID
	}
	im.logger.Info("importing diagrams",
		zap.String("root", cfg.RootDir),
		zap.Int("files", len(files)),
		zap.Bool("dry_run", opts.DryRun),
	)

	im.reporter.Start(len(files), "Importing")
	runErr := im.importFiles(ctx, files, opts, existing, res)
	im.reporter.Finish()
	im.metrics.Imported(len(res.Imported), res.Duplicates)

	if run != nil {
		run.FilesScanned = res.FilesScanned
		run.DiagramsImported = len(res.Imported)
		run.Errors = append([]string{}, res.Errors...)
		run.Status = StatusCompleted
		if runErr != nil {
			run.Status = StatusFailed
			run.Errors = append(run.Errors, runErr.Error())
		}
		// The run record is written even when ctx was cancelled.
		if err := im.runs.Finish(context.WithoutCancel(ctx), run); err != nil {
			im.logger.Warn("recording import run", zap.String("id", run.ID), zap.Error(err))
		}
	}
	if runErr != nil {
		return res, runErr
	}
	return res, nil
}

func (im *Importer) importFiles(ctx context.Context, files []walker.FileInfo, opts Options, existing map[string]bool, res *Result) error {
	for i, f := range files {
		if err := ctx.Err(); err != nil {
			return err
		}
		im.reporter.Update(i+1, f.RelPath)

		data, err := os.ReadFile(f.Path)
		if err != nil {
			im.logger.Warn("reading file", zap.String("path", f.RelPath), zap.Error(err))
			res.Errors = append(res.Errors, fmt.Sprintf("%s: %v", f.RelPath, err))
			continue
		}
		res.FilesScanned++

		for _, c := range Extract(f, data) {
			res.Found++
			key := normalize(c.Content)
			if existing[key] {
				res.Duplicates++
				continue
			}
			existing[key] = !opts.AllowDuplicates

			imported := Imported{Title: c.Title, Source: c.Source}
			if !opts.DryRun {
				id, err := im.diagrams.Save(ctx, diagrams.Draft{Title: c.Title, Content: c.Content})
				if err != nil {
					return fmt.Errorf("saving %q from %s: %w", c.Title, c.Source, err)
				}
				imported.ID = id
			}
			res.Imported = append(res.Imported, imported)
		}
	}
	return nil
}

// normalize makes sources that differ only in line endings or surrounding
// whitespace compare equal.
func normalize(content string) string {
	return strings.TrimSpace(strings.ReplaceAll(content, "\r\n", "\n"))
}
