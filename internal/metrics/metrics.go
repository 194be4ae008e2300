// Package metrics holds the Prometheus collectors shared by the store,
// renderer, exporter and editor sessions.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "diagramstudio"

// Collector owns a private registry so tests can build as many as they like.
// All recording methods are safe on a nil *Collector.
type Collector struct {
	registry *prometheus.Registry

	DiagramSaves   *prometheus.CounterVec
	DiagramDeletes prometheus.Counter
	LoadFallbacks  prometheus.Counter

	Renders        *prometheus.CounterVec
	RenderDuration prometheus.Histogram

	Exports    *prometheus.CounterVec
	Thumbnails *prometheus.CounterVec

	SessionSaves *prometheus.CounterVec

	Imports *prometheus.CounterVec
}

// New creates a collector with every metric registered.
func New() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		DiagramSaves: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "diagram_saves_total",
			Help:      "Diagram saves by outcome (created, updated).",
		}, []string{"outcome"}),
		DiagramDeletes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "diagram_deletes_total",
			Help:      "Diagrams removed from the store.",
		}),
		LoadFallbacks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "store_load_fallbacks_total",
			Help:      "Loads that found unreadable data and started empty.",
		}),
		Renders: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "renders_total",
			Help:      "Preview renders by result (ok, syntax_error, error, stale).",
		}, []string{"result"}),
		RenderDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "render_duration_seconds",
			Help:      "Time spent in the render engine.",
			Buckets:   prometheus.DefBuckets,
		}),
		Exports: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "exports_total",
			Help:      "Exports by format and result.",
		}, []string{"format", "result"}),
		Thumbnails: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "thumbnails_total",
			Help:      "Thumbnail generations by result.",
		}, []string{"result"}),
		SessionSaves: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "session_saves_total",
			Help:      "Editor session saves by trigger and result.",
		}, []string{"trigger", "result"}),
		Imports: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "imported_diagrams_total",
			Help:      "Diagrams found by bulk import, by outcome (imported, duplicate).",
		}, []string{"outcome"}),
	}

	c.registry.MustRegister(
		c.DiagramSaves,
		c.DiagramDeletes,
		c.LoadFallbacks,
		c.Renders,
		c.RenderDuration,
		c.Exports,
		c.Thumbnails,
		c.SessionSaves,
		c.Imports,
	)
	return c
}

// Registry exposes the underlying registry, mainly for tests.
func (c *Collector) Registry() *prometheus.Registry { return c.registry }

// Handler serves the registry in the Prometheus text format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

func (c *Collector) DiagramSaved(created bool) {
	if c == nil {
		return
	}
	outcome := "updated"
	if created {
		outcome = "created"
	}
	c.DiagramSaves.WithLabelValues(outcome).Inc()
}

func (c *Collector) DiagramsDeleted(n int) {
	if c == nil || n <= 0 {
		return
	}
	c.DiagramDeletes.Add(float64(n))
}

func (c *Collector) LoadFellBack() {
	if c == nil {
		return
	}
	c.LoadFallbacks.Inc()
}

func (c *Collector) Rendered(result string, d time.Duration) {
	if c == nil {
		return
	}
	c.Renders.WithLabelValues(result).Inc()
	if d > 0 {
		c.RenderDuration.Observe(d.Seconds())
	}
}

func (c *Collector) Exported(format string, err error) {
	if c == nil {
		return
	}
	c.Exports.WithLabelValues(format, result(err)).Inc()
}

func (c *Collector) Thumbnailed(ok bool) {
	if c == nil {
		return
	}
	r := "ok"
	if !ok {
		r = "error"
	}
	c.Thumbnails.WithLabelValues(r).Inc()
}

func (c *Collector) SessionSaved(trigger string, err error) {
	if c == nil {
		return
	}
	c.SessionSaves.WithLabelValues(trigger, result(err)).Inc()
}

func (c *Collector) Imported(imported, duplicates int) {
	if c == nil {
		return
	}
	c.Imports.WithLabelValues("imported").Add(float64(imported))
	c.Imports.WithLabelValues("duplicate").Add(float64(duplicates))
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
