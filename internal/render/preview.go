package render

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/ziadkadry99/diagramstudio/internal/metrics"
	"github.com/ziadkadry99/diagramstudio/internal/theme"
)

// Output is what the preview container shows: markup or an error message,
// never both. Both empty means the container is blank.
type Output struct {
	Seq   uint64 `json:"seq"`
	SVG   string `json:"svg,omitempty"`
	Error string `json:"error,omitempty"`
}

// Preview is the render target for one editor. Each request is numbered;
// a result is applied only if no newer request was issued while it ran.
type Preview struct {
	engine  Engine
	logger  *zap.Logger
	metrics *metrics.Collector

	mu       sync.Mutex
	issued   uint64
	current  Output
	onUpdate func(Output)
	// source and theme the current output was rendered from
	currentSource string
	currentTheme  theme.Theme

	wg sync.WaitGroup
}

// NewPreview creates an empty preview backed by engine.
func NewPreview(engine Engine, logger *zap.Logger, m *metrics.Collector) *Preview {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Preview{engine: engine, logger: logger, metrics: m}
}

// OnUpdate sets the function called with every applied Output. It runs with
// the preview locked so updates arrive in order; it must not call back into
// the preview.
func (p *Preview) OnUpdate(fn func(Output)) {
	p.mu.Lock()
	p.onUpdate = fn
	p.mu.Unlock()
}

// Current returns the displayed output.
func (p *Preview) Current() Output {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.current
}

// Render clears the container, renders source and applies the result. It
// returns the output and whether it was applied; a result superseded by a
// newer request, or whose context was cancelled, is discarded.
func (p *Preview) Render(ctx context.Context, source string, t theme.Theme) (Output, bool) {
	return p.run(ctx, p.begin(), source, t)
}

// begin numbers a new request and clears the container.
func (p *Preview) begin() uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.issued++
	p.current = Output{Seq: p.issued}
	return p.issued
}

func (p *Preview) run(ctx context.Context, seq uint64, source string, t theme.Theme) (Output, bool) {
	out := Output{Seq: seq}
	if strings.TrimSpace(source) != "" {
		start := time.Now()
		svg, err := p.engine.Render(ctx, source, t)
		elapsed := time.Since(start)

		var syn *SyntaxError
		switch {
		case ctx.Err() != nil:
			p.metrics.Rendered("stale", elapsed)
			return Output{}, false
		case errors.As(err, &syn):
			out.Error = syn.Message
			p.metrics.Rendered("syntax_error", elapsed)
		case err != nil:
			out.Error = err.Error()
			p.logger.Warn("render failed", zap.Error(err))
			p.metrics.Rendered("error", elapsed)
		default:
			out.SVG = svg
			p.metrics.Rendered("ok", elapsed)
		}
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if seq != p.issued {
		p.metrics.Rendered("stale", 0)
		return out, false
	}
	p.current = out
	p.currentSource, p.currentTheme = source, t
	if p.onUpdate != nil {
		p.onUpdate(out)
	}
	return out, true
}

// Request renders in the background. The request is numbered before
// Request returns, so call order decides which result wins. Use Wait to
// block until every background render has finished.
func (p *Preview) Request(ctx context.Context, source string, t theme.Theme) {
	seq := p.begin()
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		p.run(ctx, seq, source, t)
	}()
}

// Wait blocks until all background renders have returned.
func (p *Preview) Wait() {
	p.wg.Wait()
}

// Markup returns the SVG for source in theme t. The displayed output is
// reused when it was rendered from the same source and theme; otherwise
// source is rendered directly and the display is left alone.
func (p *Preview) Markup(ctx context.Context, source string, t theme.Theme) (string, error) {
	p.mu.Lock()
	cur, src, th := p.current, p.currentSource, p.currentTheme
	p.mu.Unlock()
	if cur.SVG != "" && src == source && th == t {
		return cur.SVG, nil
	}
	if strings.TrimSpace(source) == "" {
		return "", nil
	}
	return p.engine.Render(ctx, source, t)
}
