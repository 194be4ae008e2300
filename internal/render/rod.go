package render

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"image"
	"image/png"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"go.uber.org/zap"

	"github.com/ziadkadry99/diagramstudio/internal/theme"
)

// RodConfig configures the headless Chrome that hosts Mermaid.
type RodConfig struct {
	// ChromeBin is the browser binary; empty lets rod find or download one.
	ChromeBin string
	// ControlURL connects to an already running browser instead of launching.
	ControlURL string
	Headless   bool
	// MermaidScript is a URL or a local file path to the Mermaid bundle.
	MermaidScript string
	Timeout       time.Duration
}

const hostPage = `<!DOCTYPE html>
<html><head><meta charset="utf-8"></head>
<body style="margin:0;background:transparent"><div id="container"></div></body></html>`

const initializeJS = `(theme) => {
	mermaid.initialize({
		startOnLoad: false,
		theme: theme,
		securityLevel: 'loose',
		flowchart: { htmlLabels: true, curve: 'basis' },
	});
	return true;
}`

const renderJS = `async (id, source) => {
	try {
		const { svg } = await mermaid.render(id, source);
		return { svg: svg };
	} catch (e) {
		const stray = document.getElementById('d' + id);
		if (stray) stray.remove();
		return { error: String((e && e.message) || e) };
	}
}`

const rasterizeJS = `(svg, scale) => new Promise((resolve) => {
	const img = new Image();
	img.onload = () => {
		const w = Math.ceil((img.naturalWidth || img.width) * scale);
		const h = Math.ceil((img.naturalHeight || img.height) * scale);
		if (!w || !h) {
			resolve({ error: 'svg has no intrinsic size' });
			return;
		}
		const canvas = document.createElement('canvas');
		canvas.width = w;
		canvas.height = h;
		const ctx = canvas.getContext('2d');
		ctx.scale(scale, scale);
		ctx.drawImage(img, 0, 0);
		try {
			resolve({ png: canvas.toDataURL('image/png') });
		} catch (e) {
			resolve({ error: String((e && e.message) || e) });
		}
	};
	img.onerror = () => resolve({ error: 'svg could not be loaded as an image' });
	img.src = 'data:image/svg+xml;base64,' + btoa(unescape(encodeURIComponent(svg)));
})`

// RodEngine runs Mermaid inside a headless Chrome driven by go-rod. The
// browser is started on first use. One page is shared, so calls are
// serialized.
type RodEngine struct {
	cfg    RodConfig
	logger *zap.Logger

	mu       sync.Mutex
	launcher *launcher.Launcher
	browser  *rod.Browser
	page     *rod.Page
	theme    string
	counter  int
}

// NewRodEngine creates an engine. No browser is started until the first
// Render or Rasterize.
func NewRodEngine(cfg RodConfig, logger *zap.Logger) *RodEngine {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &RodEngine{cfg: cfg, logger: logger}
}

// Render implements Engine.
func (e *RodEngine) Render(ctx context.Context, source string, t theme.Theme) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, e.cfg.Timeout)
	defer cancel()

	if err := e.startLocked(); err != nil {
		return "", err
	}

	if want := t.Mermaid(); want != e.theme {
		if _, err := e.page.Context(ctx).Evaluate(&rod.EvalOptions{
			JS:     initializeJS,
			JSArgs: []interface{}{want},
		}); err != nil {
			e.resetLocked()
			return "", fmt.Errorf("initializing mermaid: %w", err)
		}
		e.theme = want
	}

	e.counter++
	id := fmt.Sprintf("mermaid-%d", e.counter)

	var result struct {
		SVG   string `json:"svg"`
		Error string `json:"error"`
	}
	if err := e.evalLocked(ctx, renderJS, &result, id, source); err != nil {
		return "", fmt.Errorf("rendering: %w", err)
	}
	if result.Error != "" {
		return "", &SyntaxError{Message: result.Error}
	}
	return result.SVG, nil
}

// Rasterize draws svg onto a transparent canvas at the given scale and
// returns the decoded PNG.
func (e *RodEngine) Rasterize(ctx context.Context, svg string, scale float64) (image.Image, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, e.cfg.Timeout)
	defer cancel()

	if err := e.startLocked(); err != nil {
		return nil, err
	}

	var result struct {
		PNG   string `json:"png"`
		Error string `json:"error"`
	}
	if err := e.evalLocked(ctx, rasterizeJS, &result, svg, scale); err != nil {
		return nil, fmt.Errorf("rasterizing: %w", err)
	}
	if result.Error != "" {
		return nil, fmt.Errorf("rasterizing: %s", result.Error)
	}

	encoded := result.PNG
	if i := strings.Index(encoded, ","); i >= 0 {
		encoded = encoded[i+1:]
	}
	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("decoding rasterized image: %w", err)
	}
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decoding rasterized image: %w", err)
	}
	return img, nil
}

// Close shuts the browser down. The engine starts a new one if used again.
func (e *RodEngine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.resetLocked()
}

func (e *RodEngine) evalLocked(ctx context.Context, js string, out interface{}, args ...interface{}) error {
	res, err := e.page.Context(ctx).Evaluate(&rod.EvalOptions{
		JS:           js,
		JSArgs:       args,
		ByValue:      true,
		AwaitPromise: true,
	})
	if err != nil {
		if ctx.Err() == nil {
			// The page or browser is gone; start over on the next call.
			e.resetLocked()
		}
		return err
	}
	raw, err := res.Value.MarshalJSON()
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, out)
}

func (e *RodEngine) startLocked() error {
	if e.page != nil {
		return nil
	}

	controlURL := e.cfg.ControlURL
	if controlURL == "" {
		l := launcher.New().Headless(e.cfg.Headless)
		if e.cfg.ChromeBin != "" {
			l = l.Bin(e.cfg.ChromeBin)
		}
		u, err := l.Launch()
		if err != nil {
			return fmt.Errorf("launching chrome: %w", err)
		}
		e.launcher = l
		controlURL = u
	}

	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		e.resetLocked()
		return fmt.Errorf("connecting to chrome: %w", err)
	}
	e.browser = browser

	page, err := browser.Page(proto.TargetCreateTarget{URL: "about:blank"})
	if err != nil {
		e.resetLocked()
		return fmt.Errorf("opening render page: %w", err)
	}
	if err := page.SetDocumentContent(hostPage); err != nil {
		e.resetLocked()
		return fmt.Errorf("loading render page: %w", err)
	}
	if err := e.loadMermaid(page); err != nil {
		e.resetLocked()
		return err
	}

	e.page = page
	e.theme = ""
	e.logger.Info("render browser ready", zap.String("control_url", controlURL))
	return nil
}

func (e *RodEngine) loadMermaid(page *rod.Page) error {
	script := e.cfg.MermaidScript
	if strings.HasPrefix(script, "http://") || strings.HasPrefix(script, "https://") {
		if err := page.AddScriptTag(script, ""); err != nil {
			return fmt.Errorf("loading mermaid from %s: %w", script, err)
		}
		return nil
	}
	data, err := os.ReadFile(script)
	if err != nil {
		return fmt.Errorf("reading mermaid script: %w", err)
	}
	if err := page.AddScriptTag("", string(data)); err != nil {
		return fmt.Errorf("injecting mermaid script: %w", err)
	}
	return nil
}

func (e *RodEngine) resetLocked() error {
	var err error
	if e.browser != nil {
		err = e.browser.Close()
	}
	if e.launcher != nil {
		e.launcher.Kill()
		e.launcher.Cleanup()
	}
	e.launcher = nil
	e.browser = nil
	e.page = nil
	e.theme = ""
	return err
}
