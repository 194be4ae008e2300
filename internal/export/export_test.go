package export

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ziadkadry99/diagramstudio/internal/metrics"
	"github.com/ziadkadry99/diagramstudio/internal/render"
	"github.com/ziadkadry99/diagramstudio/internal/theme"
)

const mermaidSVG = `<svg id="mermaid-1" width="100%" xmlns="http://www.w3.org/2000/svg" style="max-width: 120px; transform: scale(2);" viewBox="0 0 120 60"><rect width="120" height="60"/></svg>`

// solidRasterizer returns an opaque red image sized from the viewBox.
type solidRasterizer struct {
	err   error
	calls []float64
}

func (r *solidRasterizer) Rasterize(_ context.Context, svg string, scale float64) (image.Image, error) {
	r.calls = append(r.calls, scale)
	if r.err != nil {
		return nil, r.err
	}
	w, h, err := Size(svg)
	if err != nil {
		return nil, err
	}
	img := image.NewRGBA(image.Rect(0, 0, int(w*scale), int(h*scale)))
	for y := 0; y < img.Bounds().Dy(); y++ {
		for x := 0; x < img.Bounds().Dx(); x++ {
			img.Set(x, y, color.RGBA{R: 255, A: 255})
		}
	}
	return img, nil
}

// holeRasterizer returns a fully transparent image.
type holeRasterizer struct{}

func (holeRasterizer) Rasterize(_ context.Context, svg string, scale float64) (image.Image, error) {
	w, h, _ := Size(svg)
	return image.NewRGBA(image.Rect(0, 0, int(w*scale), int(h*scale))), nil
}

func decodePNG(t *testing.T, data []byte) image.Image {
	t.Helper()
	img, err := png.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	return img
}

func TestOptionsValidate(t *testing.T) {
	tests := []struct {
		name string
		opts Options
		ok   bool
	}{
		{"defaults", DefaultOptions(), true},
		{"png max scale", Options{Format: "png", Scale: 3}, true},
		{"png min scale", Options{Format: "png", Scale: 0.5}, true},
		{"scale too small", Options{Format: "png", Scale: 0.4}, false},
		{"scale too large", Options{Format: "svg", Scale: 3.5}, false},
		{"unknown format", Options{Format: "gif", Scale: 1}, false},
		{"missing format", Options{Scale: 1}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.opts.Validate()
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, ErrInvalidOptions)
			}
		})
	}
}

func TestExportSVG(t *testing.T) {
	e := New(nil, nil, nil)

	art, err := e.Export(context.Background(), mermaidSVG, "My Flow", Options{Format: FormatSVG, Transparent: false, Scale: 1})
	require.NoError(t, err)
	assert.Equal(t, "My Flow.svg", art.FileName)
	assert.Equal(t, "image/svg+xml", art.ContentType)

	out := string(art.Data)
	assert.Contains(t, out, `width="120"`)
	assert.Contains(t, out, `height="60"`)
	assert.Contains(t, out, "background-color: white")
	assert.NotContains(t, out, "transform")
	assert.NotContains(t, out, "max-width")
	assert.Contains(t, out, `<rect width="120" height="60"/>`, "only the root element is rewritten")
}

func TestExportSVGTransparent(t *testing.T) {
	e := New(nil, nil, nil)
	art, err := e.Export(context.Background(), mermaidSVG, "", DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, "diagram.svg", art.FileName)
	assert.NotContains(t, string(art.Data), "background")
}

func TestExportPNGScalesAndFillsBackground(t *testing.T) {
	r := &holeRasterizer{}
	e := New(r, nil, metrics.New())

	art, err := e.Export(context.Background(), mermaidSVG, "flow", Options{Format: FormatPNG, Transparent: false, Scale: 2})
	require.NoError(t, err)
	assert.Equal(t, "flow.png", art.FileName)
	assert.Equal(t, "image/png", art.ContentType)

	img := decodePNG(t, art.Data)
	assert.Equal(t, 240, img.Bounds().Dx())
	assert.Equal(t, 120, img.Bounds().Dy())
	_, _, _, a := img.At(5, 5).RGBA()
	assert.Equal(t, uint32(0xffff), a, "opaque white background expected")
}

func TestExportPNGTransparent(t *testing.T) {
	e := New(holeRasterizer{}, nil, nil)

	art, err := e.Export(context.Background(), mermaidSVG, "flow", Options{Format: FormatPNG, Transparent: true, Scale: 1})
	require.NoError(t, err)

	img := decodePNG(t, art.Data)
	_, _, _, a := img.At(5, 5).RGBA()
	assert.Equal(t, uint32(0), a)
}

func TestExportPNGWithoutRasterizer(t *testing.T) {
	e := New(nil, nil, nil)
	_, err := e.Export(context.Background(), mermaidSVG, "x", Options{Format: FormatPNG, Scale: 1})
	assert.ErrorIs(t, err, ErrNoRasterizer)
}

func TestExportRejectsMarkupWithoutSVG(t *testing.T) {
	e := New(nil, nil, nil)
	_, err := e.Export(context.Background(), "<div>nothing</div>", "x", DefaultOptions())
	assert.Error(t, err)
}

func TestThumbnail(t *testing.T) {
	r := &solidRasterizer{}
	e := New(r, nil, nil)

	url := e.Thumbnail(context.Background(), mermaidSVG)
	require.True(t, strings.HasPrefix(url, "data:image/png;base64,"))

	ct, data, err := DecodeDataURL(url)
	require.NoError(t, err)
	assert.Equal(t, "image/png", ct)

	img := decodePNG(t, data)
	assert.Equal(t, ThumbnailWidth, img.Bounds().Dx())
	assert.Equal(t, ThumbnailHeight, img.Bounds().Dy())

	// 120x60 scaled by min(300/120, 200/60)*0.9 = 2.25 gives 270x135,
	// centered at (15, 32.5). Corners stay white, the center is red.
	cr, cg, cb, _ := img.At(2, 2).RGBA()
	assert.Equal(t, [3]uint32{0xffff, 0xffff, 0xffff}, [3]uint32{cr, cg, cb})
	mr, mg, _, _ := img.At(150, 100).RGBA()
	assert.Equal(t, uint32(0xffff), mr)
	assert.Equal(t, uint32(0), mg)
	assert.Equal(t, []float64{1}, r.calls)
}

func TestThumbnailFailuresYieldEmpty(t *testing.T) {
	ctx := context.Background()

	assert.Empty(t, New(nil, nil, nil).Thumbnail(ctx, mermaidSVG))
	assert.Empty(t, New(&solidRasterizer{err: errors.New("tainted canvas")}, nil, nil).Thumbnail(ctx, mermaidSVG))
	assert.Empty(t, New(&solidRasterizer{}, nil, nil).Thumbnail(ctx, ""))
	assert.Empty(t, New(&solidRasterizer{}, nil, nil).Thumbnail(ctx, "<svg></svg>"))
}

func TestRenderAndExport(t *testing.T) {
	engine := render.EngineFunc(func(_ context.Context, source string, _ theme.Theme) (string, error) {
		if source == "bad" {
			return "", &render.SyntaxError{Message: "Parse error"}
		}
		return mermaidSVG, nil
	})
	e := New(&solidRasterizer{}, nil, nil)
	ctx := context.Background()

	art, err := e.RenderAndExport(ctx, engine, "graph TD", "t", theme.Light, DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, "t.svg", art.FileName)

	_, err = e.RenderAndExport(ctx, engine, "bad", "t", theme.Light, DefaultOptions())
	var syn *render.SyntaxError
	assert.ErrorAs(t, err, &syn)

	assert.NotEmpty(t, e.ThumbnailSource(ctx, engine, "graph TD", theme.Light))
	assert.Empty(t, e.ThumbnailSource(ctx, engine, "bad", theme.Light))
}

func TestFileName(t *testing.T) {
	tests := []struct {
		title, ext, want string
	}{
		{"Flow", "svg", "Flow.svg"},
		{"", "png", "diagram.png"},
		{"   ", "svg", "diagram.svg"},
		{"a/b:c", "svg", "a-b-c.svg"},
		{"..", "png", "diagram.png"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FileName(tt.title, tt.ext), tt.title)
	}
}

func TestSize(t *testing.T) {
	w, h, err := Size(`<svg viewBox="-8 -8 216.5 100">`)
	require.NoError(t, err)
	assert.Equal(t, 216.5, w)
	assert.Equal(t, 100.0, h)

	_, _, err = Size(`<svg width="10">`)
	assert.Error(t, err)
}

func TestDecodeDataURLErrors(t *testing.T) {
	for _, in := range []string{"", "http://x", "data:image/png", "data:text/plain,hello", "data:image/png;base64,!!!"} {
		_, _, err := DecodeDataURL(in)
		assert.Error(t, err, in)
	}
}
