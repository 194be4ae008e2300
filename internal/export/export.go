// Package export turns rendered diagrams into downloadable SVG or PNG files
// and gallery thumbnails.
package export

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"image/color"
	"math"
	"strings"

	"github.com/fogleman/gg"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/ziadkadry99/diagramstudio/internal/metrics"
	"github.com/ziadkadry99/diagramstudio/internal/render"
	"github.com/ziadkadry99/diagramstudio/internal/theme"
)

const (
	FormatSVG = "svg"
	FormatPNG = "png"

	ThumbnailWidth  = 300
	ThumbnailHeight = 200
	// thumbnailFill is the share of the canvas the diagram may occupy.
	thumbnailFill = 0.9
)

// ErrInvalidOptions wraps option validation failures.
var ErrInvalidOptions = errors.New("invalid export options")

// ErrNoRasterizer is returned for PNG work when no rasterizer is configured.
var ErrNoRasterizer = errors.New("png export is unavailable: no rasterizer configured")

var validate = validator.New()

// Options controls a single export.
type Options struct {
	Format      string  `json:"format" validate:"required,oneof=svg png"`
	Transparent bool    `json:"transparent"`
	Scale       float64 `json:"scale" validate:"gte=0.5,lte=3"`
}

// DefaultOptions matches the export dialog's initial state.
func DefaultOptions() Options {
	return Options{Format: FormatSVG, Transparent: true, Scale: 1}
}

// Validate checks the options against their allowed ranges.
func (o Options) Validate() error {
	if err := validate.Struct(o); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return fmt.Errorf("%w: %s failed %s %s", ErrInvalidOptions, strings.ToLower(fe.Field()), fe.Tag(), fe.Param())
		}
		return fmt.Errorf("%w: %v", ErrInvalidOptions, err)
	}
	return nil
}

// Artifact is an exported file.
type Artifact struct {
	FileName    string
	ContentType string
	Data        []byte
}

// Rasterizer draws SVG markup into an image with a transparent background.
type Rasterizer interface {
	Rasterize(ctx context.Context, svg string, scale float64) (image.Image, error)
}

// Exporter produces export artifacts and thumbnails.
type Exporter struct {
	raster  Rasterizer
	logger  *zap.Logger
	metrics *metrics.Collector
}

// New creates an Exporter. raster may be nil, in which case only SVG
// exports work and thumbnails are never produced.
func New(raster Rasterizer, logger *zap.Logger, m *metrics.Collector) *Exporter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Exporter{raster: raster, logger: logger, metrics: m}
}

// Export converts rendered svg markup into a file named after title.
func (e *Exporter) Export(ctx context.Context, svg, title string, opts Options) (*Artifact, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	art, err := e.export(ctx, svg, title, opts)
	e.metrics.Exported(opts.Format, err)
	if err != nil {
		e.logger.Warn("export failed", zap.String("format", opts.Format), zap.Error(err))
		return nil, err
	}
	return art, nil
}

func (e *Exporter) export(ctx context.Context, svg, title string, opts Options) (*Artifact, error) {
	prepared, err := PrepareSVG(svg, opts.Transparent)
	if err != nil {
		return nil, fmt.Errorf("preparing svg: %w", err)
	}

	if opts.Format == FormatSVG {
		return &Artifact{
			FileName:    FileName(title, FormatSVG),
			ContentType: "image/svg+xml",
			Data:        []byte(prepared),
		}, nil
	}

	if e.raster == nil {
		return nil, ErrNoRasterizer
	}
	img, err := e.raster.Rasterize(ctx, prepared, opts.Scale)
	if err != nil {
		return nil, err
	}

	b := img.Bounds()
	dc := gg.NewContext(b.Dx(), b.Dy())
	if !opts.Transparent {
		dc.SetColor(color.White)
		dc.Clear()
	}
	dc.DrawImage(img, 0, 0)

	var buf bytes.Buffer
	if err := dc.EncodePNG(&buf); err != nil {
		return nil, fmt.Errorf("encoding png: %w", err)
	}
	return &Artifact{
		FileName:    FileName(title, FormatPNG),
		ContentType: "image/png",
		Data:        buf.Bytes(),
	}, nil
}

// RenderAndExport renders source with engine and exports the result.
func (e *Exporter) RenderAndExport(ctx context.Context, engine render.Engine, source, title string, t theme.Theme, opts Options) (*Artifact, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	svg, err := engine.Render(ctx, source, t)
	if err != nil {
		return nil, err
	}
	return e.Export(ctx, svg, title, opts)
}

// Thumbnail returns a 300x200 PNG data URL of svg on a white background,
// fitted to 90% of the canvas and centered. Any failure yields "".
func (e *Exporter) Thumbnail(ctx context.Context, svg string) string {
	data, err := e.thumbnail(ctx, svg)
	e.metrics.Thumbnailed(err == nil)
	if err != nil {
		e.logger.Debug("thumbnail unavailable", zap.Error(err))
		return ""
	}
	return DataURL("image/png", data)
}

// ThumbnailSource renders source and returns its thumbnail, or "".
func (e *Exporter) ThumbnailSource(ctx context.Context, engine render.Engine, source string, t theme.Theme) string {
	svg, err := engine.Render(ctx, source, t)
	if err != nil {
		e.logger.Debug("thumbnail render failed", zap.Error(err))
		e.metrics.Thumbnailed(false)
		return ""
	}
	return e.Thumbnail(ctx, svg)
}

func (e *Exporter) thumbnail(ctx context.Context, svg string) ([]byte, error) {
	if e.raster == nil {
		return nil, ErrNoRasterizer
	}
	if strings.TrimSpace(svg) == "" {
		return nil, errors.New("nothing rendered")
	}
	prepared, err := PrepareSVG(svg, true)
	if err != nil {
		return nil, err
	}
	img, err := e.raster.Rasterize(ctx, prepared, 1)
	if err != nil {
		return nil, err
	}
	return composeThumbnail(img)
}

func composeThumbnail(img image.Image) ([]byte, error) {
	b := img.Bounds()
	if b.Dx() == 0 || b.Dy() == 0 {
		return nil, errors.New("rendered image is empty")
	}

	w, h := float64(b.Dx()), float64(b.Dy())
	scale := math.Min(ThumbnailWidth/w, ThumbnailHeight/h) * thumbnailFill
	x := (ThumbnailWidth - w*scale) / 2
	y := (ThumbnailHeight - h*scale) / 2

	dc := gg.NewContext(ThumbnailWidth, ThumbnailHeight)
	dc.SetColor(color.White)
	dc.Clear()
	dc.Push()
	dc.Translate(x, y)
	dc.Scale(scale, scale)
	dc.DrawImage(img, -b.Min.X, -b.Min.Y)
	dc.Pop()

	var buf bytes.Buffer
	if err := dc.EncodePNG(&buf); err != nil {
		return nil, fmt.Errorf("encoding thumbnail: %w", err)
	}
	return buf.Bytes(), nil
}

// FileName builds "<title>.<ext>", falling back to "diagram" and replacing
// characters that are unsafe in file names.
func FileName(title, ext string) string {
	name := strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|':
			return '-'
		}
		if r < 0x20 {
			return -1
		}
		return r
	}, strings.TrimSpace(title))
	name = strings.Trim(name, ". ")
	if name == "" {
		name = "diagram"
	}
	return name + "." + ext
}

// DataURL encodes data as a base64 data URL.
func DataURL(contentType string, data []byte) string {
	return "data:" + contentType + ";base64," + base64.StdEncoding.EncodeToString(data)
}

// DecodeDataURL returns the content type and payload of a base64 data URL.
func DecodeDataURL(s string) (string, []byte, error) {
	rest, ok := strings.CutPrefix(s, "data:")
	if !ok {
		return "", nil, errors.New("not a data url")
	}
	meta, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return "", nil, errors.New("malformed data url")
	}
	contentType, isBase64 := strings.CutSuffix(meta, ";base64")
	if !isBase64 {
		return "", nil, errors.New("data url is not base64 encoded")
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return "", nil, fmt.Errorf("decoding data url: %w", err)
	}
	return contentType, data, nil
}
