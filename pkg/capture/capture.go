// Package capture rasterizes a scene-space rectangle of the live renderer into
// PNG bytes, trying several extraction strategies in order
package capture

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/png"
	"time"

	"go.uber.org/zap"
	"golang.org/x/image/draw"

	"github.com/gomcpgo/scene_edit_ai/pkg/geometry"
	"github.com/gomcpgo/scene_edit_ai/pkg/render"
	"github.com/gomcpgo/scene_edit_ai/pkg/types"
)

// Strategy names
const (
	StrategyReadback  = "readback"
	StrategyOffscreen = "offscreen"
	StrategyLayers    = "layers"
)

// DefaultQueueTimeout bounds how long a capture waits for the engine
const DefaultQueueTimeout = 30 * time.Second

var errUnsupported = errors.New("renderer does not support this strategy")

// Image is a captured region
type Image struct {
	PNG      []byte
	Width    int
	Height   int
	Strategy string
}

type strategy struct {
	name string
	run  func(ctx context.Context, rect geometry.Rect) (*image.RGBA, error)
}

// Engine captures regions of one renderer, one capture at a time
type Engine struct {
	renderer     render.Renderer
	log          *zap.Logger
	queueTimeout time.Duration
	sem          chan struct{}
	strategies   []strategy
}

// Option configures an Engine
type Option func(*Engine)

// WithQueueTimeout sets how long Capture waits for a running capture to finish
func WithQueueTimeout(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.queueTimeout = d
		}
	}
}

// WithStrategies restricts and orders the strategies by name
func WithStrategies(names ...string) Option {
	return func(e *Engine) {
		byName := make(map[string]strategy, len(e.strategies))
		for _, s := range e.strategies {
			byName[s.name] = s
		}
		var picked []strategy
		for _, n := range names {
			if s, ok := byName[n]; ok {
				picked = append(picked, s)
			}
		}
		if len(picked) > 0 {
			e.strategies = picked
		}
	}
}

// New creates an engine bound to r
func New(r render.Renderer, logger *zap.Logger, opts ...Option) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	e := &Engine{
		renderer:     r,
		log:          logger,
		queueTimeout: DefaultQueueTimeout,
		sem:          make(chan struct{}, 1),
	}
	e.strategies = []strategy{
		{StrategyReadback, e.readback},
		{StrategyOffscreen, e.offscreen},
		{StrategyLayers, e.layers},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Transform returns the renderer's current viewport snapshot
func (e *Engine) Transform() geometry.Transform {
	return e.renderer.Transform()
}

// Capture returns PNG bytes of rect as currently composited
func (e *Engine) Capture(ctx context.Context, rect geometry.Rect) (*Image, error) {
	if rect.Space != geometry.SceneSpace {
		return nil, types.NewError(types.CodeInvalidParameters, "capture expects a scene-space rect, got %s", rect)
	}
	w, h := rect.PixelSize()
	if w <= 0 || h <= 0 {
		return nil, types.NewError(types.CodeInvalidParameters, "capture rect %s has no pixels", rect)
	}

	if err := e.acquire(ctx); err != nil {
		return nil, err
	}
	defer e.release()

	var (
		img  *image.RGBA
		used string
	)
	attempt := func() error {
		img, used = e.runStrategies(ctx, rect)
		return nil
	}
	if fs, ok := e.renderer.(render.FrameScheduler); ok {
		if err := fs.OnFrame(ctx, attempt); err != nil {
			return nil, types.WrapError(types.CodeCaptureUnavailable, err, "failed to schedule capture frame")
		}
	} else {
		attempt()
	}
	if img == nil {
		return nil, types.NewError(types.CodeCaptureUnavailable, "all capture strategies failed for %s", rect)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, types.WrapError(types.CodeCaptureUnavailable, err, "failed to encode capture")
	}
	e.log.Info("region captured",
		zap.String("strategy", used),
		zap.Stringer("rect", rect),
		zap.Int("bytes", buf.Len()))

	return &Image{
		PNG:      buf.Bytes(),
		Width:    w,
		Height:   h,
		Strategy: used,
	}, nil
}

func (e *Engine) acquire(ctx context.Context) error {
	timer := time.NewTimer(e.queueTimeout)
	defer timer.Stop()
	select {
	case e.sem <- struct{}{}:
		return nil
	case <-ctx.Done():
		return types.WrapError(types.CodeCaptureUnavailable, ctx.Err(), "capture canceled while queued")
	case <-timer.C:
		return types.NewError(types.CodeCaptureUnavailable, "capture queue timeout after %v", e.queueTimeout)
	}
}

func (e *Engine) release() {
	<-e.sem
}

func (e *Engine) runStrategies(ctx context.Context, rect geometry.Rect) (*image.RGBA, string) {
	for _, s := range e.strategies {
		if ctx.Err() != nil {
			return nil, ""
		}
		img, err := e.safeRun(ctx, s, rect)
		if err == nil {
			return img, s.name
		}
		if errors.Is(err, errUnsupported) {
			e.log.Debug("capture strategy skipped", zap.String("strategy", s.name))
			continue
		}
		e.log.Warn("capture strategy failed",
			zap.String("strategy", s.name),
			zap.Stringer("rect", rect),
			zap.Error(err))
	}
	return nil, ""
}

// safeRun converts a panicking strategy into an error
func (e *Engine) safeRun(ctx context.Context, s strategy, rect geometry.Rect) (img *image.RGBA, err error) {
	defer func() {
		if r := recover(); r != nil {
			img = nil
			err = fmt.Errorf("strategy panicked: %v", r)
		}
	}()
	return s.run(ctx, rect)
}

func (e *Engine) readback(ctx context.Context, rect geometry.Rect) (*image.RGBA, error) {
	rb, ok := e.renderer.(render.Readback)
	if !ok {
		return nil, errUnsupported
	}
	if err := e.renderer.Render(ctx); err != nil {
		return nil, fmt.Errorf("render pass failed: %w", err)
	}
	device, err := geometry.SceneToDevice(rect, e.renderer.Transform())
	if err != nil {
		return nil, err
	}
	want := device.Image()
	crop, err := rb.ReadPixels(want)
	if err != nil {
		return nil, fmt.Errorf("failed to read pixels: %w", err)
	}
	// a clipped crop would be stretched over the whole rect
	if crop.Bounds().Dx() != want.Dx() || crop.Bounds().Dy() != want.Dy() {
		return nil, fmt.Errorf("readback returned %dx%d for a %dx%d rect",
			crop.Bounds().Dx(), crop.Bounds().Dy(), want.Dx(), want.Dy())
	}
	w, h := rect.PixelSize()
	out := crop
	if crop.Bounds().Dx() != w || crop.Bounds().Dy() != h {
		out = image.NewRGBA(image.Rect(0, 0, w, h))
		draw.ApproxBiLinear.Scale(out, out.Bounds(), crop, crop.Bounds(), draw.Src, nil)
	}
	if Blank(out) {
		return nil, errors.New("readback produced a blank image")
	}
	return out, nil
}

func (e *Engine) offscreen(ctx context.Context, rect geometry.Rect) (*image.RGBA, error) {
	sr, ok := e.renderer.(render.StageRenderer)
	if !ok {
		return nil, errUnsupported
	}
	orig := sr.Stage()
	defer sr.SetStage(orig)

	sr.SetStage(render.StagePlacement{
		Position: geometry.Point{X: -rect.X, Y: -rect.Y},
		Scale:    1,
	})
	w, h := rect.PixelSize()
	tex := image.NewRGBA(image.Rect(0, 0, w, h))
	if err := sr.RenderStage(tex); err != nil {
		return nil, err
	}
	return tex, nil
}

func (e *Engine) layers(ctx context.Context, rect geometry.Rect) (*image.RGBA, error) {
	lr, ok := e.renderer.(render.LayerRenderer)
	if !ok {
		return nil, errUnsupported
	}
	orig := lr.Viewport()
	defer func() {
		lr.SetViewport(orig)
		lr.UpdateTransforms()
	}()

	w, h := rect.PixelSize()
	lr.SetViewport(render.Viewport{
		Width:      w,
		Height:     h,
		Resolution: 1,
		Center:     rect.Center(),
		Scale:      1,
	})
	lr.UpdateTransforms()

	tex := image.NewRGBA(image.Rect(0, 0, w, h))
	for _, kind := range render.CompositeOrder {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := lr.RenderLayer(kind, tex); err != nil {
			return nil, fmt.Errorf("failed to render %s layer: %w", kind, err)
		}
	}
	return tex, nil
}

// Blank reports whether a sample of pixels in img are all fully transparent
func Blank(img *image.RGBA) bool {
	b := img.Bounds()
	if b.Empty() {
		return true
	}
	const grid = 8
	for i := 0; i <= grid; i++ {
		for j := 0; j <= grid; j++ {
			x := b.Min.X + (b.Dx()-1)*i/grid
			y := b.Min.Y + (b.Dy()-1)*j/grid
			if img.RGBAAt(x, y).A != 0 {
				return false
			}
		}
	}
	return true
}
