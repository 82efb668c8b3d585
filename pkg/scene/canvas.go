package scene

import (
	"context"
	"errors"
	"fmt"
	"image"
	"math"
	"sync"

	"go.uber.org/zap"

	"github.com/gomcpgo/scene_edit_ai/pkg/geometry"
	"github.com/gomcpgo/scene_edit_ai/pkg/render"
)

// Capabilities toggles what the canvas backend can do. They mirror the
// guarantees real GPU backends differ on
type Capabilities struct {
	// PreserveDrawingBuffer keeps the last frame readable after presentation
	PreserveDrawingBuffer bool
	// StageExtract allows rendering the stage into an arbitrary texture
	StageExtract bool
	// LayerRendering allows rendering individual layers
	LayerRendering bool
}

// FullCapabilities enables every backend feature
var FullCapabilities = Capabilities{
	PreserveDrawingBuffer: true,
	StageExtract:          true,
	LayerRendering:        true,
}

var (
	errNoFrame          = errors.New("no frame has been rendered")
	errStageUnsupported = errors.New("stage extraction is not supported by this backend")
	errLayerUnsupported = errors.New("layer rendering is not supported by this backend")
	errStaleTransforms  = errors.New("world transforms are out of date")
)

// Canvas is a software renderer for a Scene. It implements every capability
// interface in pkg/render
type Canvas struct {
	scene       *Scene
	interaction *Interaction
	caps        Capabilities
	log         *zap.Logger

	frame chan struct{}

	mu     sync.Mutex
	width  int
	height int
	res    float64
	stage  render.StagePlacement
	stale  bool
	buffer *image.RGBA // readable drawing buffer
	shown  *image.RGBA // last presented frame
}

var (
	_ render.Renderer       = (*Canvas)(nil)
	_ render.Readback       = (*Canvas)(nil)
	_ render.StageRenderer  = (*Canvas)(nil)
	_ render.LayerRenderer  = (*Canvas)(nil)
	_ render.FrameScheduler = (*Canvas)(nil)
)

// NewCanvas creates a canvas of width x height CSS pixels at the given
// device-pixel ratio, looking at the scene origin at scale 1
func NewCanvas(s *Scene, width, height int, resolution float64, caps Capabilities, logger *zap.Logger) *Canvas {
	if logger == nil {
		logger = zap.NewNop()
	}
	if resolution <= 0 {
		resolution = 1
	}
	return &Canvas{
		scene:       s,
		interaction: NewInteraction(),
		caps:        caps,
		log:         logger,
		frame:       make(chan struct{}, 1),
		width:       width,
		height:      height,
		res:         resolution,
		stage:       render.StagePlacement{Scale: 1},
	}
}

// Scene returns the scene being rendered
func (c *Canvas) Scene() *Scene { return c.scene }

// Interaction returns the pointer layer
func (c *Canvas) Interaction() *Interaction { return c.interaction }

// Transform returns the current viewport snapshot
func (c *Canvas) Transform() geometry.Transform {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.transformLocked()
}

func (c *Canvas) transformLocked() geometry.Transform {
	return geometry.Transform{
		ScaleX:     c.stage.Scale,
		ScaleY:     c.stage.Scale,
		OffsetX:    c.stage.Position.X,
		OffsetY:    c.stage.Position.Y,
		Resolution: c.res,
	}
}

// Pan moves the camera so that center is in the middle of the output
func (c *Canvas) Pan(center geometry.Point, scale float64) {
	v := c.Viewport()
	v.Center = center
	v.Scale = scale
	c.SetViewport(v)
	c.UpdateTransforms()
}

// OnFrame runs fn with exclusive access to the canvas frame
func (c *Canvas) OnFrame(ctx context.Context, fn func() error) error {
	select {
	case c.frame <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	defer func() { <-c.frame }()
	return fn()
}

// Render draws the full scene plus interaction overlays into the surface
func (c *Canvas) Render(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.interaction.Flush()

	c.mu.Lock()
	defer c.mu.Unlock()

	w := int(math.Round(float64(c.width) * c.res))
	h := int(math.Round(float64(c.height) * c.res))
	if w <= 0 || h <= 0 {
		return fmt.Errorf("invalid surface size %dx%d", w, h)
	}
	surface := image.NewRGBA(image.Rect(0, 0, w, h))
	t := c.transformLocked()
	if err := c.scene.DrawComposite(surface, t); err != nil {
		return err
	}
	c.interaction.drawOverlays(surface, t)

	c.shown = surface
	if c.caps.PreserveDrawingBuffer {
		c.buffer = surface
	} else {
		// presented buffers are cleared by the compositor
		c.buffer = image.NewRGBA(surface.Bounds())
	}
	c.stale = false
	c.log.Debug("frame rendered", zap.Int("width", w), zap.Int("height", h))
	return nil
}

// Snapshot returns the last presented frame
func (c *Canvas) Snapshot() *image.RGBA {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.shown
}

// ReadPixels copies r out of the drawing buffer
func (c *Canvas) ReadPixels(r image.Rectangle) (*image.RGBA, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.buffer == nil {
		return nil, errNoFrame
	}
	if r.Empty() || !r.In(c.buffer.Bounds()) {
		return nil, fmt.Errorf("region %v is outside the drawing buffer %v", r, c.buffer.Bounds())
	}
	out := image.NewRGBA(image.Rect(0, 0, r.Dx(), r.Dy()))
	for y := 0; y < r.Dy(); y++ {
		src := c.buffer.PixOffset(r.Min.X, r.Min.Y+y)
		dst := out.PixOffset(0, y)
		copy(out.Pix[dst:dst+4*r.Dx()], c.buffer.Pix[src:src+4*r.Dx()])
	}
	return out, nil
}

// Stage returns the stage root placement
func (c *Canvas) Stage() render.StagePlacement {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stage
}

// SetStage moves and scales the stage root
func (c *Canvas) SetStage(p render.StagePlacement) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stage = p
}

// RenderStage draws the stage at its current placement into dst at resolution 1
func (c *Canvas) RenderStage(dst *image.RGBA) error {
	if !c.caps.StageExtract {
		return errStageUnsupported
	}
	c.mu.Lock()
	t := c.transformLocked()
	c.mu.Unlock()
	t.Resolution = 1
	return c.scene.DrawComposite(dst, t)
}

// Viewport returns the output size and camera
func (c *Canvas) Viewport() render.Viewport {
	c.mu.Lock()
	defer c.mu.Unlock()
	return render.Viewport{
		Width:      c.width,
		Height:     c.height,
		Resolution: c.res,
		Center: geometry.Point{
			X: (float64(c.width)/2 - c.stage.Position.X) / c.stage.Scale,
			Y: (float64(c.height)/2 - c.stage.Position.Y) / c.stage.Scale,
		},
		Scale: c.stage.Scale,
	}
}

// SetViewport resizes the output and moves the camera. World transforms are
// stale until UpdateTransforms or the next Render
func (c *Canvas) SetViewport(v render.Viewport) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if v.Resolution <= 0 {
		v.Resolution = 1
	}
	if v.Scale == 0 {
		v.Scale = 1
	}
	c.width = v.Width
	c.height = v.Height
	c.res = v.Resolution
	c.stage = render.StagePlacement{
		Position: geometry.Point{
			X: float64(v.Width)/2 - v.Center.X*v.Scale,
			Y: float64(v.Height)/2 - v.Center.Y*v.Scale,
		},
		Scale: v.Scale,
	}
	c.stale = true
}

// UpdateTransforms recomputes world transforms after a viewport change
func (c *Canvas) UpdateTransforms() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stale = false
}

// RenderLayer draws one layer with the current camera at the current resolution
func (c *Canvas) RenderLayer(kind render.LayerKind, dst *image.RGBA) error {
	if !c.caps.LayerRendering {
		return errLayerUnsupported
	}
	c.mu.Lock()
	if c.stale {
		c.mu.Unlock()
		return errStaleTransforms
	}
	t := c.transformLocked()
	c.mu.Unlock()
	return c.scene.DrawLayer(dst, kind, t)
}
