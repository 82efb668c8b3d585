// Package render defines the contracts a host scene renderer exposes to the
// capture engine. Backends implement the subset they can honour; the capture
// engine probes for each capability with a type assertion
package render

import (
	"context"
	"image"

	"github.com/gomcpgo/scene_edit_ai/pkg/geometry"
)

// Renderer is the minimum every backend provides
type Renderer interface {
	// Transform returns the current viewport snapshot
	Transform() geometry.Transform
	// Render forces a full render pass of the live scene
	Render(ctx context.Context) error
}

// Readback is implemented by backends that can read pixels from the surface
// they last rendered to
type Readback interface {
	ReadPixels(r image.Rectangle) (*image.RGBA, error)
}

// StagePlacement is the position and uniform scale of the stage root node
type StagePlacement struct {
	Position geometry.Point
	Scale    float64
}

// StageRenderer can re-render the stage root into an arbitrary texture
type StageRenderer interface {
	Stage() StagePlacement
	SetStage(p StagePlacement)
	RenderStage(dst *image.RGBA) error
}

// Viewport describes the renderer output and the camera looking at the scene
type Viewport struct {
	Width      int
	Height     int
	Resolution float64
	Center     geometry.Point
	Scale      float64
}

// LayerKind names one visual layer of the scene
type LayerKind int

const (
	LayerHidden LayerKind = iota
	LayerBackground
	LayerTiles
	LayerDrawings
	LayerFog
	LayerGrid
	LayerTokens
	LayerInterfaceDrawings
)

var layerNames = map[LayerKind]string{
	LayerHidden:            "hidden",
	LayerBackground:        "background",
	LayerTiles:             "tiles",
	LayerDrawings:          "drawings",
	LayerFog:               "fog",
	LayerGrid:              "grid",
	LayerTokens:            "tokens",
	LayerInterfaceDrawings: "interface-drawings",
}

func (k LayerKind) String() string {
	if name, ok := layerNames[k]; ok {
		return name
	}
	return "unknown"
}

// CompositeOrder is the back-to-front order that defines what counts as the scene
var CompositeOrder = []LayerKind{
	LayerHidden,
	LayerBackground,
	LayerTiles,
	LayerDrawings,
	LayerFog,
	LayerGrid,
	LayerTokens,
	LayerInterfaceDrawings,
}

// LayerRenderer can resize its output, move the camera and render individual
// layers into a shared texture
type LayerRenderer interface {
	Viewport() Viewport
	SetViewport(v Viewport)
	UpdateTransforms()
	RenderLayer(kind LayerKind, dst *image.RGBA) error
}

// FrameScheduler runs fn on the renderer's frame callback with exclusive
// access to viewport and stage state
type FrameScheduler interface {
	OnFrame(ctx context.Context, fn func() error) error
}
