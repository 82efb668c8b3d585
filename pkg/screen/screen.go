// Package screen reads a scene back from a desktop display. It is used when
// the scene is shown by an external viewer rather than the built-in canvas
package screen

import (
	"context"
	"fmt"
	"image"
	"sync"

	"github.com/kbinani/screenshot"

	"github.com/gomcpgo/scene_edit_ai/pkg/geometry"
)

// Display captures pixels from one active display. Device coordinates are
// relative to the display's top-left corner
type Display struct {
	index int

	mu        sync.RWMutex
	transform geometry.Transform

	numDisplays func() int
	bounds      func(int) image.Rectangle
	grab        func(image.Rectangle) (*image.RGBA, error)
}

// NewDisplay binds to display index. t maps scene space onto the display, for
// example the pan and zoom of the viewer window
func NewDisplay(index int, t geometry.Transform) *Display {
	return &Display{
		index:       index,
		transform:   t,
		numDisplays: screenshot.NumActiveDisplays,
		bounds:      screenshot.GetDisplayBounds,
		grab:        screenshot.CaptureRect,
	}
}

// Transform returns the current scene-to-display mapping
func (d *Display) Transform() geometry.Transform {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.transform
}

// SetTransform updates the mapping after the viewer pans or zooms
func (d *Display) SetTransform(t geometry.Transform) {
	d.mu.Lock()
	d.transform = t
	d.mu.Unlock()
}

// Render checks the display is still attached. The viewer owns the actual
// drawing, so there is nothing to flush
func (d *Display) Render(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if n := d.numDisplays(); d.index < 0 || d.index >= n {
		return fmt.Errorf("display %d not active (%d displays)", d.index, n)
	}
	return nil
}

// Bounds returns the display's rectangle in virtual-screen coordinates
func (d *Display) Bounds() image.Rectangle {
	return d.bounds(d.index)
}

// ReadPixels grabs r, which must lie fully on the display. The result is
// rebased to (0,0)
func (d *Display) ReadPixels(r image.Rectangle) (*image.RGBA, error) {
	b := d.bounds(d.index)
	abs := r.Add(b.Min)
	if abs.Empty() || !abs.In(b) {
		return nil, fmt.Errorf("rect %v is not inside display %d", r, d.index)
	}

	img, err := d.grab(abs)
	if err != nil {
		return nil, fmt.Errorf("failed to capture display %d: %w", d.index, err)
	}
	if img.Bounds().Min != (image.Point{}) {
		rebased := image.NewRGBA(image.Rect(0, 0, img.Bounds().Dx(), img.Bounds().Dy()))
		for y := 0; y < rebased.Bounds().Dy(); y++ {
			src := img.PixOffset(img.Bounds().Min.X, img.Bounds().Min.Y+y)
			copy(rebased.Pix[y*rebased.Stride:(y+1)*rebased.Stride], img.Pix[src:src+rebased.Stride])
		}
		img = rebased
	}
	return img, nil
}
