package scene

import (
	"fmt"
	"image"
	"image/color"

	"golang.org/x/image/draw"

	"github.com/gomcpgo/scene_edit_ai/pkg/geometry"
	"github.com/gomcpgo/scene_edit_ai/pkg/render"
)

// DrawLayer renders one layer of the scene into dst using transform t
// Elements whose device bounds fall outside dst are culled
func (s *Scene) DrawLayer(dst *image.RGBA, kind render.LayerKind, t geometry.Transform) error {
	if _, err := t.Normalized(); err != nil {
		return err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	switch kind {
	case render.LayerHidden:
		drawSprites(dst, s.Masks, t)
	case render.LayerBackground:
		if s.BackgroundColor.A > 0 {
			fillRect(dst, s.Bounds(), s.BackgroundColor, t)
		}
		if s.Background != nil {
			drawImage(dst, s.Background, s.Bounds(), t)
		}
	case render.LayerTiles:
		drawSprites(dst, s.Tiles, t)
	case render.LayerDrawings:
		drawShapes(dst, s.Drawings, false, t)
	case render.LayerFog:
		if s.Fog != nil {
			drawImage(dst, s.Fog, s.Bounds(), t)
		}
	case render.LayerGrid:
		drawGrid(dst, s.Bounds(), s.Grid, t)
	case render.LayerTokens:
		drawSprites(dst, s.Tokens, t)
	case render.LayerInterfaceDrawings:
		drawShapes(dst, s.Drawings, true, t)
	default:
		return fmt.Errorf("unknown layer %d", kind)
	}
	return nil
}

// DrawComposite renders every layer in composite order without clearing between them
func (s *Scene) DrawComposite(dst *image.RGBA, t geometry.Transform) error {
	for _, kind := range render.CompositeOrder {
		if err := s.DrawLayer(dst, kind, t); err != nil {
			return fmt.Errorf("failed to draw %s layer: %w", kind, err)
		}
	}
	return nil
}

func deviceBounds(r geometry.Rect, t geometry.Transform) (image.Rectangle, bool) {
	d, err := geometry.SceneToDevice(r, t)
	if err != nil {
		return image.Rectangle{}, false
	}
	b := d.Image()
	return b, !b.Empty()
}

func drawImage(dst *image.RGBA, img image.Image, r geometry.Rect, t geometry.Transform) {
	b, ok := deviceBounds(r, t)
	if !ok || !b.Overlaps(dst.Bounds()) {
		return
	}
	draw.NearestNeighbor.Scale(dst, b, img, img.Bounds(), draw.Over, nil)
}

func fillRect(dst *image.RGBA, r geometry.Rect, c color.RGBA, t geometry.Transform) {
	b, ok := deviceBounds(r, t)
	if !ok || !b.Overlaps(dst.Bounds()) {
		return
	}
	draw.Draw(dst, b.Intersect(dst.Bounds()), image.NewUniform(c), image.Point{}, draw.Over)
}

func drawSprites(dst *image.RGBA, sprites []*Sprite, t geometry.Transform) {
	for _, sp := range sprites {
		if sp.Hidden || sp.Image == nil {
			continue
		}
		drawImage(dst, sp.Image, sp.Rect, t)
	}
}

func drawShapes(dst *image.RGBA, drawings []*Drawing, iface bool, t geometry.Transform) {
	for _, d := range drawings {
		if d.Hidden || d.Interface != iface {
			continue
		}
		fillRect(dst, d.Rect, d.Fill, t)
	}
}

func drawGrid(dst *image.RGBA, bounds geometry.Rect, g Grid, t geometry.Transform) {
	if g.Size <= 0 || g.Color.A == 0 {
		return
	}
	area, ok := deviceBounds(bounds, t)
	if !ok {
		return
	}
	src := image.NewUniform(g.Color)
	for x := bounds.X; x <= bounds.X+bounds.Width; x += g.Size {
		p, err := geometry.SceneToDevicePoint(geometry.Point{X: x, Y: 0}, t)
		if err != nil {
			return
		}
		px := int(p.X)
		line := image.Rect(px, area.Min.Y, px+1, area.Max.Y).Intersect(dst.Bounds())
		if !line.Empty() {
			draw.Draw(dst, line, src, image.Point{}, draw.Over)
		}
	}
	for y := bounds.Y; y <= bounds.Y+bounds.Height; y += g.Size {
		p, err := geometry.SceneToDevicePoint(geometry.Point{X: 0, Y: y}, t)
		if err != nil {
			return
		}
		py := int(p.Y)
		line := image.Rect(area.Min.X, py, area.Max.X, py+1).Intersect(dst.Bounds())
		if !line.Empty() {
			draw.Draw(dst, line, src, image.Point{}, draw.Over)
		}
	}
}
