package scene

import (
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/gomcpgo/scene_edit_ai/pkg/geometry"
	"github.com/gomcpgo/scene_edit_ai/pkg/render"
	"github.com/gomcpgo/scene_edit_ai/pkg/selection"
)

var (
	white  = color.RGBA{255, 255, 255, 255}
	red    = color.RGBA{255, 0, 0, 255}
	green  = color.RGBA{0, 255, 0, 255}
	blue   = color.RGBA{0, 0, 255, 255}
	yellow = color.RGBA{255, 255, 0, 255}
	black  = color.RGBA{0, 0, 0, 255}
)

func layeredScene() *Scene {
	s := New("test", 100, 100)
	s.BackgroundColor = white
	s.AddTile("red", geometry.SceneRect(10, 10, 20, 20), Solid(red))
	hidden := s.AddTile("hidden", geometry.SceneRect(50, 50, 20, 20), Solid(green))
	hidden.Hidden = true
	s.AddToken("token", geometry.SceneRect(15, 15, 10, 10), Solid(blue))
	s.AddDrawing("under", geometry.SceneRect(16, 16, 2, 2), black, false)
	s.AddDrawing("hud", geometry.SceneRect(18, 18, 4, 4), yellow, true)
	return s
}

func TestRenderHonoursCompositeOrder(t *testing.T) {
	c := NewCanvas(layeredScene(), 100, 100, 1, FullCapabilities, nil)
	if err := c.Render(context.Background()); err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	frame := c.Snapshot()

	checks := []struct {
		name string
		x, y int
		want color.RGBA
	}{
		{"tile", 12, 12, red},
		{"token above drawing", 16, 16, blue},
		{"interface drawing above token", 20, 20, yellow},
		{"hidden tile excluded", 60, 60, white},
		{"background", 90, 5, white},
	}
	for _, tc := range checks {
		if got := frame.RGBAAt(tc.x, tc.y); got != tc.want {
			t.Errorf("%s: pixel (%d,%d) = %v, want %v", tc.name, tc.x, tc.y, got, tc.want)
		}
	}
}

func TestReadPixelsWithoutPreservedBufferIsBlank(t *testing.T) {
	caps := FullCapabilities
	caps.PreserveDrawingBuffer = false
	c := NewCanvas(layeredScene(), 100, 100, 1, caps, nil)
	if err := c.Render(context.Background()); err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	px, err := c.ReadPixels(image.Rect(10, 10, 30, 30))
	if err != nil {
		t.Fatalf("ReadPixels failed: %v", err)
	}
	if px.RGBAAt(5, 5).A != 0 {
		t.Error("Expected a cleared drawing buffer")
	}
}

func TestReadPixelsOutsideSurface(t *testing.T) {
	c := NewCanvas(layeredScene(), 50, 50, 1, FullCapabilities, nil)
	if _, err := c.ReadPixels(image.Rect(0, 0, 10, 10)); err == nil {
		t.Error("Expected error before the first frame")
	}
	c.Render(context.Background())
	if _, err := c.ReadPixels(image.Rect(40, 40, 80, 80)); err == nil {
		t.Error("Expected error for a region outside the surface")
	}
}

func TestViewportRoundTrip(t *testing.T) {
	c := NewCanvas(layeredScene(), 200, 100, 2, FullCapabilities, nil)
	orig := c.Viewport()
	c.SetViewport(render.Viewport{Width: 40, Height: 30, Resolution: 1, Center: geometry.Point{X: 20, Y: 20}, Scale: 1})

	if err := c.RenderLayer(render.LayerTiles, image.NewRGBA(image.Rect(0, 0, 40, 30))); !errors.Is(err, errStaleTransforms) {
		t.Errorf("Expected stale transform error, got %v", err)
	}
	c.UpdateTransforms()

	tr := c.Transform()
	if tr.OffsetX != 0 || tr.OffsetY != -5 || tr.Resolution != 1 {
		t.Errorf("Unexpected transform after centering: %+v", tr)
	}

	c.SetViewport(orig)
	if got := c.Viewport(); got != orig {
		t.Errorf("Expected viewport restored to %+v, got %+v", orig, got)
	}
}

func TestDispatchDetectsDanglingOverlay(t *testing.T) {
	in := NewInteraction()
	ov := in.NewOverlay()
	ov.SetRect(geometry.SceneRect(0, 0, 50, 50))

	if err := in.Dispatch(selection.PointerEvent{Type: selection.PointerMove, Pointer: 2, Position: geometry.Point{X: 10, Y: 10}}); err != nil {
		t.Fatalf("Dispatch failed: %v", err)
	}
	ov.Destroy()
	if err := in.Dispatch(selection.PointerEvent{Type: selection.PointerMove, Pointer: 2, Position: geometry.Point{X: 80, Y: 80}}); !errors.Is(err, ErrDanglingTarget) {
		t.Errorf("Expected ErrDanglingTarget, got %v", err)
	}
}

func TestControllerTeardownLeavesNoDanglingTargets(t *testing.T) {
	c := NewCanvas(layeredScene(), 100, 100, 1, FullCapabilities, nil)
	in := c.Interaction()
	ctrl := selection.NewController(in, func(geometry.Rect) {}, nil)
	ctrl.Toggle()

	mustDispatch := func(ev selection.PointerEvent) {
		t.Helper()
		if err := in.Dispatch(ev); err != nil {
			t.Fatalf("Dispatch(%+v) failed: %v", ev, err)
		}
	}
	mustDispatch(selection.PointerEvent{Type: selection.PointerDown, Position: geometry.Point{X: 10, Y: 10}})
	mustDispatch(selection.PointerEvent{Type: selection.PointerMove, Position: geometry.Point{X: 60, Y: 60}})
	// a second pointer hovers the overlay
	mustDispatch(selection.PointerEvent{Type: selection.PointerMove, Pointer: 7, Position: geometry.Point{X: 30, Y: 30}})

	ctrl.Deactivate()
	if in.Listeners() != 0 {
		t.Errorf("Expected no listeners after deactivate, got %d", in.Listeners())
	}
	if err := c.Render(context.Background()); err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	mustDispatch(selection.PointerEvent{Type: selection.PointerMove, Pointer: 7, Position: geometry.Point{X: 31, Y: 31}})
}

func TestParseScene(t *testing.T) {
	dir := t.TempDir()
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	fh, err := os.Create(filepath.Join(dir, "tile.png"))
	if err != nil {
		t.Fatal(err)
	}
	png.Encode(fh, img)
	fh.Close()

	doc := []byte(`
id: cave
width: 400
height: 300
background_color: "#202020"
fog_color: "#00000080"
grid: {size: 50, color: "#ffffff40"}
tiles:
  - {id: t1, x: 10, y: 10, width: 40, height: 40, image: tile.png}
  - {id: t2, x: 60, y: 10, width: 40, height: 40, color: "#f00", hidden: true}
tokens:
  - {id: hero, x: 100, y: 100, width: 50, height: 50, color: "#00ff00"}
drawings:
  - {id: note, x: 0, y: 0, width: 30, height: 10, fill: "#ffff00", interface: true}
`)
	s, err := Parse(doc, dir)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if s.ID != "cave" || s.Width != 400 || len(s.Tiles) != 2 || len(s.Tokens) != 1 || len(s.Drawings) != 1 {
		t.Fatalf("Unexpected scene: %+v", s)
	}
	if !s.Tiles[1].Hidden || !s.Drawings[0].Interface {
		t.Error("Expected flags to be loaded")
	}
	if s.Grid.Size != 50 || s.Fog == nil {
		t.Error("Expected grid and fog to be loaded")
	}

	if _, err := Parse([]byte("id: x\nwidth: 0\nheight: 10\n"), dir); err == nil {
		t.Error("Expected error for zero-size scene")
	}
}

func TestParseColor(t *testing.T) {
	c, err := ParseColor("#ff000080")
	if err != nil {
		t.Fatalf("ParseColor failed: %v", err)
	}
	if c.A != 0x80 || c.R != 0x80 {
		t.Errorf("Expected premultiplied color, got %v", c)
	}
	if _, err := ParseColor("nope"); err == nil {
		t.Error("Expected error for invalid color")
	}
}
