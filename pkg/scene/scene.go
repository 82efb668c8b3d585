// Package scene is a retained, layered 2-D scene graph with a software
// renderer. It plays the host renderer's role for the capture engine and the
// selection controller
package scene

import (
	"image"
	"image/color"
	"sync"

	"github.com/gomcpgo/scene_edit_ai/pkg/geometry"
)

// Sprite is a positioned image element (tile, token or mask entry)
type Sprite struct {
	ID     string
	Rect   geometry.Rect // scene space
	Image  image.Image
	Hidden bool
}

// Drawing is a filled shape. Interface drawings always render above gameplay content
type Drawing struct {
	ID        string
	Rect      geometry.Rect
	Fill      color.RGBA
	Interface bool
	Hidden    bool
}

// Grid draws lines every Size scene units
type Grid struct {
	Size  float64
	Color color.RGBA
}

// Scene holds every visual element of one scene
type Scene struct {
	ID              string
	Width           float64
	Height          float64
	BackgroundColor color.RGBA
	Background      image.Image
	Masks           []*Sprite
	Tiles           []*Sprite
	Drawings        []*Drawing
	Fog             image.Image
	Grid            Grid
	Tokens          []*Sprite

	mu sync.RWMutex
}

// New creates an empty scene of the given size
func New(id string, width, height float64) *Scene {
	return &Scene{
		ID:     id,
		Width:  width,
		Height: height,
	}
}

// Tile returns the tile with the given ID
func (s *Scene) Tile(id string) (*Sprite, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, t := range s.Tiles {
		if t.ID == id {
			return t, true
		}
	}
	return nil, false
}

// Bounds returns the scene rectangle
func (s *Scene) Bounds() geometry.Rect {
	return geometry.SceneRect(0, 0, s.Width, s.Height)
}

// AddTile appends a tile and returns it
func (s *Scene) AddTile(id string, rect geometry.Rect, img image.Image) *Sprite {
	s.mu.Lock()
	defer s.mu.Unlock()
	rect.Space = geometry.SceneSpace
	t := &Sprite{ID: id, Rect: rect, Image: img}
	s.Tiles = append(s.Tiles, t)
	return t
}

// ReplaceTileImage swaps the image of an existing tile
func (s *Scene) ReplaceTileImage(id string, img image.Image) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range s.Tiles {
		if t.ID == id {
			t.Image = img
			return true
		}
	}
	return false
}

// AddToken appends a token and returns it
func (s *Scene) AddToken(id string, rect geometry.Rect, img image.Image) *Sprite {
	s.mu.Lock()
	defer s.mu.Unlock()
	rect.Space = geometry.SceneSpace
	t := &Sprite{ID: id, Rect: rect, Image: img}
	s.Tokens = append(s.Tokens, t)
	return t
}

// AddDrawing appends a drawing and returns it
func (s *Scene) AddDrawing(id string, rect geometry.Rect, fill color.RGBA, iface bool) *Drawing {
	s.mu.Lock()
	defer s.mu.Unlock()
	rect.Space = geometry.SceneSpace
	d := &Drawing{ID: id, Rect: rect, Fill: fill, Interface: iface}
	s.Drawings = append(s.Drawings, d)
	return d
}
