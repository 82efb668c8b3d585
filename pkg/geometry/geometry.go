// Package geometry converts rectangles between scene space and device-pixel space
package geometry

import (
	"fmt"
	"image"
	"math"

	"github.com/gomcpgo/scene_edit_ai/pkg/types"
)

// MinSelectionSize is the smallest width/height (scene units) that counts as a selection
const MinSelectionSize = 10.0

// Space identifies the coordinate system a Rect is expressed in
type Space int

const (
	SceneSpace Space = iota
	DeviceSpace
)

func (s Space) String() string {
	switch s {
	case SceneSpace:
		return "scene"
	case DeviceSpace:
		return "device"
	default:
		return fmt.Sprintf("space(%d)", int(s))
	}
}

// Point is a position in either space
type Point struct {
	X float64
	Y float64
}

// Rect is an axis-aligned rectangle tagged with its coordinate space
type Rect struct {
	X      float64 `json:"x" yaml:"x"`
	Y      float64 `json:"y" yaml:"y"`
	Width  float64 `json:"width" yaml:"width"`
	Height float64 `json:"height" yaml:"height"`
	Space  Space   `json:"-" yaml:"-"`
}

// Transform is a snapshot of the viewport's pan, zoom and device-pixel ratio
type Transform struct {
	ScaleX     float64
	ScaleY     float64
	OffsetX    float64
	OffsetY    float64
	Resolution float64
}

// Identity is the 1:1 transform with no offset
var Identity = Transform{ScaleX: 1, ScaleY: 1, Resolution: 1}

// SceneRect builds a scene-space rectangle
func SceneRect(x, y, w, h float64) Rect {
	return Rect{X: x, Y: y, Width: w, Height: h, Space: SceneSpace}
}

// DeviceRect builds a device-space rectangle
func DeviceRect(x, y, w, h float64) Rect {
	return Rect{X: x, Y: y, Width: w, Height: h, Space: DeviceSpace}
}

// FromCorners normalizes two drag corners into a canonical rectangle
func FromCorners(a, b Point, space Space) Rect {
	return Rect{
		X:      math.Min(a.X, b.X),
		Y:      math.Min(a.Y, b.Y),
		Width:  math.Abs(a.X - b.X),
		Height: math.Abs(a.Y - b.Y),
		Space:  space,
	}
}

// TooSmall reports whether either dimension is below min
func (r Rect) TooSmall(min float64) bool {
	return r.Width < min || r.Height < min
}

// Empty reports whether the rectangle has no area
func (r Rect) Empty() bool {
	return r.Width <= 0 || r.Height <= 0
}

// Center returns the center point
func (r Rect) Center() Point {
	return Point{X: r.X + r.Width/2, Y: r.Y + r.Height/2}
}

// PixelSize returns the rounded pixel dimensions of the rectangle
func (r Rect) PixelSize() (int, int) {
	return int(math.Round(r.Width)), int(math.Round(r.Height))
}

// Intersects reports whether the two rectangles overlap
func (r Rect) Intersects(o Rect) bool {
	return r.X < o.X+o.Width && o.X < r.X+r.Width &&
		r.Y < o.Y+o.Height && o.Y < r.Y+r.Height
}

// Image converts a device rectangle to integer pixel bounds
func (r Rect) Image() image.Rectangle {
	x0 := int(math.Round(r.X))
	y0 := int(math.Round(r.Y))
	return image.Rect(x0, y0, x0+int(math.Round(r.Width)), y0+int(math.Round(r.Height)))
}

func (r Rect) String() string {
	return fmt.Sprintf("%s{x:%g y:%g w:%g h:%g}", r.Space, r.X, r.Y, r.Width, r.Height)
}

// Normalized returns the transform with the resolution default applied, or an
// invalid_transform error when a scale is zero or not finite
func (t Transform) Normalized() (Transform, error) {
	if !usable(t.ScaleX) || !usable(t.ScaleY) {
		return t, types.NewError(types.CodeInvalidTransform,
			"invalid transform: scale (%g, %g) must be finite and non-zero", t.ScaleX, t.ScaleY)
	}
	if math.IsNaN(t.OffsetX) || math.IsInf(t.OffsetX, 0) || math.IsNaN(t.OffsetY) || math.IsInf(t.OffsetY, 0) {
		return t, types.NewError(types.CodeInvalidTransform,
			"invalid transform: offset (%g, %g) must be finite", t.OffsetX, t.OffsetY)
	}
	if t.Resolution <= 0 || math.IsNaN(t.Resolution) || math.IsInf(t.Resolution, 0) {
		t.Resolution = 1
	}
	return t, nil
}

func usable(v float64) bool {
	return v != 0 && !math.IsNaN(v) && !math.IsInf(v, 0)
}

// SceneToDevice maps a scene-space rectangle into device pixels
func SceneToDevice(r Rect, t Transform) (Rect, error) {
	if r.Space != SceneSpace {
		return Rect{}, types.NewError(types.CodeInvalidParameters, "expected a scene-space rect, got %s", r)
	}
	t, err := t.Normalized()
	if err != nil {
		return Rect{}, err
	}
	return Rect{
		X:      math.Round((r.X*t.ScaleX + t.OffsetX) * t.Resolution),
		Y:      math.Round((r.Y*t.ScaleY + t.OffsetY) * t.Resolution),
		Width:  math.Round(r.Width * t.ScaleX * t.Resolution),
		Height: math.Round(r.Height * t.ScaleY * t.Resolution),
		Space:  DeviceSpace,
	}, nil
}

// DeviceToScene maps a device-pixel rectangle back into scene space
func DeviceToScene(r Rect, t Transform) (Rect, error) {
	if r.Space != DeviceSpace {
		return Rect{}, types.NewError(types.CodeInvalidParameters, "expected a device-space rect, got %s", r)
	}
	t, err := t.Normalized()
	if err != nil {
		return Rect{}, err
	}
	return Rect{
		X:      (r.X/t.Resolution - t.OffsetX) / t.ScaleX,
		Y:      (r.Y/t.Resolution - t.OffsetY) / t.ScaleY,
		Width:  r.Width / t.Resolution / t.ScaleX,
		Height: r.Height / t.Resolution / t.ScaleY,
		Space:  SceneSpace,
	}, nil
}

// SceneToDevicePoint maps a single scene point into device pixels without rounding
func SceneToDevicePoint(p Point, t Transform) (Point, error) {
	t, err := t.Normalized()
	if err != nil {
		return Point{}, err
	}
	return Point{
		X: (p.X*t.ScaleX + t.OffsetX) * t.Resolution,
		Y: (p.Y*t.ScaleY + t.OffsetY) * t.Resolution,
	}, nil
}

// DeviceToScenePoint maps a device pixel back into scene space
func DeviceToScenePoint(p Point, t Transform) (Point, error) {
	t, err := t.Normalized()
	if err != nil {
		return Point{}, err
	}
	return Point{
		X: (p.X/t.Resolution - t.OffsetX) / t.ScaleX,
		Y: (p.Y/t.Resolution - t.OffsetY) / t.ScaleY,
	}, nil
}
