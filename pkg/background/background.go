// Package background makes a uniform light background transparent
package background

import (
	"bytes"
	"fmt"
	"image"
	_ "image/jpeg"
	"image/png"

	"golang.org/x/image/draw"

	"github.com/gomcpgo/scene_edit_ai/pkg/types"
)

// Algorithm names
const (
	AlgorithmThreshold = "threshold"
	AlgorithmFloodFill = "floodfill"
)

// Default thresholds per algorithm
const (
	DefaultBrightness = 240 // threshold: 0-255 per channel
	DefaultDistance   = 30  // floodfill: 0-441 distance to white
	nearTransparent   = 10
)

// Options selects the algorithm and its threshold. A zero Threshold uses the
// algorithm's default
type Options struct {
	Algorithm string  `json:"algorithm" yaml:"algorithm" mapstructure:"algorithm"`
	Threshold float64 `json:"threshold" yaml:"threshold" mapstructure:"threshold"`
}

// Normalize decodes data, clears the background and re-encodes it as PNG
func Normalize(data []byte, opts Options) ([]byte, error) {
	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, types.WrapError(types.CodeDecodeError, err, "failed to decode image")
	}
	img := toNRGBA(src)

	switch opts.Algorithm {
	case AlgorithmThreshold:
		t := opts.Threshold
		if t <= 0 {
			t = DefaultBrightness
		}
		Threshold(img, uint8(clamp(t, 0, 255)))
	case AlgorithmFloodFill, "":
		t := opts.Threshold
		if t <= 0 {
			t = DefaultDistance
		}
		FloodFill(img, t)
	default:
		return nil, types.NewError(types.CodeInvalidParameters, "unknown background algorithm %q", opts.Algorithm)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("failed to encode image: %w", err)
	}
	return buf.Bytes(), nil
}

func toNRGBA(src image.Image) *image.NRGBA {
	if n, ok := src.(*image.NRGBA); ok && n.Rect.Min == (image.Point{}) {
		return n
	}
	b := src.Bounds()
	dst := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), src, b.Min, draw.Src)
	return dst
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Threshold clears every pixel whose R, G and B all exceed limit. Interior
// light regions are removed too
func Threshold(img *image.NRGBA, limit uint8) {
	pix := img.Pix
	for i := 0; i+3 < len(pix); i += 4 {
		if pix[i] > limit && pix[i+1] > limit && pix[i+2] > limit {
			pix[i+3] = 0
		}
	}
}

// FloodFill clears background-like pixels reachable from the image border
// through 4-connected background-like neighbours
func FloodFill(img *image.NRGBA, distance float64) {
	w, h := img.Rect.Dx(), img.Rect.Dy()
	if w == 0 || h == 0 {
		return
	}
	limit := distance * distance
	pix := img.Pix
	stride := img.Stride

	like := func(x, y int) bool {
		o := y*stride + x*4
		if pix[o+3] <= nearTransparent {
			return true
		}
		dr := 255 - float64(pix[o])
		dg := 255 - float64(pix[o+1])
		db := 255 - float64(pix[o+2])
		return dr*dr+dg*dg+db*db < limit
	}

	visited := make([]bool, w*h)
	queue := make([]int, 0, 2*(w+h))
	seed := func(x, y int) {
		i := y*w + x
		if !visited[i] && like(x, y) {
			visited[i] = true
			queue = append(queue, i)
		}
	}
	for x := 0; x < w; x++ {
		seed(x, 0)
		seed(x, h-1)
	}
	for y := 0; y < h; y++ {
		seed(0, y)
		seed(w-1, y)
	}

	for head := 0; head < len(queue); head++ {
		i := queue[head]
		x, y := i%w, i/w
		pix[y*stride+x*4+3] = 0
		if x > 0 {
			seed(x-1, y)
		}
		if x < w-1 {
			seed(x+1, y)
		}
		if y > 0 {
			seed(x, y-1)
		}
		if y < h-1 {
			seed(x, y+1)
		}
	}
}
