package scene

import (
	"fmt"
	"image"
	"image/color"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/gomcpgo/scene_edit_ai/pkg/geometry"
)

// File is the on-disk YAML description of a scene
type File struct {
	ID              string        `yaml:"id"`
	Width           float64       `yaml:"width"`
	Height          float64       `yaml:"height"`
	BackgroundColor string        `yaml:"background_color,omitempty"`
	Background      string        `yaml:"background,omitempty"`
	Fog             string        `yaml:"fog,omitempty"`
	FogColor        string        `yaml:"fog_color,omitempty"`
	Grid            GridFile      `yaml:"grid,omitempty"`
	Masks           []SpriteFile  `yaml:"masks,omitempty"`
	Tiles           []SpriteFile  `yaml:"tiles,omitempty"`
	Tokens          []SpriteFile  `yaml:"tokens,omitempty"`
	Drawings        []DrawingFile `yaml:"drawings,omitempty"`
}

// GridFile describes the grid layer
type GridFile struct {
	Size  float64 `yaml:"size"`
	Color string  `yaml:"color"`
}

// SpriteFile describes a tile, token or mask entry
type SpriteFile struct {
	ID     string  `yaml:"id"`
	X      float64 `yaml:"x"`
	Y      float64 `yaml:"y"`
	Width  float64 `yaml:"width"`
	Height float64 `yaml:"height"`
	Image  string  `yaml:"image,omitempty"`
	Color  string  `yaml:"color,omitempty"`
	Hidden bool    `yaml:"hidden,omitempty"`
}

// DrawingFile describes a filled shape
type DrawingFile struct {
	ID        string  `yaml:"id"`
	X         float64 `yaml:"x"`
	Y         float64 `yaml:"y"`
	Width     float64 `yaml:"width"`
	Height    float64 `yaml:"height"`
	Fill      string  `yaml:"fill"`
	Interface bool    `yaml:"interface,omitempty"`
	Hidden    bool    `yaml:"hidden,omitempty"`
}

// Load reads a YAML scene file. Image paths are relative to the file
func Load(path string) (*Scene, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scene file: %w", err)
	}
	return Parse(data, filepath.Dir(path))
}

// Parse builds a scene from YAML, resolving image paths against dir
func Parse(data []byte, dir string) (*Scene, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse scene file: %w", err)
	}
	if f.Width <= 0 || f.Height <= 0 {
		return nil, fmt.Errorf("scene %q has invalid size %gx%g", f.ID, f.Width, f.Height)
	}

	s := New(f.ID, f.Width, f.Height)
	var err error

	if f.BackgroundColor != "" {
		if s.BackgroundColor, err = ParseColor(f.BackgroundColor); err != nil {
			return nil, fmt.Errorf("background_color: %w", err)
		}
	}
	if f.Background != "" {
		if s.Background, err = loadImage(dir, f.Background); err != nil {
			return nil, err
		}
	}
	if f.Fog != "" {
		if s.Fog, err = loadImage(dir, f.Fog); err != nil {
			return nil, err
		}
	} else if f.FogColor != "" {
		c, err := ParseColor(f.FogColor)
		if err != nil {
			return nil, fmt.Errorf("fog_color: %w", err)
		}
		s.Fog = Solid(c)
	}
	if f.Grid.Size > 0 {
		s.Grid.Size = f.Grid.Size
		if s.Grid.Color, err = ParseColor(f.Grid.Color); err != nil {
			return nil, fmt.Errorf("grid color: %w", err)
		}
	}

	if s.Masks, err = loadSprites(dir, f.Masks); err != nil {
		return nil, err
	}
	if s.Tiles, err = loadSprites(dir, f.Tiles); err != nil {
		return nil, err
	}
	if s.Tokens, err = loadSprites(dir, f.Tokens); err != nil {
		return nil, err
	}
	for _, d := range f.Drawings {
		fill, err := ParseColor(d.Fill)
		if err != nil {
			return nil, fmt.Errorf("drawing %s: %w", d.ID, err)
		}
		s.Drawings = append(s.Drawings, &Drawing{
			ID:        d.ID,
			Rect:      geometry.SceneRect(d.X, d.Y, d.Width, d.Height),
			Fill:      fill,
			Interface: d.Interface,
			Hidden:    d.Hidden,
		})
	}
	return s, nil
}

func loadSprites(dir string, files []SpriteFile) ([]*Sprite, error) {
	var out []*Sprite
	for _, sf := range files {
		sp := &Sprite{
			ID:     sf.ID,
			Rect:   geometry.SceneRect(sf.X, sf.Y, sf.Width, sf.Height),
			Hidden: sf.Hidden,
		}
		switch {
		case sf.Image != "":
			img, err := loadImage(dir, sf.Image)
			if err != nil {
				return nil, err
			}
			sp.Image = img
		case sf.Color != "":
			c, err := ParseColor(sf.Color)
			if err != nil {
				return nil, fmt.Errorf("sprite %s: %w", sf.ID, err)
			}
			sp.Image = Solid(c)
		default:
			return nil, fmt.Errorf("sprite %s needs an image or a color", sf.ID)
		}
		out = append(out, sp)
	}
	return out, nil
}

func loadImage(dir, name string) (image.Image, error) {
	path := name
	if !filepath.IsAbs(path) {
		path = filepath.Join(dir, name)
	}
	fh, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open image: %w", err)
	}
	defer fh.Close()
	img, _, err := image.Decode(fh)
	if err != nil {
		return nil, fmt.Errorf("failed to decode image %s: %w", name, err)
	}
	return img, nil
}

// Solid returns a 1x1 image of c, suitable for scaled drawing
func Solid(c color.RGBA) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, 1, 1))
	img.SetRGBA(0, 0, c)
	return img
}

// ParseColor parses #rgb, #rrggbb or #rrggbbaa into a premultiplied color
func ParseColor(s string) (color.RGBA, error) {
	hex := strings.TrimPrefix(strings.TrimSpace(s), "#")
	if len(hex) == 3 {
		hex = string([]byte{hex[0], hex[0], hex[1], hex[1], hex[2], hex[2]})
	}
	if len(hex) == 6 {
		hex += "ff"
	}
	if len(hex) != 8 {
		return color.RGBA{}, fmt.Errorf("invalid color %q", s)
	}
	v, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return color.RGBA{}, fmt.Errorf("invalid color %q: %w", s, err)
	}
	n := color.NRGBA{R: uint8(v >> 24), G: uint8(v >> 16), B: uint8(v >> 8), A: uint8(v)}
	return color.RGBAModel.Convert(n).(color.RGBA), nil
}
