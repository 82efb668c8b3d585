package scene

import (
	"errors"
	"image"
	"image/color"
	"sort"
	"sync"

	"golang.org/x/image/draw"

	"github.com/gomcpgo/scene_edit_ai/pkg/geometry"
	"github.com/gomcpgo/scene_edit_ai/pkg/selection"
)

// ErrDanglingTarget is returned by Dispatch when hit-test bookkeeping still
// points at a destroyed overlay
var ErrDanglingTarget = errors.New("pointer target was destroyed while still tracked")

var overlayColor = color.RGBA{R: 0x33, G: 0x99, B: 0xff, A: 0xff}

// Interaction is the pointer-routing layer on top of the scene. It implements
// selection.Host
type Interaction struct {
	mu        sync.Mutex
	listeners map[int]func(selection.PointerEvent)
	nextID    int
	overlays  []*overlay
	hovered   map[int]*overlay
	deferred  []func()
}

var _ selection.Host = (*Interaction)(nil)

type overlay struct {
	owner     *Interaction
	rect      geometry.Rect
	visible   bool
	destroyed bool
}

// NewInteraction creates an empty interaction layer
func NewInteraction() *Interaction {
	return &Interaction{
		listeners: make(map[int]func(selection.PointerEvent)),
		hovered:   make(map[int]*overlay),
	}
}

func (o *overlay) SetRect(r geometry.Rect) {
	o.owner.mu.Lock()
	defer o.owner.mu.Unlock()
	o.rect = r
	o.visible = true
}

func (o *overlay) Destroy() {
	in := o.owner
	in.mu.Lock()
	defer in.mu.Unlock()
	o.destroyed = true
	for i, cur := range in.overlays {
		if cur == o {
			in.overlays = append(in.overlays[:i], in.overlays[i+1:]...)
			break
		}
	}
}

// Listen registers fn for pointer events
func (in *Interaction) Listen(fn func(selection.PointerEvent)) func() {
	in.mu.Lock()
	defer in.mu.Unlock()
	id := in.nextID
	in.nextID++
	in.listeners[id] = fn
	return func() {
		in.mu.Lock()
		defer in.mu.Unlock()
		delete(in.listeners, id)
	}
}

// NewOverlay adds a hidden overlay to the layer
func (in *Interaction) NewOverlay() selection.Overlay {
	in.mu.Lock()
	defer in.mu.Unlock()
	o := &overlay{owner: in}
	in.overlays = append(in.overlays, o)
	return o
}

// Forget removes o from hover tracking
func (in *Interaction) Forget(o selection.Overlay) {
	ov, ok := o.(*overlay)
	if !ok {
		return
	}
	in.mu.Lock()
	defer in.mu.Unlock()
	for pointer, cur := range in.hovered {
		if cur == ov {
			delete(in.hovered, pointer)
		}
	}
}

// Defer queues fn until the next Flush
func (in *Interaction) Defer(fn func()) {
	in.mu.Lock()
	defer in.mu.Unlock()
	in.deferred = append(in.deferred, fn)
}

// Flush runs deferred work. The canvas calls it at the start of each frame
func (in *Interaction) Flush() {
	in.mu.Lock()
	fns := in.deferred
	in.deferred = nil
	in.mu.Unlock()
	for _, fn := range fns {
		fn()
	}
}

// Listeners returns the number of attached listeners
func (in *Interaction) Listeners() int {
	in.mu.Lock()
	defer in.mu.Unlock()
	return len(in.listeners)
}

// Dispatch hit-tests ev against live overlays and delivers it to listeners
func (in *Interaction) Dispatch(ev selection.PointerEvent) error {
	in.mu.Lock()
	for _, o := range in.hovered {
		if o.destroyed {
			in.mu.Unlock()
			return ErrDanglingTarget
		}
	}

	var hit *overlay
	for i := len(in.overlays) - 1; i >= 0; i-- {
		o := in.overlays[i]
		if o.visible && contains(o.rect, ev.Position) {
			hit = o
			break
		}
	}
	if hit != nil {
		in.hovered[ev.Pointer] = hit
	} else {
		delete(in.hovered, ev.Pointer)
	}

	ids := make([]int, 0, len(in.listeners))
	for id := range in.listeners {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	fns := make([]func(selection.PointerEvent), 0, len(ids))
	for _, id := range ids {
		fns = append(fns, in.listeners[id])
	}
	in.mu.Unlock()

	for _, fn := range fns {
		fn(ev)
	}
	return nil
}

func contains(r geometry.Rect, p geometry.Point) bool {
	return p.X >= r.X && p.X <= r.X+r.Width && p.Y >= r.Y && p.Y <= r.Y+r.Height
}

// drawOverlays outlines every visible overlay
func (in *Interaction) drawOverlays(dst *image.RGBA, t geometry.Transform) {
	in.mu.Lock()
	rects := make([]geometry.Rect, 0, len(in.overlays))
	for _, o := range in.overlays {
		if o.visible && !o.destroyed {
			rects = append(rects, o.rect)
		}
	}
	in.mu.Unlock()

	src := image.NewUniform(overlayColor)
	for _, r := range rects {
		d, err := geometry.SceneToDevice(r, t)
		if err != nil {
			continue
		}
		b := d.Image()
		edges := []image.Rectangle{
			image.Rect(b.Min.X, b.Min.Y, b.Max.X, b.Min.Y+1),
			image.Rect(b.Min.X, b.Max.Y-1, b.Max.X, b.Max.Y),
			image.Rect(b.Min.X, b.Min.Y, b.Min.X+1, b.Max.Y),
			image.Rect(b.Max.X-1, b.Min.Y, b.Max.X, b.Max.Y),
		}
		for _, e := range edges {
			draw.Draw(dst, e.Intersect(dst.Bounds()), src, image.Point{}, draw.Over)
		}
	}
}
