// Package selection implements the drag-to-select interaction used to pick a
// scene region for editing
package selection

import (
	"sync"

	"go.uber.org/zap"

	"github.com/gomcpgo/scene_edit_ai/pkg/geometry"
)

// EventType is the kind of pointer event
type EventType int

const (
	PointerDown EventType = iota
	PointerMove
	PointerUp
)

// PointerEvent is a pointer event already expressed in scene space
type PointerEvent struct {
	Type     EventType
	Pointer  int
	Position geometry.Point
}

// Overlay is the cosmetic rectangle drawn while dragging
type Overlay interface {
	SetRect(r geometry.Rect)
	Destroy()
}

// Host is the retained interaction layer the controller attaches to
type Host interface {
	// Listen registers fn for every pointer event and returns a detach func
	Listen(fn func(PointerEvent)) (detach func())
	NewOverlay() Overlay
	// Forget drops every reference the host's hit-testing holds to o
	Forget(o Overlay)
	// Defer runs fn at the next frame boundary
	Defer(fn func())
}

// State of the controller
type State int

const (
	Idle State = iota
	Dragging
)

func (s State) String() string {
	if s == Dragging {
		return "dragging"
	}
	return "idle"
}

// Controller turns a pointer drag into a finalized scene rectangle
type Controller struct {
	host     Host
	onSelect func(geometry.Rect)
	minSize  float64
	log      *zap.Logger

	mu      sync.Mutex
	active  bool
	state   State
	pointer int
	anchor  geometry.Point
	overlay Overlay
	detach  func()
}

// NewController creates an inactive controller. onSelect receives every
// accepted selection
func NewController(host Host, onSelect func(geometry.Rect), logger *zap.Logger) *Controller {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Controller{
		host:     host,
		onSelect: onSelect,
		minSize:  geometry.MinSelectionSize,
		log:      logger,
	}
}

// Active reports whether the controller is listening for pointer events
func (c *Controller) Active() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active
}

// State returns the current drag state
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Toggle activates the controller, or deactivates it when already active
// It returns the new activation state
func (c *Controller) Toggle() bool {
	c.mu.Lock()
	if c.active {
		c.teardownLocked()
		c.mu.Unlock()
		c.log.Debug("selection deactivated by toggle")
		return false
	}
	c.active = true
	c.state = Idle
	c.mu.Unlock()

	detach := c.host.Listen(c.handle)

	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.active {
		// deactivated while attaching
		detach()
		return false
	}
	c.detach = detach
	c.log.Debug("selection activated")
	return true
}

// Deactivate tears the controller down. Safe to call at any time, including mid-drag
func (c *Controller) Deactivate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.active {
		return
	}
	c.teardownLocked()
}

func (c *Controller) teardownLocked() {
	if c.detach != nil {
		c.detach()
		c.detach = nil
	}
	c.dropOverlayLocked()
	c.active = false
	c.state = Idle
}

// dropOverlayLocked purges the overlay from host tracking now and destroys it
// on the next frame
func (c *Controller) dropOverlayLocked() {
	if c.overlay == nil {
		return
	}
	ov := c.overlay
	c.overlay = nil
	c.host.Forget(ov)
	c.host.Defer(ov.Destroy)
}

func (c *Controller) handle(ev PointerEvent) {
	var selected *geometry.Rect

	c.mu.Lock()
	if !c.active {
		c.mu.Unlock()
		return
	}
	switch ev.Type {
	case PointerDown:
		if c.state == Dragging {
			break
		}
		c.state = Dragging
		c.pointer = ev.Pointer
		c.anchor = ev.Position
		c.overlay = c.host.NewOverlay()
		c.overlay.SetRect(geometry.FromCorners(ev.Position, ev.Position, geometry.SceneSpace))

	case PointerMove:
		if c.state != Dragging || ev.Pointer != c.pointer {
			break
		}
		if c.overlay != nil {
			c.overlay.SetRect(geometry.FromCorners(c.anchor, ev.Position, geometry.SceneSpace))
		}

	case PointerUp:
		if c.state != Dragging || ev.Pointer != c.pointer {
			break
		}
		rect := geometry.FromCorners(c.anchor, ev.Position, geometry.SceneSpace)
		if rect.TooSmall(c.minSize) {
			c.log.Debug("selection discarded", zap.Stringer("rect", rect))
			c.dropOverlayLocked()
			c.state = Idle
			break
		}
		c.teardownLocked()
		selected = &rect
	}
	c.mu.Unlock()

	if selected != nil && c.onSelect != nil {
		c.log.Info("selection finalized", zap.Stringer("rect", *selected))
		c.onSelect(*selected)
	}
}
