package geometry

import (
	"errors"
	"math"
	"math/rand"
	"testing"

	"github.com/gomcpgo/scene_edit_ai/pkg/types"
)

func TestSceneToDevice_KnownTransform(t *testing.T) {
	r := SceneRect(100, 100, 200, 150)
	tr := Transform{ScaleX: 2, ScaleY: 2, OffsetX: 50, OffsetY: 50, Resolution: 1}

	got, err := SceneToDevice(r, tr)
	if err != nil {
		t.Fatalf("SceneToDevice failed: %v", err)
	}

	want := DeviceRect(250, 250, 400, 300)
	if got != want {
		t.Errorf("Expected %v, got %v", want, got)
	}
}

func TestSceneToDevice_ResolutionDefaultsToOne(t *testing.T) {
	r := SceneRect(10, 20, 30, 40)
	withZero, err := SceneToDevice(r, Transform{ScaleX: 1, ScaleY: 1})
	if err != nil {
		t.Fatalf("SceneToDevice failed: %v", err)
	}
	withOne, _ := SceneToDevice(r, Identity)
	if withZero != withOne {
		t.Errorf("Expected resolution 0 to behave like 1: %v vs %v", withZero, withOne)
	}
}

func TestSceneToDevice_AppliesResolution(t *testing.T) {
	r := SceneRect(10, 10, 100, 50)
	got, err := SceneToDevice(r, Transform{ScaleX: 1, ScaleY: 1, OffsetX: 5, OffsetY: 0, Resolution: 2})
	if err != nil {
		t.Fatalf("SceneToDevice failed: %v", err)
	}
	want := DeviceRect(30, 20, 200, 100)
	if got != want {
		t.Errorf("Expected %v, got %v", want, got)
	}
}

func TestInvalidTransform(t *testing.T) {
	cases := []Transform{
		{ScaleX: 0, ScaleY: 1},
		{ScaleX: 1, ScaleY: 0},
		{ScaleX: math.NaN(), ScaleY: 1},
		{ScaleX: 1, ScaleY: math.Inf(1)},
	}
	for _, tr := range cases {
		if _, err := SceneToDevice(SceneRect(0, 0, 10, 10), tr); !errors.Is(err, types.ErrInvalidTransform) {
			t.Errorf("SceneToDevice(%+v): expected invalid_transform, got %v", tr, err)
		}
		if _, err := DeviceToScene(DeviceRect(0, 0, 10, 10), tr); !errors.Is(err, types.ErrInvalidTransform) {
			t.Errorf("DeviceToScene(%+v): expected invalid_transform, got %v", tr, err)
		}
	}
}

func TestWrongSpaceRejected(t *testing.T) {
	if _, err := SceneToDevice(DeviceRect(0, 0, 10, 10), Identity); err == nil {
		t.Error("Expected error mapping a device rect with SceneToDevice")
	}
	if _, err := DeviceToScene(SceneRect(0, 0, 10, 10), Identity); err == nil {
		t.Error("Expected error mapping a scene rect with DeviceToScene")
	}
}

func TestRoundTripWithinOneDevicePixel(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 500; i++ {
		tr := Transform{
			ScaleX:     0.25 + rng.Float64()*4,
			ScaleY:     0.25 + rng.Float64()*4,
			OffsetX:    rng.Float64()*2000 - 1000,
			OffsetY:    rng.Float64()*2000 - 1000,
			Resolution: []float64{1, 1.5, 2, 3}[rng.Intn(4)],
		}
		r := SceneRect(rng.Float64()*5000, rng.Float64()*5000, rng.Float64()*800, rng.Float64()*800)

		d, err := SceneToDevice(r, tr)
		if err != nil {
			t.Fatalf("SceneToDevice failed: %v", err)
		}
		back, err := DeviceToScene(d, tr)
		if err != nil {
			t.Fatalf("DeviceToScene failed: %v", err)
		}

		pxX := tr.ScaleX * tr.Resolution
		pxY := tr.ScaleY * tr.Resolution
		if math.Abs(back.X-r.X)*pxX > 1 || math.Abs(back.Y-r.Y)*pxY > 1 ||
			math.Abs(back.Width-r.Width)*pxX > 1 || math.Abs(back.Height-r.Height)*pxY > 1 {
			t.Fatalf("round trip drifted more than one device pixel: %v -> %v -> %v (%+v)", r, d, back, tr)
		}
	}
}

func TestFromCorners(t *testing.T) {
	r := FromCorners(Point{X: 50, Y: 10}, Point{X: 20, Y: 40}, SceneSpace)
	want := SceneRect(20, 10, 30, 30)
	if r != want {
		t.Errorf("Expected %v, got %v", want, r)
	}
	if !FromCorners(Point{X: 0, Y: 0}, Point{X: 9, Y: 100}, SceneSpace).TooSmall(MinSelectionSize) {
		t.Error("Expected 9-wide rect to be too small")
	}
	if FromCorners(Point{X: 0, Y: 0}, Point{X: 10, Y: 10}, SceneSpace).TooSmall(MinSelectionSize) {
		t.Error("Expected 10x10 rect to be a selection")
	}
}

func TestPixelSize(t *testing.T) {
	w, h := SceneRect(0, 0, 99.6, 10.4).PixelSize()
	if w != 100 || h != 10 {
		t.Errorf("Expected 100x10, got %dx%d", w, h)
	}
}
