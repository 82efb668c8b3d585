package enhancement

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/gomcpgo/scene_edit_ai/pkg/background"
	"github.com/gomcpgo/scene_edit_ai/pkg/storage"
	"github.com/gomcpgo/scene_edit_ai/pkg/types"
)

func whiteWithDot(t *testing.T) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, 6, 6))
	for y := 0; y < 6; y++ {
		for x := 0; x < 6; x++ {
			img.Set(x, y, color.NRGBA{255, 255, 255, 255})
		}
	}
	img.Set(3, 3, color.NRGBA{0, 0, 0, 255})
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestRemoveBackgroundFromPath(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "tile.png")
	os.WriteFile(in, whiteWithDot(t), 0644)

	store := storage.NewStorage(t.TempDir())
	e := NewEnhancer(store, nil)
	res, err := e.RemoveBackground(context.Background(), RemoveBackgroundParams{ImagePath: in, Algorithm: "white"})
	if err != nil {
		t.Fatalf("RemoveBackground failed: %v", err)
	}
	if res.Algorithm != background.AlgorithmThreshold {
		t.Errorf("alias not resolved: %s", res.Algorithm)
	}
	if filepath.Base(res.OutputPath) != "tile_no_bg.png" {
		t.Errorf("unexpected output %s", res.OutputPath)
	}

	img, err := png.Decode(bytes.NewReader(res.Data))
	if err != nil {
		t.Fatal(err)
	}
	if _, _, _, a := img.At(0, 0).RGBA(); a != 0 {
		t.Errorf("corner should be transparent, alpha %d", a)
	}
	if _, _, _, a := img.At(3, 3).RGBA(); a == 0 {
		t.Error("dark pixel should stay opaque")
	}

	meta, err := store.LoadMetadata(res.ID)
	if err != nil {
		t.Fatal(err)
	}
	if meta.Operation != types.OperationRemoveBackground || meta.Parameters["algorithm"] != background.AlgorithmThreshold {
		t.Errorf("unexpected metadata %+v", meta)
	}
}

func TestRemoveBackgroundErrors(t *testing.T) {
	e := NewEnhancer(storage.NewStorage(t.TempDir()), nil)
	ctx := context.Background()

	if _, err := e.RemoveBackground(ctx, RemoveBackgroundParams{}); !errors.Is(err, types.ErrInvalidParameters) {
		t.Errorf("expected invalid_parameters, got %v", err)
	}
	if _, err := e.RemoveBackground(ctx, RemoveBackgroundParams{Image: []byte("nope")}); !errors.Is(err, types.ErrDecodeError) {
		t.Errorf("expected decode_error, got %v", err)
	}
	if _, err := e.RemoveBackground(ctx, RemoveBackgroundParams{Image: whiteWithDot(t), Algorithm: "magic"}); !errors.Is(err, types.ErrInvalidParameters) {
		t.Errorf("expected invalid_parameters for unknown algorithm, got %v", err)
	}

	root := filepath.Join(t.TempDir(), "blocked")
	os.WriteFile(root, []byte("x"), 0644)
	blocked := NewEnhancer(storage.NewStorage(root), nil)
	if _, err := blocked.RemoveBackground(ctx, RemoveBackgroundParams{Image: whiteWithDot(t)}); !errors.Is(err, types.ErrUploadFailed) {
		t.Errorf("expected upload_failed when storage is unwritable, got %v", err)
	}
}

func TestGetAlgorithmFromAlias(t *testing.T) {
	cases := map[string]string{
		"":          background.AlgorithmFloodFill,
		"BFS":       background.AlgorithmFloodFill,
		"threshold": background.AlgorithmThreshold,
		"other":     "other",
	}
	for in, want := range cases {
		if got := GetAlgorithmFromAlias(in); got != want {
			t.Errorf("%q: got %q want %q", in, got, want)
		}
	}
}
