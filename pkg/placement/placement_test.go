package placement

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gomcpgo/scene_edit_ai/pkg/document"
	"github.com/gomcpgo/scene_edit_ai/pkg/geometry"
	"github.com/gomcpgo/scene_edit_ai/pkg/storage"
	"github.com/gomcpgo/scene_edit_ai/pkg/types"
)

var pngBytes = []byte("\x89PNG\r\n\x1a\nrest")

func setup(t *testing.T) (*Adapter, *document.FileStore, *storage.Storage) {
	t.Helper()
	dir := t.TempDir()
	docs, err := document.Open(filepath.Join(dir, "documents.yaml"))
	if err != nil {
		t.Fatal(err)
	}
	blobs := storage.NewStorage(dir)
	return New(docs, blobs, "scene-edits", nil), docs, blobs
}

type failingBlobs struct{ uploads int }

func (f *failingBlobs) EnsureDir(string) error { return nil }
func (f *failingBlobs) Upload(string, string, []byte) (string, error) {
	f.uploads++
	return "", errors.New("disk full")
}

func TestPlaceNewTileInActiveScene(t *testing.T) {
	a, docs, blobs := setup(t)
	sc, _ := docs.AddScene(document.Scene{Name: "s"})

	res, err := a.Place(context.Background(), Target{Kind: NewTile, Rect: geometry.SceneRect(100, 100, 200, 150)}, pngBytes)
	if err != nil {
		t.Fatalf("Place failed: %v", err)
	}
	if res.SceneID != sc.ID || res.Tile == nil {
		t.Fatalf("unexpected result %+v", res)
	}
	if res.Tile.X != 100 || res.Tile.Y != 100 || res.Tile.Width != 200 || res.Tile.Height != 150 {
		t.Errorf("tile not at the selection rect: %+v", res.Tile)
	}
	if !strings.HasPrefix(res.Path, "scene-edits/new_tile-") || !strings.HasSuffix(res.Path, ".png") {
		t.Errorf("unexpected upload path %q", res.Path)
	}
	files, _ := blobs.List("scene-edits")
	if len(files) != 1 {
		t.Errorf("expected one upload, got %v", files)
	}
}

func TestPlaceWithoutActiveScene(t *testing.T) {
	a, _, blobs := setup(t)
	_, err := a.Place(context.Background(), Target{Kind: NewTile, Rect: geometry.SceneRect(0, 0, 20, 20)}, pngBytes)
	if !errors.Is(err, types.ErrNoActiveTarget) {
		t.Fatalf("expected no_active_target, got %v", err)
	}
	files, _ := blobs.List("scene-edits")
	if len(files) != 0 {
		t.Errorf("nothing should be uploaded, got %v", files)
	}
}

func TestPlaceExistingTile(t *testing.T) {
	a, docs, _ := setup(t)
	ctx := context.Background()
	sc, _ := docs.AddScene(document.Scene{ID: "s1"})
	docs.CreateTile(ctx, sc.ID, document.Tile{ID: "t1", Image: "old.png"})

	res, err := a.Place(ctx, Target{Kind: ExistingTile, SceneID: "s1", TileID: "t1"}, pngBytes)
	if err != nil {
		t.Fatalf("Place failed: %v", err)
	}
	tile, _ := docs.Tile(ctx, "s1", "t1")
	if tile.Image != res.Path {
		t.Errorf("tile image %q, want %q", tile.Image, res.Path)
	}

	if _, err := a.Place(ctx, Target{Kind: ExistingTile, SceneID: "s1", TileID: "gone"}, pngBytes); !errors.Is(err, types.ErrNoActiveTarget) {
		t.Errorf("expected no_active_target, got %v", err)
	}
}

func TestPlaceActorFields(t *testing.T) {
	a, docs, _ := setup(t)
	ctx := context.Background()
	actor, _ := docs.AddActor(document.Actor{Name: "Mira", Portrait: "p.png", Token: "t.png"})

	res, err := a.Place(ctx, Target{Kind: ActorToken, ActorID: actor.ID}, pngBytes)
	if err != nil {
		t.Fatalf("Place failed: %v", err)
	}
	if res.Actor.Token != res.Path || res.Actor.Portrait != "p.png" {
		t.Errorf("unexpected actor %+v", res.Actor)
	}

	res, err = a.Place(ctx, Target{Kind: ActorPortrait, ActorID: actor.ID}, pngBytes)
	if err != nil {
		t.Fatal(err)
	}
	if res.Actor.Portrait != res.Path {
		t.Errorf("portrait not updated: %+v", res.Actor)
	}

	if _, err := a.Place(ctx, Target{Kind: ActorPortrait, ActorID: "ghost"}, pngBytes); !errors.Is(err, types.ErrNoActiveTarget) {
		t.Errorf("expected no_active_target, got %v", err)
	}
}

func TestUploadFailure(t *testing.T) {
	dir := t.TempDir()
	docs, _ := document.Open(filepath.Join(dir, "d.yaml"))
	docs.AddScene(document.Scene{ID: "s"})
	blobs := &failingBlobs{}
	a := New(docs, blobs, "scene-edits", nil)

	_, err := a.Place(context.Background(), Target{Kind: NewTile, Rect: geometry.SceneRect(0, 0, 20, 20)}, pngBytes)
	if !errors.Is(err, types.ErrUploadFailed) {
		t.Fatalf("expected upload_failed, got %v", err)
	}
	sc, _ := docs.Scene(context.Background(), "s")
	if len(sc.Tiles) != 0 {
		t.Errorf("no tile should be created after a failed upload")
	}
}

func TestResolveRejectsDeviceRect(t *testing.T) {
	a, docs, _ := setup(t)
	docs.AddScene(document.Scene{ID: "s"})
	_, err := a.Resolve(context.Background(), Target{Kind: NewTile, Rect: geometry.DeviceRect(0, 0, 20, 20)})
	if !errors.Is(err, types.ErrInvalidParameters) {
		t.Errorf("expected invalid_parameters, got %v", err)
	}
}

func TestParseKind(t *testing.T) {
	if k, err := ParseKind(""); err != nil || k != NewTile {
		t.Errorf("empty kind should default to new_tile")
	}
	if _, err := ParseKind("banner"); err == nil {
		t.Error("expected error for unknown kind")
	}
}
