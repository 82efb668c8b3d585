package placement

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/gomcpgo/scene_edit_ai/pkg/document"
	"github.com/gomcpgo/scene_edit_ai/pkg/geometry"
	"github.com/gomcpgo/scene_edit_ai/pkg/types"
)

// Kind selects what a placement creates or updates
type Kind string

const (
	NewTile       Kind = "new_tile"
	ExistingTile  Kind = "existing_tile"
	ActorPortrait Kind = "actor_portrait"
	ActorToken    Kind = "actor_token"
)

// ParseKind accepts the kind names used by the tool and HTTP surfaces
func ParseKind(s string) (Kind, error) {
	switch Kind(s) {
	case "", NewTile:
		return NewTile, nil
	case ExistingTile, ActorPortrait, ActorToken:
		return Kind(s), nil
	}
	return "", types.NewError(types.CodeInvalidParameters, "unknown placement target %q", s)
}

// Target is where an edited image ends up. SceneID "" means the active scene
type Target struct {
	Kind    Kind          `json:"kind"`
	SceneID string        `json:"scene_id,omitempty"`
	Rect    geometry.Rect `json:"rect"`
	TileID  string        `json:"tile_id,omitempty"`
	ActorID string        `json:"actor_id,omitempty"`
}

// Blobs is the upload service
type Blobs interface {
	EnsureDir(folder string) error
	Upload(folder, filename string, data []byte) (string, error)
}

// Result describes a completed placement
type Result struct {
	Path    string          `json:"path"`
	Kind    Kind            `json:"kind"`
	SceneID string          `json:"scene_id,omitempty"`
	Tile    *document.Tile  `json:"tile,omitempty"`
	Actor   *document.Actor `json:"actor,omitempty"`
}

// Adapter uploads images and records them in the document store
type Adapter struct {
	store  document.Store
	blobs  Blobs
	folder string
	log    *zap.Logger
}

// New creates an adapter uploading into folder
func New(store document.Store, blobs Blobs, folder string, logger *zap.Logger) *Adapter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Adapter{store: store, blobs: blobs, folder: folder, log: logger}
}

func noTarget(err error, format string, args ...interface{}) error {
	if errors.Is(err, document.ErrNotFound) {
		return types.WrapError(types.CodeNoActiveTarget, err, format, args...)
	}
	return types.WrapError(types.CodeUploadFailed, err, format, args...)
}

// Resolve checks that the target exists and fills in the active scene ID
// Nothing is written
func (a *Adapter) Resolve(ctx context.Context, t Target) (Target, error) {
	switch t.Kind {
	case NewTile, ExistingTile:
		if t.SceneID == "" {
			sc, err := a.store.ActiveScene(ctx)
			if err != nil {
				return t, noTarget(err, "no active scene to place into")
			}
			t.SceneID = sc.ID
		} else if _, err := a.store.Scene(ctx, t.SceneID); err != nil {
			return t, noTarget(err, "scene %s is not available", t.SceneID)
		}
		if t.Kind == ExistingTile {
			if t.TileID == "" {
				return t, types.NewError(types.CodeInvalidParameters, "tile_id is required for an existing tile")
			}
			if _, err := a.store.Tile(ctx, t.SceneID, t.TileID); err != nil {
				return t, noTarget(err, "tile %s is not available", t.TileID)
			}
		} else if t.Rect.Space != geometry.SceneSpace {
			return t, types.NewError(types.CodeInvalidParameters, "tile rectangle must be in scene space")
		}
	case ActorPortrait, ActorToken:
		if t.ActorID == "" {
			return t, types.NewError(types.CodeInvalidParameters, "actor_id is required")
		}
		if _, err := a.store.Actor(ctx, t.ActorID); err != nil {
			return t, noTarget(err, "actor %s is not available", t.ActorID)
		}
	default:
		return t, types.NewError(types.CodeInvalidParameters, "unknown placement target %q", t.Kind)
	}
	return t, nil
}

// Place uploads data and creates or updates the target
func (a *Adapter) Place(ctx context.Context, t Target, data []byte) (*Result, error) {
	t, err := a.Resolve(ctx, t)
	if err != nil {
		return nil, err
	}

	if err := a.blobs.EnsureDir(a.folder); err != nil {
		return nil, types.WrapError(types.CodeUploadFailed, err, "failed to prepare upload folder %s", a.folder)
	}
	filename := fmt.Sprintf("%s-%s%s", t.Kind, uuid.NewString(), extension(data))
	path, err := a.blobs.Upload(a.folder, filename, data)
	if err != nil {
		return nil, types.WrapError(types.CodeUploadFailed, err, "failed to upload %s", filename)
	}
	a.log.Info("image uploaded", zap.String("path", path), zap.Int("bytes", len(data)))

	res := &Result{Path: path, Kind: t.Kind, SceneID: t.SceneID}
	switch t.Kind {
	case NewTile:
		tile, err := a.store.CreateTile(ctx, t.SceneID, document.Tile{
			Image:  path,
			X:      t.Rect.X,
			Y:      t.Rect.Y,
			Width:  t.Rect.Width,
			Height: t.Rect.Height,
		})
		if err != nil {
			return nil, noTarget(err, "failed to create tile in scene %s", t.SceneID)
		}
		res.Tile = tile
	case ExistingTile:
		tile, err := a.store.UpdateTile(ctx, t.SceneID, t.TileID, path)
		if err != nil {
			return nil, noTarget(err, "failed to update tile %s", t.TileID)
		}
		res.Tile = tile
	case ActorPortrait, ActorToken:
		images := document.ActorImages{Portrait: &path}
		if t.Kind == ActorToken {
			images = document.ActorImages{Token: &path}
		}
		actor, err := a.store.UpdateActorImages(ctx, t.ActorID, images)
		if err != nil {
			return nil, noTarget(err, "failed to update actor %s", t.ActorID)
		}
		res.Actor = actor
	}

	a.log.Info("placement complete",
		zap.String("kind", string(t.Kind)),
		zap.String("scene_id", t.SceneID),
		zap.String("path", path))
	return res, nil
}

func extension(data []byte) string {
	switch http.DetectContentType(data) {
	case "image/jpeg":
		return ".jpg"
	case "image/webp":
		return ".webp"
	}
	return ".png"
}
