package document

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

// ErrNotFound is returned when a scene, tile or actor does not exist
var ErrNotFound = errors.New("document not found")

// Tile is an image placed at a scene-space rectangle
type Tile struct {
	ID     string  `yaml:"id" json:"id"`
	Image  string  `yaml:"image" json:"image"`
	X      float64 `yaml:"x" json:"x"`
	Y      float64 `yaml:"y" json:"y"`
	Width  float64 `yaml:"width" json:"width"`
	Height float64 `yaml:"height" json:"height"`
}

// Scene holds the tiles of one scene document
type Scene struct {
	ID     string  `yaml:"id" json:"id"`
	Name   string  `yaml:"name" json:"name"`
	Width  float64 `yaml:"width" json:"width"`
	Height float64 `yaml:"height" json:"height"`
	Tiles  []Tile  `yaml:"tiles" json:"tiles"`
}

// Actor carries the portrait and token image paths of a character
type Actor struct {
	ID       string `yaml:"id" json:"id"`
	Name     string `yaml:"name" json:"name"`
	Portrait string `yaml:"portrait" json:"portrait"`
	Token    string `yaml:"token" json:"token"`
}

// ActorImages selects which actor image fields to overwrite; nil leaves a
// field unchanged
type ActorImages struct {
	Portrait *string
	Token    *string
}

// Store is the document store the workflow places results into
type Store interface {
	ActiveScene(ctx context.Context) (*Scene, error)
	Scene(ctx context.Context, id string) (*Scene, error)
	CreateTile(ctx context.Context, sceneID string, t Tile) (*Tile, error)
	UpdateTile(ctx context.Context, sceneID, tileID, image string) (*Tile, error)
	Tile(ctx context.Context, sceneID, tileID string) (*Tile, error)
	Actor(ctx context.Context, id string) (*Actor, error)
	UpdateActorImages(ctx context.Context, id string, images ActorImages) (*Actor, error)
}

type fileData struct {
	ActiveScene string   `yaml:"active_scene"`
	Scenes      []*Scene `yaml:"scenes"`
	Actors      []*Actor `yaml:"actors"`
}

// FileStore keeps all documents in one YAML file, rewritten on each change
type FileStore struct {
	path string
	mu   sync.RWMutex
	data fileData
}

// Open loads path, or starts empty when it does not exist
func Open(path string) (*FileStore, error) {
	fs := &FileStore{path: path}
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return fs, nil
		}
		return nil, fmt.Errorf("failed to read documents: %w", err)
	}
	if err := yaml.Unmarshal(raw, &fs.data); err != nil {
		return nil, fmt.Errorf("failed to parse documents: %w", err)
	}
	return fs, nil
}

// NewID returns a fresh document ID
func NewID() string {
	return uuid.NewString()
}

func (fs *FileStore) saveLocked() error {
	out, err := yaml.Marshal(&fs.data)
	if err != nil {
		return fmt.Errorf("failed to marshal documents: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(fs.path), 0755); err != nil {
		return fmt.Errorf("failed to create documents folder: %w", err)
	}
	tmp := fs.path + ".tmp"
	if err := os.WriteFile(tmp, out, 0644); err != nil {
		return fmt.Errorf("failed to write documents: %w", err)
	}
	return os.Rename(tmp, fs.path)
}

func (fs *FileStore) sceneLocked(id string) *Scene {
	for _, s := range fs.data.Scenes {
		if s.ID == id {
			return s
		}
	}
	return nil
}

func (fs *FileStore) actorLocked(id string) *Actor {
	for _, a := range fs.data.Actors {
		if a.ID == id {
			return a
		}
	}
	return nil
}

func copyScene(s *Scene) *Scene {
	c := *s
	c.Tiles = append([]Tile(nil), s.Tiles...)
	return &c
}

// AddScene stores s, assigning an ID when empty. The first scene becomes active
func (fs *FileStore) AddScene(s Scene) (*Scene, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	if s.ID == "" {
		s.ID = NewID()
	}
	if fs.sceneLocked(s.ID) != nil {
		return nil, fmt.Errorf("scene %s already exists", s.ID)
	}
	stored := copyScene(&s)
	fs.data.Scenes = append(fs.data.Scenes, stored)
	if fs.data.ActiveScene == "" {
		fs.data.ActiveScene = s.ID
	}
	if err := fs.saveLocked(); err != nil {
		return nil, err
	}
	return copyScene(stored), nil
}

// Activate makes the scene with id the active one; "" clears it
func (fs *FileStore) Activate(id string) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	if id != "" && fs.sceneLocked(id) == nil {
		return fmt.Errorf("scene %s: %w", id, ErrNotFound)
	}
	fs.data.ActiveScene = id
	return fs.saveLocked()
}

// AddActor stores a, assigning an ID when empty
func (fs *FileStore) AddActor(a Actor) (*Actor, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	if a.ID == "" {
		a.ID = NewID()
	}
	if fs.actorLocked(a.ID) != nil {
		return nil, fmt.Errorf("actor %s already exists", a.ID)
	}
	stored := a
	fs.data.Actors = append(fs.data.Actors, &stored)
	if err := fs.saveLocked(); err != nil {
		return nil, err
	}
	return &a, nil
}

func (fs *FileStore) ActiveScene(ctx context.Context) (*Scene, error) {
	fs.mu.RLock()
	defer fs.mu.RUnlock()
	if fs.data.ActiveScene == "" {
		return nil, fmt.Errorf("no active scene: %w", ErrNotFound)
	}
	s := fs.sceneLocked(fs.data.ActiveScene)
	if s == nil {
		return nil, fmt.Errorf("active scene %s: %w", fs.data.ActiveScene, ErrNotFound)
	}
	return copyScene(s), nil
}

func (fs *FileStore) Scene(ctx context.Context, id string) (*Scene, error) {
	fs.mu.RLock()
	defer fs.mu.RUnlock()
	s := fs.sceneLocked(id)
	if s == nil {
		return nil, fmt.Errorf("scene %s: %w", id, ErrNotFound)
	}
	return copyScene(s), nil
}

// CreateTile appends t to the scene, assigning an ID when empty
func (fs *FileStore) CreateTile(ctx context.Context, sceneID string, t Tile) (*Tile, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	s := fs.sceneLocked(sceneID)
	if s == nil {
		return nil, fmt.Errorf("scene %s: %w", sceneID, ErrNotFound)
	}
	if t.ID == "" {
		t.ID = NewID()
	}
	s.Tiles = append(s.Tiles, t)
	if err := fs.saveLocked(); err != nil {
		s.Tiles = s.Tiles[:len(s.Tiles)-1]
		return nil, err
	}
	return &t, nil
}

// UpdateTile points an existing tile at a new image
func (fs *FileStore) UpdateTile(ctx context.Context, sceneID, tileID, image string) (*Tile, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	s := fs.sceneLocked(sceneID)
	if s == nil {
		return nil, fmt.Errorf("scene %s: %w", sceneID, ErrNotFound)
	}
	for i := range s.Tiles {
		if s.Tiles[i].ID != tileID {
			continue
		}
		prev := s.Tiles[i].Image
		s.Tiles[i].Image = image
		if err := fs.saveLocked(); err != nil {
			s.Tiles[i].Image = prev
			return nil, err
		}
		t := s.Tiles[i]
		return &t, nil
	}
	return nil, fmt.Errorf("tile %s: %w", tileID, ErrNotFound)
}

func (fs *FileStore) Tile(ctx context.Context, sceneID, tileID string) (*Tile, error) {
	fs.mu.RLock()
	defer fs.mu.RUnlock()
	s := fs.sceneLocked(sceneID)
	if s == nil {
		return nil, fmt.Errorf("scene %s: %w", sceneID, ErrNotFound)
	}
	for _, t := range s.Tiles {
		if t.ID == tileID {
			t := t
			return &t, nil
		}
	}
	return nil, fmt.Errorf("tile %s: %w", tileID, ErrNotFound)
}

func (fs *FileStore) Actor(ctx context.Context, id string) (*Actor, error) {
	fs.mu.RLock()
	defer fs.mu.RUnlock()
	a := fs.actorLocked(id)
	if a == nil {
		return nil, fmt.Errorf("actor %s: %w", id, ErrNotFound)
	}
	c := *a
	return &c, nil
}

// UpdateActorImages overwrites the selected image fields
func (fs *FileStore) UpdateActorImages(ctx context.Context, id string, images ActorImages) (*Actor, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	a := fs.actorLocked(id)
	if a == nil {
		return nil, fmt.Errorf("actor %s: %w", id, ErrNotFound)
	}
	prev := *a
	if images.Portrait != nil {
		a.Portrait = *images.Portrait
	}
	if images.Token != nil {
		a.Token = *images.Token
	}
	if err := fs.saveLocked(); err != nil {
		*a = prev
		return nil, err
	}
	c := *a
	return &c, nil
}

var _ Store = (*FileStore)(nil)
