package storage

import (
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/gomcpgo/scene_edit_ai/pkg/types"
)

// MaxInlineSize is the default limit for uploaded images
const MaxInlineSize = 5 * 1024 * 1024

const idAttempts = 100

// Storage handles local file storage for uploads and operation records
type Storage struct {
	rootPath string
}

// NewStorage creates a new storage instance
func NewStorage(rootPath string) *Storage {
	return &Storage{
		rootPath: rootPath,
	}
}

// Root returns the storage root
func (s *Storage) Root() string { return s.rootPath }

// GenerateID reserves a new record directory and returns its 8-character
// name, the leading hex digits of a random UUID
func (s *Storage) GenerateID() (string, error) {
	for attempt := 0; attempt < idAttempts; attempt++ {
		id := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
		dir := filepath.Join(s.rootPath, id)
		if err := os.MkdirAll(s.rootPath, 0755); err != nil {
			return "", fmt.Errorf("failed to create storage root: %w", err)
		}
		err := os.Mkdir(dir, 0755)
		if err == nil {
			return id, nil
		}
		if !errors.Is(err, fs.ErrExist) {
			return "", fmt.Errorf("failed to create directory: %w", err)
		}
	}
	return "", fmt.Errorf("no free record id after %d attempts", idAttempts)
}

// cleanFolder keeps folder inside the root
func cleanFolder(folder string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(strings.TrimSpace(folder)))
	if clean == "." || clean == "" || filepath.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("invalid folder %q", folder)
	}
	return clean, nil
}

func cleanFilename(name string) (string, error) {
	base := filepath.Base(strings.TrimSpace(name))
	if base == "." || base == ".." || base == string(filepath.Separator) || base == "" {
		return "", fmt.Errorf("invalid filename %q", name)
	}
	return base, nil
}

// EnsureDir creates folder under the root if it does not exist
func (s *Storage) EnsureDir(folder string) error {
	clean, err := cleanFolder(folder)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Join(s.rootPath, clean), 0755); err != nil {
		return fmt.Errorf("failed to create folder: %w", err)
	}
	return nil
}

// Upload writes data to folder/filename and returns the path relative to the
// root, using forward slashes
func (s *Storage) Upload(folder, filename string, data []byte) (string, error) {
	if len(data) == 0 {
		return "", errors.New("refusing to upload empty file")
	}
	dir, err := cleanFolder(folder)
	if err != nil {
		return "", err
	}
	name, err := cleanFilename(filename)
	if err != nil {
		return "", err
	}

	full := filepath.Join(s.rootPath, dir, name)
	tmp := full + ".part"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write upload: %w", err)
	}
	if err := os.Rename(tmp, full); err != nil {
		os.Remove(tmp)
		return "", fmt.Errorf("failed to finalize upload: %w", err)
	}
	return filepath.ToSlash(filepath.Join(dir, name)), nil
}

// List returns the image files in folder, sorted by name
func (s *Storage) List(folder string) ([]string, error) {
	dir, err := cleanFolder(folder)
	if err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(filepath.Join(s.rootPath, dir))
	if err != nil {
		if os.IsNotExist(err) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("failed to read folder: %w", err)
	}
	files := []string{}
	for _, e := range entries {
		if !e.IsDir() && isImageFile(e.Name()) {
			files = append(files, filepath.ToSlash(filepath.Join(dir, e.Name())))
		}
	}
	sort.Strings(files)
	return files, nil
}

// Read returns the bytes of a path relative to the root
func (s *Storage) Read(rel string) ([]byte, error) {
	clean, err := cleanFolder(rel)
	if err != nil {
		return nil, err
	}
	return os.ReadFile(filepath.Join(s.rootPath, clean))
}

// Path resolves a path relative to the root
func (s *Storage) Path(rel string) string {
	return filepath.Join(s.rootPath, filepath.FromSlash(rel))
}

// SaveImage writes image bytes into the record directory of id
func (s *Storage) SaveImage(id string, filename string, data []byte) (string, error) {
	if filename == "" {
		filename = "image" + extensionFor(data)
	}

	imagePath := filepath.Join(s.rootPath, id, filename)
	if err := os.WriteFile(imagePath, data, 0644); err != nil {
		return "", fmt.Errorf("failed to save image: %w", err)
	}

	return imagePath, nil
}

// SaveMetadata saves metadata for an operation
func (s *Storage) SaveMetadata(id string, metadata *types.ImageMetadata) error {
	metadataPath := filepath.Join(s.rootPath, id, "metadata.yaml")

	if metadata.Version == "" {
		metadata.Version = "1.0"
	}
	if metadata.Timestamp.IsZero() {
		metadata.Timestamp = time.Now()
	}

	data, err := yaml.Marshal(metadata)
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}

	if err := os.WriteFile(metadataPath, data, 0644); err != nil {
		return fmt.Errorf("failed to save metadata: %w", err)
	}

	return nil
}

// LoadMetadata loads metadata for an operation
func (s *Storage) LoadMetadata(id string) (*types.ImageMetadata, error) {
	metadataPath := filepath.Join(s.rootPath, id, "metadata.yaml")

	data, err := os.ReadFile(metadataPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read metadata: %w", err)
	}

	var metadata types.ImageMetadata
	if err := yaml.Unmarshal(data, &metadata); err != nil {
		return nil, fmt.Errorf("failed to unmarshal metadata: %w", err)
	}

	return &metadata, nil
}

// ListImages lists all operation records, newest first
func (s *Storage) ListImages() ([]types.ImageInfo, error) {
	entries, err := os.ReadDir(s.rootPath)
	if err != nil {
		if os.IsNotExist(err) {
			return []types.ImageInfo{}, nil
		}
		return nil, fmt.Errorf("failed to read directory: %w", err)
	}

	images := []types.ImageInfo{}
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}

		id := entry.Name()
		metadata, err := s.LoadMetadata(id)
		if err != nil {
			// upload folders and half-written records have no metadata
			continue
		}

		imagePath := ""
		if metadata.Result != nil && metadata.Result.Filename != "" {
			imagePath = filepath.Join(s.rootPath, id, metadata.Result.Filename)
		} else {
			files, _ := os.ReadDir(filepath.Join(s.rootPath, id))
			for _, file := range files {
				if isImageFile(file.Name()) {
					imagePath = filepath.Join(s.rootPath, id, file.Name())
					break
				}
			}
		}

		images = append(images, types.ImageInfo{
			ID:        id,
			Operation: metadata.Operation,
			Timestamp: metadata.Timestamp,
			FilePath:  imagePath,
			Model:     metadata.Model,
			Metadata:  metadata.Parameters,
		})
	}

	sort.SliceStable(images, func(i, j int) bool {
		return images[i].Timestamp.After(images[j].Timestamp)
	})
	return images, nil
}

// GetImagePath returns the full path to an image
func (s *Storage) GetImagePath(id string, filename string) string {
	return filepath.Join(s.rootPath, id, filename)
}

func isImageFile(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".png", ".jpg", ".jpeg", ".webp":
		return true
	}
	return false
}

func extensionFor(data []byte) string {
	switch http.DetectContentType(data) {
	case "image/jpeg":
		return ".jpg"
	case "image/webp":
		return ".webp"
	}
	return ".png"
}
