package types

import (
	"time"
)

// Backend families for the remote edit service
const (
	FamilySDWebUI = "sdwebui" // single-image img2img transform
	FamilyGemini  = "gemini"  // multimodal generateContent
	FamilyGeneric = "generic" // plain /edit endpoint
)

// Operation names recorded in metadata and responses
const (
	OperationCaptureRegion    = "capture_region"
	OperationEditRegion       = "edit_region"
	OperationUpdatePortrait   = "update_portrait"
	OperationRemoveBackground = "remove_background"
	OperationProbeBackend     = "probe_backend"
)

// ImageMetadata represents the metadata stored next to each uploaded image
type ImageMetadata struct {
	Version    string                 `json:"version" yaml:"version"`
	ID         string                 `json:"id" yaml:"id"`
	Operation  string                 `json:"operation" yaml:"operation"`
	Timestamp  time.Time              `json:"timestamp" yaml:"timestamp"`
	Model      string                 `json:"model" yaml:"model"`
	Family     string                 `json:"family,omitempty" yaml:"family,omitempty"`
	Parameters map[string]interface{} `json:"parameters" yaml:"parameters"`
	Result     *OperationResult       `json:"result,omitempty" yaml:"result,omitempty"`
	Error      *string                `json:"error,omitempty" yaml:"error,omitempty"`
}

// OperationResult contains the result of an operation
type OperationResult struct {
	Filename      string  `json:"filename" yaml:"filename"`
	EditTime      float64 `json:"edit_time" yaml:"edit_time"`
	CorrelationID string  `json:"correlation_id,omitempty" yaml:"correlation_id,omitempty"`
	Width         int     `json:"width,omitempty" yaml:"width,omitempty"`
	Height        int     `json:"height,omitempty" yaml:"height,omitempty"`
	TileID        string  `json:"tile_id,omitempty" yaml:"tile_id,omitempty"`
	ActorID       string  `json:"actor_id,omitempty" yaml:"actor_id,omitempty"`
}

// ListImagesResponse represents the response from list_images
type ListImagesResponse struct {
	Images []ImageInfo `json:"images"`
	Total  int         `json:"total"`
}

// ImageInfo represents information about a stored image
type ImageInfo struct {
	ID        string                 `json:"id"`
	Operation string                 `json:"operation"`
	Timestamp time.Time              `json:"timestamp"`
	FilePath  string                 `json:"file_path"`
	Model     string                 `json:"model,omitempty"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
}

// GetImageResponse represents the response from get_image
type GetImageResponse struct {
	ID       string         `json:"id"`
	FilePath string         `json:"file_path"`
	Metadata *ImageMetadata `json:"metadata"`
}
