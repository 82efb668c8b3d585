package editing

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/gomcpgo/scene_edit_ai/pkg/client"
	"github.com/gomcpgo/scene_edit_ai/pkg/storage"
	"github.com/gomcpgo/scene_edit_ai/pkg/types"
)

// Editor runs edits through the configured backend and records each result
type Editor struct {
	client        client.EditClient
	storage       *storage.Storage
	maxReferences int
	log           *zap.Logger
}

// NewEditor creates a new Editor instance
func NewEditor(c client.EditClient, store *storage.Storage, maxReferences int, logger *zap.Logger) *Editor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Editor{
		client:        c,
		storage:       store,
		maxReferences: maxReferences,
		log:           logger,
	}
}

// Client returns the backend in use
func (e *Editor) Client() client.EditClient { return e.client }

// EditImage validates params, calls the backend and stores the edited image
// with a metadata record. Nothing is stored when the backend fails
func (e *Editor) EditImage(ctx context.Context, params EditParams) (*EditResult, error) {
	startTime := time.Now()

	if err := e.validateEditParams(&params); err != nil {
		return nil, err
	}

	e.log.Info("editing image",
		zap.String("family", e.client.Family()),
		zap.String("operation", params.Operation),
		zap.String("correlation_id", params.CorrelationID),
		zap.Int("image_bytes", len(params.Image)),
		zap.Int("references", len(params.References)))

	res, err := e.client.Edit(ctx, client.EditRequest{
		Image:       params.Image,
		References:  params.References,
		Instruction: params.Instruction,
		Options:     params.Options,
	})
	if err != nil {
		e.log.Warn("edit failed",
			zap.String("correlation_id", params.CorrelationID),
			zap.String("code", types.CodeOf(err)),
			zap.Error(err))
		return nil, err
	}

	id, err := e.storage.GenerateID()
	if err != nil {
		return nil, types.WrapError(types.CodeUploadFailed, err, "failed to reserve output record")
	}

	filename := params.Filename
	if filename != "" && !strings.Contains(filename, ".") {
		filename += ".png"
	}
	outputPath, err := e.storage.SaveImage(id, filename, res.Data)
	if err != nil {
		return nil, types.WrapError(types.CodeUploadFailed, err, "failed to save image")
	}

	elapsed := time.Since(startTime).Seconds()
	parameters := e.recordParameters(params)

	metadata := &types.ImageMetadata{
		Version:    "1.0",
		ID:         id,
		Operation:  params.Operation,
		Timestamp:  time.Now(),
		Model:      res.Model,
		Family:     res.Family,
		Parameters: parameters,
		Result: &types.OperationResult{
			Filename:      filepath.Base(outputPath),
			EditTime:      elapsed,
			CorrelationID: params.CorrelationID,
		},
	}
	if err := e.storage.SaveMetadata(id, metadata); err != nil {
		e.log.Warn("failed to save metadata", zap.String("id", id), zap.Error(err))
	}

	return &EditResult{
		ID:          id,
		Operation:   params.Operation,
		OutputPath:  outputPath,
		Data:        res.Data,
		MimeType:    res.MimeType,
		Family:      res.Family,
		Model:       res.Model,
		Instruction: params.Instruction,
		Parameters:  parameters,
		Metrics: EditMetrics{
			ProcessingTime: elapsed,
			InputSize:      int64(len(params.Image)),
			OutputSize:     int64(len(res.Data)),
		},
	}, nil
}

// validateEditParams loads file inputs and checks the parameters
func (e *Editor) validateEditParams(params *EditParams) error {
	if len(params.Image) == 0 && params.ImagePath != "" {
		data, err := os.ReadFile(params.ImagePath)
		if err != nil {
			return types.EditError{
				Code:    types.CodeInvalidParameters,
				Message: fmt.Sprintf("failed to load image: %v", err),
				Details: map[string]interface{}{
					"file_path": params.ImagePath,
				},
				Err: err,
			}
		}
		params.Image = data
	}
	if len(params.Image) == 0 {
		return types.NewError(types.CodeInvalidParameters, "image is required")
	}

	if strings.TrimSpace(params.Instruction) == "" {
		return types.NewError(types.CodeInvalidParameters, "edit instruction is required")
	}

	for _, p := range params.ReferencePaths {
		data, err := os.ReadFile(p)
		if err != nil {
			return types.EditError{
				Code:    types.CodeInvalidParameters,
				Message: fmt.Sprintf("failed to load reference image: %v", err),
				Details: map[string]interface{}{
					"file_path": p,
				},
				Err: err,
			}
		}
		params.References = append(params.References, data)
	}
	if n := len(params.References); n > 0 {
		if !GetFamilyInfo(e.client.Family()).References {
			return types.NewError(types.CodeInvalidParameters, "the %s backend does not accept reference images", e.client.Family())
		}
		if e.maxReferences > 0 && n > e.maxReferences {
			return types.NewError(types.CodeInvalidParameters, "at most %d reference images are allowed, got %d", e.maxReferences, n)
		}
	}

	o := params.Options
	if o.Strength != nil && (*o.Strength < 0 || *o.Strength > 1) {
		return types.NewError(types.CodeInvalidParameters, "strength must be between 0.0 and 1.0")
	}
	if o.Steps < 0 || o.TargetWidth < 0 || o.TargetHeight < 0 || o.GuidanceScale < 0 {
		return types.NewError(types.CodeInvalidParameters, "steps, guidance and target size must not be negative")
	}

	if params.Operation == "" {
		params.Operation = types.OperationEditRegion
	}
	return nil
}

func (e *Editor) recordParameters(params EditParams) map[string]interface{} {
	p := map[string]interface{}{
		"instruction": params.Instruction,
		"references":  len(params.References),
	}
	if params.ImagePath != "" {
		p["input_path"] = params.ImagePath
	}
	o := params.Options
	if o.NegativeInstruction != "" {
		p["negative_instruction"] = o.NegativeInstruction
	}
	if o.Strength != nil {
		p["strength"] = *o.Strength
	}
	if o.Steps > 0 {
		p["steps"] = o.Steps
	}
	if o.GuidanceScale > 0 {
		p["guidance_scale"] = o.GuidanceScale
	}
	if o.Sampler != "" {
		p["sampler"] = o.Sampler
	}
	if o.ModelID != "" {
		p["model_id"] = o.ModelID
	}
	return p
}
