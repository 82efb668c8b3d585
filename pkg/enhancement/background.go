package enhancement

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/gomcpgo/scene_edit_ai/pkg/background"
	"github.com/gomcpgo/scene_edit_ai/pkg/types"
)

// RemoveBackground makes the white background of an image transparent and
// stores the result with a metadata record
func (e *Enhancer) RemoveBackground(ctx context.Context, params RemoveBackgroundParams) (*EnhancementResult, error) {
	startTime := time.Now()

	input := params.Image
	if len(input) == 0 {
		if params.ImagePath == "" {
			return nil, types.NewError(types.CodeInvalidParameters, "image or image path is required")
		}
		data, err := os.ReadFile(params.ImagePath)
		if err != nil {
			return nil, types.EditError{
				Code:    types.CodeInvalidParameters,
				Message: fmt.Sprintf("failed to load image: %v", err),
				Details: map[string]interface{}{
					"file_path": params.ImagePath,
				},
				Err: err,
			}
		}
		input = data
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	algorithm := GetAlgorithmFromAlias(params.Algorithm)
	out, err := background.Normalize(input, background.Options{
		Algorithm: algorithm,
		Threshold: params.Threshold,
	})
	if err != nil {
		return nil, err
	}

	e.log.Debug("background removed",
		zap.String("algorithm", algorithm),
		zap.Int("input_bytes", len(input)),
		zap.Int("output_bytes", len(out)))

	id, err := e.storage.GenerateID()
	if err != nil {
		return nil, types.WrapError(types.CodeUploadFailed, err, "failed to reserve output record")
	}

	filename := e.generateFilename(params.Filename, params.ImagePath, "no_bg")
	outputPath, err := e.storage.SaveImage(id, filename, out)
	if err != nil {
		return nil, types.WrapError(types.CodeUploadFailed, err, "failed to save image")
	}

	threshold := params.Threshold
	if threshold <= 0 {
		threshold = GetAlgorithmInfo(algorithm).DefaultThreshold
	}
	parameters := map[string]interface{}{
		"algorithm": algorithm,
		"threshold": threshold,
	}
	if params.ImagePath != "" {
		parameters["input_path"] = params.ImagePath
	}

	elapsed := time.Since(startTime).Seconds()
	metadata := &types.ImageMetadata{
		Version:    "1.0",
		ID:         id,
		Operation:  types.OperationRemoveBackground,
		Timestamp:  time.Now(),
		Model:      algorithm,
		Parameters: parameters,
		Result: &types.OperationResult{
			Filename: filename,
			EditTime: elapsed,
		},
	}
	if err := e.storage.SaveMetadata(id, metadata); err != nil {
		e.log.Warn("failed to save metadata", zap.String("id", id), zap.Error(err))
	}

	return &EnhancementResult{
		ID:         id,
		Operation:  types.OperationRemoveBackground,
		InputPath:  params.ImagePath,
		OutputPath: outputPath,
		Data:       out,
		Algorithm:  algorithm,
		Parameters: parameters,
		Metrics: EnhancementMetrics{
			ProcessingTime: elapsed,
			InputSize:      int64(len(input)),
			OutputSize:     int64(len(out)),
		},
	}, nil
}

// generateFilename generates a filename for the processed image. Output is
// always PNG since the result carries alpha
func (e *Enhancer) generateFilename(userFilename, inputPath, suffix string) string {
	if userFilename != "" {
		ext := filepath.Ext(userFilename)
		return strings.TrimSuffix(userFilename, ext) + ".png"
	}
	if inputPath == "" {
		return "image_" + suffix + ".png"
	}

	base := filepath.Base(inputPath)
	name := strings.TrimSuffix(base, filepath.Ext(base))
	return fmt.Sprintf("%s_%s.png", name, suffix)
}
