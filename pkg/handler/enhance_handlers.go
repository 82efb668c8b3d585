package handler

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/gomcpgo/scene_edit_ai/pkg/enhancement"
	"github.com/gomcpgo/scene_edit_ai/pkg/responses"
	"github.com/gomcpgo/scene_edit_ai/pkg/types"
)

// handleRemoveBackground handles the remove_background tool
func (h *SceneEditHandler) handleRemoveBackground(ctx context.Context, args map[string]interface{}) (*mcp.CallToolResult, error) {
	const op = types.OperationRemoveBackground

	filePath := stringArg(args, "file_path")
	if filePath == "" {
		return h.errorText(responses.BuildErrorResponse(op, types.CodeInvalidParameters, "file_path parameter is required", nil))
	}

	params := enhancement.RemoveBackgroundParams{
		ImagePath: filePath,
		Algorithm: stringArg(args, "algorithm"),
		Filename:  stringArg(args, "filename"),
	}
	if threshold, ok := floatArg(args, "threshold"); ok {
		params.Threshold = threshold
	}

	result, err := h.enhancer.RemoveBackground(ctx, params)
	if err != nil {
		return h.errorText(responses.FromError(op, err))
	}
	return h.successResponse(buildEnhancementResponse(result))
}

// buildEnhancementResponse builds a structured response for enhancement results
func buildEnhancementResponse(result *enhancement.EnhancementResult) string {
	paths := map[string]string{
		"input_path": result.InputPath,
		"file_path":  result.OutputPath,
	}

	info := enhancement.GetAlgorithmInfo(result.Algorithm)
	modelInfo := map[string]string{
		"id":   result.Algorithm,
		"name": info.Name,
	}

	metrics := map[string]interface{}{
		"processing_time": result.Metrics.ProcessingTime,
		"input_size":      result.Metrics.InputSize,
		"output_size":     result.Metrics.OutputSize,
	}

	return responses.BuildSuccessResponse(result.Operation, result.ID, paths, modelInfo, result.Parameters, metrics, "")
}
