package handler

import (
	"context"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"go.uber.org/zap"

	"github.com/gomcpgo/scene_edit_ai/pkg/responses"
	"github.com/gomcpgo/scene_edit_ai/pkg/types"
	"github.com/gomcpgo/scene_edit_ai/pkg/workflow"
)

// handleCaptureRegion handles the capture_region tool
func (h *SceneEditHandler) handleCaptureRegion(ctx context.Context, args map[string]interface{}) (*mcp.CallToolResult, error) {
	const op = types.OperationCaptureRegion

	rect, err := rectArg(args)
	if err != nil {
		return h.errorText(responses.FromError(op, err))
	}

	start := time.Now()
	img, err := h.capturer.Capture(ctx, rect)
	if err != nil {
		return h.errorText(responses.FromError(op, err))
	}

	id, err := h.storage.GenerateID()
	if err != nil {
		return h.errorText(responses.BuildErrorResponse(op, types.CodeUploadFailed, err.Error(), nil))
	}
	filename := stringArg(args, "filename")
	if filename == "" {
		filename = "capture.png"
	}
	path, err := h.storage.SaveImage(id, filename, img.PNG)
	if err != nil {
		return h.errorText(responses.BuildErrorResponse(op, types.CodeUploadFailed, err.Error(), nil))
	}

	parameters := map[string]interface{}{
		"x":        rect.X,
		"y":        rect.Y,
		"width":    rect.Width,
		"height":   rect.Height,
		"strategy": img.Strategy,
	}
	elapsed := time.Since(start).Seconds()
	if err := h.storage.SaveMetadata(id, &types.ImageMetadata{
		ID:         id,
		Operation:  op,
		Model:      img.Strategy,
		Parameters: parameters,
		Result: &types.OperationResult{
			Filename: filename,
			EditTime: elapsed,
			Width:    img.Width,
			Height:   img.Height,
		},
	}); err != nil {
		h.log.Warn("failed to save metadata", zap.String("id", id), zap.Error(err))
	}

	metrics := map[string]interface{}{
		"processing_time": elapsed,
		"output_size":     len(img.PNG),
		"width":           img.Width,
		"height":          img.Height,
	}
	return h.successResponse(responses.BuildSuccessResponse(op, id,
		map[string]string{"file_path": path},
		map[string]string{"id": img.Strategy, "name": "capture " + img.Strategy},
		parameters, metrics, ""))
}

// handleProbeBackend handles the probe_backend tool
func (h *SceneEditHandler) handleProbeBackend(ctx context.Context, args map[string]interface{}) (*mcp.CallToolResult, error) {
	const op = types.OperationProbeBackend

	c := h.editor.Client()
	data := map[string]interface{}{
		"model":      responses.ModelInfo(c.Family(), c.Model()),
		"configured": true,
		"reachable":  false,
	}
	if err := c.Configured(); err != nil {
		data["configured"] = false
		data["reason"] = err.Error()
		return h.successResponse(responses.BuildSimpleSuccessResponse(op, "Backend is not configured", data))
	}

	reachable := c.Probe(ctx)
	data["reachable"] = reachable
	message := "Backend is reachable"
	if !reachable {
		message = "Backend is not reachable"
	}
	return h.successResponse(responses.BuildSimpleSuccessResponse(op, message, data))
}

// handleListPending handles the list_pending tool
func (h *SceneEditHandler) handleListPending(ctx context.Context, args map[string]interface{}) (*mcp.CallToolResult, error) {
	ops := h.orch.Pending().List()

	pending := make([]map[string]interface{}, 0, len(ops))
	for _, op := range ops {
		elapsed := time.Since(op.StartTime)
		pending = append(pending, map[string]interface{}{
			"correlation_id":      op.CorrelationID,
			"operation":           op.Operation,
			"stage":               op.Stage,
			"elapsed":             int(elapsed.Seconds()),
			"estimated_remaining": workflow.EstimateRemainingTime(op.Operation, elapsed),
		})
	}
	return h.successResponse(responses.BuildSimpleSuccessResponse("list_pending", "", map[string]interface{}{
		"pending": pending,
		"total":   len(pending),
	}))
}

// handleListImages handles the list_images tool
func (h *SceneEditHandler) handleListImages(ctx context.Context, args map[string]interface{}) (*mcp.CallToolResult, error) {
	images, err := h.storage.ListImages()
	if err != nil {
		return h.errorText(responses.BuildErrorResponse("list_images", "storage_error", err.Error(), nil))
	}
	return h.successResponse(responses.BuildSimpleSuccessResponse("list_images", "", map[string]interface{}{
		"images": images,
		"total":  len(images),
	}))
}

// handleGetImage handles the get_image tool
func (h *SceneEditHandler) handleGetImage(ctx context.Context, args map[string]interface{}) (*mcp.CallToolResult, error) {
	id := stringArg(args, "id")
	if id == "" {
		return h.errorText(responses.BuildErrorResponse("get_image", types.CodeInvalidParameters, "id parameter is required", nil))
	}
	metadata, err := h.storage.LoadMetadata(id)
	if err != nil {
		return h.errorText(responses.BuildErrorResponse("get_image", "file_not_found", err.Error(),
			map[string]interface{}{"id": id}))
	}

	filePath := ""
	if metadata.Result != nil {
		filePath = h.storage.GetImagePath(id, metadata.Result.Filename)
	}
	return h.successResponse(responses.BuildSimpleSuccessResponse("get_image", "", map[string]interface{}{
		"image": types.GetImageResponse{
			ID:       id,
			FilePath: filePath,
			Metadata: metadata,
		},
		"dimensions": responses.GetImageDimensions(filePath),
		"file_size":  responses.GetFileSize(filePath),
	}))
}
