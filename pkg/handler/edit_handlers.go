package handler

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/gomcpgo/scene_edit_ai/pkg/editing"
	"github.com/gomcpgo/scene_edit_ai/pkg/placement"
	"github.com/gomcpgo/scene_edit_ai/pkg/responses"
	"github.com/gomcpgo/scene_edit_ai/pkg/types"
	"github.com/gomcpgo/scene_edit_ai/pkg/workflow"
)

// handleEditRegion handles the edit_region tool
func (h *SceneEditHandler) handleEditRegion(ctx context.Context, args map[string]interface{}) (*mcp.CallToolResult, error) {
	const op = types.OperationEditRegion

	instruction := strings.TrimSpace(stringArg(args, "instruction"))
	if instruction == "" {
		return h.errorText(responses.BuildErrorResponse(op, types.CodeInvalidParameters, "instruction parameter is required", nil))
	}
	rect, err := rectArg(args)
	if err != nil {
		return h.errorText(responses.FromError(op, err))
	}
	kind, err := placement.ParseKind(stringArg(args, "target"))
	if err != nil {
		return h.errorText(responses.FromError(op, err))
	}

	out, err := h.orch.Run(ctx, workflow.Request{
		Rect: rect,
		Target: placement.Target{
			Kind:    kind,
			SceneID: stringArg(args, "scene_id"),
			TileID:  stringArg(args, "tile_id"),
			ActorID: stringArg(args, "actor_id"),
		},
		Instruction: instruction,
		Options:     optionsArg(args),
		Normalize:   boolPtrArg(args, "normalize"),
	})
	if err != nil {
		return h.errorText(responses.FromError(op, err))
	}
	return h.successResponse(buildOutcomeResponse(op, out))
}

// handleUpdatePortrait handles the update_portrait tool
func (h *SceneEditHandler) handleUpdatePortrait(ctx context.Context, args map[string]interface{}) (*mcp.CallToolResult, error) {
	const op = types.OperationUpdatePortrait

	actorID := stringArg(args, "actor_id")
	if actorID == "" {
		return h.errorText(responses.BuildErrorResponse(op, types.CodeInvalidParameters, "actor_id parameter is required", nil))
	}
	instruction := strings.TrimSpace(stringArg(args, "instruction"))
	if instruction == "" {
		return h.errorText(responses.BuildErrorResponse(op, types.CodeInvalidParameters, "instruction parameter is required", nil))
	}
	field := placement.ActorPortrait
	if f := stringArg(args, "field"); f != "" {
		field = placement.Kind(f)
	}

	out, err := h.orch.UpdatePortrait(ctx, workflow.PortraitRequest{
		ActorID:        actorID,
		Field:          field,
		Instruction:    instruction,
		Options:        optionsArg(args),
		ReferencePaths: stringsArg(args, "reference_paths"),
		Normalize:      boolPtrArg(args, "normalize"),
	})
	if err != nil {
		return h.errorText(responses.FromError(op, err))
	}
	return h.successResponse(buildOutcomeResponse(op, out))
}

// handleEditImage handles the edit_image tool
func (h *SceneEditHandler) handleEditImage(ctx context.Context, args map[string]interface{}) (*mcp.CallToolResult, error) {
	const op = types.OperationEditRegion

	filePath := stringArg(args, "file_path")
	if filePath == "" {
		return h.errorText(responses.BuildErrorResponse(op, types.CodeInvalidParameters, "file_path parameter is required", nil))
	}
	instruction := strings.TrimSpace(stringArg(args, "instruction"))
	if instruction == "" {
		return h.errorText(responses.BuildErrorResponse(op, types.CodeInvalidParameters, "instruction parameter is required", nil))
	}

	result, err := h.editor.EditImage(ctx, editing.EditParams{
		ImagePath:      filePath,
		ReferencePaths: stringsArg(args, "reference_paths"),
		Instruction:    instruction,
		Options:        optionsArg(args),
		Filename:       stringArg(args, "filename"),
	})
	if err != nil {
		return h.errorText(responses.FromError(op, err))
	}
	return h.successResponse(buildEditResponse(result, filePath, ""))
}

// buildEditResponse builds a structured response for edit results
func buildEditResponse(result *editing.EditResult, inputPath, correlationID string) string {
	paths := map[string]string{
		"file_path": result.OutputPath,
	}
	if inputPath != "" {
		paths["input_path"] = inputPath
	}

	parameters := map[string]interface{}{
		"instruction": result.Instruction,
	}
	for k, v := range result.Parameters {
		parameters[k] = v
	}

	metrics := map[string]interface{}{
		"processing_time": result.Metrics.ProcessingTime,
		"input_size":      result.Metrics.InputSize,
		"output_size":     result.Metrics.OutputSize,
	}

	return responses.BuildSuccessResponse(result.Operation, result.ID, paths,
		responses.ModelInfo(result.Family, result.Model), parameters, metrics, correlationID)
}

// buildOutcomeResponse describes a finished workflow run
func buildOutcomeResponse(operation string, out *workflow.Outcome) string {
	if out.Canceled {
		return responses.BuildSimpleSuccessResponse(operation, "Edit canceled", map[string]interface{}{
			"correlation_id": out.CorrelationID,
			"canceled":       true,
		})
	}

	data := map[string]interface{}{
		"correlation_id": out.CorrelationID,
		"record_id":      out.RecordID,
		"normalized":     out.Normalized,
	}
	if out.Capture != nil {
		data["capture"] = out.Capture
	}
	if out.Edit != nil {
		data["model"] = responses.ModelInfo(out.Edit.Family, out.Edit.Model)
		data["paths"] = map[string]string{"file_path": out.Edit.OutputPath}
		data["metrics"] = map[string]interface{}{
			"processing_time": out.Edit.Metrics.ProcessingTime,
			"output_size":     out.Edit.Metrics.OutputSize,
		}
	}
	message := "Edit finished"
	if out.Placement != nil {
		data["placement"] = out.Placement
		message = fmt.Sprintf("Placed edited image at %s", out.Placement.Path)
	}
	return responses.BuildSimpleSuccessResponse(operation, message, data)
}
