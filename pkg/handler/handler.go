package handler

import (
	"context"
	"fmt"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/gomcpgo/scene_edit_ai/pkg/editing"
	"github.com/gomcpgo/scene_edit_ai/pkg/enhancement"
	"github.com/gomcpgo/scene_edit_ai/pkg/storage"
	"github.com/gomcpgo/scene_edit_ai/pkg/workflow"
)

// Deps are the components the tools operate on
type Deps struct {
	Orchestrator *workflow.Orchestrator
	Capturer     workflow.Capturer
	Editor       *editing.Editor
	Enhancer     *enhancement.Enhancer
	Storage      *storage.Storage
}

// SceneEditHandler handles MCP requests for scene edits
type SceneEditHandler struct {
	orch     *workflow.Orchestrator
	capturer workflow.Capturer
	editor   *editing.Editor
	enhancer *enhancement.Enhancer
	storage  *storage.Storage
	log      *zap.Logger
}

// NewSceneEditHandler creates a new handler instance
func NewSceneEditHandler(d Deps, logger *zap.Logger) *SceneEditHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SceneEditHandler{
		orch:     d.Orchestrator,
		capturer: d.Capturer,
		editor:   d.Editor,
		enhancer: d.Enhancer,
		storage:  d.Storage,
		log:      logger.Named("handler"),
	}
}

// Register adds every tool to s
func (h *SceneEditHandler) Register(s *server.MCPServer) {
	for _, tool := range Tools() {
		s.AddTool(tool, h.handle)
	}
}

func (h *SceneEditHandler) handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return h.CallTool(ctx, req.Params.Name, req.GetArguments())
}

// CallTool handles execution of scene tools
func (h *SceneEditHandler) CallTool(ctx context.Context, name string, args map[string]interface{}) (*mcp.CallToolResult, error) {
	if args == nil {
		args = map[string]interface{}{}
	}
	start := time.Now()
	defer func() {
		h.log.Debug("tool call finished",
			zap.String("tool", name),
			zap.Duration("elapsed", time.Since(start)))
	}()
	if deadline, ok := ctx.Deadline(); ok {
		h.log.Debug("tool call has deadline",
			zap.String("tool", name),
			zap.Duration("remaining", time.Until(deadline)))
	}

	switch name {
	// Scene tools
	case "capture_region":
		return h.handleCaptureRegion(ctx, args)
	case "edit_region":
		return h.handleEditRegion(ctx, args)
	case "update_portrait":
		return h.handleUpdatePortrait(ctx, args)

	// Image tools
	case "edit_image":
		return h.handleEditImage(ctx, args)
	case "remove_background":
		return h.handleRemoveBackground(ctx, args)

	// Status tools
	case "probe_backend":
		return h.handleProbeBackend(ctx, args)
	case "list_pending":
		return h.handleListPending(ctx, args)
	case "list_images":
		return h.handleListImages(ctx, args)
	case "get_image":
		return h.handleGetImage(ctx, args)

	default:
		return nil, fmt.Errorf("unknown tool: %s", name)
	}
}

func (h *SceneEditHandler) successResponse(text string) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(text), nil
}

func (h *SceneEditHandler) errorText(text string) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultError(text), nil
}
