package api

import (
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/gomcpgo/scene_edit_ai/pkg/client"
	"github.com/gomcpgo/scene_edit_ai/pkg/editing"
	"github.com/gomcpgo/scene_edit_ai/pkg/geometry"
	"github.com/gomcpgo/scene_edit_ai/pkg/logging"
	"github.com/gomcpgo/scene_edit_ai/pkg/placement"
	"github.com/gomcpgo/scene_edit_ai/pkg/responses"
	"github.com/gomcpgo/scene_edit_ai/pkg/types"
	"github.com/gomcpgo/scene_edit_ai/pkg/workflow"
)

// RegionRequest is the body of POST /api/v1/regions
type RegionRequest struct {
	X           float64        `json:"x"`
	Y           float64        `json:"y"`
	Width       float64        `json:"width"`
	Height      float64        `json:"height"`
	Instruction string         `json:"instruction" binding:"required"`
	Target      string         `json:"target"`
	SceneID     string         `json:"scene_id"`
	TileID      string         `json:"tile_id"`
	ActorID     string         `json:"actor_id"`
	Normalize   *bool          `json:"normalize"`
	Options     client.Options `json:"options"`
}

// PortraitRequest is the body of POST /api/v1/portraits
type PortraitRequest struct {
	ActorID        string         `json:"actor_id" binding:"required"`
	Instruction    string         `json:"instruction" binding:"required"`
	Field          string         `json:"field"`
	ReferencePaths []string       `json:"reference_paths"`
	Normalize      *bool          `json:"normalize"`
	Options        client.Options `json:"options"`
}

func badRequest(format string, args ...interface{}) error {
	return types.NewError(types.CodeInvalidParameters, format, args...)
}

// Probe reports whether the backend is configured and reachable
func (s *Server) Probe(c *gin.Context) {
	be := s.editor.Client()
	resp := gin.H{
		"family":     be.Family(),
		"model":      be.Model(),
		"configured": true,
		"reachable":  false,
	}
	if err := be.Configured(); err != nil {
		resp["configured"] = false
		resp["reason"] = err.Error()
		c.JSON(http.StatusOK, resp)
		return
	}
	resp["reachable"] = be.Probe(c.Request.Context())
	c.JSON(http.StatusOK, resp)
}

// Edit runs a raw edit on an uploaded image
func (s *Server) Edit(c *gin.Context) {
	const op = types.OperationEditRegion

	file, err := c.FormFile("image")
	if err != nil {
		s.fail(c, op, badRequest("image file is required: %v", err))
		return
	}
	image, err := s.readUpload(file)
	if err != nil {
		s.fail(c, op, err)
		return
	}

	instruction := strings.TrimSpace(c.PostForm("instruction"))
	if instruction == "" {
		s.fail(c, op, badRequest("instruction is required"))
		return
	}

	var refs [][]byte
	if form, err := c.MultipartForm(); err == nil {
		for _, fh := range form.File["references"] {
			data, err := s.readUpload(fh)
			if err != nil {
				s.fail(c, op, err)
				return
			}
			refs = append(refs, data)
		}
	}

	opts := client.Options{
		NegativeInstruction: c.PostForm("negative_instruction"),
		ModelID:             c.PostForm("model_id"),
	}
	if v := c.PostForm("strength"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			s.fail(c, op, badRequest("strength must be a number"))
			return
		}
		opts.Strength = &f
	}

	s.log.Info("raw edit requested",
		logging.Payload("image", image),
		zap.Int("references", len(refs)))

	result, err := s.editor.EditImage(c.Request.Context(), editing.EditParams{
		Image:       image,
		References:  refs,
		Instruction: instruction,
		Options:     opts,
		Filename:    c.PostForm("filename"),
	})
	if err != nil {
		s.fail(c, op, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":   true,
		"id":        result.ID,
		"file_path": result.OutputPath,
		"mime_type": result.MimeType,
		"model":     responses.ModelInfo(result.Family, result.Model),
		"metrics": gin.H{
			"processing_time": result.Metrics.ProcessingTime,
			"input_size":      result.Metrics.InputSize,
			"output_size":     result.Metrics.OutputSize,
		},
	})
}

func (s *Server) readUpload(fh *multipart.FileHeader) ([]byte, error) {
	if fh.Size > s.maxBytes {
		return nil, badRequest("%s is %d bytes, the limit is %d", fh.Filename, fh.Size, s.maxBytes)
	}
	f, err := fh.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open upload: %w", err)
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, s.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read upload: %w", err)
	}
	if int64(len(data)) > s.maxBytes {
		return nil, badRequest("%s exceeds %d bytes", fh.Filename, s.maxBytes)
	}
	if len(data) == 0 {
		return nil, badRequest("%s is empty", fh.Filename)
	}
	return data, nil
}

// Region runs the capture, edit and placement workflow on the loaded scene
func (s *Server) Region(c *gin.Context) {
	const op = types.OperationEditRegion

	var req RegionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.fail(c, op, badRequest("invalid request body: %v", err))
		return
	}
	kind, err := placement.ParseKind(req.Target)
	if err != nil {
		s.fail(c, op, err)
		return
	}

	out, err := s.orch.Run(c.Request.Context(), workflow.Request{
		Rect: geometry.SceneRect(req.X, req.Y, req.Width, req.Height),
		Target: placement.Target{
			Kind:    kind,
			SceneID: req.SceneID,
			TileID:  req.TileID,
			ActorID: req.ActorID,
		},
		Instruction: req.Instruction,
		Options:     req.Options,
		Normalize:   req.Normalize,
	})
	if err != nil {
		s.fail(c, op, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

// Portrait edits an actor portrait
func (s *Server) Portrait(c *gin.Context) {
	const op = types.OperationUpdatePortrait

	var req PortraitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.fail(c, op, badRequest("invalid request body: %v", err))
		return
	}

	out, err := s.orch.UpdatePortrait(c.Request.Context(), workflow.PortraitRequest{
		ActorID:        req.ActorID,
		Field:          placement.Kind(req.Field),
		Instruction:    req.Instruction,
		Options:        req.Options,
		ReferencePaths: req.ReferencePaths,
		Normalize:      req.Normalize,
	})
	if err != nil {
		s.fail(c, op, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

// Images lists stored records, newest first
func (s *Server) Images(c *gin.Context) {
	images, err := s.storage.ListImages()
	if err != nil {
		s.fail(c, "list_images", err)
		return
	}
	c.JSON(http.StatusOK, types.ListImagesResponse{Images: images, Total: len(images)})
}

// Pending lists running edits
func (s *Server) Pending(c *gin.Context) {
	ops := s.orch.Pending().List()
	items := make([]gin.H, 0, len(ops))
	for _, op := range ops {
		elapsed := time.Since(op.StartTime)
		items = append(items, gin.H{
			"correlation_id":      op.CorrelationID,
			"operation":           op.Operation,
			"stage":               op.Stage,
			"estimated_remaining": workflow.EstimateRemainingTime(op.Operation, elapsed),
		})
	}
	c.JSON(http.StatusOK, gin.H{"pending": items, "total": len(items)})
}
