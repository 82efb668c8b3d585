// Package api exposes the edit workflow over HTTP
package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/gomcpgo/scene_edit_ai/pkg/editing"
	"github.com/gomcpgo/scene_edit_ai/pkg/responses"
	"github.com/gomcpgo/scene_edit_ai/pkg/storage"
	"github.com/gomcpgo/scene_edit_ai/pkg/types"
	"github.com/gomcpgo/scene_edit_ai/pkg/workflow"
)

// Server holds the components behind the HTTP routes
type Server struct {
	orch     *workflow.Orchestrator
	editor   *editing.Editor
	storage  *storage.Storage
	version  string
	maxBytes int64
	log      *zap.Logger
}

// NewServer creates the HTTP surface. maxBytes bounds uploaded images
func NewServer(orch *workflow.Orchestrator, editor *editing.Editor, store *storage.Storage, version string, maxBytes int64, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	if maxBytes <= 0 {
		maxBytes = storage.MaxInlineSize
	}
	return &Server{
		orch:     orch,
		editor:   editor,
		storage:  store,
		version:  version,
		maxBytes: maxBytes,
		log:      logger.Named("api"),
	}
}

// Router builds the gin engine
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(Logger(s.log))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"version": s.version,
		})
	})

	api := r.Group("/api/v1")
	{
		api.GET("/backend/probe", s.Probe)
		api.POST("/edit", s.Edit)
		api.POST("/regions", s.Region)
		api.POST("/portraits", s.Portrait)
		api.GET("/images", s.Images)
		api.GET("/pending", s.Pending)
	}
	return r
}

// statusFor maps an error code to an HTTP status
func statusFor(err error) int {
	var e types.EditError
	if !errors.As(err, &e) {
		return http.StatusInternalServerError
	}
	switch e.Code {
	case types.CodeInvalidParameters, types.CodeInvalidTransform:
		return http.StatusBadRequest
	case types.CodeNoActiveTarget:
		return http.StatusNotFound
	case types.CodeInProgress:
		return http.StatusConflict
	case types.CodeMissingCredential, types.CodeCaptureUnavailable:
		return http.StatusServiceUnavailable
	case types.CodeNetworkFailure:
		return http.StatusGatewayTimeout
	case types.CodeBackendError, types.CodeMalformedResponse, types.CodeNoImageReturned, types.CodeDecodeError:
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func (s *Server) fail(c *gin.Context, operation string, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.log.Error("request failed", zap.String("operation", operation), zap.Error(err))
	}
	c.Data(status, "application/json; charset=utf-8", []byte(responses.FromError(operation, err)))
}
