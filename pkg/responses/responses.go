package responses

import (
	"encoding/json"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"os"

	_ "golang.org/x/image/webp"

	"github.com/gomcpgo/scene_edit_ai/pkg/editing"
	"github.com/gomcpgo/scene_edit_ai/pkg/types"
)

// BuildSuccessResponse creates a standardized success response
func BuildSuccessResponse(operation string, id string, paths map[string]string, modelInfo map[string]string, params map[string]interface{}, metrics map[string]interface{}, correlationID string) string {
	response := map[string]interface{}{
		"success":    true,
		"operation":  operation,
		"id":         id,
		"paths":      paths,
		"model":      modelInfo,
		"parameters": params,
		"metrics":    metrics,
	}

	if correlationID != "" {
		response["correlation_id"] = correlationID
	}

	return marshal(response)
}

// BuildErrorResponse creates a standardized error response
func BuildErrorResponse(operation string, errorType string, message string, details map[string]interface{}) string {
	response := map[string]interface{}{
		"success":   false,
		"operation": operation,
		"error": map[string]interface{}{
			"type":       errorType,
			"message":    message,
			"details":    details,
			"suggestion": GetSuggestion(errorType),
		},
	}

	return marshal(response)
}

// FromError renders err as an error response. In-progress errors become a
// processing response
func FromError(operation string, err error) string {
	var e types.EditError
	if !errors.As(err, &e) {
		return BuildErrorResponse(operation, "internal_error", err.Error(), nil)
	}
	if e.Code == types.CodeInProgress {
		cid, _ := e.Details["correlation_id"].(string)
		remaining, _ := e.Details["estimated_seconds"].(int)
		return BuildProcessingResponse(operation, cid, remaining)
	}
	return BuildErrorResponse(operation, e.Code, e.Message, e.Details)
}

// BuildProcessingResponse creates a response for a selection that is still being edited
func BuildProcessingResponse(operation string, correlationID string, estimatedRemaining int) string {
	response := map[string]interface{}{
		"success":        false,
		"operation":      operation,
		"status":         "processing",
		"correlation_id": correlationID,
		"message":        "An edit for this selection is already in progress. Use list_pending to check its stage.",
	}

	if estimatedRemaining > 0 {
		response["estimated_remaining"] = estimatedRemaining
	}

	return marshal(response)
}

// BuildSimpleSuccessResponse creates a simple success response with just a message
func BuildSimpleSuccessResponse(operation string, message string, data map[string]interface{}) string {
	response := map[string]interface{}{
		"success":   true,
		"operation": operation,
		"message":   message,
	}

	for k, v := range data {
		response[k] = v
	}

	return marshal(response)
}

func marshal(v interface{}) string {
	jsonBytes, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Sprintf(`{"success":false,"error":{"type":"internal_error","message":%q}}`, err.Error())
	}
	return string(jsonBytes)
}

// GetImageDimensions reads the image header of filePath
func GetImageDimensions(filePath string) map[string]int {
	f, err := os.Open(filePath)
	if err != nil {
		return map[string]int{"width": 0, "height": 0}
	}
	defer f.Close()

	cfg, _, err := image.DecodeConfig(f)
	if err != nil {
		return map[string]int{"width": 0, "height": 0}
	}
	return map[string]int{"width": cfg.Width, "height": cfg.Height}
}

// GetFileSize returns the size of a file in bytes
func GetFileSize(filePath string) int64 {
	info, err := os.Stat(filePath)
	if err != nil {
		return 0
	}
	return info.Size()
}

// ModelInfo describes the backend that served an edit
func ModelInfo(family, model string) map[string]string {
	return map[string]string{
		"family": family,
		"name":   editing.GetFamilyInfo(family).Name,
		"model":  model,
	}
}

// GetSuggestion provides helpful suggestions for different error types
func GetSuggestion(errorType string) string {
	suggestions := map[string]string{
		types.CodeInvalidTransform:   "The viewport is not ready yet. Wait for the scene to finish loading and try again",
		types.CodeCaptureUnavailable: "The scene could not be captured. Make sure it is visible and not minimized",
		types.CodeMissingCredential:  "Configure the backend endpoint or API key in the settings or environment",
		types.CodeNetworkFailure:     "Check that the edit backend is running and reachable, then retry",
		types.CodeBackendError:       "The backend rejected the request. Check its logs and the model settings",
		types.CodeMalformedResponse:  "The backend answered in an unexpected format. Check the backend family setting",
		types.CodeNoImageReturned:    "The backend returned no image. Rephrase the instruction and retry",
		types.CodeDecodeError:        "The returned image could not be decoded. Retry or try another model",
		types.CodeUploadFailed:       "Check that the upload folder exists and is writable",
		types.CodeNoActiveTarget:     "Open a scene or pick an existing actor before editing",
		types.CodeInvalidParameters:  "Check the parameter values and ensure they meet the requirements",
		types.CodeInProgress:         "Wait for the current edit of this selection to finish",
	}

	if suggestion, ok := suggestions[errorType]; ok {
		return suggestion
	}
	return "Please check your input and try again"
}
