package editing

import "github.com/gomcpgo/scene_edit_ai/pkg/client"

// EditParams contains parameters for one edit. Image wins over ImagePath
type EditParams struct {
	Image          []byte
	ImagePath      string
	References     [][]byte
	ReferencePaths []string
	Instruction    string
	Options        client.Options
	Operation      string // recorded in metadata, defaults to edit_region
	CorrelationID  string
	Filename       string // Optional output filename
}

// EditResult contains the result of an edit operation
type EditResult struct {
	ID          string
	Operation   string
	OutputPath  string
	Data        []byte
	MimeType    string
	Family      string
	Model       string
	Instruction string
	Parameters  map[string]interface{}
	Metrics     EditMetrics
}

// EditMetrics contains performance metrics for editing
type EditMetrics struct {
	ProcessingTime float64 // in seconds
	InputSize      int64   // in bytes
	OutputSize     int64   // in bytes
}
