package enhancement

// RemoveBackgroundParams contains parameters for background removal
// Image wins over ImagePath
type RemoveBackgroundParams struct {
	Image     []byte
	ImagePath string
	Algorithm string  // threshold or floodfill, aliases accepted
	Threshold float64 // 0 uses the algorithm default
	Filename  string  // Optional output filename
}

// EnhancementResult contains the result of an enhancement operation
type EnhancementResult struct {
	ID         string
	Operation  string
	InputPath  string
	OutputPath string
	Data       []byte
	Algorithm  string
	Parameters map[string]interface{}
	Metrics    EnhancementMetrics
}

// EnhancementMetrics contains performance metrics
type EnhancementMetrics struct {
	ProcessingTime float64 // in seconds
	InputSize      int64   // in bytes
	OutputSize     int64   // in bytes
}
