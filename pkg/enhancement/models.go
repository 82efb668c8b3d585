package enhancement

import (
	"strings"

	"github.com/gomcpgo/scene_edit_ai/pkg/background"
)

// AlgorithmInfo contains information about a background algorithm
type AlgorithmInfo struct {
	Name             string
	Description      string
	DefaultThreshold float64
	ThresholdRange   string
}

// GetAlgorithmInfo returns information about a background algorithm
func GetAlgorithmInfo(algorithm string) AlgorithmInfo {
	switch algorithm {
	case background.AlgorithmThreshold:
		return AlgorithmInfo{
			Name:             background.AlgorithmThreshold,
			Description:      "Clears every pixel whose red, green and blue all exceed the threshold",
			DefaultThreshold: background.DefaultBrightness,
			ThresholdRange:   "0-255",
		}
	case background.AlgorithmFloodFill:
		return AlgorithmInfo{
			Name:             background.AlgorithmFloodFill,
			Description:      "Clears near-white pixels connected to the image border, keeping enclosed white areas",
			DefaultThreshold: background.DefaultDistance,
			ThresholdRange:   "0-441",
		}
	}
	return AlgorithmInfo{Name: algorithm, Description: "Unknown algorithm"}
}

// GetAlgorithmFromAlias maps user-facing aliases to an algorithm name
// Unknown names are returned unchanged so normalization can reject them
func GetAlgorithmFromAlias(alias string) string {
	switch strings.ToLower(strings.TrimSpace(alias)) {
	case "", "floodfill", "flood-fill", "flood", "bfs", "border":
		return background.AlgorithmFloodFill
	case "threshold", "white", "brightness":
		return background.AlgorithmThreshold
	default:
		return alias
	}
}
