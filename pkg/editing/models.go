package editing

import "github.com/gomcpgo/scene_edit_ai/pkg/types"

// FamilyInfo describes what a backend family accepts
type FamilyInfo struct {
	Family        string
	Name          string
	Description   string
	References    bool // accepts extra reference images
	DefaultModel  string
	ProbeEndpoint string
}

// GetFamilyInfo returns information about a backend family
func GetFamilyInfo(family string) FamilyInfo {
	families := map[string]FamilyInfo{
		types.FamilySDWebUI: {
			Family:        types.FamilySDWebUI,
			Name:          "Stable Diffusion WebUI img2img",
			Description:   "Single-image transform with denoising strength, steps and sampler",
			ProbeEndpoint: "/sdapi/v1/options",
		},
		types.FamilyGemini: {
			Family:        types.FamilyGemini,
			Name:          "Gemini image generation",
			Description:   "Multimodal generateContent taking the region plus optional reference images",
			References:    true,
			DefaultModel:  "gemini-2.5-flash-image-preview",
			ProbeEndpoint: "/v1beta/models",
		},
		types.FamilyGeneric: {
			Family:        types.FamilyGeneric,
			Name:          "Generic edit endpoint",
			Description:   "Plain JSON {image, prompt} endpoint returning one image",
			ProbeEndpoint: "/health",
		},
	}

	if info, ok := families[family]; ok {
		return info
	}

	return FamilyInfo{
		Family: family,
		Name:   "Unknown backend",
	}
}
