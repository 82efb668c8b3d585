package handler

import (
	"github.com/gomcpgo/scene_edit_ai/pkg/client"
	"github.com/gomcpgo/scene_edit_ai/pkg/geometry"
	"github.com/gomcpgo/scene_edit_ai/pkg/types"
)

func stringArg(args map[string]interface{}, key string) string {
	s, _ := args[key].(string)
	return s
}

// JSON numbers arrive as float64, tests and in-process callers may pass ints
func floatArg(args map[string]interface{}, key string) (float64, bool) {
	switch v := args[key].(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	}
	return 0, false
}

func intArg(args map[string]interface{}, key string) int {
	v, _ := floatArg(args, key)
	return int(v)
}

func boolPtrArg(args map[string]interface{}, key string) *bool {
	b, ok := args[key].(bool)
	if !ok {
		return nil
	}
	return &b
}

func stringsArg(args map[string]interface{}, key string) []string {
	switch v := args[key].(type) {
	case []string:
		return v
	case []interface{}:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok && s != "" {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

func rectArg(args map[string]interface{}) (geometry.Rect, error) {
	var vals [4]float64
	for i, key := range []string{"x", "y", "width", "height"} {
		v, ok := floatArg(args, key)
		if !ok {
			return geometry.Rect{}, types.NewError(types.CodeInvalidParameters, "%s parameter is required", key)
		}
		vals[i] = v
	}
	return geometry.SceneRect(vals[0], vals[1], vals[2], vals[3]), nil
}

func optionsArg(args map[string]interface{}) client.Options {
	o := client.Options{
		NegativeInstruction: stringArg(args, "negative_instruction"),
		Steps:               intArg(args, "steps"),
		Sampler:             stringArg(args, "sampler"),
		TargetWidth:         intArg(args, "target_width"),
		TargetHeight:        intArg(args, "target_height"),
		ModelID:             stringArg(args, "model_id"),
	}
	if v, ok := floatArg(args, "strength"); ok {
		o.Strength = &v
	}
	if v, ok := floatArg(args, "guidance_scale"); ok {
		o.GuidanceScale = v
	}
	return o
}
