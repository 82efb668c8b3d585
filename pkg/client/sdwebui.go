package client

import (
	"bytes"
	"context"
	"encoding/base64"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"strings"

	"go.uber.org/zap"

	"github.com/gomcpgo/scene_edit_ai/pkg/types"
)

// Defaults are the generation parameters used when a request leaves them unset
type Defaults struct {
	NegativePrompt string
	Strength       float64
	Steps          int
	GuidanceScale  float64
	Sampler        string
	Width          int
	Height         int
}

// SDWebUIClient talks to a Stable-Diffusion-style img2img endpoint
type SDWebUIClient struct {
	transport
	endpoint string
	apiKey   string
	defaults Defaults
}

type sdRequest struct {
	InitImages        []string `json:"init_images"`
	Prompt            string   `json:"prompt"`
	NegativePrompt    string   `json:"negative_prompt"`
	DenoisingStrength float64  `json:"denoising_strength"`
	Steps             int      `json:"steps"`
	CfgScale          float64  `json:"cfg_scale"`
	SamplerName       string   `json:"sampler_name,omitempty"`
	Width             int      `json:"width,omitempty"`
	Height            int      `json:"height,omitempty"`
}

// NewSDWebUIClient creates a client for the img2img endpoint in s.Endpoint
func NewSDWebUIClient(s Settings, d Defaults) *SDWebUIClient {
	return &SDWebUIClient{
		transport: newTransport(s),
		endpoint:  strings.TrimSpace(s.Endpoint),
		apiKey:    s.APIKey,
		defaults:  d,
	}
}

func (c *SDWebUIClient) Family() string { return types.FamilySDWebUI }
func (c *SDWebUIClient) Model() string  { return "" }

// Configured checks that an endpoint is set
func (c *SDWebUIClient) Configured() error {
	if c.endpoint == "" {
		return types.NewError(types.CodeMissingCredential, "no sdwebui endpoint configured")
	}
	return nil
}

// Edit runs one img2img transform
func (c *SDWebUIClient) Edit(ctx context.Context, req EditRequest) (*EditResult, error) {
	if err := c.Configured(); err != nil {
		return nil, err
	}
	if err := validate(req); err != nil {
		return nil, err
	}

	payload := c.buildRequest(req)
	c.log.Info("sdwebui edit",
		zap.Int("steps", payload.Steps),
		zap.Float64("strength", payload.DenoisingStrength),
		zap.Int("width", payload.Width),
		zap.Int("height", payload.Height))

	body, err := c.postJSON(ctx, c.endpoint, bearer(c.apiKey), payload)
	if err != nil {
		return nil, err
	}
	return decodeImageFields(body, types.FamilySDWebUI, "")
}

func (c *SDWebUIClient) buildRequest(req EditRequest) sdRequest {
	o := req.Options
	p := sdRequest{
		InitImages:        []string{base64.StdEncoding.EncodeToString(req.Image)},
		Prompt:            req.Instruction,
		NegativePrompt:    c.defaults.NegativePrompt,
		DenoisingStrength: c.defaults.Strength,
		Steps:             c.defaults.Steps,
		CfgScale:          c.defaults.GuidanceScale,
		SamplerName:       c.defaults.Sampler,
		Width:             c.defaults.Width,
		Height:            c.defaults.Height,
	}
	if o.NegativeInstruction != "" {
		p.NegativePrompt = o.NegativeInstruction
	}
	if o.Strength != nil {
		p.DenoisingStrength = *o.Strength
	}
	if o.Steps > 0 {
		p.Steps = o.Steps
	}
	if o.GuidanceScale > 0 {
		p.CfgScale = o.GuidanceScale
	}
	if o.Sampler != "" {
		p.SamplerName = o.Sampler
	}
	if o.TargetWidth > 0 {
		p.Width = o.TargetWidth
	}
	if o.TargetHeight > 0 {
		p.Height = o.TargetHeight
	}
	// keep the source size when nothing else is asked for
	if p.Width == 0 || p.Height == 0 {
		if cfg, _, err := image.DecodeConfig(bytes.NewReader(req.Image)); err == nil {
			if p.Width == 0 {
				p.Width = cfg.Width
			}
			if p.Height == 0 {
				p.Height = cfg.Height
			}
		}
	}
	return p
}

// Probe checks the WebUI options endpoint on the same origin
func (c *SDWebUIClient) Probe(ctx context.Context) bool {
	if c.Configured() != nil {
		return false
	}
	base, err := origin(c.endpoint)
	if err != nil {
		return false
	}
	return c.probe(ctx, base+"/sdapi/v1/options", bearer(c.apiKey))
}

// validate checks the fields every family requires
func validate(req EditRequest) error {
	if len(req.Image) == 0 {
		return types.NewError(types.CodeInvalidParameters, "source image is required")
	}
	if strings.TrimSpace(req.Instruction) == "" {
		return types.NewError(types.CodeInvalidParameters, "instruction text is required")
	}
	return nil
}
