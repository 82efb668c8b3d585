package client

import (
	"context"
	"encoding/base64"
	"strings"

	"go.uber.org/zap"

	"github.com/gomcpgo/scene_edit_ai/pkg/types"
)

// GenericClient talks to a plain JSON edit endpoint
type GenericClient struct {
	transport
	endpoint string
	apiKey   string
	model    string
}

type genericRequest struct {
	Image          string   `json:"image"`
	Prompt         string   `json:"prompt"`
	NegativePrompt string   `json:"negative_prompt,omitempty"`
	Strength       *float64 `json:"strength,omitempty"`
	Model          string   `json:"model,omitempty"`
	Width          int      `json:"width,omitempty"`
	Height         int      `json:"height,omitempty"`
}

// NewGenericClient creates a client for the endpoint in s.Endpoint
func NewGenericClient(s Settings) *GenericClient {
	return &GenericClient{
		transport: newTransport(s),
		endpoint:  strings.TrimSpace(s.Endpoint),
		apiKey:    s.APIKey,
		model:     s.Model,
	}
}

func (c *GenericClient) Family() string { return types.FamilyGeneric }
func (c *GenericClient) Model() string  { return c.model }

// Configured checks that an endpoint is set
func (c *GenericClient) Configured() error {
	if c.endpoint == "" {
		return types.NewError(types.CodeMissingCredential, "no edit endpoint configured")
	}
	return nil
}

// Edit posts the image and prompt
func (c *GenericClient) Edit(ctx context.Context, req EditRequest) (*EditResult, error) {
	if err := c.Configured(); err != nil {
		return nil, err
	}
	if err := validate(req); err != nil {
		return nil, err
	}

	o := req.Options
	payload := genericRequest{
		Image:          base64.StdEncoding.EncodeToString(req.Image),
		Prompt:         req.Instruction,
		NegativePrompt: o.NegativeInstruction,
		Strength:       o.Strength,
		Model:          o.ModelID,
		Width:          o.TargetWidth,
		Height:         o.TargetHeight,
	}
	c.log.Info("generic edit", zap.Int("image_bytes", len(req.Image)))

	body, err := c.postJSON(ctx, c.endpoint, bearer(c.apiKey), payload)
	if err != nil {
		return nil, err
	}
	return decodeImageFields(body, types.FamilyGeneric, c.model)
}

// Probe checks /health on the endpoint origin
func (c *GenericClient) Probe(ctx context.Context) bool {
	if c.Configured() != nil {
		return false
	}
	base, err := origin(c.endpoint)
	if err != nil {
		return false
	}
	return c.probe(ctx, base+"/health", bearer(c.apiKey))
}
