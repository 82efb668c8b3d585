package client

import (
	"context"
)

// EditClient defines the interface for a remote image-edit backend
type EditClient interface {
	// Family returns the configured backend family (sdwebui, gemini, generic)
	Family() string

	// Model returns the default model identifier, if the family has one
	Model() string

	// Configured returns MissingCredential when the endpoint or key is absent
	Configured() error

	// Edit sends the source image and instruction and returns one edited image
	Edit(ctx context.Context, req EditRequest) (*EditResult, error)

	// Probe reports whether the backend is reachable. It never blocks past its
	// timeout and never returns an error
	Probe(ctx context.Context) bool
}

// Options are optional generation parameters. Zero values fall back to the
// configured defaults; each family ignores the keys it does not understand
type Options struct {
	NegativeInstruction string   `json:"negative_instruction,omitempty"`
	Strength            *float64 `json:"strength,omitempty"`
	Steps               int      `json:"steps,omitempty"`
	GuidanceScale       float64  `json:"guidance_scale,omitempty"`
	Sampler             string   `json:"sampler,omitempty"`
	TargetWidth         int      `json:"target_width,omitempty"`
	TargetHeight        int      `json:"target_height,omitempty"`
	ModelID             string   `json:"model_id,omitempty"`
}

// EditRequest is one edit call
type EditRequest struct {
	Image       []byte   // encoded source image
	References  [][]byte // optional extra images, multimodal family only
	Instruction string
	Options     Options
}

// EditResult is the normalized result of an edit
type EditResult struct {
	Base64   string // raw base64 payload, no data-URL prefix
	Data     []byte
	MimeType string
	Family   string
	Model    string
}

// Ensure all backends implement the EditClient interface
var (
	_ EditClient = (*SDWebUIClient)(nil)
	_ EditClient = (*GeminiClient)(nil)
	_ EditClient = (*GenericClient)(nil)
	_ EditClient = (*MockClient)(nil)
)
