package client

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"github.com/gomcpgo/scene_edit_ai/pkg/types"
)

// DefaultGeminiBaseURL is used when no endpoint override is configured
const DefaultGeminiBaseURL = "https://generativelanguage.googleapis.com"

// DefaultGeminiModel is the image-capable model used when none is configured
const DefaultGeminiModel = "gemini-2.5-flash-image-preview"

// GeminiClient talks to the generateContent API
type GeminiClient struct {
	transport
	baseURL string
	apiKey  string
	model   string
}

type geminiInlineData struct {
	MimeType string `json:"mimeType"`
	Data     string `json:"data"`
}

type geminiPart struct {
	Text       string            `json:"text,omitempty"`
	InlineData *geminiInlineData `json:"inlineData,omitempty"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiRequest struct {
	Contents         []geminiContent `json:"contents"`
	GenerationConfig struct {
		ResponseModalities []string `json:"responseModalities"`
	} `json:"generationConfig"`
}

// responses use camelCase, some proxies answer snake_case
type geminiResponsePart struct {
	Text        string            `json:"text"`
	InlineData  *geminiInlineData `json:"inlineData"`
	InlineData2 *struct {
		MimeType string `json:"mime_type"`
		Data     string `json:"data"`
	} `json:"inline_data"`
}

type geminiResponse struct {
	Candidates []struct {
		Content struct {
			Parts []geminiResponsePart `json:"parts"`
		} `json:"content"`
		FinishReason string `json:"finishReason"`
	} `json:"candidates"`
}

// NewGeminiClient creates a client; s.Endpoint overrides the public base URL
func NewGeminiClient(s Settings) *GeminiClient {
	base := strings.TrimRight(strings.TrimSpace(s.Endpoint), "/")
	if base == "" {
		base = DefaultGeminiBaseURL
	}
	model := s.Model
	if model == "" {
		model = DefaultGeminiModel
	}
	return &GeminiClient{
		transport: newTransport(s),
		baseURL:   base,
		apiKey:    strings.TrimSpace(s.APIKey),
		model:     model,
	}
}

func (c *GeminiClient) Family() string { return types.FamilyGemini }
func (c *GeminiClient) Model() string  { return c.model }

// Configured checks that an API key is set
func (c *GeminiClient) Configured() error {
	if c.apiKey == "" {
		return types.NewError(types.CodeMissingCredential, "no gemini API key configured")
	}
	return nil
}

// Edit sends the image, references and instruction as one user turn
func (c *GeminiClient) Edit(ctx context.Context, req EditRequest) (*EditResult, error) {
	if err := c.Configured(); err != nil {
		return nil, err
	}
	if err := validate(req); err != nil {
		return nil, err
	}

	model := c.model
	if req.Options.ModelID != "" {
		model = req.Options.ModelID
	}

	parts := []geminiPart{inlinePart(req.Image)}
	for _, ref := range req.References {
		if len(ref) > 0 {
			parts = append(parts, inlinePart(ref))
		}
	}
	parts = append(parts, geminiPart{Text: req.Instruction})

	var payload geminiRequest
	payload.Contents = []geminiContent{{Role: "user", Parts: parts}}
	payload.GenerationConfig.ResponseModalities = []string{"TEXT", "IMAGE"}

	c.log.Info("gemini edit",
		zap.String("model", model),
		zap.Int("references", len(parts)-2))

	endpoint := fmt.Sprintf("%s/v1beta/models/%s:generateContent?key=%s",
		c.baseURL, url.PathEscape(model), url.QueryEscape(c.apiKey))
	body, err := c.postJSON(ctx, endpoint, nil, payload)
	if err != nil {
		return nil, err
	}
	return decodeGemini(body, model)
}

// decodeGemini returns the first inline image across candidates in order
func decodeGemini(body []byte, model string) (*EditResult, error) {
	var resp geminiResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, types.WrapError(types.CodeMalformedResponse, err, "gemini backend returned invalid JSON")
	}
	for _, cand := range resp.Candidates {
		for _, p := range cand.Content.Parts {
			switch {
			case p.InlineData != nil && p.InlineData.Data != "":
				return newResult(p.InlineData.Data, p.InlineData.MimeType, types.FamilyGemini, model)
			case p.InlineData2 != nil && p.InlineData2.Data != "":
				return newResult(p.InlineData2.Data, p.InlineData2.MimeType, types.FamilyGemini, model)
			}
		}
	}
	return nil, types.NewError(types.CodeNoImageReturned, "gemini backend returned no inline image")
}

func inlinePart(data []byte) geminiPart {
	return geminiPart{InlineData: &geminiInlineData{
		MimeType: http.DetectContentType(data),
		Data:     base64.StdEncoding.EncodeToString(data),
	}}
}

// Probe lists models with the configured key
func (c *GeminiClient) Probe(ctx context.Context) bool {
	if c.Configured() != nil {
		return false
	}
	return c.probe(ctx, c.baseURL+"/v1beta/models?key="+url.QueryEscape(c.apiKey), nil)
}
