package client

import (
	"context"
	"encoding/base64"
	"sync"
	"time"

	"github.com/gomcpgo/scene_edit_ai/pkg/types"
)

// MockClient is a mock implementation of the EditClient interface for testing
type MockClient struct {
	// Control behavior
	ResponseDelay time.Duration // How long an edit takes to complete
	Result        []byte        // Image returned by Edit
	Err           error         // Error returned by Edit, if set
	Reachable     bool          // Probe result
	MissingKey    bool          // Configured reports missing_credential
	FamilyName    string        // Reported family, gemini by default

	// Track calls for assertions
	mu        sync.Mutex
	EditCalls []EditRequest
	Probes    int
}

// NewMockClient creates a mock that returns image for every edit
func NewMockClient(image []byte) *MockClient {
	return &MockClient{Result: image, Reachable: true, FamilyName: types.FamilyGemini}
}

func (m *MockClient) Family() string { return m.FamilyName }
func (m *MockClient) Model() string  { return "mock-model" }

func (m *MockClient) Configured() error {
	if m.MissingKey {
		return types.NewError(types.CodeMissingCredential, "mock client has no credential")
	}
	return nil
}

// Edit records the call and returns the configured result after ResponseDelay
func (m *MockClient) Edit(ctx context.Context, req EditRequest) (*EditResult, error) {
	m.mu.Lock()
	m.EditCalls = append(m.EditCalls, req)
	m.mu.Unlock()

	if err := m.Configured(); err != nil {
		return nil, err
	}
	if m.ResponseDelay > 0 {
		select {
		case <-time.After(m.ResponseDelay):
		case <-ctx.Done():
			return nil, types.WrapError(types.CodeNetworkFailure, ctx.Err(), "mock edit interrupted")
		}
	}
	if m.Err != nil {
		return nil, m.Err
	}
	if len(m.Result) == 0 {
		return nil, types.NewError(types.CodeNoImageReturned, "mock returned no image")
	}
	return &EditResult{
		Base64:   base64.StdEncoding.EncodeToString(m.Result),
		Data:     m.Result,
		MimeType: "image/png",
		Family:   m.Family(),
		Model:    m.Model(),
	}, nil
}

func (m *MockClient) Probe(ctx context.Context) bool {
	m.mu.Lock()
	m.Probes++
	m.mu.Unlock()
	return m.Reachable
}

// Calls returns the number of Edit calls so far
func (m *MockClient) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.EditCalls)
}
