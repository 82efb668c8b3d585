package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"

	"github.com/gomcpgo/scene_edit_ai/pkg/logging"
	"github.com/gomcpgo/scene_edit_ai/pkg/types"
)

// Default timeouts
const (
	DefaultEditTimeout  = 120 * time.Second
	DefaultProbeTimeout = 5 * time.Second
)

// Settings are shared by every backend
type Settings struct {
	Endpoint     string
	APIKey       string
	Model        string
	EditTimeout  time.Duration
	ProbeTimeout time.Duration
	Logger       *zap.Logger
	HTTPClient   *http.Client
}

// transport performs the HTTP plumbing common to all families
type transport struct {
	httpClient   *http.Client
	editTimeout  time.Duration
	probeTimeout time.Duration
	log          *zap.Logger
}

func newTransport(s Settings) transport {
	t := transport{
		httpClient:   s.HTTPClient,
		editTimeout:  s.EditTimeout,
		probeTimeout: s.ProbeTimeout,
		log:          s.Logger,
	}
	if t.httpClient == nil {
		t.httpClient = &http.Client{}
	}
	if t.editTimeout <= 0 {
		t.editTimeout = DefaultEditTimeout
	}
	if t.probeTimeout <= 0 {
		t.probeTimeout = DefaultProbeTimeout
	}
	if t.log == nil {
		t.log = zap.NewNop()
	}
	return t
}

// postJSON sends payload and returns the body of a 2xx response. Transport
// failures and timeouts become network_failure, other statuses backend_error
func (t transport) postJSON(ctx context.Context, endpoint string, headers map[string]string, payload interface{}) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, t.editTimeout)
	defer cancel()

	t.log.Debug("sending edit request",
		zap.String("url", redactURL(endpoint)),
		logging.Payload("request_body", body))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, types.WrapError(types.CodeNetworkFailure, err, "failed to create request")
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	start := time.Now()
	resp, err := t.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, types.WrapError(types.CodeNetworkFailure, err, "edit request timed out after %v", t.editTimeout)
		}
		return nil, types.WrapError(types.CodeNetworkFailure, err, "failed to send request")
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, types.WrapError(types.CodeNetworkFailure, err, "failed to read response")
	}

	t.log.Debug("edit response received",
		zap.Int("status", resp.StatusCode),
		zap.Duration("elapsed", time.Since(start)),
		logging.Payload("response_body", respBody))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, types.BackendError(resp.StatusCode, truncate(string(respBody), 2000))
	}
	return respBody, nil
}

// probe issues a GET and reports whether it answered 2xx within the probe timeout
func (t transport) probe(ctx context.Context, endpoint string, headers map[string]string) bool {
	ctx, cancel := context.WithTimeout(ctx, t.probeTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		t.log.Debug("probe request invalid", zap.Error(err))
		return false
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := t.httpClient.Do(req)
	if err != nil {
		t.log.Debug("probe failed", zap.String("url", redactURL(endpoint)), zap.Error(err))
		return false
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64*1024))
	return resp.StatusCode >= 200 && resp.StatusCode < 300
}

// origin returns scheme://host of endpoint
func origin(endpoint string) (string, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return "", err
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("endpoint %q is not an absolute URL", endpoint)
	}
	return u.Scheme + "://" + u.Host, nil
}

// redactURL masks the key query parameter
func redactURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	q := u.Query()
	if k := q.Get("key"); k != "" {
		q.Set("key", logging.RedactKey(k))
		u.RawQuery = q.Encode()
	}
	return u.String()
}

func bearer(key string) map[string]string {
	if key == "" {
		return nil
	}
	return map[string]string{"Authorization": "Bearer " + key}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
