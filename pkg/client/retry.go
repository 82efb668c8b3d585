package client

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/gomcpgo/scene_edit_ai/pkg/types"
)

// retryClient re-sends edits that failed with a network failure. Backend
// statuses and decoding failures are returned immediately
type retryClient struct {
	EditClient
	attempts int
	backoff  time.Duration
	log      *zap.Logger
}

// WithRetry wraps c so that an edit is attempted up to attempts times. The
// wait before attempt n+1 is backoff*1.5*n
func WithRetry(c EditClient, attempts int, backoff time.Duration, logger *zap.Logger) EditClient {
	if attempts <= 1 {
		return c
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &retryClient{EditClient: c, attempts: attempts, backoff: backoff, log: logger}
}

func (r *retryClient) Edit(ctx context.Context, req EditRequest) (*EditResult, error) {
	var lastErr error
	for attempt := 1; attempt <= r.attempts; attempt++ {
		res, err := r.EditClient.Edit(ctx, req)
		if err == nil {
			return res, nil
		}
		lastErr = err
		if !errors.Is(err, types.ErrNetworkFailure) || attempt == r.attempts {
			break
		}

		delay := time.Duration(float64(r.backoff) * 1.5 * float64(attempt))
		r.log.Warn("edit attempt failed, retrying",
			zap.Int("attempt", attempt),
			zap.Duration("delay", delay),
			zap.Error(err))

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, types.WrapError(types.CodeNetworkFailure, ctx.Err(), "edit cancelled while waiting to retry")
		}
	}
	return nil, lastErr
}
