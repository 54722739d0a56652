package nemochat

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"rate limited provider error", &ProviderError{Provider: "relay", StatusCode: 429, Retryable: true, Err: ErrRateLimited}, true},
		{"bad request provider error", &ProviderError{Provider: "relay", StatusCode: 400, Err: ErrInvalidRequest}, false},
		{"wrapped rate limit", fmt.Errorf("send: %w", ErrRateLimited), true},
		{"transport", &TransportError{Op: "read", Err: errors.New("reset")}, true},
		{"upstream frame", &UpstreamError{Message: "boom"}, false},
		{"input", &InputError{Reason: "empty", Err: ErrEmptyMessage}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsRetryable(tt.err))
		})
	}
}

func TestIsUserVisible(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"upstream", &UpstreamError{Message: "Quota exceeded"}, true},
		{"transport", &TransportError{Op: "open", Err: errors.New("refused")}, true},
		{"provider", &ProviderError{Provider: "relay", StatusCode: 503, Err: ErrProviderUnavailable}, true},
		{"malformed frame", &FrameParseError{Payload: "{", Err: errors.New("eof")}, false},
		{"canceled", &CanceledError{Op: "read", Cause: context.Canceled}, false},
		{"input", &InputError{Reason: "busy", Err: ErrGenerationInProgress}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsUserVisible(tt.err))
		})
	}
}

func TestIsCanceled(t *testing.T) {
	err := &CanceledError{Op: "read", Cause: context.DeadlineExceeded}

	assert.True(t, IsCanceled(err))
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
	assert.False(t, IsCanceled(&UpstreamError{Message: "x"}))
	assert.False(t, IsCanceled(nil))
}

func TestErrorMessages(t *testing.T) {
	assert.Equal(t, "Quota exceeded", (&UpstreamError{Message: "Quota exceeded"}).Error())
	assert.Equal(t, "invalid input: message is empty", (&InputError{Reason: "message is empty", Err: ErrEmptyMessage}).Error())
	assert.Equal(t, "provider 'relay' error (status 429): slow down",
		(&ProviderError{Provider: "relay", StatusCode: 429, Message: "slow down"}).Error())
	assert.Equal(t, "provider 'lorem' error: bad", (&ProviderError{Provider: "lorem", Message: "bad"}).Error())
	assert.Contains(t, (&FrameParseError{Payload: "{x", Err: errors.New("bad json")}).Error(), "bad json")
}
