package nemochat

import (
	"fmt"

	"github.com/cockroachdb/errors"
)

// Sentinel errors for common failure modes.
// These can be checked with errors.Is().
var (
	// ErrEmptyMessage indicates a user submission that is empty or whitespace only.
	ErrEmptyMessage = errors.New("nemochat: message is empty")

	// ErrGenerationInProgress indicates an assistant response is already being generated.
	ErrGenerationInProgress = errors.New("nemochat: generation already in progress")

	// ErrGenerationCanceled indicates the in-flight generation was aborted.
	ErrGenerationCanceled = errors.New("nemochat: generation canceled")

	// ErrHandleFinalized indicates a mutation against a handle that is no longer in progress.
	ErrHandleFinalized = errors.New("nemochat: response handle already finalized")

	// ErrInvalidParameters indicates model parameters outside their fixed ranges.
	ErrInvalidParameters = errors.New("nemochat: invalid model parameters")

	// ErrInvalidSnapshot indicates a snapshot that cannot be restored.
	ErrInvalidSnapshot = errors.New("nemochat: invalid snapshot")

	// ErrMalformedFrame indicates a frame whose payload could not be parsed.
	ErrMalformedFrame = errors.New("nemochat: malformed frame")

	// ErrUpstream indicates the relay reported a failure inside the stream.
	ErrUpstream = errors.New("nemochat: upstream error")

	// ErrTransport indicates the byte stream could not be read.
	ErrTransport = errors.New("nemochat: transport error")

	// ErrRateLimited indicates the relay rejected the request for rate limiting.
	ErrRateLimited = errors.New("nemochat: rate limit exceeded")

	// ErrInvalidRequest indicates the relay rejected the request body.
	ErrInvalidRequest = errors.New("nemochat: invalid request")

	// ErrProviderUnavailable indicates the relay is down or unreachable.
	ErrProviderUnavailable = errors.New("nemochat: provider unavailable")

	// ErrKeyNotFound is returned by a KeyValueStore when a key has no value.
	ErrKeyNotFound = errors.New("nemochat: key not found")

	// ErrDeleteUnsupported is returned by DeleteSnapshot for a store without Delete.
	ErrDeleteUnsupported = errors.New("nemochat: store cannot delete keys")
)

// InputError represents a rejected user submission.
// No request is issued and the log is left untouched.
type InputError struct {
	Reason string // Human-readable explanation
	Err    error  // ErrEmptyMessage or ErrGenerationInProgress
}

func (e *InputError) Error() string {
	return fmt.Sprintf("invalid input: %s", e.Reason)
}

func (e *InputError) Unwrap() error {
	return e.Err
}

// ValidationError represents an error in model parameter validation.
type ValidationError struct {
	Field  string // The parameter field that failed validation
	Value  any    // The invalid value
	Reason string // Human-readable explanation
	Err    error  // Wrapped error (usually ErrInvalidParameters)
}

func (e *ValidationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("validation failed for '%s' (value: %v): %s (%v)", e.Field, e.Value, e.Reason, e.Err)
	}
	return fmt.Sprintf("validation failed for '%s' (value: %v): %s", e.Field, e.Value, e.Reason)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// FrameParseError represents a single frame whose payload was not valid JSON.
// It is logged and skipped; the stream keeps going.
type FrameParseError struct {
	Payload string // The raw payload after the data: prefix
	Err     error  // Underlying decode error
}

func (e *FrameParseError) Error() string {
	return fmt.Sprintf("malformed frame %q: %v", truncate(e.Payload, 64), e.Err)
}

func (e *FrameParseError) Unwrap() error {
	return ErrMalformedFrame
}

// Cause returns the decode error that made the frame unparseable.
func (e *FrameParseError) Cause() error {
	return e.Err
}

// UpstreamError is an explicit error frame sent by the relay.
// Message is shown to the user verbatim.
type UpstreamError struct {
	Message string
}

func (e *UpstreamError) Error() string {
	return e.Message
}

func (e *UpstreamError) Unwrap() error {
	return ErrUpstream
}

// TransportError represents a read failure on the response body.
// Content accumulated before the failure stays in the conversation.
type TransportError struct {
	Op  string // "open" or "read"
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport %s failed: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() []error {
	return []error{ErrTransport, e.Err}
}

// CanceledError reports a generation aborted by the caller, either through
// context cancellation or because its message was finalized elsewhere.
// It matches both ErrGenerationCanceled and its cause.
type CanceledError struct {
	Op    string // "open" or "read"
	Cause error  // context error or ErrHandleFinalized
}

func (e *CanceledError) Error() string {
	return fmt.Sprintf("generation canceled during %s: %v", e.Op, e.Cause)
}

func (e *CanceledError) Unwrap() []error {
	return []error{ErrGenerationCanceled, e.Cause}
}

// ProviderError represents a non-streaming error response from the relay.
type ProviderError struct {
	Provider   string // The provider name
	StatusCode int    // HTTP status code (if applicable)
	Message    string // Error message from the relay
	Retryable  bool   // Whether this error is potentially retryable
	Err        error  // Wrapped sentinel error (ErrRateLimited, ErrProviderUnavailable, etc.)
}

func (e *ProviderError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("provider '%s' error (status %d): %s", e.Provider, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("provider '%s' error: %s", e.Provider, e.Message)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// IsRetryable checks if an error is potentially retryable.
// Returns true for rate limits, temporary unavailability and dropped connections.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	var providerErr *ProviderError
	if errors.As(err, &providerErr) {
		return providerErr.Retryable
	}

	if errors.Is(err, ErrRateLimited) {
		return true
	}

	if errors.Is(err, ErrProviderUnavailable) {
		return true
	}

	// A dropped stream can be retried by resending the turn
	if errors.Is(err, ErrTransport) {
		return true
	}

	return false
}

// IsCanceled checks if an error ended a generation on the caller's request.
func IsCanceled(err error) bool {
	return err != nil && errors.Is(err, ErrGenerationCanceled)
}

// IsInvalidInput checks if an error was raised before any request was issued
// because of the submission itself or the conversation state.
func IsInvalidInput(err error) bool {
	if err == nil {
		return false
	}

	var inputErr *InputError
	if errors.As(err, &inputErr) {
		return true
	}

	return errors.Is(err, ErrEmptyMessage) || errors.Is(err, ErrGenerationInProgress)
}

// IsUserVisible reports whether an error should be surfaced to the user as a
// notification. Parse errors are absorbed locally and return false.
func IsUserVisible(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrMalformedFrame) {
		return false
	}
	return errors.Is(err, ErrUpstream) ||
		errors.Is(err, ErrTransport) ||
		errors.Is(err, ErrProviderUnavailable) ||
		errors.Is(err, ErrRateLimited) ||
		errors.Is(err, ErrInvalidRequest)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
