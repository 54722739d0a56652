package relay

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/cockroachdb/errors"

	"github.com/haowjy/nemochat-go"
)

const (
	// DefaultPath is the relay's chat endpoint.
	DefaultPath = "/api/chat"

	// DefaultTimeout bounds the time to receive response headers. The stream
	// itself is bounded only by the caller's context.
	DefaultTimeout = 30 * time.Second

	maxErrorBodyBytes = 64 << 10
)

// Option configures a Provider.
type Option func(*Provider)

// WithHTTPClient sets the client used for requests.
func WithHTTPClient(c *http.Client) Option {
	return func(p *Provider) {
		p.httpClient = c
	}
}

// WithPath overrides the endpoint path (default /api/chat).
func WithPath(path string) Option {
	return func(p *Provider) {
		if path != "" {
			p.path = "/" + strings.TrimPrefix(path, "/")
		}
	}
}

// WithLogger sets the provider's logger.
func WithLogger(l *log.Logger) Option {
	return func(p *Provider) {
		p.logger = l
	}
}

// Provider streams responses from the chat relay.
//
// The relay accepts {messages, settings} as JSON and answers with a
// text/event-stream body of "data: <JSON>" records. Failures detected before
// streaming starts come back as a non-200 status with a {message} body.
type Provider struct {
	baseURL    string
	path       string
	httpClient *http.Client
	logger     *log.Logger
}

// NewProvider creates a relay client for baseURL (e.g. "http://localhost:3000").
func NewProvider(baseURL string, opts ...Option) (*Provider, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, errors.Wrap(nemochat.ErrInvalidRequest, "relay base URL is required")
	}

	p := &Provider{
		baseURL: baseURL,
		path:    DefaultPath,
		httpClient: &http.Client{
			Transport: &http.Transport{
				Proxy:                 http.ProxyFromEnvironment,
				ResponseHeaderTimeout: DefaultTimeout,
			},
		},
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.logger == nil {
		p.logger = nemochat.DefaultLogger
	}
	return p, nil
}

// Name returns the provider identifier.
func (p *Provider) Name() nemochat.ProviderID {
	return nemochat.ProviderRelay
}

// Endpoint returns the full URL requests are posted to
func (p *Provider) Endpoint() string {
	return p.baseURL + p.path
}

// Open posts req and returns the streaming body.
func (p *Provider) Open(ctx context.Context, req *nemochat.ChatRequest) (io.ReadCloser, error) {
	httpReq, err := p.buildHTTPRequest(ctx, req)
	if err != nil {
		return nil, err
	}

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return nil, errors.Wrap(err, "relay HTTP request failed")
	}

	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		return nil, p.handleErrorResponse(resp)
	}

	p.logger.Debug("relay stream opened", "url", p.Endpoint(), "messages", len(req.Messages))
	return resp.Body, nil
}

// buildHTTPRequest creates the POST request for the relay.
func (p *Provider) buildHTTPRequest(ctx context.Context, req *nemochat.ChatRequest) (*http.Request, error) {
	if req == nil {
		return nil, errors.Wrap(nemochat.ErrInvalidRequest, "nil chat request")
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal request")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.Endpoint(), bytes.NewReader(body))
	if err != nil {
		return nil, errors.Wrap(err, "failed to build relay request")
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "text/event-stream")
	httpReq.Header.Set("Cache-Control", "no-cache")

	return httpReq, nil
}

// handleErrorResponse maps a non-200 relay response to a *ProviderError.
func (p *Provider) handleErrorResponse(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))

	var errResp struct {
		Message string `json:"message"`
	}
	message := strings.TrimSpace(string(body))
	if err := json.Unmarshal(body, &errResp); err == nil && errResp.Message != "" {
		message = errResp.Message
	}
	if message == "" {
		message = http.StatusText(resp.StatusCode)
	}

	perr := &nemochat.ProviderError{
		Provider:   p.Name().String(),
		StatusCode: resp.StatusCode,
		Message:    message,
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		perr.Retryable = true
		perr.Err = nemochat.ErrRateLimited
	case resp.StatusCode == http.StatusBadRequest,
		resp.StatusCode == http.StatusUnprocessableEntity,
		resp.StatusCode == http.StatusRequestEntityTooLarge:
		perr.Err = nemochat.ErrInvalidRequest
	case resp.StatusCode == http.StatusRequestTimeout,
		resp.StatusCode >= 500:
		perr.Retryable = true
		perr.Err = nemochat.ErrProviderUnavailable
	default:
		perr.Err = nemochat.ErrProviderUnavailable
	}

	p.logger.Debug("relay rejected request", "status", resp.StatusCode, "message", message)
	return perr
}
