package lorem

import (
	"context"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	loremgen "github.com/bozaro/golorem"
	"github.com/charmbracelet/log"
	"github.com/cockroachdb/errors"

	"github.com/haowjy/nemochat-go"
)

const (
	// DefaultWords is the number of words streamed per response.
	DefaultWords = 40

	// DefaultDelay paces the stream at 10 words/second.
	DefaultDelay = 100 * time.Millisecond
)

// Option configures a Provider.
type Option func(*Provider)

// WithWords sets how many words each response streams.
func WithWords(n int) Option {
	return func(p *Provider) {
		if n > 0 {
			p.words = n
		}
	}
}

// WithDelay sets the pause after each streamed word. Zero streams as fast as
// the reader consumes.
func WithDelay(d time.Duration) Option {
	return func(p *Provider) {
		if d >= 0 {
			p.delay = d
		}
	}
}

// WithErrorAfter replaces the rest of the stream with an error frame
// carrying message once n words have been sent. n=0 fails immediately.
func WithErrorAfter(n int, message string) Option {
	return func(p *Provider) {
		p.errorAfter = n
		p.errorMessage = message
	}
}

// WithLogger sets the provider's logger.
func WithLogger(l *log.Logger) Option {
	return func(p *Provider) {
		p.logger = l
	}
}

// Provider is a mock upstream that streams lorem ipsum text as framed
// records. Used for development and tests without a running relay.
type Provider struct {
	mu        sync.Mutex
	generator *loremgen.Lorem

	words        int
	delay        time.Duration
	errorAfter   int
	errorMessage string
	logger       *log.Logger
}

// NewProvider creates a new lorem ipsum provider.
func NewProvider(opts ...Option) *Provider {
	p := &Provider{
		generator:  loremgen.New(),
		words:      DefaultWords,
		delay:      DefaultDelay,
		errorAfter: -1,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.logger == nil {
		p.logger = nemochat.DefaultLogger
	}
	return p
}

// Name returns the provider identifier.
func (p *Provider) Name() nemochat.ProviderID {
	return nemochat.ProviderLorem
}

// Open starts a stream for req. The body is fed by a goroutine through a
// pipe, so reads block at the configured pace like a real network stream.
// Closing the body or canceling ctx stops the generator.
func (p *Provider) Open(ctx context.Context, req *nemochat.ChatRequest) (io.ReadCloser, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	words := p.responseWords(req.Settings.MaxTokens)
	pr, pw := io.Pipe()
	go func() {
		err := p.writeStream(ctx, pw, nil, words)
		pw.CloseWithError(err)
	}()
	return pr, nil
}

// Handler serves the same stream over HTTP as the relay would: POST a
// ChatRequest body and receive text/event-stream, flushed per frame.
func (p *Provider) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}

		var req nemochat.ChatRequest
		if err := decodeJSON(r.Body, &req); err != nil {
			writeJSONError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if err := validateRequest(&req); err != nil {
			writeJSONError(w, http.StatusBadRequest, err.Error())
			return
		}

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		w.WriteHeader(http.StatusOK)

		flush := func() {}
		if f, ok := w.(http.Flusher); ok {
			flush = f.Flush
		}

		words := p.responseWords(req.Settings.MaxTokens)
		if err := p.writeStream(r.Context(), w, flush, words); err != nil {
			p.logger.Debug("lorem stream stopped", "err", err)
		}
	})
}

// writeStream writes one content frame per word, then the done sentinel.
func (p *Provider) writeStream(ctx context.Context, w io.Writer, flush func(), words []string) error {
	if flush == nil {
		flush = func() {}
	}
	p.logger.Debug("lorem stream started", "words", len(words), "delay", p.delay)

	for i, word := range words {
		if i == p.errorAfter {
			return p.write(w, flush, nemochat.EncodeErrorFrame(p.errorMessage))
		}

		piece := word
		if i > 0 {
			piece = " " + word
		}
		if err := p.write(w, flush, nemochat.EncodeContentFrame(piece)); err != nil {
			return err
		}

		if err := sleep(ctx, p.delay); err != nil {
			return err
		}
	}

	if p.errorAfter >= len(words) {
		return p.write(w, flush, nemochat.EncodeErrorFrame(p.errorMessage))
	}
	return p.write(w, flush, nemochat.EncodeDoneFrame())
}

func (p *Provider) write(w io.Writer, flush func(), frame []byte) error {
	if _, err := w.Write(frame); err != nil {
		return errors.Wrap(err, "lorem: write frame")
	}
	flush()
	return nil
}

// responseWords generates the words for one response.
// Estimate: 1 token ≈ 1 word, so max_tokens caps the length.
func (p *Provider) responseWords(maxTokens int) []string {
	target := p.words
	if maxTokens > 0 && maxTokens < target {
		target = maxTokens
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	words := make([]string, 0, target)
	for len(words) < target {
		words = append(words, strings.Fields(p.generator.Sentence(5, 15))...)
	}
	return words[:target]
}

func validateRequest(req *nemochat.ChatRequest) error {
	if req == nil || len(req.Messages) == 0 {
		return &nemochat.ProviderError{
			Provider:   nemochat.ProviderLorem.String(),
			StatusCode: http.StatusBadRequest,
			Message:    "request has no messages",
			Err:        nemochat.ErrInvalidRequest,
		}
	}
	if err := req.Settings.Validate(); err != nil {
		return &nemochat.ProviderError{
			Provider:   nemochat.ProviderLorem.String(),
			StatusCode: http.StatusBadRequest,
			Message:    err.Error(),
			Err:        nemochat.ErrInvalidRequest,
		}
	}
	return nil
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
