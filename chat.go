package nemochat

import (
	"context"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/cockroachdb/errors"
)

// ChatOption configures a Chat.
type ChatOption func(*Chat)

// WithPersistence saves the conversation to kv after every turn and settings
// change. prefix namespaces the fixed keys so several conversations can
// share one backend.
func WithPersistence(kv KeyValueStore, prefix string) ChatOption {
	return func(c *Chat) {
		c.kv = kv
		c.prefix = prefix
	}
}

// WithChatLogger sets the logger for the chat and the streams it consumes.
func WithChatLogger(l *log.Logger) ChatOption {
	return func(c *Chat) {
		c.logger = l
	}
}

// Chat drives one conversation: it submits user input to the Store, opens
// the upstream stream, folds it into the in-progress message and persists
// the result.
type Chat struct {
	store    *Store
	upstream Upstream
	kv       KeyValueStore
	prefix   string
	logger   *log.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
}

// NewChat creates a chat over store and upstream.
func NewChat(store *Store, upstream Upstream, opts ...ChatOption) *Chat {
	c := &Chat{
		store:    store,
		upstream: upstream,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = loggerOrDefault(c.logger)
	return c
}

// Store returns the conversation's store
func (c *Chat) Store() *Store {
	return c.store
}

// Send submits text and streams the assistant's answer into the log.
//
// Invalid input (empty text, generation already running) is rejected with an
// *InputError before any request is issued. Upstream and transport failures
// are returned after the partial answer has been finalized; the rest of the
// log is untouched. The result is nil only when no stream was opened.
func (c *Chat) Send(ctx context.Context, text string) (*StreamResult, error) {
	// The cancel func is published before Submit so a Cancel that follows
	// the placeholder's appearance always reaches this generation.
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	c.mu.Lock()
	if c.cancel != nil {
		c.mu.Unlock()
		return nil, &InputError{Reason: "a response is already being generated", Err: ErrGenerationInProgress}
	}
	c.cancel = cancel
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		c.cancel = nil
		c.mu.Unlock()
	}()

	h, err := c.store.Submit(text)
	if err != nil {
		return nil, err
	}
	req := c.store.Request()

	logger := c.logger.With("provider", c.upstream.Name(), "message", h.MessageID())

	if ctxErr := ctx.Err(); ctxErr != nil {
		c.store.Discard(h)
		c.persist(context.WithoutCancel(ctx))
		logger.Debug("response canceled before request")
		return nil, &CanceledError{Op: "open", Cause: ctxErr}
	}

	body, err := c.upstream.Open(ctx, req)
	if err != nil {
		c.store.Discard(h)
		c.persist(context.WithoutCancel(ctx))
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, &CanceledError{Op: "open", Cause: ctxErr}
		}
		logger.Warn("failed to open stream", "err", err)
		var providerErr *ProviderError
		if errors.As(err, &providerErr) {
			return nil, err
		}
		return nil, &TransportError{Op: "open", Err: err}
	}
	defer body.Close()

	result, err := Consume(ctx, body, h, WithConsumeLogger(c.logger))

	if result.StopReason == StopUpstreamError {
		// An error frame before any content leaves nothing worth keeping.
		c.store.Discard(h)
	} else {
		c.store.Finalize(h)
	}
	c.persist(context.WithoutCancel(ctx))

	switch {
	case err == nil:
		logger.Debug("response complete", "stop", result.StopReason, "deltas", result.Deltas, "duration", result.TotalDuration)
	case errors.Is(err, ErrGenerationCanceled):
		logger.Debug("response canceled", "deltas", result.Deltas)
	default:
		logger.Warn("response failed", "stop", result.StopReason, "err", err)
	}
	return result, err
}

// Cancel aborts the in-flight generation, if any. Its message keeps the
// content received so far.
func (c *Chat) Cancel() {
	c.mu.Lock()
	cancel := c.cancel
	c.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// Clear aborts any generation and resets the log to the seed pair.
func (c *Chat) Clear(ctx context.Context) {
	c.Cancel()
	c.store.Clear()
	c.persist(ctx)
}

// Forget aborts any generation, resets the log and the settings to the seed
// and deletes the saved conversation, so a later Load starts fresh. Unlike
// the other mutators it reports persistence failures.
func (c *Chat) Forget(ctx context.Context) error {
	c.Cancel()
	c.store.Clear()
	c.store.ResetSettings()
	if c.kv == nil {
		return nil
	}
	if err := DeleteSnapshot(ctx, c.kv, c.prefix); err != nil {
		return err
	}
	c.logger.Debug("saved conversation deleted", "prefix", c.prefix)
	return nil
}

// UpdateSettings applies a partial parameter change and persists it.
func (c *Chat) UpdateSettings(ctx context.Context, u ParameterUpdate) (ModelParameters, error) {
	next, err := c.store.UpdateSettings(u)
	if err != nil {
		return next, err
	}
	c.persist(ctx)
	return next, nil
}

// ResetSettings restores the default parameters and persists them.
func (c *Chat) ResetSettings(ctx context.Context) ModelParameters {
	next := c.store.ResetSettings()
	c.persist(ctx)
	return next
}

// Load restores the conversation from the persistence collaborator.
// Returns false when nothing was saved yet or no collaborator is configured.
func (c *Chat) Load(ctx context.Context) (bool, error) {
	if c.kv == nil {
		return false, nil
	}
	snap, found, err := LoadSnapshot(ctx, c.kv, c.prefix, c.store.Snapshot())
	if err != nil || !found {
		return false, err
	}
	if err := c.store.Restore(snap); err != nil {
		return false, err
	}
	return true, nil
}

// Save writes the current conversation to the persistence collaborator.
func (c *Chat) Save(ctx context.Context) error {
	if c.kv == nil {
		return nil
	}
	return SaveSnapshot(ctx, c.kv, c.prefix, c.store.Snapshot())
}

// persist saves and logs failures; persistence never fails a turn.
func (c *Chat) persist(ctx context.Context) {
	if err := c.Save(ctx); err != nil {
		c.logger.Warn("failed to save conversation", "err", err)
	}
}
