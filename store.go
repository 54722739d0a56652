package nemochat

import (
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/cockroachdb/errors"
)

// EventType identifies what changed in a Store.
type EventType string

// Event types
const (
	EventAppended  EventType = "appended"  // a message was added to the log
	EventDelta     EventType = "delta"     // the in-progress message grew
	EventFinalized EventType = "finalized" // the in-progress message became immutable
	EventDiscarded EventType = "discarded" // an empty in-progress message was removed
	EventCleared   EventType = "cleared"   // the log was reset to the seed
	EventRestored  EventType = "restored"  // the log was replaced from a snapshot
	EventSettings  EventType = "settings"  // model parameters changed
)

// Event is delivered to subscribers after every mutation.
type Event struct {
	Type EventType

	// Index is the log position of the affected message (-1 for log-wide events)
	Index int

	// Message is a copy of the affected message after the mutation
	Message Message

	// Delta is the appended text (EventDelta only)
	Delta string

	// Settings holds the new parameters (EventSettings only)
	Settings ModelParameters
}

// Handle is the single mutation target of an in-progress assistant message.
// It implements ContentSink so it can be handed straight to Consume.
type Handle struct {
	store     *Store
	messageID string
}

// AppendContent appends a delta to the message. It returns false once the
// handle has been finalized.
func (h *Handle) AppendContent(text string) bool {
	return h.store.ApplyContentDelta(h, text)
}

// MessageID returns the ID of the message this handle mutates
func (h *Handle) MessageID() string {
	return h.messageID
}

// Active returns true while the handle can still mutate its message
func (h *Handle) Active() bool {
	return h.store.isActive(h)
}

// activeResponse tracks the one in-progress assistant message.
type activeResponse struct {
	handle  *Handle
	index   int
	content strings.Builder
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithSeed sets the initial log and default parameters.
func WithSeed(seed Seed) StoreOption {
	return func(s *Store) {
		s.seed = seed
	}
}

// WithStoreLogger sets the store's logger.
func WithStoreLogger(l *log.Logger) StoreOption {
	return func(s *Store) {
		s.logger = l
	}
}

// WithClock sets the time source used for message timestamps.
func WithClock(now func() time.Time) StoreOption {
	return func(s *Store) {
		s.now = now
	}
}

// Store owns the ordered message log of one conversation and the model
// parameters attached to its requests.
//
// At most one assistant message is in progress at a time; every other
// message is immutable once appended. The log only changes by appending,
// except for Clear, Restore, and Discard of an empty in-progress message.
//
// Store is safe for concurrent use. Subscribers are called in mutation
// order without the store lock held, so they may read the store. Events are
// queued and delivered by whichever goroutine is already delivering: a
// mutation racing with another goroutine's delivery can return before its
// own events have been seen. A mutation made from a subscriber is delivered
// after the current event.
type Store struct {
	mu       sync.Mutex
	seed     Seed
	messages []Message
	settings ModelParameters
	active   *activeResponse

	subscribers map[int]func(Event)
	nextSubID   int
	pending     []pendingEvents
	emitting    bool

	now    func() time.Time
	logger *log.Logger
}

// NewStore creates a store whose log holds the seed pair.
func NewStore(opts ...StoreOption) *Store {
	s := &Store{
		seed:        DefaultSeed(),
		subscribers: make(map[int]func(Event)),
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = loggerOrDefault(s.logger)
	s.messages = s.seed.Messages(s.now())
	s.settings = s.seed.Settings
	return s
}

// Subscribe registers fn for every subsequent event and returns a function
// that removes it.
func (s *Store) Subscribe(fn func(Event)) (unsubscribe func()) {
	s.mu.Lock()
	id := s.nextSubID
	s.nextSubID++
	s.subscribers[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.subscribers, id)
		s.mu.Unlock()
	}
}

// AppendUserMessage appends a user message. The text must contain something
// other than whitespace and no generation may be in progress.
func (s *Store) AppendUserMessage(text string) (Message, error) {
	s.mu.Lock()
	if err := s.checkSubmittable(text); err != nil {
		s.mu.Unlock()
		return Message{}, err
	}
	msg, ev := s.appendLocked(RoleUser, text)
	s.unlockAndEmit(ev)
	return msg, nil
}

// BeginAssistantResponse appends an empty assistant message and returns the
// handle that is its only mutation point.
func (s *Store) BeginAssistantResponse() (*Handle, error) {
	s.mu.Lock()
	if s.active != nil {
		s.mu.Unlock()
		return nil, errors.WithStack(ErrGenerationInProgress)
	}
	h, ev := s.beginLocked()
	s.unlockAndEmit(ev)
	return h, nil
}

// Submit appends a user message and begins the assistant response in one
// step, so no other submission can slip in between.
func (s *Store) Submit(text string) (*Handle, error) {
	s.mu.Lock()
	if err := s.checkSubmittable(text); err != nil {
		s.mu.Unlock()
		return nil, err
	}
	_, userEv := s.appendLocked(RoleUser, text)
	h, assistantEv := s.beginLocked()
	s.unlockAndEmit(userEv, assistantEv)
	return h, nil
}

// ApplyContentDelta appends text to the handle's message. It is a no-op
// returning false if the handle has been finalized.
func (s *Store) ApplyContentDelta(h *Handle, text string) bool {
	s.mu.Lock()
	if !s.isActiveLocked(h) {
		s.mu.Unlock()
		return false
	}
	if text == "" {
		s.mu.Unlock()
		return true
	}

	a := s.active
	a.content.WriteString(text)
	s.messages[a.index].Content = a.content.String()
	ev := Event{
		Type:    EventDelta,
		Index:   a.index,
		Message: s.messages[a.index],
		Delta:   text,
	}
	s.unlockAndEmit(ev)
	return true
}

// Finalize marks the handle's message complete and clears the in-progress
// flag. Finalizing twice is a no-op returning false.
func (s *Store) Finalize(h *Handle) bool {
	s.mu.Lock()
	if !s.isActiveLocked(h) {
		s.mu.Unlock()
		return false
	}
	ev := s.finalizeLocked()
	s.unlockAndEmit(ev)
	return true
}

// Discard ends the handle's generation. An empty message is removed from
// the log and true is returned; a message with content is finalized as-is.
func (s *Store) Discard(h *Handle) bool {
	s.mu.Lock()
	if !s.isActiveLocked(h) {
		s.mu.Unlock()
		return false
	}

	a := s.active
	if a.content.Len() > 0 {
		ev := s.finalizeLocked()
		s.unlockAndEmit(ev)
		return false
	}

	msg := s.messages[a.index]
	s.messages = append(s.messages[:a.index], s.messages[a.index+1:]...)
	s.active = nil
	s.unlockAndEmit(Event{Type: EventDiscarded, Index: a.index, Message: msg})
	return true
}

// Clear resets the log to the seed pair. An in-progress generation is
// finalized first with whatever content it has; its handle stops accepting
// deltas. Model parameters are not affected.
func (s *Store) Clear() {
	s.mu.Lock()
	var events []Event
	if s.active != nil {
		events = append(events, s.finalizeLocked())
	}
	s.messages = s.seed.Messages(s.now())
	events = append(events, Event{Type: EventCleared, Index: -1})
	s.unlockAndEmit(events...)
}

// Messages returns a copy of the log, in-progress content included.
func (s *Store) Messages() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Message(nil), s.messages...)
}

// Len returns the number of messages in the log
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.messages)
}

// IsGenerating returns true while an assistant message is in progress
func (s *Store) IsGenerating() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active != nil
}

// Request builds the outbound request from every finalized message and the
// current settings. The in-progress placeholder is not included. A log
// without a system message (e.g. a restored one) is sent with the seed's
// system prompt in front.
func (s *Store) Request() *ChatRequest {
	s.mu.Lock()
	defer s.mu.Unlock()

	req := &ChatRequest{
		Messages: make([]WireMessage, 0, len(s.messages)+1),
		Settings: s.settings,
	}
	hasSystem := false
	for i, m := range s.messages {
		if s.active != nil && s.active.index == i {
			continue
		}
		if m.Role == RoleSystem {
			hasSystem = true
		}
		req.Messages = append(req.Messages, m.Wire())
	}
	if !hasSystem && s.seed.SystemPrompt != "" {
		system := WireMessage{Role: RoleSystem, Content: s.seed.SystemPrompt}
		req.Messages = append([]WireMessage{system}, req.Messages...)
	}
	return req
}

// Settings returns the current model parameters
func (s *Store) Settings() ModelParameters {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.settings
}

// UpdateSettings applies a partial change. Invalid values leave the current
// parameters untouched.
func (s *Store) UpdateSettings(u ParameterUpdate) (ModelParameters, error) {
	s.mu.Lock()
	next, err := u.Apply(s.settings)
	if err != nil {
		s.mu.Unlock()
		return s.Settings(), err
	}
	s.settings = next
	s.unlockAndEmit(Event{Type: EventSettings, Index: -1, Settings: next})
	return next, nil
}

// ResetSettings restores the seed's default parameters.
func (s *Store) ResetSettings() ModelParameters {
	s.mu.Lock()
	s.settings = s.seed.Settings
	next := s.settings
	s.unlockAndEmit(Event{Type: EventSettings, Index: -1, Settings: next})
	return next
}

func (s *Store) checkSubmittable(text string) error {
	if strings.TrimSpace(text) == "" {
		return &InputError{Reason: "message is empty", Err: ErrEmptyMessage}
	}
	if s.active != nil {
		return &InputError{Reason: "a response is already being generated", Err: ErrGenerationInProgress}
	}
	return nil
}

func (s *Store) appendLocked(role Role, content string) (Message, Event) {
	msg := NewMessage(role, content, s.now())
	s.messages = append(s.messages, msg)
	idx := len(s.messages) - 1
	return msg, Event{Type: EventAppended, Index: idx, Message: msg}
}

func (s *Store) beginLocked() (*Handle, Event) {
	msg, ev := s.appendLocked(RoleAssistant, "")
	h := &Handle{store: s, messageID: msg.ID}
	s.active = &activeResponse{handle: h, index: ev.Index}
	s.logger.Debug("assistant response started", "message", msg.ID)
	return h, ev
}

func (s *Store) finalizeLocked() Event {
	a := s.active
	s.active = nil
	msg := s.messages[a.index]
	s.logger.Debug("assistant response finalized", "message", msg.ID, "bytes", len(msg.Content))
	return Event{Type: EventFinalized, Index: a.index, Message: msg}
}

func (s *Store) isActive(h *Handle) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.isActiveLocked(h)
}

func (s *Store) isActiveLocked(h *Handle) bool {
	return h != nil && s.active != nil && s.active.handle == h
}

// pendingEvents is one mutation's events with the subscribers registered
// when it happened.
type pendingEvents struct {
	subs   []func(Event)
	events []Event
}

// unlockAndEmit queues events, releases s.mu and delivers the queue unless
// another goroutine is already delivering it. The lock is never held while
// a subscriber runs.
func (s *Store) unlockAndEmit(events ...Event) {
	if len(s.subscribers) > 0 {
		subs := make([]func(Event), 0, len(s.subscribers))
		for _, fn := range s.subscribers {
			subs = append(subs, fn)
		}
		s.pending = append(s.pending, pendingEvents{subs: subs, events: events})
	}
	if s.emitting {
		s.mu.Unlock()
		return
	}

	s.emitting = true
	defer func() {
		// A panicking subscriber must not leave the queue stuck.
		if r := recover(); r != nil {
			s.mu.Lock()
			s.emitting = false
			s.pending = nil
			s.mu.Unlock()
			panic(r)
		}
	}()
	for len(s.pending) > 0 {
		batch := s.pending[0]
		s.pending[0] = pendingEvents{}
		s.pending = s.pending[1:]
		s.mu.Unlock()

		for _, ev := range batch.events {
			for _, fn := range batch.subs {
				fn(ev)
			}
		}

		s.mu.Lock()
	}
	s.emitting = false
	s.mu.Unlock()
}
