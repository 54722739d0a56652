package nemochat

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/cockroachdb/errors"
)

// Fixed persistence keys. They match the identifiers the browser client
// used for session storage so saved conversations stay readable.
const (
	MessagesKey = "nemoChat_messages"
	SettingsKey = "nemoChat_settings"
)

// KeyValueStore is the persistence collaborator used to save and restore a
// conversation. Get returns ErrKeyNotFound for missing keys.
type KeyValueStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
}

// KeyDeleter is implemented by stores that can remove keys. Every backend in
// stores/ does.
type KeyDeleter interface {
	Delete(ctx context.Context, key string) error
}

// Snapshot is the persisted state of a conversation.
type Snapshot struct {
	Messages []Message       `json:"messages"`
	Settings ModelParameters `json:"settings"`
}

// Snapshot copies the log and the current settings.
// An in-progress message is included with its partial content.
func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{
		Messages: append([]Message(nil), s.messages...),
		Settings: s.settings,
	}
}

// Restore replaces the log and settings with snap. Every restored message is
// immutable. Restoring while a generation is in progress is rejected.
func (s *Store) Restore(snap Snapshot) error {
	if err := snap.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	if s.active != nil {
		s.mu.Unlock()
		return errors.WithStack(ErrGenerationInProgress)
	}
	s.messages = append([]Message(nil), snap.Messages...)
	s.settings = snap.Settings
	s.unlockAndEmit(Event{Type: EventRestored, Index: -1, Settings: snap.Settings})
	return nil
}

// Validate checks that a snapshot can be restored.
func (snap Snapshot) Validate() error {
	if len(snap.Messages) == 0 {
		return errors.Wrap(ErrInvalidSnapshot, "snapshot has no messages")
	}
	for i, m := range snap.Messages {
		if !m.Role.IsValid() {
			return errors.Wrapf(ErrInvalidSnapshot, "message %d has unknown role %q", i, m.Role)
		}
	}
	if err := snap.Settings.Validate(); err != nil {
		return errors.Wrapf(ErrInvalidSnapshot, "settings: %v", err)
	}
	return nil
}

// SaveSnapshot writes snap under the fixed keys, namespaced by prefix.
//
// The two keys are written one after the other, not atomically, as the
// browser client did. If the second write fails the stored messages are
// newer than the stored settings; LoadSnapshot still accepts that pair.
func SaveSnapshot(ctx context.Context, kv KeyValueStore, prefix string, snap Snapshot) error {
	messages, err := json.Marshal(snap.Messages)
	if err != nil {
		return errors.Wrap(err, "failed to marshal messages")
	}
	settings, err := json.Marshal(snap.Settings)
	if err != nil {
		return errors.Wrap(err, "failed to marshal settings")
	}

	if err := kv.Set(ctx, StorageKey(prefix, MessagesKey), messages); err != nil {
		return errors.Wrap(err, "failed to save messages")
	}
	if err := kv.Set(ctx, StorageKey(prefix, SettingsKey), settings); err != nil {
		return errors.Wrap(err, "failed to save settings")
	}
	return nil
}

// LoadSnapshot reads a snapshot saved by SaveSnapshot.
//
// Returns found=false when neither key exists. When only one key exists the
// other half is taken from fallback, mirroring the browser client which
// loaded messages and settings independently.
func LoadSnapshot(ctx context.Context, kv KeyValueStore, prefix string, fallback Snapshot) (snap Snapshot, found bool, err error) {
	snap = fallback

	messages, err := kv.Get(ctx, StorageKey(prefix, MessagesKey))
	switch {
	case err == nil:
		found = true
		var saved []Message
		if err := json.Unmarshal(messages, &saved); err != nil {
			return Snapshot{}, false, errors.Wrapf(ErrInvalidSnapshot, "failed to parse saved messages: %v", err)
		}
		snap.Messages = saved
	case !errors.Is(err, ErrKeyNotFound):
		return Snapshot{}, false, errors.Wrap(err, "failed to load messages")
	}

	settings, err := kv.Get(ctx, StorageKey(prefix, SettingsKey))
	switch {
	case err == nil:
		found = true
		if err := json.Unmarshal(settings, &snap.Settings); err != nil {
			return Snapshot{}, false, errors.Wrapf(ErrInvalidSnapshot, "failed to parse saved settings: %v", err)
		}
	case !errors.Is(err, ErrKeyNotFound):
		return Snapshot{}, false, errors.Wrap(err, "failed to load settings")
	}

	return snap, found, nil
}

// DeleteSnapshot removes the snapshot saved under prefix, so the next
// LoadSnapshot reports found=false. Deleting a missing snapshot is not an
// error. kv must implement KeyDeleter.
func DeleteSnapshot(ctx context.Context, kv KeyValueStore, prefix string) error {
	d, ok := kv.(KeyDeleter)
	if !ok {
		return errors.Wrapf(ErrDeleteUnsupported, "%T", kv)
	}
	for _, key := range []string{MessagesKey, SettingsKey} {
		if err := d.Delete(ctx, StorageKey(prefix, key)); err != nil {
			return errors.Wrapf(err, "failed to delete %s", key)
		}
	}
	return nil
}

// StorageKey joins a namespace prefix and a fixed key.
func StorageKey(prefix, key string) string {
	if prefix == "" {
		return key
	}
	return fmt.Sprintf("%s:%s", prefix, key)
}
