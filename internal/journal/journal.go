// Package journal keeps user-authored diary entries and the small one-shot
// flags (notification dedupe, UI dismissal) on top of the key-value store.
package journal

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/daybreakapp/daybreak/internal/store"
)

const (
	entriesKey     = "journal-entries"
	notifiedPrefix = "notified-"
	dismissedIntro = "intro-dismissed"
)

// ErrEntryNotFound is returned when removing an entry that does not exist.
var ErrEntryNotFound = errors.New("journal entry not found")

// Entry is one user-authored diary entry.
type Entry struct {
	ID        string    `json:"id"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"createdAt"`
}

// Journal persists diary entries and flags. All operations read and write
// whole values through the store, matching the key-value collaborator's
// contract.
type Journal struct {
	store store.Store
	now   func() time.Time
}

// New creates a journal over the given store.
func New(kv store.Store) *Journal {
	return &Journal{store: kv, now: time.Now}
}

// List returns all entries, oldest first. A corrupted entry list is
// discarded rather than surfaced.
func (j *Journal) List() ([]Entry, error) {
	raw, err := j.store.Get(entriesKey)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read journal: %w", err)
	}

	var entries []Entry
	if err := json.Unmarshal([]byte(raw), &entries); err != nil {
		log.Warn("discarding corrupted journal list", "error", err)
		_ = j.store.Remove(entriesKey)
		return nil, nil
	}
	return entries, nil
}

// Add appends a new entry and returns it.
func (j *Journal) Add(text string) (*Entry, error) {
	entries, err := j.List()
	if err != nil {
		return nil, err
	}

	entry := Entry{
		ID:        uuid.NewString(),
		Text:      text,
		CreatedAt: j.now(),
	}
	entries = append(entries, entry)

	if err := j.save(entries); err != nil {
		return nil, err
	}
	return &entry, nil
}

// Remove deletes the entry with the given id.
func (j *Journal) Remove(id string) error {
	entries, err := j.List()
	if err != nil {
		return err
	}

	kept := entries[:0]
	found := false
	for _, entry := range entries {
		if entry.ID == id {
			found = true
			continue
		}
		kept = append(kept, entry)
	}
	if !found {
		return ErrEntryNotFound
	}
	return j.save(kept)
}

// MarkNotified records that the daily notification fired for dayKey.
// Returns false when the marker already existed, so callers never notify
// twice for the same day.
func (j *Journal) MarkNotified(dayKey string) (bool, error) {
	key := notifiedPrefix + dayKey
	if _, err := j.store.Get(key); err == nil {
		return false, nil
	} else if !errors.Is(err, store.ErrNotFound) {
		return false, fmt.Errorf("failed to read notification marker: %w", err)
	}

	if err := j.store.Set(key, j.now().Format(time.RFC3339)); err != nil {
		return false, fmt.Errorf("failed to store notification marker: %w", err)
	}
	return true, nil
}

// DismissIntro records the one-time UI dismissal.
func (j *Journal) DismissIntro() error {
	return j.store.Set(dismissedIntro, "1")
}

// IntroDismissed reports whether the intro was dismissed.
func (j *Journal) IntroDismissed() bool {
	_, err := j.store.Get(dismissedIntro)
	return err == nil
}

func (j *Journal) save(entries []Entry) error {
	data, err := json.Marshal(entries)
	if err != nil {
		return fmt.Errorf("failed to encode journal: %w", err)
	}
	if err := j.store.Set(entriesKey, string(data)); err != nil {
		return fmt.Errorf("failed to persist journal: %w", err)
	}
	return nil
}
