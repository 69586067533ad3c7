// Package store provides the persisted key-value collaborator used for
// daily content entries, journal entries, and one-shot UI flags.
package store

import "errors"

// ErrNotFound is returned when a key has no stored value.
var ErrNotFound = errors.New("key not found")

// Store is a flat string key-value store. Implementations must be safe for
// concurrent use.
type Store interface {
	// Get returns the value for key, or ErrNotFound.
	Get(key string) (string, error)

	// Set stores value under key, replacing any existing value.
	Set(key, value string) error

	// Remove deletes key. Removing a missing key is a no-op.
	Remove(key string) error
}
