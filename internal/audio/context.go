package audio

import "errors"

// Common errors for the playback pipeline.
var (
	// ErrBusy is returned when playback is requested while a prior request is
	// still loading. Callers are expected to disable the trigger instead of
	// queueing.
	ErrBusy = errors.New("playback request already loading")

	// ErrContextUnavailable is returned when no playback context could be
	// acquired from the audio device.
	ErrContextUnavailable = errors.New("playback context unavailable")
)

// Context is a playback context bound to a fixed sample rate and channel
// count. Implementations are the real audio device (otoContext) and
// MockContext for tests. At most one Context is live at any instant; the
// pipeline closes it during session teardown.
type Context interface {
	// NewHandle binds a decoded buffer to a playable source.
	NewHandle(buf *Buffer) (Handle, error)

	// Close releases the context. Closing an already-closed context is a
	// no-op.
	Close() error
}

// Handle is one playable source. Close detaches the source; closing an
// already-closed or never-started handle must not return an error.
type Handle interface {
	// Play starts playback from the beginning of the bound buffer.
	Play()

	// IsPlaying reports whether the source is still producing audio.
	IsPlaying() bool

	// Close stops and detaches the source. Idempotent.
	Close() error
}

// ContextFactory acquires a fresh playback context for one session.
type ContextFactory func(sampleRate, channels int) (Context, error)
