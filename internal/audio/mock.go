package audio

import (
	"sync"

	"github.com/charmbracelet/log"
)

// MockContext implements Context without touching audio hardware. Tests can
// inspect how many handles were created and closed, and finish playback on
// demand.
type MockContext struct {
	mu      sync.Mutex
	closed  bool
	handles []*MockHandle

	// Test counters.
	HandlesCreated int
	CloseCalls     int
}

// NewMockContext returns a ready mock playback context.
func NewMockContext() *MockContext {
	log.Debug("creating mock playback context")
	return &MockContext{}
}

// NewHandle binds a buffer to a mock source.
func (c *MockContext) NewHandle(buf *Buffer) (Handle, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil, ErrContextUnavailable
	}

	h := &MockHandle{buf: buf}
	c.handles = append(c.handles, h)
	c.HandlesCreated++
	return h, nil
}

// Close marks the context closed and closes all outstanding handles.
func (c *MockContext) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.CloseCalls++
	if c.closed {
		return nil
	}
	c.closed = true
	for _, h := range c.handles {
		_ = h.Close()
	}
	return nil
}

// Closed reports whether Close has been called.
func (c *MockContext) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// FinishPlayback marks every playing handle as completed, simulating the
// natural end of the clip.
func (c *MockContext) FinishPlayback() {
	c.mu.Lock()
	handles := make([]*MockHandle, len(c.handles))
	copy(handles, c.handles)
	c.mu.Unlock()

	for _, h := range handles {
		h.finish()
	}
}

// MockHandle is a playable source backed by nothing.
type MockHandle struct {
	mu      sync.Mutex
	buf     *Buffer
	playing bool
	closed  bool

	PlayCalls  int
	CloseCalls int
}

// Play marks the handle as playing.
func (h *MockHandle) Play() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.playing = true
	h.PlayCalls++
}

// IsPlaying reports the simulated playback state.
func (h *MockHandle) IsPlaying() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.playing && !h.closed
}

// Close detaches the handle. Always succeeds, even when called repeatedly
// or before Play.
func (h *MockHandle) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.CloseCalls++
	h.playing = false
	h.closed = true
	return nil
}

func (h *MockHandle) finish() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.playing = false
}

// Buffer returns the buffer bound to this handle.
func (h *MockHandle) Buffer() *Buffer {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.buf
}
