package audio

import (
	"bytes"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/ebitengine/oto/v3"
)

// The underlying oto context can only be created once per process, so the
// real device context is a singleton behind the Context interface. Close on
// an otoContext releases its handles but keeps the device context alive for
// the next session.
var (
	otoOnce    sync.Once
	otoShared  *oto.Context
	otoInitErr error
)

// otoContext adapts the oto device context to the pipeline's Context
// interface. One otoContext value is created per playback session.
type otoContext struct {
	ctx     *oto.Context
	mu      sync.Mutex
	handles []*otoHandle
	closed  bool
}

// NewDeviceContext acquires a playback context backed by the local audio
// device. The first call initializes the device with the given format;
// subsequent sessions reuse it.
func NewDeviceContext(sampleRate, channels int) (Context, error) {
	otoOnce.Do(func() {
		options := &oto.NewContextOptions{
			SampleRate:   sampleRate,
			ChannelCount: channels,
			Format:       oto.FormatSignedInt16LE,
			BufferSize:   time.Millisecond * 50,
		}
		ctx, ready, err := oto.NewContext(options)
		if err != nil {
			otoInitErr = err
			return
		}
		<-ready
		otoShared = ctx
		log.Debug("audio device context initialized",
			"sample_rate", sampleRate, "channels", channels)
	})

	if otoInitErr != nil {
		return nil, fmt.Errorf("%w: %v", ErrContextUnavailable, otoInitErr)
	}
	return &otoContext{ctx: otoShared}, nil
}

// NewHandle binds a decoded buffer to a device player.
func (c *otoContext) NewHandle(buf *Buffer) (Handle, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil, ErrContextUnavailable
	}

	player := c.ctx.NewPlayer(bytes.NewReader(buf.PCM()))
	h := &otoHandle{player: player}
	c.handles = append(c.handles, h)
	return h, nil
}

// Close detaches all handles created by this session. The shared device
// context stays open.
func (c *otoContext) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true

	for _, h := range c.handles {
		_ = h.Close()
	}
	c.handles = nil
	return nil
}

// otoHandle wraps an oto player as an idempotently closable Handle.
type otoHandle struct {
	player *oto.Player
	mu     sync.Mutex
	closed bool
}

func (h *otoHandle) Play() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.player.Play()
}

func (h *otoHandle) IsPlaying() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	return h.player.IsPlaying()
}

// Close stops and detaches the player. Closing twice, or closing a player
// that never started, is a swallowed no-op.
func (h *otoHandle) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil
	}
	h.closed = true

	if err := h.player.Close(); err != nil {
		// An already-stopped device player is not an error worth surfacing.
		log.Debug("player close returned error", "error", err)
	}
	return nil
}
