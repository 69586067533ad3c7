package audio

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/daybreakapp/daybreak/internal/codec"
)

// State is the playback pipeline state.
type State int

const (
	// StateIdle indicates no session exists.
	StateIdle State = iota
	// StateLoading indicates a session is being prepared (generator call,
	// decode, context acquisition).
	StateLoading
	// StatePlaying indicates a session is actively playing.
	StatePlaying
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateLoading:
		return "loading"
	case StatePlaying:
		return "playing"
	default:
		return "unknown"
	}
}

// SpeechFunc calls the external generator and returns the text-encoded audio
// payload for the given text.
type SpeechFunc func(ctx context.Context, text string) (string, error)

// session holds the live resources of one playback attempt. Teardown closes
// the handle before the context so the source detaches cleanly.
type session struct {
	id     uuid.UUID
	actx   Context
	handle Handle
}

// PipelineConfig configures a playback pipeline. Zero values fall back to
// the generator's fixed format (24000 Hz mono).
type PipelineConfig struct {
	SampleRate   int
	Channels     int
	PollInterval time.Duration
	// OnState is invoked after every state transition, with the pipeline
	// lock released.
	OnState func(State)
}

// Pipeline drives the decode-and-playback path: generator payload through
// the codec into a buffer bound to a fresh playback context. The state
// machine is the sole concurrency guard; transitions are checked before any
// blocking call so two loads can never overlap.
type Pipeline struct {
	speech     SpeechFunc
	newContext ContextFactory

	sampleRate   int
	channels     int
	pollInterval time.Duration
	onState      func(State)

	mu      sync.Mutex
	state   State
	epoch   uint64
	session *session
}

// NewPipeline creates a playback pipeline. speech produces encoded payloads;
// newContext acquires playback contexts (device or mock).
func NewPipeline(speech SpeechFunc, newContext ContextFactory, cfg PipelineConfig) *Pipeline {
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = DefaultSampleRate
	}
	if cfg.Channels <= 0 {
		cfg.Channels = DefaultChannels
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 50 * time.Millisecond
	}

	return &Pipeline{
		speech:       speech,
		newContext:   newContext,
		sampleRate:   cfg.SampleRate,
		channels:     cfg.Channels,
		pollInterval: cfg.PollInterval,
		onState:      cfg.OnState,
	}
}

// State returns the current pipeline state.
func (p *Pipeline) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// RequestPlayback toggles playback for the given text. Invoked while
// playing, it stops the current session and returns without calling the
// generator. Invoked while loading, it returns ErrBusy; the caller is
// expected to disable the trigger during loads. From idle it runs the full
// load path and starts playback.
//
// Any load failure returns the pipeline to idle, releases partially
// acquired resources, and surfaces a recoverable error. There is no retry
// and no fallback audio.
func (p *Pipeline) RequestPlayback(ctx context.Context, text string) error {
	p.mu.Lock()
	switch p.state {
	case StatePlaying:
		p.teardownLocked()
		p.setStateLocked(StateIdle)
		p.mu.Unlock()
		p.notify(StateIdle)
		return nil
	case StateLoading:
		p.mu.Unlock()
		return ErrBusy
	}

	p.epoch++
	myEpoch := p.epoch
	p.setStateLocked(StateLoading)
	p.mu.Unlock()
	p.notify(StateLoading)

	payload, err := p.speech(ctx, text)
	if err != nil {
		return p.abortLoad(myEpoch, fmt.Errorf("speech generation: %w", err))
	}

	data, err := codec.DecodeText(payload)
	if err != nil {
		return p.abortLoad(myEpoch, err)
	}

	samples, err := codec.InterpretSamples(data, p.channels)
	if err != nil {
		return p.abortLoad(myEpoch, err)
	}

	buf, err := NewBuffer(samples, p.channels, p.sampleRate)
	if err != nil {
		return p.abortLoad(myEpoch, err)
	}

	actx, err := p.newContext(p.sampleRate, p.channels)
	if err != nil {
		return p.abortLoad(myEpoch, fmt.Errorf("acquire playback context: %w", err))
	}

	handle, err := actx.NewHandle(buf)
	if err != nil {
		_ = actx.Close()
		return p.abortLoad(myEpoch, fmt.Errorf("bind playback source: %w", err))
	}

	p.mu.Lock()
	if p.epoch != myEpoch || p.state != StateLoading {
		// Stopped while loading: discard the late result instead of
		// starting playback.
		p.mu.Unlock()
		_ = handle.Close()
		_ = actx.Close()
		return nil
	}

	sess := &session{id: uuid.New(), actx: actx, handle: handle}
	p.session = sess
	handle.Play()
	p.setStateLocked(StatePlaying)
	p.mu.Unlock()
	p.notify(StatePlaying)

	log.Debug("playback started",
		"session", sess.id,
		"frames", buf.FrameCount(),
		"duration", buf.Duration())

	go p.watchCompletion(myEpoch, handle)
	return nil
}

// Stop tears down the current session, if any. Safe to call from any state,
// any number of times; stopping while loading discards the in-flight result
// when it arrives.
func (p *Pipeline) Stop() {
	p.mu.Lock()
	p.epoch++
	p.teardownLocked()
	changed := p.state != StateIdle
	p.setStateLocked(StateIdle)
	p.mu.Unlock()

	if changed {
		p.notify(StateIdle)
	}
}

// abortLoad returns the pipeline to idle after a failed load, unless a
// newer request or a stop already superseded this one.
func (p *Pipeline) abortLoad(epoch uint64, err error) error {
	p.mu.Lock()
	if p.epoch == epoch && p.state == StateLoading {
		p.setStateLocked(StateIdle)
		p.mu.Unlock()
		p.notify(StateIdle)
	} else {
		p.mu.Unlock()
	}

	log.Debug("playback load aborted", "error", err)
	return err
}

// watchCompletion polls the handle until the clip finishes, then performs
// the completion teardown. A session superseded by Stop or a new request is
// left alone.
func (p *Pipeline) watchCompletion(epoch uint64, handle Handle) {
	ticker := time.NewTicker(p.pollInterval)
	defer ticker.Stop()

	for range ticker.C {
		p.mu.Lock()
		if p.epoch != epoch || p.state != StatePlaying {
			p.mu.Unlock()
			return
		}
		p.mu.Unlock()

		if handle.IsPlaying() {
			continue
		}

		p.mu.Lock()
		if p.epoch != epoch || p.state != StatePlaying {
			p.mu.Unlock()
			return
		}
		p.teardownLocked()
		p.setStateLocked(StateIdle)
		p.mu.Unlock()
		p.notify(StateIdle)
		return
	}
}

// teardownLocked releases the session's handle and context. Must be called
// with the pipeline lock held. Tolerates a missing session and
// already-closed resources.
func (p *Pipeline) teardownLocked() {
	if p.session == nil {
		return
	}
	if p.session.handle != nil {
		_ = p.session.handle.Close()
	}
	if p.session.actx != nil {
		_ = p.session.actx.Close()
	}
	log.Debug("playback session released", "session", p.session.id)
	p.session = nil
}

func (p *Pipeline) setStateLocked(s State) {
	p.state = s
}

func (p *Pipeline) notify(s State) {
	if p.onState != nil {
		p.onState(s)
	}
}
