// Package audio owns the playback side of the speech pipeline: the decoded
// sample buffer, the playback context abstraction, and the state machine
// that drives one playback session at a time.
package audio

import (
	"encoding/binary"
	"fmt"
	"time"

	"github.com/daybreakapp/daybreak/internal/codec"
)

// Default audio format for generated speech. These are configuration points
// carried explicitly through buffer construction, not baked-in constants.
const (
	// DefaultSampleRate is the sample rate the generator produces, in Hz.
	DefaultSampleRate = 24000
	// DefaultChannels is the generator's channel count (mono).
	DefaultChannels = 1
)

// Buffer holds decoded audio as independent per-channel sample arrays.
// Samples are normalized floats in [-1.0, 1.0]. A Buffer is owned by exactly
// one playback session and is discarded when the session tears down.
type Buffer struct {
	SampleRate int
	Channels   [][]float32
}

// NewBuffer de-interleaves raw 16-bit samples into a normalized per-channel
// buffer. Each sample is divided by 32768.0. The sample count must split
// evenly across channels.
func NewBuffer(samples []int16, channels, sampleRate int) (*Buffer, error) {
	if channels <= 0 {
		return nil, fmt.Errorf("%w: got %d", codec.ErrInvalidChannels, channels)
	}
	if sampleRate <= 0 {
		return nil, fmt.Errorf("invalid sample rate %d", sampleRate)
	}
	if len(samples)%channels != 0 {
		return nil, fmt.Errorf("%w: %d samples across %d channel(s)",
			codec.ErrAlignment, len(samples), channels)
	}

	frames := len(samples) / channels
	buf := &Buffer{
		SampleRate: sampleRate,
		Channels:   make([][]float32, channels),
	}
	for ch := 0; ch < channels; ch++ {
		buf.Channels[ch] = make([]float32, frames)
		for f := 0; f < frames; f++ {
			buf.Channels[ch][f] = float32(samples[f*channels+ch]) / 32768.0
		}
	}
	return buf, nil
}

// FrameCount returns the number of frames per channel.
func (b *Buffer) FrameCount() int {
	if len(b.Channels) == 0 {
		return 0
	}
	return len(b.Channels[0])
}

// ChannelCount returns the number of channels.
func (b *Buffer) ChannelCount() int {
	return len(b.Channels)
}

// Duration returns the playback duration of the buffer.
func (b *Buffer) Duration() time.Duration {
	if b.SampleRate == 0 {
		return 0
	}
	return time.Duration(b.FrameCount()) * time.Second / time.Duration(b.SampleRate)
}

// PCM re-interleaves the buffer into little-endian signed 16-bit bytes for
// handing to an audio device. Values are clamped to the int16 range.
func (b *Buffer) PCM() []byte {
	frames := b.FrameCount()
	channels := b.ChannelCount()
	out := make([]byte, frames*channels*codec.BytesPerSample)

	for f := 0; f < frames; f++ {
		for ch := 0; ch < channels; ch++ {
			v := b.Channels[ch][f] * 32768.0
			if v > 32767 {
				v = 32767
			} else if v < -32768 {
				v = -32768
			}
			offset := (f*channels + ch) * codec.BytesPerSample
			binary.LittleEndian.PutUint16(out[offset:], uint16(int16(v)))
		}
	}
	return out
}
