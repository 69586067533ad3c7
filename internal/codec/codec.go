// Package codec converts the generator's text-encoded audio payloads into
// raw interleaved PCM samples.
package codec

import (
	"encoding/base64"
	"encoding/binary"
	"errors"
	"fmt"
)

// Common errors for payload decoding.
var (
	// ErrMalformedPayload is returned when a text payload contains characters
	// outside the encoding alphabet or has broken padding.
	ErrMalformedPayload = errors.New("malformed text payload")

	// ErrAlignment is returned when a byte buffer cannot be split evenly into
	// 16-bit samples across the requested channel count.
	ErrAlignment = errors.New("byte length not aligned to sample frames")

	// ErrInvalidChannels is returned for a non-positive channel count.
	ErrInvalidChannels = errors.New("channel count must be positive")
)

// BytesPerSample is the width of one PCM sample on the wire.
const BytesPerSample = 2

// DecodeText reverses the generator's base64 encoding into raw bytes.
// Every legal input yields a deterministic byte sequence; illegal alphabet
// characters fail with ErrMalformedPayload.
func DecodeText(payload string) ([]byte, error) {
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	return data, nil
}

// InterpretSamples reinterprets data as interleaved little-endian signed
// 16-bit samples. The buffer must hold whole frames: len(data) must be a
// multiple of 2*channels, otherwise InterpretSamples fails with ErrAlignment
// and the caller must truncate or reject the buffer.
func InterpretSamples(data []byte, channels int) ([]int16, error) {
	if channels <= 0 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidChannels, channels)
	}

	frameSize := BytesPerSample * channels
	if len(data)%frameSize != 0 {
		return nil, fmt.Errorf("%w: %d bytes with %d channel(s) (frame size %d)",
			ErrAlignment, len(data), channels, frameSize)
	}

	samples := make([]int16, len(data)/BytesPerSample)
	for i := range samples {
		samples[i] = int16(binary.LittleEndian.Uint16(data[i*BytesPerSample:]))
	}
	return samples, nil
}
