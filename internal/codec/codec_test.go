package codec

import (
	"encoding/base64"
	"encoding/binary"
	"errors"
	"testing"
)

func TestDecodeText_RoundTrip(t *testing.T) {
	original := []byte{0x00, 0x01, 0xFF, 0x7F, 0x80, 0x00}
	payload := base64.StdEncoding.EncodeToString(original)

	decoded, err := DecodeText(payload)
	if err != nil {
		t.Fatalf("DecodeText failed: %v", err)
	}

	if len(decoded) != len(original) {
		t.Fatalf("length mismatch: got %d, want %d", len(decoded), len(original))
	}
	for i := range original {
		if decoded[i] != original[i] {
			t.Errorf("byte %d mismatch: got %#x, want %#x", i, decoded[i], original[i])
		}
	}
}

func TestDecodeText_Malformed(t *testing.T) {
	cases := []struct {
		name    string
		payload string
	}{
		{"illegal characters", "!!!not-base64!!!"},
		{"broken padding", "QUJD="},
		{"embedded whitespace", "QU JD"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := DecodeText(tc.payload)
			if !errors.Is(err, ErrMalformedPayload) {
				t.Errorf("expected ErrMalformedPayload, got %v", err)
			}
		})
	}
}

func TestDecodeText_Empty(t *testing.T) {
	decoded, err := DecodeText("")
	if err != nil {
		t.Fatalf("empty payload should decode: %v", err)
	}
	if len(decoded) != 0 {
		t.Errorf("expected zero bytes, got %d", len(decoded))
	}
}

func TestInterpretSamples_Mono(t *testing.T) {
	// Little-endian int16 values: 0, 1, -1, 32767, -32768
	want := []int16{0, 1, -1, 32767, -32768}
	data := make([]byte, len(want)*2)
	for i, s := range want {
		binary.LittleEndian.PutUint16(data[i*2:], uint16(s))
	}

	samples, err := InterpretSamples(data, 1)
	if err != nil {
		t.Fatalf("InterpretSamples failed: %v", err)
	}

	if len(samples) != len(data)/2 {
		t.Fatalf("sample count mismatch: got %d, want %d", len(samples), len(data)/2)
	}
	for i := range want {
		if samples[i] != want[i] {
			t.Errorf("sample %d mismatch: got %d, want %d", i, samples[i], want[i])
		}
	}
}

func TestInterpretSamples_EncodedRoundTrip(t *testing.T) {
	// Full path the playback pipeline takes: base64 text to samples.
	raw := []byte{0x34, 0x12, 0xCC, 0xED, 0xFF, 0x7F, 0x00, 0x80}
	payload := base64.StdEncoding.EncodeToString(raw)

	decoded, err := DecodeText(payload)
	if err != nil {
		t.Fatalf("DecodeText failed: %v", err)
	}

	samples, err := InterpretSamples(decoded, 1)
	if err != nil {
		t.Fatalf("InterpretSamples failed: %v", err)
	}

	if len(samples) != len(decoded)/2 {
		t.Errorf("sample count: got %d, want %d", len(samples), len(decoded)/2)
	}
	for i, s := range samples {
		if s < -32768 || s > 32767 {
			t.Errorf("sample %d out of int16 range: %d", i, s)
		}
	}
}

func TestInterpretSamples_Alignment(t *testing.T) {
	cases := []struct {
		name     string
		length   int
		channels int
		wantErr  bool
	}{
		{"odd length mono", 3, 1, true},
		{"even length mono", 4, 1, false},
		{"stereo not divisible by 4", 6, 2, true},
		{"stereo odd length", 5, 2, true},
		{"stereo aligned", 8, 2, false},
		{"empty buffer", 0, 1, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := InterpretSamples(make([]byte, tc.length), tc.channels)
			if tc.wantErr {
				if !errors.Is(err, ErrAlignment) {
					t.Errorf("expected ErrAlignment, got %v", err)
				}
			} else if err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestInterpretSamples_InvalidChannels(t *testing.T) {
	for _, channels := range []int{0, -1} {
		_, err := InterpretSamples(make([]byte, 4), channels)
		if !errors.Is(err, ErrInvalidChannels) {
			t.Errorf("channels=%d: expected ErrInvalidChannels, got %v", channels, err)
		}
	}
}
