package audio

import (
	"testing"
	"time"
)

func TestNewBuffer_Mono(t *testing.T) {
	samples := []int16{0, 16384, -16384, 32767, -32768}

	buf, err := NewBuffer(samples, 1, DefaultSampleRate)
	if err != nil {
		t.Fatalf("NewBuffer failed: %v", err)
	}

	if buf.ChannelCount() != 1 {
		t.Fatalf("channel count: got %d, want 1", buf.ChannelCount())
	}
	if buf.FrameCount() != len(samples) {
		t.Fatalf("frame count: got %d, want %d", buf.FrameCount(), len(samples))
	}

	for i, s := range samples {
		want := float32(s) / 32768.0
		got := buf.Channels[0][i]
		if got != want {
			t.Errorf("frame %d: got %f, want %f", i, got, want)
		}
		if got < -1.0 || got > 1.0 {
			t.Errorf("frame %d out of [-1, 1]: %f", i, got)
		}
	}
}

func TestNewBuffer_StereoDeinterleave(t *testing.T) {
	// Interleaved L R L R
	samples := []int16{100, 200, 300, 400}

	buf, err := NewBuffer(samples, 2, DefaultSampleRate)
	if err != nil {
		t.Fatalf("NewBuffer failed: %v", err)
	}

	if buf.FrameCount() != 2 {
		t.Fatalf("frame count: got %d, want 2", buf.FrameCount())
	}
	if buf.Channels[0][0] != 100.0/32768.0 || buf.Channels[0][1] != 300.0/32768.0 {
		t.Error("left channel not de-interleaved correctly")
	}
	if buf.Channels[1][0] != 200.0/32768.0 || buf.Channels[1][1] != 400.0/32768.0 {
		t.Error("right channel not de-interleaved correctly")
	}
}

func TestNewBuffer_UnevenSamples(t *testing.T) {
	if _, err := NewBuffer([]int16{1, 2, 3}, 2, DefaultSampleRate); err == nil {
		t.Error("expected error for sample count not divisible by channels")
	}
}

func TestBuffer_Duration(t *testing.T) {
	samples := make([]int16, DefaultSampleRate) // exactly one second of mono
	buf, err := NewBuffer(samples, 1, DefaultSampleRate)
	if err != nil {
		t.Fatalf("NewBuffer failed: %v", err)
	}
	if buf.Duration() != time.Second {
		t.Errorf("duration: got %v, want 1s", buf.Duration())
	}
}

func TestBuffer_PCMRoundTrip(t *testing.T) {
	samples := []int16{0, 1, -1, 12345, -12345, 32767, -32768, 7}

	buf, err := NewBuffer(samples, 1, DefaultSampleRate)
	if err != nil {
		t.Fatalf("NewBuffer failed: %v", err)
	}

	pcm := buf.PCM()
	if len(pcm) != len(samples)*2 {
		t.Fatalf("PCM length: got %d, want %d", len(pcm), len(samples)*2)
	}

	back, err := interpret(pcm)
	if err != nil {
		t.Fatalf("reinterpret failed: %v", err)
	}
	for i := range samples {
		if back[i] != samples[i] {
			t.Errorf("sample %d: got %d, want %d", i, back[i], samples[i])
		}
	}
}

func interpret(data []byte) ([]int16, error) {
	out := make([]int16, len(data)/2)
	for i := range out {
		out[i] = int16(uint16(data[i*2]) | uint16(data[i*2+1])<<8)
	}
	return out, nil
}
