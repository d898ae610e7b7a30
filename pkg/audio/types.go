package audio

import (
	"fmt"
	"time"
)

// Format describes the sample rate and channel count of a PCM stream.
type Format struct {
	SampleRate int
	Channels   int
}

// String returns e.g. "16000Hz mono".
func (f Format) String() string {
	ch := "mono"
	switch {
	case f.Channels == 2:
		ch = "stereo"
	case f.Channels > 2:
		ch = fmt.Sprintf("%dch", f.Channels)
	}
	return fmt.Sprintf("%dHz %s", f.SampleRate, ch)
}

// BytesPerSecond is the data rate of 16-bit PCM in this format.
func (f Format) BytesPerSecond() int {
	return f.SampleRate * f.Channels * 2
}

// AudioFrame is one chunk of captured audio.
type AudioFrame struct {
	// Data is little-endian signed 16-bit PCM, channels interleaved.
	Data []byte

	// SampleRate in Hz (e.g. 16000 for speech capture).
	SampleRate int

	// Channels: 1 for mono, 2 for stereo.
	Channels int

	// Timestamp marks where this frame starts, relative to the start of
	// the recording.
	Timestamp time.Duration
}

// Duration is the playback length of the frame.
func (f AudioFrame) Duration() time.Duration {
	bps := Format{SampleRate: f.SampleRate, Channels: f.Channels}.BytesPerSecond()
	if bps <= 0 {
		return 0
	}
	return time.Duration(len(f.Data)) * time.Second / time.Duration(bps)
}
