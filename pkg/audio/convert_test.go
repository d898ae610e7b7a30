package audio_test

import (
	"encoding/binary"
	"math"
	"testing"
	"time"

	"github.com/MrWong99/voicememo/pkg/audio"
)

// samplesToBytes converts a slice of int16 samples to little-endian byte representation.
func samplesToBytes(samples []int16) []byte {
	buf := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(buf[i*2:], uint16(s))
	}
	return buf
}

func TestPCM16ToInts(t *testing.T) {
	pcm := append(samplesToBytes([]int16{0, 1, -1, 32767, -32768}), 0x7f) // odd trailing byte
	got := audio.PCM16ToInts(pcm)
	want := []int{0, 1, -1, 32767, -32768}
	if len(got) != len(want) {
		t.Fatalf("length mismatch: got %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("sample %d: got %d, want %d", i, got[i], want[i])
		}
	}
}

func TestStereoToMono(t *testing.T) {
	stereo := samplesToBytes([]int16{100, 200, -100, -200, 32767, 32767})
	got := audio.PCM16ToInts(audio.StereoToMono(stereo))
	want := []int{150, -150, 32767}
	if len(got) != len(want) {
		t.Fatalf("length mismatch: got %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("frame %d: got %d, want %d", i, got[i], want[i])
		}
	}
}

func TestLevelDB(t *testing.T) {
	full := make([]int16, 64)
	half := make([]int16, 64)
	for i := range full {
		sign := int16(1)
		if i%2 == 1 {
			sign = -1
		}
		full[i] = sign * 32767
		half[i] = sign * 16384
	}

	tests := []struct {
		name string
		pcm  []byte
		want float64
	}{
		{"empty", nil, audio.MeteringFloor},
		{"silence", samplesToBytes(make([]int16, 32)), audio.MeteringFloor},
		{"full scale", samplesToBytes(full), 0},
		{"half scale", samplesToBytes(half), -6.02},
		{"one lsb", samplesToBytes([]int16{1, -1}), -90.31},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := audio.LevelDB(tt.pcm)
			if math.Abs(got-tt.want) > 0.05 {
				t.Errorf("LevelDB = %.2f, want %.2f", got, tt.want)
			}
		})
	}
}

func TestFormat(t *testing.T) {
	tests := []struct {
		f    audio.Format
		str  string
		rate int
	}{
		{audio.Format{SampleRate: 16000, Channels: 1}, "16000Hz mono", 32000},
		{audio.Format{SampleRate: 48000, Channels: 2}, "48000Hz stereo", 192000},
		{audio.Format{SampleRate: 8000, Channels: 4}, "8000Hz 4ch", 64000},
	}
	for _, tt := range tests {
		if got := tt.f.String(); got != tt.str {
			t.Errorf("String() = %q, want %q", got, tt.str)
		}
		if got := tt.f.BytesPerSecond(); got != tt.rate {
			t.Errorf("%s: BytesPerSecond() = %d, want %d", tt.str, got, tt.rate)
		}
	}
}

func TestAudioFrame_Duration(t *testing.T) {
	f := audio.AudioFrame{Data: make([]byte, 3200), SampleRate: 16000, Channels: 1}
	if got := f.Duration(); got != 100*time.Millisecond {
		t.Errorf("Duration() = %v, want 100ms", got)
	}
	if got := (audio.AudioFrame{Data: []byte{1, 2}}).Duration(); got != 0 {
		t.Errorf("Duration() without format = %v, want 0", got)
	}
}
