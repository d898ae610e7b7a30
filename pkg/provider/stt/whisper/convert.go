package whisper

import (
	"github.com/go-audio/audio"
)

// whisperSampleRate is the only input rate whisper.cpp accepts.
const whisperSampleRate = 16000

// intBufferToFloat32Mono down-mixes a decoded PCM buffer to mono float32
// samples normalised to [-1.0, 1.0] by averaging all channels per frame.
// The bit depth is taken from SourceBitDepth (16 when unset).
func intBufferToFloat32Mono(buf *audio.IntBuffer) []float32 {
	if buf == nil || buf.Format == nil || len(buf.Data) == 0 {
		return nil
	}
	channels := buf.Format.NumChannels
	if channels <= 0 {
		channels = 1
	}
	depth := buf.SourceBitDepth
	if depth <= 0 {
		depth = 16
	}
	scale := float32(int64(1) << (depth - 1))

	frames := len(buf.Data) / channels
	mono := make([]float32, frames)
	for i := range frames {
		var sum float32
		for ch := range channels {
			sum += float32(buf.Data[i*channels+ch]) / scale
		}
		mono[i] = sum / float32(channels)
	}
	return mono
}

// resampleLinear converts mono samples from rate `from` to rate `to` using
// linear interpolation. It returns the input unchanged when the rates match
// or either rate is invalid.
func resampleLinear(samples []float32, from, to int) []float32 {
	if from == to || from <= 0 || to <= 0 || len(samples) == 0 {
		return samples
	}
	n := int(int64(len(samples)) * int64(to) / int64(from))
	if n == 0 {
		return nil
	}
	out := make([]float32, n)
	step := float64(from) / float64(to)
	last := len(samples) - 1
	for i := range n {
		pos := float64(i) * step
		idx := int(pos)
		if idx >= last {
			out[i] = samples[last]
			continue
		}
		frac := float32(pos - float64(idx))
		out[i] = samples[idx]*(1-frac) + samples[idx+1]*frac
	}
	return out
}
