package audio

import (
	"math"
)

// PCM16ToInts decodes little-endian signed 16-bit PCM into one int per
// sample. A trailing odd byte is ignored.
func PCM16ToInts(pcm []byte) []int {
	out := make([]int, len(pcm)/2)
	for i := range out {
		out[i] = int(int16(uint16(pcm[i*2]) | uint16(pcm[i*2+1])<<8))
	}
	return out
}

// StereoToMono averages L+R per stereo frame (4 bytes) to produce mono
// output. Sums are done in int32 and clamped to the int16 range.
func StereoToMono(pcm []byte) []byte {
	frames := len(pcm) / 4
	out := make([]byte, frames*2)
	for i := range frames {
		l := int32(int16(uint16(pcm[i*4]) | uint16(pcm[i*4+1])<<8))
		r := int32(int16(uint16(pcm[i*4+2]) | uint16(pcm[i*4+3])<<8))
		avg := min(max((l+r)/2, math.MinInt16), math.MaxInt16)
		out[i*2] = byte(avg)
		out[i*2+1] = byte(avg >> 8)
	}
	return out
}

// LevelDB returns the RMS level of 16-bit PCM in dBFS. Silence and empty
// input return [MeteringFloor]; the result never drops below it.
func LevelDB(pcm []byte) float64 {
	n := len(pcm) / 2
	if n == 0 {
		return MeteringFloor
	}
	var sum float64
	for i := range n {
		s := float64(int16(uint16(pcm[i*2])|uint16(pcm[i*2+1])<<8)) / 32768
		sum += s * s
	}
	rms := math.Sqrt(sum / float64(n))
	if rms == 0 {
		return MeteringFloor
	}
	return max(20*math.Log10(rms), MeteringFloor)
}
