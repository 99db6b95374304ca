package testsupport

import (
	"math"
	"math/rand"
)

// SineWave renders a mono tone at the given frequency. Amplitude is the peak
// value in [0, 1].
func SineWave(freq float64, sampleRate, samples int, amplitude float64) []float64 {
	out := make([]float64, samples)
	for i := range out {
		out[i] = amplitude * math.Sin(2*math.Pi*freq*float64(i)/float64(sampleRate))
	}
	return out
}

// Chord mixes several tones at equal weight, normalized to the given peak.
func Chord(freqs []float64, sampleRate, samples int, amplitude float64) []float64 {
	out := make([]float64, samples)
	if len(freqs) == 0 {
		return out
	}
	scale := amplitude / float64(len(freqs))
	for _, freq := range freqs {
		for i := range out {
			out[i] += scale * math.Sin(2*math.Pi*freq*float64(i)/float64(sampleRate))
		}
	}
	return out
}

// Silence returns a zeroed mono buffer.
func Silence(samples int) []float64 {
	return make([]float64, samples)
}

// Noise returns deterministic white noise at the given peak amplitude.
func Noise(seed int64, samples int, amplitude float64) []float64 {
	rng := rand.New(rand.NewSource(seed))
	out := make([]float64, samples)
	for i := range out {
		out[i] = amplitude * (2*rng.Float64() - 1)
	}
	return out
}

// PCM16LE encodes mono float samples as interleaved 16-bit little-endian PCM
// with the requested channel count.
func PCM16LE(samples []float64, channels int) []byte {
	if channels < 1 {
		channels = 1
	}
	out := make([]byte, 0, len(samples)*2*channels)
	for _, sample := range samples {
		if sample > 1 {
			sample = 1
		} else if sample < -1 {
			sample = -1
		}
		value := int16(sample * math.MaxInt16)
		for c := 0; c < channels; c++ {
			out = append(out, byte(value), byte(value>>8))
		}
	}
	return out
}
