package dsp

import (
	"errors"
	"fmt"
	"math"

	resampling "github.com/tphakala/go-audio-resampling"
)

// AnalysisRate is the internal sample rate all features are computed at.
// Downsampling first keeps FFT sizes small without losing the bands that
// matter for timbre and pitch class.
const AnalysisRate = 11025

// DecodeMono converts interleaved s16le PCM into mono float64 samples in
// [-1, 1], averaging channels.
func DecodeMono(pcm []byte, channels int) ([]float64, error) {
	if channels < 1 {
		return nil, errors.New("channel count must be positive")
	}
	frameBytes := 2 * channels
	if len(pcm) < frameBytes {
		return nil, errors.New("pcm buffer too short")
	}
	frames := len(pcm) / frameBytes
	out := make([]float64, frames)
	for i := 0; i < frames; i++ {
		var sum float64
		base := i * frameBytes
		for ch := 0; ch < channels; ch++ {
			sample := int16(pcm[base+ch*2]) | int16(pcm[base+ch*2+1])<<8
			sum += float64(sample) / 32768.0
		}
		out[i] = sum / float64(channels)
	}
	return out, nil
}

// Resample converts mono samples from srcRate to dstRate. Equal rates pass
// through untouched.
func Resample(samples []float64, srcRate, dstRate int) ([]float64, error) {
	if srcRate == dstRate {
		return samples, nil
	}
	if srcRate <= 0 || dstRate <= 0 {
		return nil, fmt.Errorf("invalid rates %d -> %d", srcRate, dstRate)
	}
	resampler, err := resampling.New(&resampling.Config{
		InputRate:  float64(srcRate),
		OutputRate: float64(dstRate),
		Channels:   1,
		Quality:    resampling.QualitySpec{Preset: resampling.QualityHigh},
	})
	if err != nil {
		return nil, fmt.Errorf("create resampler: %w", err)
	}
	out, err := resampler.Process(samples)
	if err != nil {
		return nil, fmt.Errorf("resample %d -> %d: %w", srcRate, dstRate, err)
	}
	return out, nil
}

// normalizePeak scales samples so the largest magnitude is 1. Silence stays
// untouched so its RMS remains meaningful.
func normalizePeak(samples []float64) float64 {
	var peak float64
	for _, s := range samples {
		if s > peak {
			peak = s
		} else if -s > peak {
			peak = -s
		}
	}
	if peak < 1e-9 {
		return 0
	}
	inv := 1 / peak
	for i := range samples {
		samples[i] *= inv
	}
	return peak
}

func rms(samples []float64) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range samples {
		sum += s * s
	}
	return math.Sqrt(sum / float64(len(samples)))
}
