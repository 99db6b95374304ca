package dsp

import (
	"errors"
	"math"

	"gonum.org/v1/gonum/dsp/fourier"
)

const (
	fftSize    = 2048
	hopSize    = 512
	melBands   = 128
	mfccCount  = 13
	chromaBins = 12
)

// FeatureBundle carries everything classification and fingerprinting need
// from one chunk of audio.
type FeatureBundle struct {
	SampleRate int
	RMS        float64

	MelSpectrogram [][]float64

	MFCCMean     []float64
	MFCCVariance []float64
	ChromaMean   []float64

	SpectralCentroid float64
	SpectralRolloff  float64
	ZeroCrossingRate float64

	RhythmStrength float64
	HarmonicRatio  float64
	SpectralFlux   float64
}

// Extractor computes FeatureBundles. It is reusable but not safe for
// concurrent use; each station worker owns one.
type Extractor struct {
	fft     *fourier.FFT
	window  []float64
	mel     [][]float64
	binFreq []float64
}

// NewExtractor builds the FFT plan, Hann window, and mel filterbank once.
func NewExtractor() *Extractor {
	binCount := fftSize/2 + 1
	binFreq := make([]float64, binCount)
	for i := range binFreq {
		binFreq[i] = float64(i) * AnalysisRate / fftSize
	}
	return &Extractor{
		fft:     fourier.NewFFT(fftSize),
		window:  hannWindow(fftSize),
		mel:     melFilterbank(melBands, binCount, AnalysisRate),
		binFreq: binFreq,
	}
}

// Extract downmixes interleaved s16le PCM, resamples it to the analysis rate,
// and computes the full feature set. The chunk must cover at least one FFT
// frame at the analysis rate.
func (e *Extractor) Extract(pcm []byte, sampleRate, channels int) (*FeatureBundle, error) {
	mono, err := DecodeMono(pcm, channels)
	if err != nil {
		return nil, err
	}
	samples, err := Resample(mono, sampleRate, AnalysisRate)
	if err != nil {
		return nil, err
	}
	if len(samples) < fftSize {
		return nil, errors.New("chunk shorter than one analysis frame")
	}

	// RMS is measured before normalization so true silence stays quiet.
	level := rms(samples)
	normalizePeak(samples)

	bundle := &FeatureBundle{
		SampleRate:       AnalysisRate,
		RMS:              level,
		ZeroCrossingRate: zeroCrossingRate(samples),
	}

	frames := 1 + (len(samples)-fftSize)/hopSize
	spectra := make([][]float64, frames)
	bundle.MelSpectrogram = make([][]float64, frames)
	onset := make([]float64, frames)

	mfccFrames := make([][]float64, frames)
	chromaSum := make([]float64, chromaBins)
	var centroidSum, rolloffSum, harmonicSum, fluxSum float64

	frameBuf := make([]float64, fftSize)
	for f := 0; f < frames; f++ {
		offset := f * hopSize
		for i := 0; i < fftSize; i++ {
			frameBuf[i] = samples[offset+i] * e.window[i]
		}
		coeffs := e.fft.Coefficients(nil, frameBuf)
		magnitude := make([]float64, len(coeffs))
		for i, c := range coeffs {
			magnitude[i] = cmplxAbs(c)
		}
		spectra[f] = magnitude

		melFrame := e.applyMel(magnitude)
		bundle.MelSpectrogram[f] = melFrame
		mfccFrames[f] = mfcc(melFrame, mfccCount)

		e.accumulateChroma(magnitude, chromaSum)
		centroidSum += e.spectralCentroid(magnitude)
		rolloffSum += e.spectralRolloff(magnitude, 0.85)
		harmonicSum += harmonicRatio(magnitude)

		if f > 0 {
			flux := spectralFlux(spectra[f-1], magnitude)
			fluxSum += flux
			onset[f] = flux
		}
	}

	bundle.MFCCMean, bundle.MFCCVariance = meanVariance(mfccFrames, mfccCount)
	bundle.ChromaMean = normalizeVector(chromaSum)
	bundle.SpectralCentroid = centroidSum / float64(frames)
	bundle.SpectralRolloff = rolloffSum / float64(frames)
	bundle.HarmonicRatio = harmonicSum / float64(frames)
	if frames > 1 {
		bundle.SpectralFlux = fluxSum / float64(frames-1)
	}
	bundle.RhythmStrength = rhythmStrength(onset, AnalysisRate/hopSize)
	return bundle, nil
}

func (e *Extractor) applyMel(magnitude []float64) []float64 {
	out := make([]float64, melBands)
	for band, filter := range e.mel {
		var sum float64
		for bin, weight := range filter {
			if weight > 0 {
				sum += weight * magnitude[bin] * magnitude[bin]
			}
		}
		out[band] = sum
	}
	return out
}

func (e *Extractor) accumulateChroma(magnitude []float64, chroma []float64) {
	for bin := 1; bin < len(magnitude); bin++ {
		freq := e.binFreq[bin]
		if freq < 27.5 {
			continue
		}
		// MIDI note number, folded to a pitch class.
		note := 12*math.Log2(freq/440.0) + 69
		class := int(math.Round(note)) % chromaBins
		if class < 0 {
			class += chromaBins
		}
		chroma[class] += magnitude[bin] * magnitude[bin]
	}
}

func (e *Extractor) spectralCentroid(magnitude []float64) float64 {
	var weighted, total float64
	for bin, m := range magnitude {
		weighted += e.binFreq[bin] * m
		total += m
	}
	if total < 1e-12 {
		return 0
	}
	return weighted / total
}

func (e *Extractor) spectralRolloff(magnitude []float64, fraction float64) float64 {
	var total float64
	for _, m := range magnitude {
		total += m * m
	}
	if total < 1e-12 {
		return 0
	}
	target := fraction * total
	var running float64
	for bin, m := range magnitude {
		running += m * m
		if running >= target {
			return e.binFreq[bin]
		}
	}
	return e.binFreq[len(magnitude)-1]
}

// harmonicRatio measures how much spectral energy sits in local peaks. Tonal
// material concentrates energy in a few bins; noise spreads it evenly.
func harmonicRatio(magnitude []float64) float64 {
	var peak, total float64
	for bin := 1; bin < len(magnitude)-1; bin++ {
		energy := magnitude[bin] * magnitude[bin]
		total += energy
		if magnitude[bin] > magnitude[bin-1] && magnitude[bin] >= magnitude[bin+1] {
			peak += energy
		}
	}
	if total < 1e-12 {
		return 0
	}
	return peak / total
}

// spectralFlux is the positive spectral change between frames, normalized to
// [0, 1] by the current frame's energy.
func spectralFlux(prev, cur []float64) float64 {
	var rise, total float64
	for bin := range cur {
		diff := cur[bin] - prev[bin]
		if diff > 0 {
			rise += diff
		}
		total += cur[bin]
	}
	if total < 1e-12 {
		return 0
	}
	flux := rise / total
	if flux > 1 {
		flux = 1
	}
	return flux
}

// rhythmStrength autocorrelates the onset envelope over lags covering
// 60 to 180 BPM and reports the strongest periodicity relative to lag zero.
func rhythmStrength(onset []float64, frameRate int) float64 {
	if len(onset) < 4 || frameRate <= 0 {
		return 0
	}
	mean := 0.0
	for _, v := range onset {
		mean += v
	}
	mean /= float64(len(onset))
	centered := make([]float64, len(onset))
	var zero float64
	for i, v := range onset {
		centered[i] = v - mean
		zero += centered[i] * centered[i]
	}
	if zero < 1e-12 {
		return 0
	}

	minLag := frameRate * 60 / 180
	maxLag := frameRate * 60 / 60
	if maxLag >= len(onset) {
		maxLag = len(onset) - 1
	}
	if minLag < 1 {
		minLag = 1
	}
	var best float64
	for lag := minLag; lag <= maxLag; lag++ {
		var sum float64
		for i := lag; i < len(centered); i++ {
			sum += centered[i] * centered[i-lag]
		}
		if corr := sum / zero; corr > best {
			best = corr
		}
	}
	if best < 0 {
		return 0
	}
	return best
}

func zeroCrossingRate(samples []float64) float64 {
	if len(samples) < 2 {
		return 0
	}
	crossings := 0
	for i := 1; i < len(samples); i++ {
		if (samples[i-1] >= 0) != (samples[i] >= 0) {
			crossings++
		}
	}
	return float64(crossings) / float64(len(samples)-1)
}

func meanVariance(frames [][]float64, width int) (mean, variance []float64) {
	mean = make([]float64, width)
	variance = make([]float64, width)
	if len(frames) == 0 {
		return mean, variance
	}
	for _, frame := range frames {
		for i := 0; i < width; i++ {
			mean[i] += frame[i]
		}
	}
	n := float64(len(frames))
	for i := range mean {
		mean[i] /= n
	}
	for _, frame := range frames {
		for i := 0; i < width; i++ {
			diff := frame[i] - mean[i]
			variance[i] += diff * diff
		}
	}
	for i := range variance {
		variance[i] /= n
	}
	return mean, variance
}

func normalizeVector(v []float64) []float64 {
	var total float64
	for _, x := range v {
		total += x
	}
	out := make([]float64, len(v))
	if total < 1e-12 {
		return out
	}
	for i, x := range v {
		out[i] = x / total
	}
	return out
}

func hannWindow(size int) []float64 {
	window := make([]float64, size)
	for i := range window {
		window[i] = 0.5 * (1 - math.Cos(2*math.Pi*float64(i)/float64(size-1)))
	}
	return window
}

func cmplxAbs(c complex128) float64 {
	return math.Hypot(real(c), imag(c))
}
