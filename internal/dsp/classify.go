package dsp

// Class is the coarse content type of one chunk.
type Class string

const (
	ClassMusic   Class = "music"
	ClassSpeech  Class = "speech"
	ClassSilence Class = "silence"
	ClassUnknown Class = "unknown"
)

const silenceRMS = 0.05

// Classify decides what a bundle contains. A nil bundle (extraction failed)
// is Unknown with zero confidence. Silence wins over everything; the music
// score blends rhythm, tonality, and spectral motion; speech is the fallback
// when the cepstral envelope varies much more than the pitch content.
func Classify(bundle *FeatureBundle) (Class, float64) {
	if bundle == nil {
		return ClassUnknown, 0
	}
	if bundle.RMS < silenceRMS {
		confidence := 1 - bundle.RMS/silenceRMS
		return ClassSilence, confidence
	}

	musicScore := 0.5*bundle.RhythmStrength + 0.3*bundle.HarmonicRatio + 0.2*bundle.SpectralFlux
	if musicScore >= 0.5 {
		if musicScore > 1 {
			musicScore = 1
		}
		return ClassMusic, musicScore
	}

	mfccVar := meanOf(bundle.MFCCVariance)
	chromaEnergy := meanOf(bundle.ChromaMean)
	if chromaEnergy > 0 && mfccVar >= 2*chromaEnergy {
		confidence := mfccVar / (2 * chromaEnergy)
		if confidence > 1 {
			confidence = 1
		}
		return ClassSpeech, confidence
	}
	return ClassUnknown, musicScore
}

func meanOf(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}
