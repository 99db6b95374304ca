package dsp

import (
	"math"
	"testing"

	"aircheck/internal/testsupport"
)

func TestDecodeMonoAveragesChannels(t *testing.T) {
	// Two frames of stereo: (L=16384, R=0) then (L=-16384, R=-16384).
	pcm := []byte{0x00, 0x40, 0x00, 0x00, 0x00, 0xC0, 0x00, 0xC0}
	mono, err := DecodeMono(pcm, 2)
	if err != nil {
		t.Fatalf("DecodeMono: %v", err)
	}
	if len(mono) != 2 {
		t.Fatalf("frames = %d, want 2", len(mono))
	}
	if math.Abs(mono[0]-0.25) > 1e-3 {
		t.Fatalf("mono[0] = %f, want 0.25", mono[0])
	}
	if math.Abs(mono[1]-(-0.5)) > 1e-3 {
		t.Fatalf("mono[1] = %f, want -0.5", mono[1])
	}
}

func TestDecodeMonoRejectsBadInput(t *testing.T) {
	if _, err := DecodeMono([]byte{0x01}, 2); err == nil {
		t.Fatal("expected error for short buffer")
	}
	if _, err := DecodeMono([]byte{0, 0, 0, 0}, 0); err == nil {
		t.Fatal("expected error for zero channels")
	}
}

func TestExtractShapes(t *testing.T) {
	const sampleRate = 44100
	samples := testsupport.SineWave(440, sampleRate, sampleRate*3, 0.8)
	pcm := testsupport.PCM16LE(samples, 2)

	bundle, err := NewExtractor().Extract(pcm, sampleRate, 2)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if bundle.SampleRate != AnalysisRate {
		t.Fatalf("analysis rate = %d, want %d", bundle.SampleRate, AnalysisRate)
	}
	if len(bundle.MFCCMean) != 13 || len(bundle.MFCCVariance) != 13 {
		t.Fatalf("mfcc dims = %d/%d, want 13/13", len(bundle.MFCCMean), len(bundle.MFCCVariance))
	}
	if len(bundle.ChromaMean) != 12 {
		t.Fatalf("chroma dims = %d, want 12", len(bundle.ChromaMean))
	}
	if len(bundle.MelSpectrogram) == 0 || len(bundle.MelSpectrogram[0]) != 128 {
		t.Fatalf("mel spectrogram shape wrong: %d frames", len(bundle.MelSpectrogram))
	}

	// A 0.8-peak sine has RMS about 0.57 before normalization.
	if bundle.RMS < 0.4 || bundle.RMS > 0.7 {
		t.Fatalf("rms = %f, want around 0.57", bundle.RMS)
	}

	// A 440 Hz tone crosses zero about 880 times per second.
	wantZCR := 2 * 440.0 / AnalysisRate
	if math.Abs(bundle.ZeroCrossingRate-wantZCR) > wantZCR/2 {
		t.Fatalf("zcr = %f, want about %f", bundle.ZeroCrossingRate, wantZCR)
	}

	// A pure tone concentrates energy in spectral peaks.
	if bundle.HarmonicRatio < 0.5 {
		t.Fatalf("harmonic ratio = %f, want tonal", bundle.HarmonicRatio)
	}
}

func TestExtractRejectsTinyChunk(t *testing.T) {
	pcm := testsupport.PCM16LE(testsupport.Silence(64), 1)
	if _, err := NewExtractor().Extract(pcm, AnalysisRate, 1); err == nil {
		t.Fatal("expected error for chunk below one frame")
	}
}

func TestClassifySilenceFromAudio(t *testing.T) {
	pcm := testsupport.PCM16LE(testsupport.Silence(AnalysisRate*2), 1)
	bundle, err := NewExtractor().Extract(pcm, AnalysisRate, 1)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	class, confidence := Classify(bundle)
	if class != ClassSilence {
		t.Fatalf("class = %s, want silence", class)
	}
	if confidence < 0.9 {
		t.Fatalf("confidence = %f, want near 1", confidence)
	}
}

func TestClassifyRules(t *testing.T) {
	tests := []struct {
		name      string
		bundle    *FeatureBundle
		wantClass Class
	}{
		{
			name:      "nil bundle",
			bundle:    nil,
			wantClass: ClassUnknown,
		},
		{
			name:      "quiet chunk",
			bundle:    &FeatureBundle{RMS: 0.01},
			wantClass: ClassSilence,
		},
		{
			name: "rhythmic tonal content",
			bundle: &FeatureBundle{
				RMS:            0.4,
				RhythmStrength: 0.7,
				HarmonicRatio:  0.6,
				SpectralFlux:   0.3,
			},
			wantClass: ClassMusic,
		},
		{
			name: "cepstral variance dominates",
			bundle: &FeatureBundle{
				RMS:          0.3,
				MFCCVariance: []float64{4, 4, 4},
				ChromaMean:   []float64{0.5, 0.5, 0.5},
			},
			wantClass: ClassSpeech,
		},
		{
			name: "weak evidence",
			bundle: &FeatureBundle{
				RMS:          0.3,
				MFCCVariance: []float64{0.5},
				ChromaMean:   []float64{1},
			},
			wantClass: ClassUnknown,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			class, confidence := Classify(tc.bundle)
			if class != tc.wantClass {
				t.Fatalf("class = %s, want %s", class, tc.wantClass)
			}
			if confidence < 0 || confidence > 1 {
				t.Fatalf("confidence out of range: %f", confidence)
			}
		})
	}
}
