package fingerprint

import (
	"context"
	"math"
	"testing"

	"aircheck/internal/dsp"
)

func sampleBundle() *dsp.FeatureBundle {
	return &dsp.FeatureBundle{
		MFCCMean:         []float64{1.2345678, -0.5, 3.14159},
		ChromaMean:       []float64{0.1, 0.2, 0.7},
		SpectralCentroid: 1234.56789,
		RhythmStrength:   0.4321,
	}
}

func TestHashStableUnderTinyNoise(t *testing.T) {
	a := CanonicalFeatures(sampleBundle())

	noisy := sampleBundle()
	noisy.MFCCMean[0] += 1e-6
	noisy.SpectralCentroid += 1e-5
	b := CanonicalFeatures(noisy)

	hashA, payloadA, err := a.Hash()
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	hashB, _, err := b.Hash()
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	if hashA != hashB {
		t.Fatalf("hashes differ under sub-rounding noise: %s vs %s", hashA, hashB)
	}
	if len(hashA) != 32 {
		t.Fatalf("hash length = %d, want 32 hex chars", len(hashA))
	}

	decoded, err := DecodeFeatures(payloadA)
	if err != nil {
		t.Fatalf("DecodeFeatures: %v", err)
	}
	if decoded.Centroid != 1234.568 {
		t.Fatalf("payload centroid = %f, want rounded 1234.568", decoded.Centroid)
	}
}

func TestHashChangesWithContent(t *testing.T) {
	a := CanonicalFeatures(sampleBundle())
	other := sampleBundle()
	other.MFCCMean[1] = 9.99
	b := CanonicalFeatures(other)

	hashA, _, _ := a.Hash()
	hashB, _, _ := b.Hash()
	if hashA == hashB {
		t.Fatal("different features must not collide on rounding alone")
	}
}

func TestFeatureSimilarity(t *testing.T) {
	a := CanonicalFeatures(sampleBundle())
	if got := FeatureSimilarity(a, a); got != 1 {
		t.Fatalf("self similarity = %f, want 1", got)
	}

	far := Features{
		MFCC:     []float64{-1.2345678, 0.5, -3.14159},
		Chroma:   []float64{0.7, 0.1, 0.2},
		Centroid: 50,
		Rhythm:   0.9,
	}
	if got := FeatureSimilarity(a, far); got >= FeatureThreshold {
		t.Fatalf("dissimilar features scored %f, want < %f", got, FeatureThreshold)
	}

	if got := FeatureSimilarity(Features{}, Features{}); got < 0 || got > 1 {
		t.Fatalf("empty similarity out of range: %f", got)
	}
}

func TestHammingSimilarity(t *testing.T) {
	base := []uint32{0xDEADBEEF, 0x12345678, 0xCAFEBABE}
	if got := HammingSimilarity(base, base); got != 1 {
		t.Fatalf("self similarity = %f, want 1", got)
	}

	oneBit := []uint32{0xDEADBEEF ^ 1, 0x12345678, 0xCAFEBABE}
	want := 1 - 1.0/96
	if got := HammingSimilarity(base, oneBit); math.Abs(got-want) > 1e-9 {
		t.Fatalf("one-bit similarity = %f, want %f", got, want)
	}

	if got := HammingSimilarity(base, nil); got != 0 {
		t.Fatalf("nil vector similarity = %f, want 0", got)
	}

	// Length mismatch counts the tail as disagreement.
	short := []uint32{0xDEADBEEF}
	if got := HammingSimilarity(base, short); got > 0.34 {
		t.Fatalf("truncated similarity = %f, want about 1/3", got)
	}
}

func TestCodecWithoutFpcalc(t *testing.T) {
	codec := NewCodec(nil, "definitely-not-a-real-binary")
	if codec.ChromaprintAvailable() {
		t.Fatal("expected chromaprint to be unavailable")
	}

	pair, err := codec.Fingerprint(context.Background(), sampleBundle(), nil, 44100, 2)
	if err != nil {
		t.Fatalf("Fingerprint: %v", err)
	}
	if pair.Hash == "" || len(pair.Payload) == 0 {
		t.Fatalf("hash pair missing: %+v", pair)
	}
	if pair.Chromaprint != nil || pair.ChromaprintCompressed != "" {
		t.Fatal("chromaprint fields must stay empty without fpcalc")
	}
}
