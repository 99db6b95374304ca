package fingerprint

import (
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math"

	"aircheck/internal/dsp"
)

// Features is the canonical, hashable projection of a FeatureBundle. Values
// are rounded to three decimals so numerically close extractions of the same
// audio collapse to one hash.
type Features struct {
	MFCC     []float64 `json:"mfcc"`
	Chroma   []float64 `json:"chroma"`
	Centroid float64   `json:"centroid"`
	Rhythm   float64   `json:"rhythm"`
}

// CanonicalFeatures projects and rounds a bundle.
func CanonicalFeatures(bundle *dsp.FeatureBundle) Features {
	return Features{
		MFCC:     roundSlice(bundle.MFCCMean),
		Chroma:   roundSlice(bundle.ChromaMean),
		Centroid: round3(bundle.SpectralCentroid),
		Rhythm:   round3(bundle.RhythmStrength),
	}
}

// Encode serializes the features as canonical JSON. The struct field order
// is fixed, so equal features always produce identical bytes.
func (f Features) Encode() ([]byte, error) {
	payload, err := json.Marshal(f)
	if err != nil {
		return nil, fmt.Errorf("encode features: %w", err)
	}
	return payload, nil
}

// Hash returns the MD5 hex digest of the canonical encoding.
func (f Features) Hash() (string, []byte, error) {
	payload, err := f.Encode()
	if err != nil {
		return "", nil, err
	}
	sum := md5.Sum(payload)
	return hex.EncodeToString(sum[:]), payload, nil
}

// DecodeFeatures parses a stored fingerprint payload back into features.
func DecodeFeatures(payload []byte) (Features, error) {
	var f Features
	if err := json.Unmarshal(payload, &f); err != nil {
		return Features{}, fmt.Errorf("decode features: %w", err)
	}
	return f, nil
}

func roundSlice(values []float64) []float64 {
	out := make([]float64, len(values))
	for i, v := range values {
		out[i] = round3(v)
	}
	return out
}

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}
