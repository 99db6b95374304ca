package fingerprint

import (
	"math"
	"math/bits"
)

// Default acceptance thresholds for the two local match paths.
const (
	ExactThreshold       = 1.0
	FeatureThreshold     = 0.7
	ChromaprintThreshold = 0.85
)

const similarityEpsilon = 1e-6

// FeatureSimilarity scores two feature sets as one minus the mean relative
// difference across matched axes. Identical features score 1; unrelated
// material falls well below the acceptance threshold.
func FeatureSimilarity(a, b Features) float64 {
	var sum float64
	var count int

	accumulate := func(x, y float64) {
		denom := math.Max(math.Max(math.Abs(x), math.Abs(y)), similarityEpsilon)
		sum += math.Abs(x-y) / denom
		count++
	}

	for i := 0; i < len(a.MFCC) && i < len(b.MFCC); i++ {
		accumulate(a.MFCC[i], b.MFCC[i])
	}
	for i := 0; i < len(a.Chroma) && i < len(b.Chroma); i++ {
		accumulate(a.Chroma[i], b.Chroma[i])
	}
	accumulate(a.Centroid, b.Centroid)
	accumulate(a.Rhythm, b.Rhythm)

	if count == 0 {
		return 0
	}
	score := 1 - sum/float64(count)
	if score < 0 {
		return 0
	}
	return score
}

// HammingSimilarity compares two Chromaprint vectors bit by bit. Vectors of
// different lengths are compared over the shorter one with the length
// mismatch counted as disagreement.
func HammingSimilarity(a, b []uint32) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	shorter, longer := a, b
	if len(b) < len(a) {
		shorter, longer = b, a
	}
	distance := 0
	for i := range shorter {
		distance += bits.OnesCount32(shorter[i] ^ longer[i])
	}
	distance += 32 * (len(longer) - len(shorter))
	total := 32 * len(longer)
	return 1 - float64(distance)/float64(total)
}
