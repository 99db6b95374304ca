// Package dsp turns raw PCM chunks into feature bundles and classifies them
// as music, speech, or silence. Only music bundles are worth fingerprinting,
// so classification is the gate that keeps identification cost down.
package dsp
