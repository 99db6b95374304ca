// Package fingerprint derives acoustic signatures from feature bundles and
// raw PCM. Every music chunk gets a deterministic feature hash; when the
// fpcalc tool is installed a Chromaprint vector is produced as well.
package fingerprint
