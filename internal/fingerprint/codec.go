package fingerprint

import (
	"context"
	"log/slog"

	"aircheck/internal/dsp"
	"aircheck/internal/logging"
)

// Pair is the full fingerprint output for one music chunk.
type Pair struct {
	Hash    string
	Payload []byte

	// Chromaprint fields are zero when fpcalc is unavailable.
	Chromaprint           []uint32
	ChromaprintCompressed string
	Duration              float64
}

// Codec produces fingerprint pairs. The Chromaprint path is optional.
type Codec struct {
	chroma *Chromaprinter
	logger *slog.Logger
}

// NewCodec probes for fpcalc once. A missing tool is logged and tolerated.
func NewCodec(logger *slog.Logger, fpcalcBinary string) *Codec {
	if logger == nil {
		logger = logging.NewNop()
	}
	logger = logging.WithComponent(logger, "fingerprint")
	chroma := NewChromaprinter(fpcalcBinary)
	if chroma == nil {
		logger.Warn("fpcalc not found, chromaprint matching disabled")
	}
	return &Codec{chroma: chroma, logger: logger}
}

// ChromaprintAvailable reports whether the fpcalc path is active.
func (c *Codec) ChromaprintAvailable() bool {
	return c.chroma != nil
}

// Fingerprint hashes the bundle's canonical features and, when possible, runs
// Chromaprint over the raw PCM. A Chromaprint failure degrades to the hash
// pair alone rather than failing the chunk.
func (c *Codec) Fingerprint(ctx context.Context, bundle *dsp.FeatureBundle, pcm []byte, sampleRate, channels int) (*Pair, error) {
	features := CanonicalFeatures(bundle)
	hash, payload, err := features.Hash()
	if err != nil {
		return nil, err
	}
	pair := &Pair{Hash: hash, Payload: payload}

	if c.chroma != nil {
		raw, compressed, duration, chromaErr := c.chroma.Calculate(ctx, pcm, sampleRate, channels)
		if chromaErr != nil {
			c.logger.Warn("chromaprint failed, continuing with feature hash", logging.Error(chromaErr))
		} else {
			pair.Chromaprint = raw
			pair.ChromaprintCompressed = compressed
			pair.Duration = duration
		}
	}
	return pair, nil
}
