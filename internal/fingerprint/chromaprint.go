package fingerprint

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// Chromaprinter shells out to fpcalc. A nil Chromaprinter means the tool was
// not found at startup; callers skip the Chromaprint path in that case.
type Chromaprinter struct {
	binary string
}

// NewChromaprinter resolves the fpcalc binary. It returns nil without error
// when the tool is absent so the pipeline can degrade to feature matching.
func NewChromaprinter(binary string) *Chromaprinter {
	if strings.TrimSpace(binary) == "" {
		binary = "fpcalc"
	}
	resolved, err := exec.LookPath(binary)
	if err != nil {
		return nil
	}
	return &Chromaprinter{binary: resolved}
}

type fpcalcRawOutput struct {
	Duration    float64  `json:"duration"`
	Fingerprint []uint32 `json:"fingerprint"`
}

type fpcalcCompressedOutput struct {
	Duration    float64 `json:"duration"`
	Fingerprint string  `json:"fingerprint"`
}

// Calculate fingerprints one PCM chunk. fpcalc emits either the raw integer
// vector or the compressed form, never both, so it runs twice: the raw
// vector feeds local Hamming matching, the compressed string feeds AcoustID.
func (c *Chromaprinter) Calculate(ctx context.Context, pcm []byte, sampleRate, channels int) (raw []uint32, compressed string, duration float64, err error) {
	if c == nil {
		return nil, "", 0, nil
	}
	wavPath, cleanup, err := writeTempWAV(pcm, sampleRate, channels)
	if err != nil {
		return nil, "", 0, err
	}
	defer cleanup()

	rawOut, err := c.run(ctx, wavPath, true)
	if err != nil {
		return nil, "", 0, err
	}
	var parsedRaw fpcalcRawOutput
	if err := json.Unmarshal(rawOut, &parsedRaw); err != nil {
		return nil, "", 0, fmt.Errorf("parse fpcalc raw output: %w", err)
	}

	compressedOut, err := c.run(ctx, wavPath, false)
	if err != nil {
		return nil, "", 0, err
	}
	var parsedCompressed fpcalcCompressedOutput
	if err := json.Unmarshal(compressedOut, &parsedCompressed); err != nil {
		return nil, "", 0, fmt.Errorf("parse fpcalc output: %w", err)
	}

	return parsedRaw.Fingerprint, parsedCompressed.Fingerprint, parsedRaw.Duration, nil
}

func (c *Chromaprinter) run(ctx context.Context, wavPath string, raw bool) ([]byte, error) {
	args := []string{"-json"}
	if raw {
		args = append(args, "-raw")
	}
	args = append(args, wavPath)
	cmd := exec.CommandContext(ctx, c.binary, args...) //nolint:gosec
	output, err := cmd.Output()
	if err != nil {
		detail := ""
		if exitErr, ok := err.(*exec.ExitError); ok {
			detail = ": " + strings.TrimSpace(string(exitErr.Stderr))
		}
		return nil, fmt.Errorf("fpcalc: %w%s", err, detail)
	}
	return output, nil
}

func writeTempWAV(pcm []byte, sampleRate, channels int) (string, func(), error) {
	f, err := os.CreateTemp("", "aircheck-chunk-*.wav")
	if err != nil {
		return "", nil, fmt.Errorf("create temp wav: %w", err)
	}
	path := f.Name()
	cleanup := func() { _ = os.Remove(path) }

	if err := writeWAV(f, pcm, sampleRate, channels); err != nil {
		_ = f.Close()
		cleanup()
		return "", nil, err
	}
	if err := f.Close(); err != nil {
		cleanup()
		return "", nil, fmt.Errorf("close temp wav: %w", err)
	}
	return filepath.Clean(path), cleanup, nil
}

// EncodeChromaprint packs a raw vector as little-endian bytes for storage.
func EncodeChromaprint(vector []uint32) []byte {
	out := make([]byte, 4*len(vector))
	for i, v := range vector {
		binary.LittleEndian.PutUint32(out[i*4:], v)
	}
	return out
}

// DecodeChromaprint unpacks a stored vector. Trailing partial words are
// dropped.
func DecodeChromaprint(payload []byte) []uint32 {
	words := len(payload) / 4
	out := make([]uint32, words)
	for i := 0; i < words; i++ {
		out[i] = binary.LittleEndian.Uint32(payload[i*4:])
	}
	return out
}

// WAVBytes wraps s16le PCM in a minimal RIFF container in memory. Used for
// recognition uploads that expect a self-describing file.
func WAVBytes(pcm []byte, sampleRate, channels int) []byte {
	var buf bytes.Buffer
	buf.Grow(44 + len(pcm))
	_ = writeWAV(&buf, pcm, sampleRate, channels)
	return buf.Bytes()
}

// writeWAV wraps s16le PCM in a minimal RIFF header.
func writeWAV(f io.Writer, pcm []byte, sampleRate, channels int) error {
	var header [44]byte
	dataLen := uint32(len(pcm))
	byteRate := uint32(sampleRate * channels * 2)
	blockAlign := uint16(channels * 2)

	copy(header[0:], "RIFF")
	binary.LittleEndian.PutUint32(header[4:], 36+dataLen)
	copy(header[8:], "WAVE")
	copy(header[12:], "fmt ")
	binary.LittleEndian.PutUint32(header[16:], 16)
	binary.LittleEndian.PutUint16(header[20:], 1) // PCM
	binary.LittleEndian.PutUint16(header[22:], uint16(channels))
	binary.LittleEndian.PutUint32(header[24:], uint32(sampleRate))
	binary.LittleEndian.PutUint32(header[28:], byteRate)
	binary.LittleEndian.PutUint16(header[32:], blockAlign)
	binary.LittleEndian.PutUint16(header[34:], 16)
	copy(header[36:], "data")
	binary.LittleEndian.PutUint32(header[40:], dataLen)

	if _, err := f.Write(header[:]); err != nil {
		return fmt.Errorf("write wav header: %w", err)
	}
	if _, err := f.Write(pcm); err != nil {
		return fmt.Errorf("write wav data: %w", err)
	}
	return nil
}
