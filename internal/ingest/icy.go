package ingest

import (
	"fmt"
	"io"
	"strings"
	"sync"
)

// icyMetadataUnit is the block granularity of in-band ICY metadata. The
// length byte counts units of 16 bytes.
const icyMetadataUnit = 16

// metaReader strips in-band ICY metadata from a stream that interleaves a
// metadata block every metaint audio bytes. The most recent StreamTitle is
// kept aside for chunk annotation. Titles are server-provided free text and
// must be treated as untrusted hints.
type metaReader struct {
	src       io.Reader
	metaint   int
	remaining int

	mu    sync.Mutex
	title string
}

func newMetaReader(src io.Reader, metaint int) *metaReader {
	return &metaReader{src: src, metaint: metaint, remaining: metaint}
}

func (r *metaReader) Read(p []byte) (int, error) {
	if r.remaining == 0 {
		if err := r.readMetadata(); err != nil {
			return 0, err
		}
		r.remaining = r.metaint
	}
	if len(p) > r.remaining {
		p = p[:r.remaining]
	}
	n, err := r.src.Read(p)
	r.remaining -= n
	return n, err
}

func (r *metaReader) readMetadata() error {
	var length [1]byte
	if _, err := io.ReadFull(r.src, length[:]); err != nil {
		return err
	}
	size := int(length[0]) * icyMetadataUnit
	if size == 0 {
		return nil
	}
	block := make([]byte, size)
	if _, err := io.ReadFull(r.src, block); err != nil {
		return fmt.Errorf("icy metadata block: %w", err)
	}
	if title, ok := parseStreamTitle(string(block)); ok {
		r.mu.Lock()
		r.title = title
		r.mu.Unlock()
	}
	return nil
}

// StreamTitle returns the most recently seen title, or empty when the
// station never sent one.
func (r *metaReader) StreamTitle() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.title
}

// parseStreamTitle extracts the StreamTitle value from an ICY metadata
// block such as "StreamTitle='Artist - Title';StreamUrl=...;". The block is
// NUL-padded to its 16-byte boundary.
func parseStreamTitle(block string) (string, bool) {
	block = strings.TrimRight(block, "\x00")
	const key = "StreamTitle='"
	start := strings.Index(block, key)
	if start < 0 {
		return "", false
	}
	rest := block[start+len(key):]
	end := strings.Index(rest, "';")
	if end < 0 {
		// Some servers omit the trailing semicolon on the last field.
		end = strings.LastIndex(rest, "'")
		if end < 0 {
			return "", false
		}
	}
	title := strings.TrimSpace(rest[:end])
	if title == "" {
		return "", false
	}
	return title, true
}
