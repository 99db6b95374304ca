package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
)

// Stream failure classes. The scheduler maps these onto station status.
var (
	// ErrUnreachable marks connection failures and non-2xx responses.
	ErrUnreachable = errors.New("stream unreachable")
	// ErrNotAudio marks URLs that respond with something other than audio.
	ErrNotAudio = errors.New("stream is not audio")
	// ErrTimeout marks probes and reads that exceeded their deadline.
	ErrTimeout = errors.New("stream timed out")
	// ErrDegraded marks a session whose reconnect budget is spent.
	ErrDegraded = errors.New("stream degraded")
)

// connection is one live HTTP attachment to a station.
type connection struct {
	body    io.ReadCloser
	meta    *metaReader
	icyName string
}

// connect issues the stream GET, validates the response looks like audio and
// wires up ICY metadata stripping when the server advertises it. The caller
// owns the returned body.
func connect(ctx context.Context, client *http.Client, url string) (*connection, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnreachable, err)
	}
	req.Header.Set("Icy-MetaData", "1")
	req.Header.Set("User-Agent", "Aircheck-Go/0.1.0")

	resp, err := client.Do(req)
	if err != nil {
		if isTimeout(err) {
			return nil, fmt.Errorf("%w: %v", ErrTimeout, err)
		}
		return nil, fmt.Errorf("%w: %v", ErrUnreachable, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		resp.Body.Close()
		return nil, fmt.Errorf("%w: status %d", ErrUnreachable, resp.StatusCode)
	}
	if !isAudioResponse(resp) {
		resp.Body.Close()
		return nil, fmt.Errorf("%w: content-type %q", ErrNotAudio, resp.Header.Get("Content-Type"))
	}

	conn := &connection{body: resp.Body, icyName: resp.Header.Get("Icy-Name")}
	if metaint, err := strconv.Atoi(resp.Header.Get("Icy-Metaint")); err == nil && metaint > 0 {
		conn.meta = newMetaReader(resp.Body, metaint)
	}
	return conn, nil
}

// reader returns the audio byte stream with any ICY metadata stripped.
func (c *connection) reader() io.Reader {
	if c.meta != nil {
		return c.meta
	}
	return c.body
}

func (c *connection) streamTitle() string {
	if c.meta == nil {
		return ""
	}
	return c.meta.StreamTitle()
}

// isAudioResponse accepts audio/* content types, Ogg containers, and
// responses that carry ICY headers regardless of their declared type. Many
// Shoutcast servers label MP3 streams with unhelpful content types.
func isAudioResponse(resp *http.Response) bool {
	contentType := strings.ToLower(strings.TrimSpace(resp.Header.Get("Content-Type")))
	if typ, _, ok := strings.Cut(contentType, ";"); ok {
		contentType = strings.TrimSpace(typ)
	}
	switch {
	case strings.HasPrefix(contentType, "audio/"):
		return true
	case contentType == "application/ogg":
		return true
	}
	for header := range resp.Header {
		if strings.HasPrefix(strings.ToLower(header), "icy-") {
			return true
		}
	}
	return false
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}
	var timeoutErr interface{ Timeout() bool }
	return errors.As(err, &timeoutErr) && timeoutErr.Timeout()
}
