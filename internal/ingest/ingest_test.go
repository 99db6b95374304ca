package ingest

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"
)

func TestParseStreamTitle(t *testing.T) {
	tests := []struct {
		name  string
		block string
		want  string
		ok    bool
	}{
		{"typical", "StreamTitle='Ali Farka Toure - Bamba';StreamUrl='';\x00\x00", "Ali Farka Toure - Bamba", true},
		{"no trailing semicolon", "StreamTitle='Late Night Mix'", "Late Night Mix", true},
		{"empty title", "StreamTitle='';StreamUrl='';", "", false},
		{"missing key", "StreamUrl='http://example.com';", "", false},
		{"quote in title", "StreamTitle='Guns N' Roses - Patience';", "Guns N' Roses - Patience", true},
		{"padding only", "\x00\x00\x00\x00", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := parseStreamTitle(tt.block)
			if ok != tt.ok || got != tt.want {
				t.Fatalf("parseStreamTitle(%q) = %q, %v; want %q, %v", tt.block, got, ok, tt.want, tt.ok)
			}
		})
	}
}

// icyStream builds a wire image interleaving audio and metadata blocks the
// way a Shoutcast server does.
func icyStream(metaint int, audio []byte, titles map[int]string) []byte {
	var buf bytes.Buffer
	for offset := 0; offset < len(audio); offset += metaint {
		end := offset + metaint
		if end > len(audio) {
			end = len(audio)
		}
		buf.Write(audio[offset:end])
		if end-offset < metaint {
			break
		}
		if title, ok := titles[offset/metaint]; ok {
			meta := "StreamTitle='" + title + "';"
			padded := meta + strings.Repeat("\x00", (icyMetadataUnit-len(meta)%icyMetadataUnit)%icyMetadataUnit)
			buf.WriteByte(byte(len(padded) / icyMetadataUnit))
			buf.WriteString(padded)
		} else {
			buf.WriteByte(0)
		}
	}
	return buf.Bytes()
}

func TestMetaReaderStripsMetadata(t *testing.T) {
	audio := bytes.Repeat([]byte{0xAB}, 100)
	wire := icyStream(32, audio, map[int]string{1: "First Song", 2: "Second Song"})

	r := newMetaReader(bytes.NewReader(wire), 32)
	got, err := io.ReadAll(r)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if !bytes.Equal(got, audio) {
		t.Fatalf("audio bytes altered: got %d bytes, want %d", len(got), len(audio))
	}
	if title := r.StreamTitle(); title != "Second Song" {
		t.Fatalf("StreamTitle = %q, want latest title", title)
	}
}

func TestMetaReaderTruncatedMetadata(t *testing.T) {
	// Length byte promises 16 bytes, stream ends after 4.
	wire := append(bytes.Repeat([]byte{0x01}, 8), 0x01, 'S', 't', 'r', 'e')
	r := newMetaReader(bytes.NewReader(wire), 8)
	if _, err := io.ReadAll(r); err == nil {
		t.Fatal("expected error on truncated metadata block")
	}
}

func TestConnectClassification(t *testing.T) {
	audioSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Icy-MetaData") != "1" {
			t.Error("Icy-MetaData header not sent")
		}
		w.Header().Set("Content-Type", "audio/mpeg")
		w.Write(bytes.Repeat([]byte{0}, 64))
	}))
	defer audioSrv.Close()

	icySrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/octet-stream")
		w.Header().Set("Icy-Name", "Test FM")
		w.Header().Set("Icy-Metaint", "16")
		w.Write(bytes.Repeat([]byte{0}, 17))
	}))
	defer icySrv.Close()

	htmlSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		io.WriteString(w, "<html>not a stream</html>")
	}))
	defer htmlSrv.Close()

	missingSrv := httptest.NewServer(http.NotFoundHandler())
	defer missingSrv.Close()

	client := &http.Client{}
	ctx := context.Background()

	t.Run("audio content type", func(t *testing.T) {
		conn, err := connect(ctx, client, audioSrv.URL)
		if err != nil {
			t.Fatalf("connect: %v", err)
		}
		defer conn.body.Close()
		if conn.meta != nil {
			t.Fatal("metadata reader attached without icy-metaint")
		}
	})

	t.Run("icy headers override content type", func(t *testing.T) {
		conn, err := connect(ctx, client, icySrv.URL)
		if err != nil {
			t.Fatalf("connect: %v", err)
		}
		defer conn.body.Close()
		if conn.icyName != "Test FM" {
			t.Fatalf("icyName = %q", conn.icyName)
		}
		if conn.meta == nil {
			t.Fatal("icy-metaint advertised but no metadata reader attached")
		}
	})

	t.Run("html is not audio", func(t *testing.T) {
		_, err := connect(ctx, client, htmlSrv.URL)
		if !errors.Is(err, ErrNotAudio) {
			t.Fatalf("err = %v, want ErrNotAudio", err)
		}
	})

	t.Run("404 is unreachable", func(t *testing.T) {
		_, err := connect(ctx, client, missingSrv.URL)
		if !errors.Is(err, ErrUnreachable) {
			t.Fatalf("err = %v, want ErrUnreachable", err)
		}
	})

	t.Run("refused connection is unreachable", func(t *testing.T) {
		_, err := connect(ctx, client, "http://127.0.0.1:1/stream")
		if !errors.Is(err, ErrUnreachable) {
			t.Fatalf("err = %v, want ErrUnreachable", err)
		}
	})

	t.Run("deadline is timeout", func(t *testing.T) {
		slow := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			select {
			case <-r.Context().Done():
			case <-time.After(2 * time.Second):
			}
		}))
		defer slow.Close()
		shortCtx, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
		defer cancel()
		_, err := connect(shortCtx, client, slow.URL)
		if !errors.Is(err, ErrTimeout) {
			t.Fatalf("err = %v, want ErrTimeout", err)
		}
	})
}

func TestConnectLargeMetaint(t *testing.T) {
	// Servers advertise metaint values like 16000; the reader must pass
	// audio through untouched up to the first boundary.
	const metaint = 16000
	audio := bytes.Repeat([]byte{0x5A}, metaint)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "audio/aac")
		w.Header().Set("Icy-Metaint", strconv.Itoa(metaint))
		w.Write(icyStream(metaint, audio, map[int]string{0: "On Air"}))
	}))
	defer srv.Close()

	conn, err := connect(context.Background(), &http.Client{}, srv.URL)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer conn.body.Close()

	got := make([]byte, metaint)
	if _, err := io.ReadFull(conn.reader(), got); err != nil {
		t.Fatalf("ReadFull: %v", err)
	}
	if !bytes.Equal(got, audio) {
		t.Fatal("audio altered by metadata stripping")
	}
}
