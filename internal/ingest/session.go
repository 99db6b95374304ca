package ingest

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os/exec"
	"sync"
	"time"

	"aircheck/internal/config"
	"aircheck/internal/logging"
)

var commandContext = exec.CommandContext

// Chunk is one fixed-duration slice of decoded audio.
type Chunk struct {
	// PCM holds interleaved s16le samples.
	PCM        []byte
	SampleRate int
	Channels   int
	Duration   time.Duration
	// StreamTitle is the latest ICY title seen on the wire, untrusted.
	StreamTitle string
	// At is the wall-clock moment the chunk completed.
	At time.Time
}

// Session is one station's live decode pipeline. It is owned by a single
// worker goroutine; only Close may be called from elsewhere.
type Session struct {
	url    string
	cfg    *config.Config
	client *http.Client
	logger *slog.Logger

	// mu guards the pipeline fields below; Close may race with the worker.
	mu     sync.Mutex
	conn   *connection
	cmd    *exec.Cmd
	stdout io.ReadCloser

	chunkBytes int
	backoff    time.Duration
	failures   int

	closeOnce sync.Once
	closed    chan struct{}
}

// Open probes the stream URL and starts the decode pipeline. The returned
// session is ready for NextChunk. Probe failures carry one of the stream
// failure classes so the scheduler can record why a station is unhealthy.
func Open(ctx context.Context, url string, cfg *config.Config, logger *slog.Logger) (*Session, error) {
	if logger == nil {
		logger = logging.NewNop()
	}
	s := &Session{
		url: url,
		cfg: cfg,
		client: &http.Client{
			Timeout: 0, // streaming body, read deadline handled per chunk
		},
		logger:     logging.WithComponent(logger, "ingest"),
		chunkBytes: cfg.Ingest.SampleRate * cfg.Ingest.Channels * 2 * cfg.Ingest.ChunkSeconds,
		backoff:    time.Duration(cfg.Ingest.BackoffInitial) * time.Second,
		closed:     make(chan struct{}),
	}

	probeCtx, cancel := context.WithTimeout(ctx, time.Duration(cfg.Ingest.ReadTimeout)*time.Second)
	defer cancel()
	if err := s.attach(probeCtx); err != nil {
		return nil, err
	}
	return s, nil
}

// attach connects to the stream and spawns ffmpeg over the response body.
func (s *Session) attach(ctx context.Context) error {
	conn, err := connect(ctx, s.client, s.url)
	if err != nil {
		return err
	}

	cmd := commandContext(context.WithoutCancel(ctx), s.cfg.FFmpegBinary(),
		"-hide_banner",
		"-loglevel", "error",
		"-i", "pipe:0",
		"-f", "s16le",
		"-ar", fmt.Sprintf("%d", s.cfg.Ingest.SampleRate),
		"-ac", fmt.Sprintf("%d", s.cfg.Ingest.Channels),
		"pipe:1",
	) //nolint:gosec
	cmd.Stdin = conn.reader()
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		conn.body.Close()
		return fmt.Errorf("%w: stdout pipe: %v", ErrUnreachable, err)
	}
	if err := cmd.Start(); err != nil {
		conn.body.Close()
		return fmt.Errorf("%w: start decoder: %v", ErrUnreachable, err)
	}

	s.mu.Lock()
	s.conn = conn
	s.cmd = cmd
	s.stdout = stdout
	s.mu.Unlock()
	if conn.icyName != "" {
		s.logger.Debug("stream attached", logging.String("station_name", conn.icyName))
	}
	return nil
}

// NextChunk blocks until one full chunk of PCM has been decoded. On stream
// failure it reconnects with exponential backoff; once the retry budget is
// exhausted it returns ErrDegraded wrapping the last failure.
func (s *Session) NextChunk(ctx context.Context) (*Chunk, error) {
	for {
		select {
		case <-s.closed:
			return nil, ErrDegraded
		default:
		}

		pcm := make([]byte, s.chunkBytes)
		err := s.readFull(ctx, pcm)
		if err == nil {
			s.failures = 0
			s.backoff = time.Duration(s.cfg.Ingest.BackoffInitial) * time.Second
			s.mu.Lock()
			title := ""
			if s.conn != nil {
				title = s.conn.streamTitle()
			}
			s.mu.Unlock()
			return &Chunk{
				PCM:         pcm,
				SampleRate:  s.cfg.Ingest.SampleRate,
				Channels:    s.cfg.Ingest.Channels,
				Duration:    s.cfg.ChunkDuration(),
				StreamTitle: title,
				At:          time.Now().UTC(),
			}, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		s.failures++
		s.logger.Warn("stream read failed",
			logging.String("url", s.url),
			logging.Int("consecutive_failures", s.failures),
			logging.Error(err))
		if s.failures >= s.cfg.Ingest.MaxStreamRetries {
			return nil, fmt.Errorf("%w: %d consecutive failures: %v", ErrDegraded, s.failures, err)
		}
		if err := s.reconnect(ctx); err != nil {
			return nil, err
		}
	}
}

// readFull reads one chunk's worth of PCM, honoring cancellation by tearing
// the pipeline down when the context fires mid-read.
func (s *Session) readFull(ctx context.Context, buf []byte) error {
	s.mu.Lock()
	stdout := s.stdout
	s.mu.Unlock()
	if stdout == nil {
		return ErrDegraded
	}
	done := make(chan error, 1)
	go func() {
		_, err := io.ReadFull(stdout, buf)
		done <- err
	}()
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		s.teardown()
		<-done
		return ctx.Err()
	case <-time.After(time.Duration(s.cfg.Ingest.ReadTimeout)*time.Second + s.cfg.ChunkDuration()):
		s.teardown()
		<-done
		return ErrTimeout
	}
}

// reconnect tears the dead pipeline down and waits out the backoff before
// attaching again. The backoff doubles up to the configured cap.
func (s *Session) reconnect(ctx context.Context) error {
	s.teardown()

	wait := s.backoff
	limit := time.Duration(s.cfg.Ingest.BackoffCap) * time.Second
	if s.backoff *= 2; s.backoff > limit {
		s.backoff = limit
	}
	s.logger.Info("reconnecting",
		logging.String("url", s.url),
		logging.Duration("backoff", wait))

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-s.closed:
		return ErrDegraded
	case <-time.After(wait):
	}

	attachCtx, cancel := context.WithTimeout(ctx, time.Duration(s.cfg.Ingest.ReadTimeout)*time.Second)
	defer cancel()
	if err := s.attach(attachCtx); err != nil {
		s.failures++
		if s.failures >= s.cfg.Ingest.MaxStreamRetries {
			return fmt.Errorf("%w: %v", ErrDegraded, err)
		}
		return s.reconnect(ctx)
	}
	return nil
}

// teardown kills the decoder and closes the HTTP body. Safe to call on an
// already torn-down session.
func (s *Session) teardown() {
	s.mu.Lock()
	cmd, conn := s.cmd, s.conn
	s.cmd = nil
	s.stdout = nil
	s.conn = nil
	s.mu.Unlock()

	if cmd != nil && cmd.Process != nil {
		_ = cmd.Process.Kill()
		_ = cmd.Wait()
	}
	if conn != nil {
		_ = conn.body.Close()
	}
}

// Close stops the session. Idempotent; a blocked NextChunk returns shortly
// after.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		close(s.closed)
		s.teardown()
	})
	return nil
}
