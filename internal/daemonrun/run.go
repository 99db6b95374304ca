// Package daemonrun assembles and runs the aircheck daemon process.
package daemonrun

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"

	"aircheck/internal/config"
	"aircheck/internal/daemon"
	"aircheck/internal/events"
	"aircheck/internal/ipc"
	"aircheck/internal/logging"
	"aircheck/internal/musicid/acoustid"
	"aircheck/internal/musicid/audd"
	"aircheck/internal/musicid/musicbrainz"
	"aircheck/internal/resolve"
	"aircheck/internal/scheduler"
	"aircheck/internal/store"
)

// Options configures daemon process runtime behavior.
type Options struct {
	LogLevel string
}

// SocketPath returns the daemon control socket location for a config.
func SocketPath(cfg *config.Config) string {
	return filepath.Join(cfg.Paths.LogDir, "aircheck.sock")
}

// Run starts the aircheck daemon runtime loop and blocks until a signal or
// an IPC stop request arrives.
func Run(cmdCtx context.Context, cfg *config.Config, opts Options) error {
	if cfg == nil {
		return fmt.Errorf("config is required")
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return err
	}

	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	level := opts.LogLevel
	if level == "" {
		level = cfg.Logging.Level
	}
	logPath := filepath.Join(cfg.Paths.LogDir, "aircheck.log")
	logger, err := logging.New(logging.Options{
		Level:       level,
		Format:      cfg.Logging.Format,
		OutputPaths: []string{"stdout", logPath},
	})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	logger = logger.With(logging.String("run_id", uuid.NewString()))

	logDependencySnapshot(logger, cfg)

	pidPath := filepath.Join(cfg.Paths.LogDir, "aircheck.pid")
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	defer os.Remove(pidPath)

	st, err := store.Open(cfg.DatabasePath())
	if err != nil {
		logger.Error("open store", logging.Error(err))
		return err
	}
	defer st.Close()

	bus := events.NewBus()
	notifier := events.NewNotifier(cfg)
	events.AttachNotifier(signalCtx, bus, notifier)

	resolver := resolve.New(st, cfg, buildAcoustic(cfg), buildContent(cfg), buildMetadata(cfg, logger), logger)
	sched := scheduler.New(cfg, st, resolver, bus, logger)

	d, err := daemon.New(cfg, st, sched, resolver, notifier, logger)
	if err != nil {
		return fmt.Errorf("create daemon: %w", err)
	}
	defer d.Close()

	ipcServer, err := ipc.NewServer(signalCtx, SocketPath(cfg), d, cancel, logger)
	if err != nil {
		return fmt.Errorf("start IPC server: %w", err)
	}
	defer ipcServer.Close()
	ipcServer.Serve()

	if err := d.Start(signalCtx); err != nil {
		logger.Error("daemon start failed", logging.Error(err))
		return err
	}

	<-signalCtx.Done()
	logger.Info("aircheck daemon shutting down")
	return nil
}

func buildAcoustic(cfg *config.Config) resolve.AcousticClient {
	key := strings.TrimSpace(cfg.AcoustID.APIKey)
	if key == "" {
		return nil
	}
	client, err := acoustid.New(key, cfg.AcoustID.BaseURL,
		acoustid.WithTimeout(time.Duration(cfg.AcoustID.TimeoutSeconds)*time.Second))
	if err != nil {
		return nil
	}
	return client
}

func buildContent(cfg *config.Config) resolve.ContentClient {
	key := strings.TrimSpace(cfg.AudD.APIKey)
	if key == "" {
		return nil
	}
	client, err := audd.New(key, cfg.AudD.BaseURL,
		audd.WithTimeout(time.Duration(cfg.AudD.TimeoutSeconds)*time.Second))
	if err != nil {
		return nil
	}
	return client
}

func buildMetadata(cfg *config.Config, logger *slog.Logger) resolve.MetadataClient {
	client, err := musicbrainz.New(cfg.MusicBrainz.BaseURL, cfg.MusicBrainz.UserAgent,
		musicbrainz.WithTimeout(time.Duration(cfg.MusicBrainz.TimeoutSeconds)*time.Second))
	if err != nil {
		logger.Warn("musicbrainz client unavailable", logging.Error(err))
		return nil
	}
	return client
}

func writePIDFile(path string) error {
	if path == "" {
		return nil
	}
	value := strconv.Itoa(os.Getpid()) + "\n"
	return os.WriteFile(path, []byte(value), 0o644)
}

func logDependencySnapshot(logger *slog.Logger, cfg *config.Config) {
	logger.Info("dependency snapshot",
		logging.Bool("ffmpeg_available", binaryAvailable(cfg.FFmpegBinary())),
		logging.Bool("fpcalc_available", binaryAvailable(cfg.FpcalcBinary())),
		logging.Bool("acoustid_key_present", strings.TrimSpace(cfg.AcoustID.APIKey) != ""),
		logging.Bool("audd_key_present", strings.TrimSpace(cfg.AudD.APIKey) != ""),
		logging.Bool("ntfy_configured", strings.TrimSpace(cfg.Notifications.NtfyTopic) != ""),
	)
}

func binaryAvailable(name string) bool {
	if strings.TrimSpace(name) == "" {
		return false
	}
	_, err := exec.LookPath(name)
	return err == nil
}
