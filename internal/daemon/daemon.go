package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync/atomic"

	"github.com/gofrs/flock"

	"aircheck/internal/config"
	"aircheck/internal/events"
	"aircheck/internal/logging"
	"aircheck/internal/musicid"
	"aircheck/internal/resolve"
	"aircheck/internal/scheduler"
	"aircheck/internal/store"
)

// Daemon coordinates the detection engine and enforces single-instance
// execution.
type Daemon struct {
	cfg      *config.Config
	logger   *slog.Logger
	store    *store.Store
	sched    *scheduler.Scheduler
	resolver *resolve.Resolver
	notifier events.Notifier

	lockPath string
	lock     *flock.Flock

	running atomic.Bool
	cancel  context.CancelFunc
}

// Status is the daemon's runtime snapshot.
type Status struct {
	Running      bool
	PID          int
	DatabasePath string
	LockFilePath string
	Stations     []scheduler.StationHealth
	Breakers     map[string]musicid.BreakerState
}

// New constructs a daemon with initialized dependencies.
func New(cfg *config.Config, st *store.Store, sched *scheduler.Scheduler, resolver *resolve.Resolver, notifier events.Notifier, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil || st == nil || sched == nil {
		return nil, errors.New("daemon requires config, store, and scheduler")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	lockPath := filepath.Join(cfg.Paths.LogDir, "aircheckd.lock")
	return &Daemon{
		cfg:      cfg,
		logger:   logging.WithComponent(logger, "daemon"),
		store:    st,
		sched:    sched,
		resolver: resolver,
		notifier: notifier,
		lockPath: lockPath,
		lock:     flock.New(lockPath),
	}, nil
}

// Start acquires the daemon lock and launches workers for every active
// station.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another aircheck daemon instance is already running")
	}

	stations, err := d.store.ListStations(ctx, store.StationActive, store.StationDegraded)
	if err != nil {
		_ = d.lock.Unlock()
		return fmt.Errorf("list stations: %w", err)
	}

	runCtx, cancel := context.WithCancel(ctx)
	if err := d.sched.Start(runCtx, stations); err != nil {
		cancel()
		_ = d.lock.Unlock()
		return fmt.Errorf("start scheduler: %w", err)
	}
	d.cancel = cancel
	d.running.Store(true)
	d.logger.Info("daemon started",
		logging.Int("stations", len(stations)),
		logging.String("lock", d.lockPath))
	return nil
}

// Stop drains the scheduler and releases the daemon lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	if err := d.sched.Stop(); err != nil {
		d.logger.Warn("scheduler stop", logging.Error(err))
	}
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.running.Store(false)
	d.logger.Info("daemon stopped")
}

// Close releases resources held by the daemon.
func (d *Daemon) Close() error {
	d.Stop()
	if d.store != nil {
		return d.store.Close()
	}
	return nil
}

// Status reports the live station fleet and provider breaker states.
func (d *Daemon) Status(context.Context) Status {
	status := Status{
		Running:      d.running.Load(),
		PID:          os.Getpid(),
		DatabasePath: d.cfg.DatabasePath(),
		LockFilePath: d.lockPath,
	}
	if d.running.Load() {
		health := d.sched.Health()
		status.Stations = make([]scheduler.StationHealth, 0, len(health))
		for _, h := range health {
			status.Stations = append(status.Stations, h)
		}
		sort.Slice(status.Stations, func(i, j int) bool {
			return status.Stations[i].StationID < status.Stations[j].StationID
		})
	}
	if d.resolver != nil {
		status.Breakers = d.resolver.BreakerStates()
	}
	return status
}

// AddStation registers a new station. A running daemon starts its worker
// immediately; otherwise the scheduler picks it up on the next start.
func (d *Daemon) AddStation(ctx context.Context, name, streamURL string) (*store.Station, error) {
	name = strings.TrimSpace(name)
	streamURL = strings.TrimSpace(streamURL)
	if name == "" || streamURL == "" {
		return nil, errors.New("station name and stream URL are required")
	}
	station, err := d.store.CreateStation(ctx, name, streamURL)
	if err != nil {
		return nil, err
	}
	d.logger.Info("station added",
		logging.Int64(logging.FieldStation, station.ID),
		logging.String("name", station.Name))
	if d.running.Load() {
		if err := d.sched.Restart(ctx, station.ID); err != nil {
			d.logger.Warn("station worker start", logging.Error(err))
		}
	}
	return station, nil
}

// RemoveStation deletes a station and its detections.
func (d *Daemon) RemoveStation(ctx context.Context, id int64) (bool, error) {
	return d.store.RemoveStation(ctx, id)
}

// ListStations returns all stations regardless of status.
func (d *Daemon) ListStations(ctx context.Context) ([]*store.Station, error) {
	return d.store.ListStations(ctx)
}

// RestartStation bounces one station's worker.
func (d *Daemon) RestartStation(ctx context.Context, id int64) error {
	if !d.running.Load() {
		return errors.New("daemon not running")
	}
	return d.sched.Restart(ctx, id)
}

// TopTracks returns the most-played tracks across all stations.
func (d *Daemon) TopTracks(ctx context.Context, limit int) ([]*store.TopTrack, error) {
	return d.store.TopTracks(ctx, limit)
}

// RecentDetectionRows lists finalized detections with track and artist
// names, optionally per station.
func (d *Daemon) RecentDetectionRows(ctx context.Context, stationID int64, limit int) ([]*store.DetectionDetail, error) {
	return d.store.RecentDetectionDetails(ctx, stationID, limit)
}

// TestNotification pushes a test message through the configured notifier.
func (d *Daemon) TestNotification(ctx context.Context) (bool, string, error) {
	if strings.TrimSpace(d.cfg.Notifications.NtfyTopic) == "" {
		return false, "ntfy topic not configured", nil
	}
	if d.notifier == nil {
		return false, "notifier unavailable", nil
	}
	if err := d.notifier.TestNotification(ctx); err != nil {
		return false, "failed to send notification", err
	}
	return true, "test notification sent", nil
}
