package ipc

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/rpc"
	"net/rpc/jsonrpc"
	"os"
	"sync"

	"log/slog"

	"aircheck/internal/daemon"
	"aircheck/internal/logging"
)

// Server exposes daemon control via JSON-RPC over a Unix domain socket.
type Server struct {
	path      string
	logger    *slog.Logger
	listener  net.Listener
	rpcServer *rpc.Server

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewServer configures the IPC server at the given socket path. The shutdown
// function is invoked when a client asks the daemon to stop.
func NewServer(ctx context.Context, path string, d *daemon.Daemon, shutdown context.CancelFunc, logger *slog.Logger) (*Server, error) {
	if d == nil {
		return nil, errors.New("ipc server requires daemon")
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	if err := os.RemoveAll(path); err != nil {
		return nil, fmt.Errorf("remove existing socket: %w", err)
	}

	listener, err := net.Listen("unix", path)
	if err != nil {
		return nil, fmt.Errorf("listen on socket: %w", err)
	}

	rpcServer := rpc.NewServer()
	srv := &service{daemon: d, shutdown: shutdown, logger: logging.WithComponent(logger, "ipc"), ctx: ctx}
	if err := rpcServer.RegisterName("Aircheck", srv); err != nil {
		listener.Close()
		return nil, fmt.Errorf("register rpc service: %w", err)
	}

	serverCtx, cancel := context.WithCancel(ctx)
	return &Server{
		path:      path,
		logger:    logger,
		listener:  listener,
		rpcServer: rpcServer,
		ctx:       serverCtx,
		cancel:    cancel,
	}, nil
}

// Serve starts accepting RPC connections until the context is canceled.
func (s *Server) Serve() {
	s.logger.Debug("IPC server listening", logging.String("socket", s.path))
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for {
			conn, err := s.listener.Accept()
			if err != nil {
				select {
				case <-s.ctx.Done():
					return
				default:
				}
				s.logger.Warn("accept failed", logging.Error(err))
				continue
			}
			s.wg.Add(1)
			go func(c net.Conn) {
				defer s.wg.Done()
				s.rpcServer.ServeCodec(jsonrpc.NewServerCodec(c))
			}(conn)
		}
	}()
}

// Close stops the server and removes the socket file.
func (s *Server) Close() {
	s.cancel()
	if s.listener != nil {
		_ = s.listener.Close()
	}
	s.wg.Wait()
	if err := os.RemoveAll(s.path); err != nil {
		s.logger.Warn("failed to remove socket",
			logging.String("socket", s.path),
			logging.Error(err))
	}
}

type service struct {
	daemon   *daemon.Daemon
	shutdown context.CancelFunc
	logger   *slog.Logger
	ctx      context.Context
}

func (s *service) Stop(_ StopRequest, resp *StopResponse) error {
	s.logger.Info("daemon stop requested via IPC")
	if s.shutdown != nil {
		s.shutdown()
	}
	resp.Stopped = true
	return nil
}

func (s *service) Status(_ StatusRequest, resp *StatusResponse) error {
	status := s.daemon.Status(s.ctx)
	resp.Running = status.Running
	resp.PID = status.PID
	resp.DatabasePath = status.DatabasePath
	resp.LockPath = status.LockFilePath
	resp.Stations = make([]StationStatus, 0, len(status.Stations))
	for _, h := range status.Stations {
		resp.Stations = append(resp.Stations, StationStatus{
			ID:                h.StationID,
			Name:              h.Name,
			State:             string(h.State),
			LastChunk:         h.LastChunk,
			ConsecutiveErrors: h.ConsecutiveErrors,
		})
	}
	resp.Breakers = make(map[string]string, len(status.Breakers))
	for provider, state := range status.Breakers {
		resp.Breakers[provider] = string(state)
	}
	return nil
}

func (s *service) StationAdd(req StationAddRequest, resp *StationAddResponse) error {
	station, err := s.daemon.AddStation(s.ctx, req.Name, req.StreamURL)
	if err != nil {
		return err
	}
	resp.ID = station.ID
	resp.Name = station.Name
	resp.Status = string(station.Status)
	return nil
}

func (s *service) StationList(_ StationListRequest, resp *StationListResponse) error {
	stations, err := s.daemon.ListStations(s.ctx)
	if err != nil {
		return err
	}
	resp.Stations = make([]StationRow, 0, len(stations))
	for _, station := range stations {
		resp.Stations = append(resp.Stations, StationRow{
			ID:          station.ID,
			Name:        station.Name,
			StreamURL:   station.StreamURL,
			Status:      string(station.Status),
			LastChecked: station.LastChecked,
		})
	}
	return nil
}

func (s *service) StationRemove(req StationRemoveRequest, resp *StationRemoveResponse) error {
	if req.ID <= 0 {
		return fmt.Errorf("invalid station id %d", req.ID)
	}
	removed, err := s.daemon.RemoveStation(s.ctx, req.ID)
	if err != nil {
		return err
	}
	resp.Removed = removed
	return nil
}

func (s *service) StationRestart(req StationRestartRequest, resp *StationRestartResponse) error {
	if req.ID <= 0 {
		return fmt.Errorf("invalid station id %d", req.ID)
	}
	if err := s.daemon.RestartStation(s.ctx, req.ID); err != nil {
		return err
	}
	resp.Restarted = true
	return nil
}

func (s *service) StatsTop(req StatsTopRequest, resp *StatsTopResponse) error {
	tracks, err := s.daemon.TopTracks(s.ctx, req.Limit)
	if err != nil {
		return err
	}
	resp.Tracks = make([]TopTrackRow, 0, len(tracks))
	for _, track := range tracks {
		resp.Tracks = append(resp.Tracks, TopTrackRow{
			TrackID:      track.TrackID,
			Title:        track.Title,
			Artist:       track.ArtistName,
			PlayCount:    track.PlayCount,
			TotalSeconds: track.TotalSeconds,
		})
	}
	return nil
}

func (s *service) Detections(req DetectionsRequest, resp *DetectionsResponse) error {
	rows, err := s.daemon.RecentDetectionRows(s.ctx, req.StationID, req.Limit)
	if err != nil {
		return err
	}
	resp.Detections = make([]DetectionRow, 0, len(rows))
	for _, row := range rows {
		resp.Detections = append(resp.Detections, DetectionRow{
			ID:         row.ID,
			StationID:  row.StationID,
			TrackID:    row.TrackID,
			Title:      row.Title,
			Artist:     row.Artist,
			DetectedAt: row.DetectedAt,
			Duration:   row.Duration,
			Confidence: row.Confidence,
			Method:     row.Method,
		})
	}
	return nil
}

func (s *service) TestNotification(_ TestNotificationRequest, resp *TestNotificationResponse) error {
	sent, message, err := s.daemon.TestNotification(s.ctx)
	resp.Sent = sent
	resp.Message = message
	return err
}
