package ipc

import "time"

// StopRequest stops the daemon process.
type StopRequest struct{}

// StopResponse indicates stop result.
type StopResponse struct {
	Stopped bool `json:"stopped"`
}

// StatusRequest fetches daemon status.
type StatusRequest struct{}

// StationStatus is one station's health as seen by the scheduler.
type StationStatus struct {
	ID                int64     `json:"id"`
	Name              string    `json:"name"`
	State             string    `json:"state"`
	LastChunk         time.Time `json:"last_chunk"`
	ConsecutiveErrors int       `json:"consecutive_errors"`
}

// StatusResponse represents combined daemon status information.
type StatusResponse struct {
	Running      bool              `json:"running"`
	PID          int               `json:"pid"`
	DatabasePath string            `json:"database_path"`
	LockPath     string            `json:"lock_path"`
	Stations     []StationStatus   `json:"stations"`
	Breakers     map[string]string `json:"breakers"`
}

// StationAddRequest registers a new station.
type StationAddRequest struct {
	Name      string `json:"name"`
	StreamURL string `json:"stream_url"`
}

// StationAddResponse carries the created station.
type StationAddResponse struct {
	ID     int64  `json:"id"`
	Name   string `json:"name"`
	Status string `json:"status"`
}

// StationListRequest lists all stations.
type StationListRequest struct{}

// StationRow is one station for listing.
type StationRow struct {
	ID          int64      `json:"id"`
	Name        string     `json:"name"`
	StreamURL   string     `json:"stream_url"`
	Status      string     `json:"status"`
	LastChecked *time.Time `json:"last_checked,omitempty"`
}

// StationListResponse contains all stations.
type StationListResponse struct {
	Stations []StationRow `json:"stations"`
}

// StationRemoveRequest removes a station by ID.
type StationRemoveRequest struct {
	ID int64 `json:"id"`
}

// StationRemoveResponse reports whether a row was deleted.
type StationRemoveResponse struct {
	Removed bool `json:"removed"`
}

// StationRestartRequest bounces one station's worker.
type StationRestartRequest struct {
	ID int64 `json:"id"`
}

// StationRestartResponse acknowledges the restart.
type StationRestartResponse struct {
	Restarted bool `json:"restarted"`
}

// StatsTopRequest fetches the most-played tracks.
type StatsTopRequest struct {
	Limit int `json:"limit"`
}

// TopTrackRow is one aggregate row.
type TopTrackRow struct {
	TrackID      int64   `json:"track_id"`
	Title        string  `json:"title"`
	Artist       string  `json:"artist"`
	PlayCount    int64   `json:"play_count"`
	TotalSeconds float64 `json:"total_seconds"`
}

// StatsTopResponse contains the aggregate rows.
type StatsTopResponse struct {
	Tracks []TopTrackRow `json:"tracks"`
}

// DetectionsRequest lists recent finalized detections.
type DetectionsRequest struct {
	StationID int64 `json:"station_id"`
	Limit     int   `json:"limit"`
}

// DetectionRow is one finalized detection.
type DetectionRow struct {
	ID         int64     `json:"id"`
	StationID  int64     `json:"station_id"`
	TrackID    int64     `json:"track_id"`
	Title      string    `json:"title"`
	Artist     string    `json:"artist"`
	DetectedAt time.Time `json:"detected_at"`
	Duration   float64   `json:"duration"`
	Confidence float64   `json:"confidence"`
	Method     string    `json:"method"`
}

// DetectionsResponse contains recent detections.
type DetectionsResponse struct {
	Detections []DetectionRow `json:"detections"`
}

// TestNotificationRequest triggers a notification test.
type TestNotificationRequest struct{}

// TestNotificationResponse reports notification test outcome.
type TestNotificationResponse struct {
	Sent    bool   `json:"sent"`
	Message string `json:"message"`
}
