package store

import (
	"strings"
	"time"
)

// StationStatus represents the operational state of a monitored station.
type StationStatus string

const (
	StationActive   StationStatus = "active"
	StationInactive StationStatus = "inactive"
	StationDegraded StationStatus = "degraded"
)

// ParseStationStatus converts a string into a known StationStatus.
func ParseStationStatus(value string) (StationStatus, bool) {
	switch StationStatus(strings.ToLower(strings.TrimSpace(value))) {
	case StationActive:
		return StationActive, true
	case StationInactive:
		return StationInactive, true
	case StationDegraded:
		return StationDegraded, true
	default:
		return "", false
	}
}

// Method identifies which cascade step produced a detection.
type Method string

const (
	MethodISRC            Method = "isrc"
	MethodLocalExact      Method = "local_exact"
	MethodLocalSimilarity Method = "local_similarity"
	MethodAcoustID        Method = "acoustid"
	MethodAudD            Method = "audd"
)

// Algorithm tags a stored fingerprint with its producing codec.
type Algorithm string

const (
	AlgorithmMD5         Algorithm = "md5"
	AlgorithmChromaprint Algorithm = "chromaprint"
)

// Station is a monitored Internet radio stream.
type Station struct {
	ID          int64
	Name        string
	StreamURL   string
	Status      StationStatus
	LastChecked *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Artist is a canonical performing artist.
type Artist struct {
	ID        int64
	Name      string
	CreatedAt time.Time
}

// Track is an identified recording. ISRC is globally unique when present.
type Track struct {
	ID          int64
	Title       string
	ArtistID    int64
	ISRC        string
	Label       string
	Album       string
	ReleaseDate string
	Duration    float64
	CreatedAt   time.Time
	UpdatedAt   time.Time

	// ArtistName is populated on joined reads and never written back.
	ArtistName string
}

// Fingerprint is an acoustic signature attached to a track.
type Fingerprint struct {
	ID            int64
	TrackID       int64
	Hash          string
	Payload       []byte
	OffsetSeconds float64
	Algorithm     Algorithm
	CreatedAt     time.Time
}

// Detection records a single identified play of a track on a station.
// It is created in progress and finalized exactly once.
type Detection struct {
	ID         int64
	StationID  int64
	TrackID    int64
	DetectedAt time.Time
	Duration   float64
	Confidence float64
	Method     Method
	Finalized  bool
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// StationTrackStats aggregates play history for one (station, track) pair.
type StationTrackStats struct {
	StationID     int64
	TrackID       int64
	PlayCount     int64
	TotalSeconds  float64
	LastPlayedAt  time.Time
	AvgConfidence float64
}

// TrackStats aggregates station-agnostic play history per track.
type TrackStats struct {
	TrackID       int64
	PlayCount     int64
	TotalSeconds  float64
	LastPlayedAt  time.Time
	AvgConfidence float64
}

// ArtistStats aggregates play history per artist.
type ArtistStats struct {
	ArtistID     int64
	PlayCount    int64
	TotalSeconds float64
	LastPlayedAt time.Time
}

// TopTrack is a reporting row combining track identity with its totals.
type TopTrack struct {
	TrackID      int64
	Title        string
	ArtistName   string
	PlayCount    int64
	TotalSeconds float64
}
