package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	DataDir string `toml:"data_dir"`
	LogDir  string `toml:"log_dir"`
}

// Database contains persistence settings.
type Database struct {
	// URL points at the SQLite database file. Overridable via DATABASE_URL.
	URL string `toml:"url"`
}

// Ingest contains stream ingestion settings.
type Ingest struct {
	ChunkSeconds     int `toml:"chunk_seconds"`
	SampleRate       int `toml:"sample_rate"`
	Channels         int `toml:"channels"`
	ReadTimeout      int `toml:"read_timeout"`
	BackoffInitial   int `toml:"backoff_initial"`
	BackoffCap       int `toml:"backoff_cap"`
	MaxStreamRetries int `toml:"max_stream_retries"`
}

// Detection contains pipeline timing and threshold settings.
type Detection struct {
	IntervalSeconds     int     `toml:"interval_seconds"`
	MergeWindowSeconds  int     `toml:"merge_window_seconds"`
	MaxPlaySeconds      int     `toml:"max_play_seconds"`
	SweepSeconds        int     `toml:"sweep_seconds"`
	MaxStations         int     `toml:"max_stations"`
	LocalThreshold      float64 `toml:"local_threshold"`
	ChromaThreshold     float64 `toml:"chromaprint_threshold"`
	AcoustIDThreshold   float64 `toml:"acoustid_threshold"`
	AudDThreshold       float64 `toml:"audd_threshold"`
	FuzzyTitleThreshold float64 `toml:"fuzzy_title_threshold"`
}

// AcoustID contains settings for the AcoustID lookup service.
type AcoustID struct {
	APIKey         string `toml:"api_key"`
	BaseURL        string `toml:"base_url"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// AudD contains settings for the AudD content recognition service.
type AudD struct {
	APIKey         string `toml:"api_key"`
	BaseURL        string `toml:"base_url"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// MusicBrainz contains settings for the MusicBrainz recording directory.
type MusicBrainz struct {
	BaseURL        string `toml:"base_url"`
	UserAgent      string `toml:"user_agent"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// Breaker contains circuit breaker settings shared by external providers.
type Breaker struct {
	FailureThreshold int `toml:"failure_threshold"`
	WindowSeconds    int `toml:"window_seconds"`
	OpenSeconds      int `toml:"open_seconds"`
}

// Notifications contains ntfy push notification settings.
type Notifications struct {
	NtfyTopic      string `toml:"ntfy_topic"`
	RequestTimeout int    `toml:"request_timeout"`
}

// Logging contains log output settings.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for aircheck.
//
// Sections by subsystem:
//   - Paths: data and log directories
//   - Database: SQLite location
//   - Ingest: chunk duration, PCM format, reconnect policy
//   - Detection: scheduler sizing, merge window, confidence thresholds
//   - AcoustID / AudD / MusicBrainz: external identification providers
//   - Breaker: shared circuit breaker tuning
//   - Notifications: optional ntfy operator alerts
//   - Logging: format and level
type Config struct {
	Paths         Paths         `toml:"paths"`
	Database      Database      `toml:"database"`
	Ingest        Ingest        `toml:"ingest"`
	Detection     Detection     `toml:"detection"`
	AcoustID      AcoustID      `toml:"acoustid"`
	AudD          AudD          `toml:"audd"`
	MusicBrainz   MusicBrainz   `toml:"musicbrainz"`
	Breaker       Breaker       `toml:"breaker"`
	Notifications Notifications `toml:"notifications"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/aircheck/config.toml")
}

// Load locates, parses, normalizes, and validates a configuration file.
// Environment overrides are applied after file values.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	cfg.applyEnv()

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}
	projectPath, err := filepath.Abs("aircheck.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}
	return defaultPath, false, nil
}

// EnsureDirectories creates required directories for daemon operation.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.DataDir, c.Paths.LogDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// DatabasePath resolves the SQLite file path from the database URL. A bare
// path and a sqlite:// prefix are both accepted.
func (c *Config) DatabasePath() string {
	url := strings.TrimSpace(c.Database.URL)
	url = strings.TrimPrefix(url, "sqlite://")
	url = strings.TrimPrefix(url, "sqlite3://")
	if url == "" {
		return filepath.Join(c.Paths.DataDir, "aircheck.db")
	}
	return url
}

// ChunkDuration returns the configured chunk length.
func (c *Config) ChunkDuration() time.Duration {
	return time.Duration(c.Ingest.ChunkSeconds) * time.Second
}

// MergeWindow returns the configured play-session merge window.
func (c *Config) MergeWindow() time.Duration {
	return time.Duration(c.Detection.MergeWindowSeconds) * time.Second
}

// FFmpegBinary returns the stream decoder executable name.
func (c *Config) FFmpegBinary() string {
	return "ffmpeg"
}

// FpcalcBinary returns the Chromaprint fingerprinter executable name.
func (c *Config) FpcalcBinary() string {
	return "fpcalc"
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
