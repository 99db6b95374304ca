package config

import (
	"errors"
	"fmt"
)

// Validate ensures the configuration is usable. Failures here are
// configuration errors: the daemon refuses to start on any of them.
func (c *Config) Validate() error {
	if err := c.validateIngest(); err != nil {
		return err
	}
	if err := c.validateDetection(); err != nil {
		return err
	}
	if err := c.validateProviders(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateIngest() error {
	if c.Ingest.ChunkSeconds < 5 || c.Ingest.ChunkSeconds > 30 {
		return fmt.Errorf("ingest.chunk_seconds must be between 5 and 30, got %d", c.Ingest.ChunkSeconds)
	}
	if c.Ingest.SampleRate <= 0 {
		return errors.New("ingest.sample_rate must be positive")
	}
	if c.Ingest.Channels != 1 && c.Ingest.Channels != 2 {
		return fmt.Errorf("ingest.channels must be 1 or 2, got %d", c.Ingest.Channels)
	}
	if c.Ingest.ReadTimeout <= 0 {
		return errors.New("ingest.read_timeout must be positive")
	}
	if c.Ingest.BackoffInitial <= 0 || c.Ingest.BackoffCap < c.Ingest.BackoffInitial {
		return errors.New("ingest backoff settings must satisfy 0 < initial <= cap")
	}
	if c.Ingest.MaxStreamRetries <= 0 {
		return errors.New("ingest.max_stream_retries must be positive")
	}
	return nil
}

func (c *Config) validateDetection() error {
	if c.Detection.MergeWindowSeconds < 5 || c.Detection.MergeWindowSeconds > 60 {
		return fmt.Errorf("detection.merge_window_seconds must be between 5 and 60, got %d", c.Detection.MergeWindowSeconds)
	}
	if c.Detection.MaxStations <= 0 {
		return errors.New("detection.max_stations must be positive")
	}
	if c.Detection.IntervalSeconds <= 0 {
		return errors.New("detection.interval_seconds must be positive")
	}
	if c.Detection.MaxPlaySeconds <= 0 {
		return errors.New("detection.max_play_seconds must be positive")
	}
	for name, value := range map[string]float64{
		"detection.local_threshold":       c.Detection.LocalThreshold,
		"detection.chromaprint_threshold": c.Detection.ChromaThreshold,
		"detection.acoustid_threshold":    c.Detection.AcoustIDThreshold,
		"detection.audd_threshold":        c.Detection.AudDThreshold,
		"detection.fuzzy_title_threshold": c.Detection.FuzzyTitleThreshold,
	} {
		if value < 0 || value > 1 {
			return fmt.Errorf("%s must be between 0 and 1, got %g", name, value)
		}
	}
	return nil
}

func (c *Config) validateProviders() error {
	// Local-only operation is allowed; external probes are skipped without keys.
	if c.AcoustID.BaseURL == "" {
		return errors.New("acoustid.base_url must be set")
	}
	if c.AudD.BaseURL == "" {
		return errors.New("audd.base_url must be set")
	}
	if c.MusicBrainz.BaseURL == "" {
		return errors.New("musicbrainz.base_url must be set")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be console or json, got %q", c.Logging.Format)
	}
	return nil
}
