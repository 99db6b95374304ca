package config

import (
	"fmt"
	"strings"
)

func (c *Config) normalize() error {
	var err error
	if c.Paths.DataDir, err = expandPath(defaultIfBlank(c.Paths.DataDir, defaultDataDir)); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(defaultIfBlank(c.Paths.LogDir, defaultLogDir)); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}

	c.AcoustID.APIKey = strings.TrimSpace(c.AcoustID.APIKey)
	c.AcoustID.BaseURL = strings.TrimRight(defaultIfBlank(c.AcoustID.BaseURL, defaultAcoustIDBaseURL), "/")
	c.AudD.APIKey = strings.TrimSpace(c.AudD.APIKey)
	c.AudD.BaseURL = defaultIfBlank(c.AudD.BaseURL, defaultAudDBaseURL)
	c.MusicBrainz.BaseURL = strings.TrimRight(defaultIfBlank(c.MusicBrainz.BaseURL, defaultMusicBrainzBaseURL), "/")
	c.MusicBrainz.UserAgent = defaultIfBlank(c.MusicBrainz.UserAgent, defaultMusicBrainzAgent)

	if c.AcoustID.TimeoutSeconds <= 0 {
		c.AcoustID.TimeoutSeconds = defaultProviderTimeout
	}
	if c.AudD.TimeoutSeconds <= 0 {
		c.AudD.TimeoutSeconds = defaultProviderTimeout
	}
	if c.MusicBrainz.TimeoutSeconds <= 0 {
		c.MusicBrainz.TimeoutSeconds = defaultProviderTimeout
	}
	if c.Breaker.FailureThreshold <= 0 {
		c.Breaker.FailureThreshold = defaultBreakerFailures
	}
	if c.Breaker.WindowSeconds <= 0 {
		c.Breaker.WindowSeconds = defaultBreakerWindow
	}
	if c.Breaker.OpenSeconds <= 0 {
		c.Breaker.OpenSeconds = defaultBreakerOpen
	}

	c.Logging.Format = strings.ToLower(defaultIfBlank(c.Logging.Format, defaultLogFormat))
	c.Logging.Level = strings.ToLower(defaultIfBlank(c.Logging.Level, defaultLogLevel))
	return nil
}

func defaultIfBlank(value, fallback string) string {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	return strings.TrimSpace(value)
}
