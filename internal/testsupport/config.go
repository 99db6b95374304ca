package testsupport

import (
	"path/filepath"
	"testing"

	"aircheck/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*config.Config)

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.DataDir = filepath.Join(base, "data")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.Database.URL = "sqlite://" + filepath.Join(base, "data", "aircheck.db")

	for _, opt := range opts {
		opt(&cfg)
	}

	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure directories: %v", err)
	}
	return &cfg
}

// WithAcoustIDKey sets the AcoustID API key on the test config.
func WithAcoustIDKey(key string) ConfigOption {
	return func(cfg *config.Config) {
		cfg.AcoustID.APIKey = key
	}
}

// WithAudDKey sets the AudD API key on the test config.
func WithAudDKey(key string) ConfigOption {
	return func(cfg *config.Config) {
		cfg.AudD.APIKey = key
	}
}

// WithDetectionInterval overrides the polling interval in seconds.
func WithDetectionInterval(seconds int) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Detection.IntervalSeconds = seconds
	}
}
