package config_test

import (
	"net/url"
	"os"
	"path/filepath"
	"testing"

	"aircheck/internal/config"
)

func TestDefaultValidates(t *testing.T) {
	cfg := config.Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}
}

// Provider clients append their own endpoint paths, so the shipped base
// URLs must stay bare hosts or every probe requests a doubled path.
func TestDefaultProviderBaseURLsAreBareHosts(t *testing.T) {
	cfg := config.Default()
	for name, raw := range map[string]string{
		"acoustid":    cfg.AcoustID.BaseURL,
		"audd":        cfg.AudD.BaseURL,
		"musicbrainz": cfg.MusicBrainz.BaseURL,
	} {
		parsed, err := url.Parse(raw)
		if err != nil {
			t.Fatalf("%s: parse %q: %v", name, raw, err)
		}
		if parsed.Path != "" && parsed.Path != "/" {
			t.Errorf("%s base url %q carries path %q", name, raw, parsed.Path)
		}
	}
}

func TestLoadAppliesFileValues(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	contents := `
[ingest]
chunk_seconds = 15

[detection]
merge_window_seconds = 30
max_stations = 8
`
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if !exists || resolved == "" {
		t.Fatalf("expected existing config at %q", path)
	}
	if cfg.Ingest.ChunkSeconds != 15 {
		t.Fatalf("chunk_seconds = %d, want 15", cfg.Ingest.ChunkSeconds)
	}
	if cfg.Detection.MergeWindowSeconds != 30 {
		t.Fatalf("merge_window_seconds = %d, want 30", cfg.Detection.MergeWindowSeconds)
	}
	if cfg.Detection.MaxStations != 8 {
		t.Fatalf("max_stations = %d, want 8", cfg.Detection.MaxStations)
	}
	// Unset sections keep defaults.
	if cfg.Detection.LocalThreshold != 0.7 {
		t.Fatalf("local_threshold = %g, want 0.7", cfg.Detection.LocalThreshold)
	}
}

func TestLoadAppliesEnvOverrides(t *testing.T) {
	t.Setenv("ACOUSTID_API_KEY", "env-acoustid")
	t.Setenv("MERGE_WINDOW_SECONDS", "20")
	t.Setenv("CHUNK_DURATION_SECONDS", "12")

	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	if err := os.WriteFile(path, []byte("[acoustid]\napi_key = \"file-key\"\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, _, _, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.AcoustID.APIKey != "env-acoustid" {
		t.Fatalf("env override lost: %q", cfg.AcoustID.APIKey)
	}
	if cfg.Detection.MergeWindowSeconds != 20 {
		t.Fatalf("merge window = %d, want 20", cfg.Detection.MergeWindowSeconds)
	}
	if cfg.Ingest.ChunkSeconds != 12 {
		t.Fatalf("chunk seconds = %d, want 12", cfg.Ingest.ChunkSeconds)
	}
}

func TestValidateRejectsOutOfRange(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*config.Config)
	}{
		{"chunk too short", func(c *config.Config) { c.Ingest.ChunkSeconds = 2 }},
		{"chunk too long", func(c *config.Config) { c.Ingest.ChunkSeconds = 45 }},
		{"merge window too small", func(c *config.Config) { c.Detection.MergeWindowSeconds = 2 }},
		{"merge window too large", func(c *config.Config) { c.Detection.MergeWindowSeconds = 90 }},
		{"threshold above one", func(c *config.Config) { c.Detection.LocalThreshold = 1.5 }},
		{"no workers", func(c *config.Config) { c.Detection.MaxStations = 0 }},
		{"bad log format", func(c *config.Config) { c.Logging.Format = "xml" }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := config.Default()
			tc.mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}

func TestDatabasePathStripsScheme(t *testing.T) {
	cfg := config.Default()
	cfg.Database.URL = "sqlite:///var/lib/aircheck/air.db"
	if got := cfg.DatabasePath(); got != "/var/lib/aircheck/air.db" {
		t.Fatalf("DatabasePath = %q", got)
	}
	cfg.Database.URL = ""
	cfg.Paths.DataDir = "/data"
	if got := cfg.DatabasePath(); got != filepath.Join("/data", "aircheck.db") {
		t.Fatalf("default DatabasePath = %q", got)
	}
}
