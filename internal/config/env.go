package config

import (
	"os"
	"strconv"
	"strings"
)

// applyEnv layers deployment environment variables over file values.
// Only the documented override set is consulted.
func (c *Config) applyEnv() {
	if v, ok := envString("ACOUSTID_API_KEY"); ok {
		c.AcoustID.APIKey = v
	}
	if v, ok := envString("AUDD_API_KEY"); ok {
		c.AudD.APIKey = v
	}
	if v, ok := envString("DATABASE_URL"); ok {
		c.Database.URL = v
	}
	if v, ok := envInt("DETECTION_INTERVAL"); ok {
		c.Detection.IntervalSeconds = v
	}
	if v, ok := envInt("MAX_CONCURRENT_STATIONS"); ok {
		c.Detection.MaxStations = v
	}
	if v, ok := envInt("MERGE_WINDOW_SECONDS"); ok {
		c.Detection.MergeWindowSeconds = v
	}
	if v, ok := envInt("CHUNK_DURATION_SECONDS"); ok {
		c.Ingest.ChunkSeconds = v
	}
	if v, ok := envFloat("MIN_CONFIDENCE_THRESHOLD"); ok {
		c.Detection.LocalThreshold = v
	}
}

func envString(key string) (string, bool) {
	value, ok := os.LookupEnv(key)
	if !ok {
		return "", false
	}
	value = strings.TrimSpace(value)
	if value == "" {
		return "", false
	}
	return value, true
}

func envInt(key string) (int, bool) {
	value, ok := envString(key)
	if !ok {
		return 0, false
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return 0, false
	}
	return parsed, true
}

func envFloat(key string) (float64, bool) {
	value, ok := envString(key)
	if !ok {
		return 0, false
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, false
	}
	return parsed, true
}
