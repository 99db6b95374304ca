// Package config loads, normalizes, and validates aircheck configuration.
//
// Configuration lives in a TOML file (default ~/.config/aircheck/config.toml)
// and is overridable through a small set of environment variables for
// deployment secrets: ACOUSTID_API_KEY, AUDD_API_KEY, DATABASE_URL,
// DETECTION_INTERVAL, MIN_CONFIDENCE_THRESHOLD, MAX_CONCURRENT_STATIONS,
// MERGE_WINDOW_SECONDS, and CHUNK_DURATION_SECONDS.
package config
