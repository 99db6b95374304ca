// Package store persists aircheck's catalog and detection history in SQLite.
//
// It owns stations, artists, tracks, fingerprints, detections, and the three
// derived stats projections. Writes that must be atomic (detection
// finalization plus stats upserts) run through InTx, which retries a bounded
// number of times on lock contention.
package store
