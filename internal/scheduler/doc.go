// Package scheduler runs the detection pipeline for a fleet of stations.
//
// Each active station gets one worker goroutine that owns its ingest session,
// feature extraction, identification, and play tracking end to end. Tracker
// state therefore never needs cross-worker synchronization; the only shared
// pieces are the store, the resolver (whose provider breakers are
// process-wide), and the event bus. A semaphore bounds how many stations
// stream concurrently.
package scheduler
