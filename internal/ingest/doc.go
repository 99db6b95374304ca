// Package ingest connects to Internet radio streams and turns them into
// fixed-duration PCM chunks.
//
// A Session probes the stream URL, spawns ffmpeg to decode whatever codec the
// station serves into raw s16le PCM, and strips in-band ICY metadata along the
// way. Reconnects are handled transparently with exponential backoff until the
// retry budget is spent, at which point the session reports itself degraded
// and the scheduler decides what to do with the station.
package ingest
