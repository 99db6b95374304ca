// Package logging configures structured slog output for the aircheck daemon
// and CLI. It provides a human-oriented console handler, a JSON handler for
// log shipping, a shared field vocabulary, and typed attribute helpers.
package logging
