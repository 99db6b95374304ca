// Package resolve implements the identification cascade. Each music chunk is
// matched against the local catalog first and escalated to external services
// only when necessary, so at most one paid API call happens per chunk. The
// cascade order is fixed and every step carries its own timeout.
package resolve
