// Package ipc exposes the daemon control surface over JSON-RPC on a Unix
// domain socket. The CLI is the only intended client; the protocol is not a
// stable external API.
package ipc
