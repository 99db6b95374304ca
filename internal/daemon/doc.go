// Package daemon ties the detection engine together for background
// operation: single-instance locking, the station scheduler, and the control
// surface the IPC server exposes to the CLI.
package daemon
