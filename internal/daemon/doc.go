// Package daemon combines the HTTP API server and the stale upload janitor
// into a single lifecycle with flock-based locking to prevent multiple
// concurrent instances against the same directories.
package daemon
