// Package logging wraps log/slog construction for the daemon and CLI.
//
// It provides Attr helper aliases so call sites avoid importing slog
// directly, a console handler for interactive terminals, a JSON handler for
// machine consumption, and a ProgressSampler that keeps encode progress logs
// readable.
package logging
