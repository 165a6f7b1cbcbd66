package transcode

import (
	"fmt"
	"strings"
)

// VariantFailure records one ladder variant's encode error.
type VariantFailure struct {
	Variant string
	Err     error
}

// EncodeError aggregates per-variant failures from one run. Failures appear
// in catalog order regardless of completion order. Surviving variant output
// stays on disk for inspection; the run publishes no master playlist.
type EncodeError struct {
	// Submitted is the full ladder size the run fanned out to.
	Submitted int
	Failures  []VariantFailure
}

func (e *EncodeError) Error() string {
	if len(e.Failures) == 0 {
		return "transcode failed"
	}
	total := e.Submitted
	if total < len(e.Failures) {
		total = len(e.Failures)
	}
	parts := make([]string, 0, len(e.Failures))
	for _, failure := range e.Failures {
		parts = append(parts, fmt.Sprintf("%s: %v", failure.Variant, failure.Err))
	}
	return fmt.Sprintf("transcode failed for %d of %d submitted variants: %s",
		len(e.Failures), total, strings.Join(parts, "; "))
}

// Unwrap exposes the underlying variant errors so callers can match their
// markers with errors.Is.
func (e *EncodeError) Unwrap() []error {
	errs := make([]error, 0, len(e.Failures))
	for _, failure := range e.Failures {
		errs = append(errs, failure.Err)
	}
	return errs
}
