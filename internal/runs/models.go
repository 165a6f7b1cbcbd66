package runs

import (
	"strings"
	"time"
)

// Status represents the lifecycle of a run or one of its variant jobs.
type Status string

const (
	StatusPending   Status = "pending"
	StatusEncoding  Status = "encoding"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

var allStatuses = []Status{
	StatusPending,
	StatusEncoding,
	StatusCompleted,
	StatusFailed,
}

var statusSet = func() map[Status]struct{} {
	set := make(map[Status]struct{}, len(allStatuses))
	for _, status := range allStatuses {
		set[status] = struct{}{}
	}
	return set
}()

// ParseStatus converts a string into a known Status.
func ParseStatus(value string) (Status, bool) {
	normalized := Status(strings.ToLower(strings.TrimSpace(value)))
	if normalized == "" {
		return "", false
	}
	_, ok := statusSet[normalized]
	return normalized, ok
}

// Run is one upload's journey through the transcoding pipeline.
type Run struct {
	ID             string
	SourceFilename string
	BaseName       string
	OutputRoot     string
	ManifestPath   string
	Status         Status
	ErrorMessage   string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Job tracks one ladder variant within a run.
type Job struct {
	RunID           string
	Variant         string
	Resolution      string
	VideoKbps       int
	Status          Status
	ProgressPercent float64
	ErrorMessage    string
	UpdatedAt       time.Time
}

// IsTerminal reports whether the status is a final state.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}
