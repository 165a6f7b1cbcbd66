// Package encoding plans encode jobs and runs them against the external
// ffmpeg encoder.
//
// PlanJob is pure computation: it derives the variant playlist path, the
// segment filename pattern, and the full encoder directive list from a
// source asset and a ladder variant. Runner is the adapter around the
// ffmpeg client: Submit returns immediately and delivers progress and
// exactly one completion callback per job from a dedicated goroutine.
package encoding
