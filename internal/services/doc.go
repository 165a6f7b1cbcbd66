// Package services defines the shared error taxonomy used across the
// transcoding pipeline.
//
// Sentinel errors classify failures for later handling:
//   - ErrValidation: bad or missing caller input (no upload, empty path)
//   - ErrConflict: an orchestration run already owns the target output root
//   - ErrConfiguration: the encoder binary is missing or misconfigured
//   - ErrExternalTool: the encoder ran but exited abnormally or produced no output
//   - ErrTimeout: an encode exceeded its watchdog deadline
//   - ErrTransient: filesystem or other retryable failures (staging, manifest IO)
//   - ErrNotFound: a referenced run or resource does not exist
//
// Wrap tags an error with one of the sentinels plus component/operation
// context so the HTTP layer can map it to a status code with errors.Is.
package services
