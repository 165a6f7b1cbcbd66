// Package api exposes the HTTP surface: upload-and-transcode, run history,
// health, and static delivery of finished HLS renditions.
//
// POST /api/transcode/new accepts a multipart upload under the "file" field,
// stages it into the upload scratch directory, and runs the transcode
// pipeline synchronously; the response carries the master playlist URL.
// GET /api/runs and /api/runs/:id serve persisted run history. /videos/
// serves the output root as static content for HLS playback.
package api
