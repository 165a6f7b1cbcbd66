package encoding

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"hlspress/internal/hls"
	"hlspress/internal/services"
)

// SourceAsset identifies one uploaded file and the output root derived from
// its original filename. The output root is deterministic, so a re-upload of
// the same filename targets the same directory; the orchestrator's run
// registry turns that into a conflict instead of a silent merge.
type SourceAsset struct {
	Path       string
	BaseName   string
	OutputRoot string
}

// NewSourceAsset derives the base name and output root for an upload.
func NewSourceAsset(uploadedPath, originalFilename, outputDir string) (SourceAsset, error) {
	uploadedPath = strings.TrimSpace(uploadedPath)
	if uploadedPath == "" {
		return SourceAsset{}, services.Wrap(services.ErrValidation, "encoding", "source asset", "Upload a file to begin transcoding", nil)
	}
	base := filepath.Base(strings.TrimSpace(originalFilename))
	base = strings.TrimSuffix(base, filepath.Ext(base))
	if base == "" || base == "." {
		return SourceAsset{}, services.Wrap(services.ErrValidation, "encoding", "source asset", "Original filename has no usable base name", nil)
	}
	return SourceAsset{
		Path:       uploadedPath,
		BaseName:   base,
		OutputRoot: filepath.Join(outputDir, base),
	}, nil
}

// Job pairs a source asset with one ladder variant. It is a pure plan; no
// process is started until the Runner submits it.
type Job struct {
	Variant        hls.Variant
	Source         SourceAsset
	PlaylistPath   string
	SegmentPattern string
	SegmentSeconds int
}

// PlanJob computes the output paths and directives for one (source, variant)
// pair.
func PlanJob(source SourceAsset, variant hls.Variant, segmentSeconds int) Job {
	if segmentSeconds <= 0 {
		segmentSeconds = 10
	}
	variantDir := filepath.Join(source.OutputRoot, variant.Name)
	return Job{
		Variant:        variant,
		Source:         source,
		PlaylistPath:   filepath.Join(variantDir, source.BaseName+".m3u8"),
		SegmentPattern: filepath.Join(variantDir, source.BaseName+"_%03d.ts"),
		SegmentSeconds: segmentSeconds,
	}
}

// VariantDir returns the per-variant output directory the job writes into.
func (j Job) VariantDir() string {
	return filepath.Dir(j.PlaylistPath)
}

// OutputArgs returns the encoder directive list for this job, ending with
// the variant playlist path.
func (j Job) OutputArgs() []string {
	return []string{
		"-vf", "scale=" + j.Variant.Scale(),
		"-c:v", "libx264",
		"-c:a", "aac",
		"-b:v", strconv.Itoa(j.Variant.VideoBitrateKbps) + "k",
		"-b:a", strconv.Itoa(j.Variant.AudioBitrateKbps) + "k",
		"-f", "hls",
		"-hls_time", strconv.Itoa(j.SegmentSeconds),
		"-hls_flags", "independent_segments",
		"-hls_list_size", "0",
		"-hls_playlist_type", "vod",
		"-hls_segment_filename", j.SegmentPattern,
		j.PlaylistPath,
	}
}

// Describe returns a loggable one-line summary of the job.
func (j Job) Describe() string {
	return fmt.Sprintf("%s (%s @ %dk)", j.Variant.Name, j.Variant.Resolution(), j.Variant.VideoBitrateKbps)
}
