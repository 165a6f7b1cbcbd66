package transcode

import (
	"context"
	"log/slog"
	"os"
	"sync"

	"github.com/google/uuid"

	"hlspress/internal/config"
	"hlspress/internal/encoding"
	"hlspress/internal/hls"
	"hlspress/internal/logging"
	"hlspress/internal/media/ffprobe"
	"hlspress/internal/runs"
	"hlspress/internal/services"
	"hlspress/internal/services/ffmpeg"
	"hlspress/internal/staging"
)

// Recorder persists run lifecycle events. *runs.Store satisfies it; tests
// may substitute a lighter implementation.
type Recorder interface {
	Create(ctx context.Context, run *runs.Run, jobs []runs.Job) error
	SetRunStatus(ctx context.Context, id string, status runs.Status, errorMessage string) error
	CompleteRun(ctx context.Context, id, manifestPath string) error
	SetJobStatus(ctx context.Context, runID, variant string, status runs.Status, errorMessage string) error
	UpdateJobProgress(ctx context.Context, runID, variant string, percent float64) error
}

// Result summarizes one successful run.
type Result struct {
	RunID        string
	BaseName     string
	OutputRoot   string
	ManifestPath string
	Variants     []string
}

// ProbeFunc inspects a source file before encoding. The default shells out
// to ffprobe.
type ProbeFunc func(ctx context.Context, path string) (ffprobe.Result, error)

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithProbe overrides how sources are inspected.
func WithProbe(probe ProbeFunc) Option {
	return func(o *Orchestrator) {
		if probe != nil {
			o.probe = probe
		}
	}
}

// Orchestrator drives uploads through probe, encode fan-out, manifest
// publication, and source cleanup.
type Orchestrator struct {
	cfg      *config.Config
	runner   *encoding.Runner
	recorder Recorder
	registry *registry
	logger   *slog.Logger
	probe    ProbeFunc
}

// New constructs an Orchestrator around an ffmpeg client and a run recorder.
// recorder may be nil when persistence is not wanted.
func New(cfg *config.Config, client ffmpeg.Client, recorder Recorder, logger *slog.Logger, opts ...Option) *Orchestrator {
	if recorder == nil {
		recorder = nopRecorder{}
	}
	orch := &Orchestrator{
		cfg:      cfg,
		runner:   encoding.NewRunner(client, cfg.EncodeConcurrency(), cfg.JobTimeout(), logger),
		recorder: recorder,
		registry: newRegistry(),
		logger:   logging.NewComponentLogger(logger, "transcode"),
	}
	orch.probe = func(ctx context.Context, path string) (ffprobe.Result, error) {
		return ffprobe.Inspect(ctx, cfg.FFmpeg.FFprobeBinary, path)
	}
	for _, opt := range opts {
		opt(orch)
	}
	return orch
}

// Run processes one uploaded file to completion and blocks until every
// variant finishes. On full success the uploaded source has been deleted and
// the returned Result carries the master playlist path. On any variant
// failure the source is retained and the error wraps an *EncodeError.
func (o *Orchestrator) Run(ctx context.Context, uploadedPath, originalFilename string) (Result, error) {
	asset, err := encoding.NewSourceAsset(uploadedPath, originalFilename, o.cfg.Paths.OutputDir)
	if err != nil {
		return Result{}, err
	}

	if !o.registry.acquire(asset.OutputRoot) {
		return Result{}, services.Wrap(services.ErrConflict, "transcode", "register run",
			"A transcode for "+asset.BaseName+" is already in progress", nil)
	}
	defer o.registry.release(asset.OutputRoot)

	ladder := o.cfg.Ladder()
	if err := hls.ValidateLadder(ladder); err != nil {
		return Result{}, err
	}

	runID := uuid.NewString()
	runLogger := o.logger.With(
		logging.String(logging.FieldRunID, runID),
		logging.String(logging.FieldSource, asset.BaseName),
	)

	probe, err := o.probe(ctx, asset.Path)
	if err != nil {
		return Result{}, services.Wrap(services.ErrExternalTool, "transcode", "probe source",
			"ffprobe could not inspect the upload", err)
	}
	if !probe.HasVideo() {
		return Result{}, services.Wrap(services.ErrValidation, "transcode", "probe source",
			"Upload has no video stream", nil)
	}
	duration := probe.DurationSeconds()

	record := &runs.Run{
		ID:             runID,
		SourceFilename: originalFilename,
		BaseName:       asset.BaseName,
		OutputRoot:     asset.OutputRoot,
	}
	jobRecords := make([]runs.Job, 0, len(ladder))
	for _, variant := range ladder {
		jobRecords = append(jobRecords, runs.Job{
			RunID:      runID,
			Variant:    variant.Name,
			Resolution: variant.Resolution(),
			VideoKbps:  variant.VideoBitrateKbps,
		})
	}
	if err := o.recorder.Create(ctx, record, jobRecords); err != nil {
		return Result{}, services.Wrap(services.ErrTransient, "transcode", "record run",
			"Failed to persist run", err)
	}

	jobs := make([]encoding.Job, 0, len(ladder))
	for _, variant := range ladder {
		jobs = append(jobs, encoding.PlanJob(asset, variant, o.cfg.FFmpeg.SegmentSeconds))
	}
	for _, job := range jobs {
		if err := staging.EnsureDir(job.VariantDir()); err != nil {
			o.failRun(ctx, runID, err.Error())
			return Result{}, err
		}
	}

	runLogger.Info("starting transcode run",
		logging.Int("variants", len(jobs)),
		logging.Float64("duration_seconds", duration),
	)
	_ = o.recorder.SetRunStatus(ctx, runID, runs.StatusEncoding, "")

	// Completion slots are indexed by catalog position so aggregation order
	// never depends on which encode finishes first.
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		results = make([]error, len(jobs))
	)
	for i, job := range jobs {
		wg.Add(1)
		slot := i
		variantName := job.Variant.Name
		_ = o.recorder.SetJobStatus(ctx, runID, variantName, runs.StatusEncoding, "")
		o.runner.Submit(ctx, job, duration, encoding.Hooks{
			OnProgress: func(percent float64) {
				_ = o.recorder.UpdateJobProgress(ctx, runID, variantName, percent)
			},
			OnComplete: func(err error) {
				mu.Lock()
				results[slot] = err
				mu.Unlock()
				if err != nil {
					_ = o.recorder.SetJobStatus(ctx, runID, variantName, runs.StatusFailed, err.Error())
					runLogger.Error("variant encode failed",
						logging.String(logging.FieldVariant, variantName),
						logging.Error(err),
					)
				} else {
					_ = o.recorder.SetJobStatus(ctx, runID, variantName, runs.StatusCompleted, "")
				}
				wg.Done()
			},
		})
	}
	wg.Wait()

	var failures []VariantFailure
	for i, err := range results {
		if err != nil {
			failures = append(failures, VariantFailure{Variant: ladder[i].Name, Err: err})
		}
	}
	if len(failures) > 0 {
		encodeErr := &EncodeError{Submitted: len(jobs), Failures: failures}
		o.failRun(ctx, runID, encodeErr.Error())
		runLogger.Error("transcode run failed",
			logging.Int("failed_variants", len(failures)),
			logging.Int("submitted_variants", len(jobs)),
		)
		return Result{}, services.Wrap(services.ErrExternalTool, "transcode", "encode",
			"One or more variants failed; source retained", encodeErr)
	}

	manifestPath, err := hls.WriteMaster(asset.OutputRoot, asset.BaseName, ladder)
	if err != nil {
		o.failRun(ctx, runID, err.Error())
		return Result{}, err
	}
	if err := o.recorder.CompleteRun(ctx, runID, manifestPath); err != nil {
		runLogger.Warn("failed to persist run completion", logging.Error(err))
	}

	// Source cleanup failure never fails a run that already published.
	if err := os.Remove(asset.Path); err != nil {
		runLogger.Warn("failed to delete uploaded source",
			logging.String("path", asset.Path),
			logging.Error(err),
		)
	}

	variantNames := make([]string, 0, len(ladder))
	for _, variant := range ladder {
		variantNames = append(variantNames, variant.Name)
	}
	runLogger.Info("transcode run completed", logging.String("manifest", manifestPath))
	return Result{
		RunID:        runID,
		BaseName:     asset.BaseName,
		OutputRoot:   asset.OutputRoot,
		ManifestPath: manifestPath,
		Variants:     variantNames,
	}, nil
}

func (o *Orchestrator) failRun(ctx context.Context, runID, message string) {
	if err := o.recorder.SetRunStatus(ctx, runID, runs.StatusFailed, message); err != nil {
		o.logger.Warn("failed to persist run failure", logging.Error(err))
	}
}

type nopRecorder struct{}

func (nopRecorder) Create(context.Context, *runs.Run, []runs.Job) error { return nil }
func (nopRecorder) SetRunStatus(context.Context, string, runs.Status, string) error {
	return nil
}
func (nopRecorder) CompleteRun(context.Context, string, string) error { return nil }
func (nopRecorder) SetJobStatus(context.Context, string, string, runs.Status, string) error {
	return nil
}
func (nopRecorder) UpdateJobProgress(context.Context, string, string, float64) error {
	return nil
}
