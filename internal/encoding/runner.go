package encoding

import (
	"context"
	"errors"
	"os"
	"time"

	"log/slog"

	"golang.org/x/sync/semaphore"

	"hlspress/internal/logging"
	"hlspress/internal/services"
	"hlspress/internal/services/ffmpeg"
)

// Hooks carries the per-job callbacks the orchestrator registers at submit
// time. Both callbacks are invoked from the job's own goroutine, so delivery
// is serial per job; OnComplete fires exactly once.
type Hooks struct {
	OnProgress func(percent float64)
	OnComplete func(err error)
}

// Runner submits encode jobs to the ffmpeg client. A weighted semaphore
// bounds how many encode processes run at once; Submit itself never blocks.
type Runner struct {
	client  ffmpeg.Client
	sem     *semaphore.Weighted
	timeout time.Duration
	logger  *slog.Logger
}

// NewRunner constructs a Runner. maxConcurrent must be positive; timeout
// bounds each encode process (the watchdog from config).
func NewRunner(client ffmpeg.Client, maxConcurrent int, timeout time.Duration, logger *slog.Logger) *Runner {
	if maxConcurrent <= 0 {
		maxConcurrent = 1
	}
	return &Runner{
		client:  client,
		sem:     semaphore.NewWeighted(int64(maxConcurrent)),
		timeout: timeout,
		logger:  logging.NewComponentLogger(logger, "encoder"),
	}
}

// Submit starts one encode job asynchronously. durationSeconds anchors
// progress percentages and may be zero when the source duration is unknown.
func (r *Runner) Submit(ctx context.Context, job Job, durationSeconds float64, hooks Hooks) {
	go func() {
		err := r.encode(ctx, job, durationSeconds, hooks.OnProgress)
		if hooks.OnComplete != nil {
			hooks.OnComplete(err)
		}
	}()
}

func (r *Runner) encode(ctx context.Context, job Job, durationSeconds float64, onProgress func(float64)) error {
	if err := r.sem.Acquire(ctx, 1); err != nil {
		return services.Wrap(services.ErrTransient, "encoding", "acquire encode slot", job.Variant.Name, err)
	}
	defer r.sem.Release(1)

	jobLogger := r.logger.With(
		logging.String(logging.FieldVariant, job.Variant.Name),
		logging.String(logging.FieldSource, job.Source.BaseName),
	)
	jobLogger.Info("launching ffmpeg encode",
		logging.String("playlist", job.PlaylistPath),
		logging.String("job", job.Describe()),
	)

	encodeCtx := ctx
	cancel := context.CancelFunc(func() {})
	if r.timeout > 0 {
		encodeCtx, cancel = context.WithTimeout(ctx, r.timeout)
	}
	defer cancel()

	sampler := logging.NewProgressSampler(10)
	lastPercent := 0.0
	progress := func(update ffmpeg.ProgressUpdate) {
		percent := update.Percent
		if percent < 0 {
			return
		}
		// Progress from ffmpeg is approximate; never report a step backward.
		if percent < lastPercent {
			return
		}
		lastPercent = percent
		if sampler.ShouldLog(percent) {
			jobLogger.Info("encode progress",
				logging.Float64("progress_percent", percent),
				logging.String("speed", update.Speed),
			)
		}
		if onProgress != nil {
			onProgress(percent)
		}
	}

	req := ffmpeg.Request{
		InputPath:       job.Source.Path,
		OutputArgs:      job.OutputArgs(),
		DurationSeconds: durationSeconds,
	}
	err := r.client.Encode(encodeCtx, req, progress)
	if err != nil {
		switch {
		case ffmpeg.IsLaunchError(err):
			return services.Wrap(services.ErrConfiguration, "encoding", "launch ffmpeg",
				"Encoder executable missing or not runnable; check ffmpeg.binary in config", err)
		case errors.Is(encodeCtx.Err(), context.DeadlineExceeded):
			return services.Wrap(services.ErrTimeout, "encoding", "ffmpeg encode",
				"Encode exceeded the job watchdog; raise ffmpeg.job_timeout_minutes or inspect the source", err)
		default:
			return services.Wrap(services.ErrExternalTool, "encoding", "ffmpeg encode",
				"ffmpeg exited abnormally for variant "+job.Variant.Name, err)
		}
	}

	if _, statErr := os.Stat(job.PlaylistPath); statErr != nil {
		return services.Wrap(services.ErrExternalTool, "encoding", "verify output",
			"Encoder reported success but produced no variant playlist", statErr)
	}

	jobLogger.Info("encode complete", logging.String("playlist", job.PlaylistPath))
	return nil
}
