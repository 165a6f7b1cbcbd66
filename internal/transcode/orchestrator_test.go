package transcode_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"hlspress/internal/config"
	"hlspress/internal/hls"
	"hlspress/internal/logging"
	"hlspress/internal/media/ffprobe"
	"hlspress/internal/runs"
	"hlspress/internal/services"
	"hlspress/internal/services/ffmpeg"
	"hlspress/internal/transcode"
)

type stubClient struct {
	encode func(ctx context.Context, req ffmpeg.Request, progress func(ffmpeg.ProgressUpdate)) error
}

func (s *stubClient) Encode(ctx context.Context, req ffmpeg.Request, progress func(ffmpeg.ProgressUpdate)) error {
	return s.encode(ctx, req, progress)
}

// playlistPath is the final output argument of an encode request.
func playlistPath(req ffmpeg.Request) string {
	return req.OutputArgs[len(req.OutputArgs)-1]
}

func variantOf(req ffmpeg.Request) string {
	return filepath.Base(filepath.Dir(playlistPath(req)))
}

func succeedEncode(ctx context.Context, req ffmpeg.Request, progress func(ffmpeg.ProgressUpdate)) error {
	if progress != nil {
		progress(ffmpeg.ProgressUpdate{Percent: 50})
		progress(ffmpeg.ProgressUpdate{Percent: 100})
	}
	return os.WriteFile(playlistPath(req), []byte("#EXTM3U\n"), 0o644)
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	root := t.TempDir()
	return &config.Config{
		Paths: config.Paths{
			UploadDir: filepath.Join(root, "uploads"),
			OutputDir: filepath.Join(root, "videos"),
			LogDir:    filepath.Join(root, "logs"),
		},
		FFmpeg:   config.FFmpeg{SegmentSeconds: 10},
		Variants: hls.DefaultLadder(),
	}
}

func stageUpload(t *testing.T, cfg *config.Config, name string) string {
	t.Helper()
	if err := os.MkdirAll(cfg.Paths.UploadDir, 0o755); err != nil {
		t.Fatalf("mkdir uploads: %v", err)
	}
	path := filepath.Join(cfg.Paths.UploadDir, name)
	if err := os.WriteFile(path, []byte("not really video"), 0o644); err != nil {
		t.Fatalf("write upload: %v", err)
	}
	return path
}

func videoProbe(duration float64) transcode.ProbeFunc {
	return func(ctx context.Context, path string) (ffprobe.Result, error) {
		return ffprobe.Result{
			Streams: []ffprobe.Stream{{CodecType: "video", CodecName: "h264"}},
			Format:  ffprobe.Format{Duration: strconv.FormatFloat(duration, 'f', -1, 64)},
		}, nil
	}
}

func TestRunFullSuccess(t *testing.T) {
	cfg := testConfig(t)
	upload := stageUpload(t, cfg, "staged.mp4")
	client := &stubClient{encode: succeedEncode}

	orch := transcode.New(cfg, client, nil, logging.NewNop(), transcode.WithProbe(videoProbe(120)))
	result, err := orch.Run(context.Background(), upload, "movie.mp4")
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	if result.BaseName != "movie" {
		t.Fatalf("base name = %q", result.BaseName)
	}
	wantRoot := filepath.Join(cfg.Paths.OutputDir, "movie")
	if result.OutputRoot != wantRoot {
		t.Fatalf("output root = %q, want %q", result.OutputRoot, wantRoot)
	}
	if result.ManifestPath != filepath.Join(wantRoot, "master.m3u8") {
		t.Fatalf("manifest path = %q", result.ManifestPath)
	}

	data, err := os.ReadFile(result.ManifestPath)
	if err != nil {
		t.Fatalf("read master: %v", err)
	}
	content := string(data)
	if !strings.HasPrefix(content, "#EXTM3U\n#EXT-X-VERSION:3\n") {
		t.Fatalf("master header wrong:\n%s", content)
	}
	for _, variant := range cfg.Variants {
		if !strings.Contains(content, variant.Name+"/movie.m3u8") {
			t.Fatalf("master missing %s entry:\n%s", variant.Name, content)
		}
	}

	if _, err := os.Stat(upload); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("uploaded source should be deleted, stat err = %v", err)
	}
}

func TestRunMasterListsVariantsInCatalogOrder(t *testing.T) {
	cfg := testConfig(t)
	upload := stageUpload(t, cfg, "staged.mp4")

	// Later catalog entries complete first; the master must still follow
	// catalog order.
	delays := map[string]time.Duration{}
	for i, variant := range cfg.Variants {
		delays[variant.Name] = time.Duration(len(cfg.Variants)-i) * 20 * time.Millisecond
	}
	client := &stubClient{encode: func(ctx context.Context, req ffmpeg.Request, progress func(ffmpeg.ProgressUpdate)) error {
		time.Sleep(delays[variantOf(req)])
		return succeedEncode(ctx, req, progress)
	}}

	orch := transcode.New(cfg, client, nil, logging.NewNop(), transcode.WithProbe(videoProbe(120)))
	result, err := orch.Run(context.Background(), upload, "movie.mp4")
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	data, err := os.ReadFile(result.ManifestPath)
	if err != nil {
		t.Fatalf("read master: %v", err)
	}
	content := string(data)
	lastIndex := -1
	for _, variant := range cfg.Variants {
		idx := strings.Index(content, variant.Name+"/movie.m3u8")
		if idx < 0 {
			t.Fatalf("master missing %s", variant.Name)
		}
		if idx < lastIndex {
			t.Fatalf("master out of catalog order:\n%s", content)
		}
		lastIndex = idx
	}
}

func TestRunPartialFailureRetainsSource(t *testing.T) {
	cfg := testConfig(t)
	upload := stageUpload(t, cfg, "staged.mp4")
	failing := cfg.Variants[1].Name

	client := &stubClient{encode: func(ctx context.Context, req ffmpeg.Request, progress func(ffmpeg.ProgressUpdate)) error {
		if variantOf(req) == failing {
			return errors.New("ffmpeg encode failed: exit status 1")
		}
		return succeedEncode(ctx, req, progress)
	}}

	orch := transcode.New(cfg, client, nil, logging.NewNop(), transcode.WithProbe(videoProbe(120)))
	_, err := orch.Run(context.Background(), upload, "movie.mp4")
	if err == nil {
		t.Fatal("expected run to fail")
	}
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected ErrExternalTool, got %v", err)
	}

	var encodeErr *transcode.EncodeError
	if !errors.As(err, &encodeErr) {
		t.Fatalf("expected EncodeError in chain, got %v", err)
	}
	if len(encodeErr.Failures) != 1 || encodeErr.Failures[0].Variant != failing {
		t.Fatalf("failures = %+v", encodeErr.Failures)
	}
	if encodeErr.Submitted != len(cfg.Variants) {
		t.Fatalf("submitted = %d, want %d", encodeErr.Submitted, len(cfg.Variants))
	}

	masterPath := filepath.Join(cfg.Paths.OutputDir, "movie", "master.m3u8")
	if _, statErr := os.Stat(masterPath); !errors.Is(statErr, os.ErrNotExist) {
		t.Fatalf("master must not be published on failure, stat err = %v", statErr)
	}
	if _, statErr := os.Stat(upload); statErr != nil {
		t.Fatalf("source must be retained on failure: %v", statErr)
	}
}

func TestRunFailuresReportedInCatalogOrder(t *testing.T) {
	cfg := testConfig(t)
	upload := stageUpload(t, cfg, "staged.mp4")

	// Two failures finishing in reverse catalog order.
	first := cfg.Variants[0].Name
	last := cfg.Variants[len(cfg.Variants)-1].Name
	client := &stubClient{encode: func(ctx context.Context, req ffmpeg.Request, progress func(ffmpeg.ProgressUpdate)) error {
		switch variantOf(req) {
		case first:
			time.Sleep(50 * time.Millisecond)
			return errors.New("slow failure")
		case last:
			return errors.New("fast failure")
		default:
			return succeedEncode(ctx, req, progress)
		}
	}}

	orch := transcode.New(cfg, client, nil, logging.NewNop(), transcode.WithProbe(videoProbe(120)))
	_, err := orch.Run(context.Background(), upload, "movie.mp4")
	var encodeErr *transcode.EncodeError
	if !errors.As(err, &encodeErr) {
		t.Fatalf("expected EncodeError, got %v", err)
	}
	if len(encodeErr.Failures) != 2 {
		t.Fatalf("failures = %+v", encodeErr.Failures)
	}
	if encodeErr.Failures[0].Variant != first || encodeErr.Failures[1].Variant != last {
		t.Fatalf("failures out of catalog order: %+v", encodeErr.Failures)
	}
}

func TestRunConflictWhileActive(t *testing.T) {
	cfg := testConfig(t)
	first := stageUpload(t, cfg, "first.mp4")
	second := stageUpload(t, cfg, "second.mp4")

	release := make(chan struct{})
	started := make(chan struct{})
	var once sync.Once
	client := &stubClient{encode: func(ctx context.Context, req ffmpeg.Request, progress func(ffmpeg.ProgressUpdate)) error {
		once.Do(func() { close(started) })
		<-release
		return succeedEncode(ctx, req, progress)
	}}

	orch := transcode.New(cfg, client, nil, logging.NewNop(), transcode.WithProbe(videoProbe(120)))
	done := make(chan error, 1)
	go func() {
		_, err := orch.Run(context.Background(), first, "movie.mp4")
		done <- err
	}()
	<-started

	_, err := orch.Run(context.Background(), second, "movie.mp4")
	if !errors.Is(err, services.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}

	close(release)
	if err := <-done; err != nil {
		t.Fatalf("first run failed: %v", err)
	}

	// The root frees up once the first run finishes.
	third := stageUpload(t, cfg, "third.mp4")
	if _, err := orch.Run(context.Background(), third, "movie.mp4"); err != nil {
		t.Fatalf("rerun after completion: %v", err)
	}
}

func TestRunRejectsSourceWithoutVideo(t *testing.T) {
	cfg := testConfig(t)
	upload := stageUpload(t, cfg, "audio.mp3")

	client := &stubClient{encode: succeedEncode}
	probe := func(ctx context.Context, path string) (ffprobe.Result, error) {
		return ffprobe.Result{
			Streams: []ffprobe.Stream{{CodecType: "audio", CodecName: "mp3"}},
			Format:  ffprobe.Format{Duration: "180"},
		}, nil
	}

	orch := transcode.New(cfg, client, nil, logging.NewNop(), transcode.WithProbe(probe))
	_, err := orch.Run(context.Background(), upload, "audio.mp3")
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}

func TestRunProbeFailure(t *testing.T) {
	cfg := testConfig(t)
	upload := stageUpload(t, cfg, "broken.mp4")

	client := &stubClient{encode: succeedEncode}
	probe := func(ctx context.Context, path string) (ffprobe.Result, error) {
		return ffprobe.Result{}, errors.New("ffprobe inspect: exit status 1")
	}

	orch := transcode.New(cfg, client, nil, logging.NewNop(), transcode.WithProbe(probe))
	_, err := orch.Run(context.Background(), upload, "broken.mp4")
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected ErrExternalTool, got %v", err)
	}
}

func TestRunPersistsLifecycle(t *testing.T) {
	cfg := testConfig(t)
	upload := stageUpload(t, cfg, "staged.mp4")

	store, err := runs.OpenPath(filepath.Join(t.TempDir(), "runs.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer store.Close()

	client := &stubClient{encode: succeedEncode}
	orch := transcode.New(cfg, client, store, logging.NewNop(), transcode.WithProbe(videoProbe(120)))
	result, err := orch.Run(context.Background(), upload, "movie.mp4")
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	run, err := store.GetRun(context.Background(), result.RunID)
	if err != nil {
		t.Fatalf("get run: %v", err)
	}
	if run == nil {
		t.Fatal("run not persisted")
	}
	if run.Status != runs.StatusCompleted {
		t.Fatalf("run status = %q, want completed", run.Status)
	}
	if run.ManifestPath != result.ManifestPath {
		t.Fatalf("manifest path = %q", run.ManifestPath)
	}

	jobs, err := store.JobsForRun(context.Background(), result.RunID)
	if err != nil {
		t.Fatalf("jobs for run: %v", err)
	}
	if len(jobs) != len(cfg.Variants) {
		t.Fatalf("expected %d jobs, got %d", len(cfg.Variants), len(jobs))
	}
	for _, job := range jobs {
		if job.Status != runs.StatusCompleted {
			t.Fatalf("job %s status = %q, want completed", job.Variant, job.Status)
		}
	}
}

func TestRunPersistsFailure(t *testing.T) {
	cfg := testConfig(t)
	upload := stageUpload(t, cfg, "staged.mp4")
	failing := cfg.Variants[0].Name

	store, err := runs.OpenPath(filepath.Join(t.TempDir(), "runs.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer store.Close()

	client := &stubClient{encode: func(ctx context.Context, req ffmpeg.Request, progress func(ffmpeg.ProgressUpdate)) error {
		if variantOf(req) == failing {
			return errors.New("ffmpeg encode failed: exit status 1")
		}
		return succeedEncode(ctx, req, progress)
	}}

	orch := transcode.New(cfg, client, store, logging.NewNop(), transcode.WithProbe(videoProbe(120)))
	if _, err := orch.Run(context.Background(), upload, "movie.mp4"); err == nil {
		t.Fatal("expected run to fail")
	}

	all, err := store.List(context.Background(), runs.StatusFailed)
	if err != nil {
		t.Fatalf("list failed runs: %v", err)
	}
	if len(all) != 1 {
		t.Fatalf("expected 1 failed run, got %d", len(all))
	}
	jobs, err := store.JobsForRun(context.Background(), all[0].ID)
	if err != nil {
		t.Fatalf("jobs for run: %v", err)
	}
	var failedJobs, completedJobs int
	for _, job := range jobs {
		switch job.Status {
		case runs.StatusFailed:
			failedJobs++
		case runs.StatusCompleted:
			completedJobs++
		}
	}
	if failedJobs != 1 || completedJobs != len(cfg.Variants)-1 {
		t.Fatalf("job statuses: %d failed, %d completed", failedJobs, completedJobs)
	}
}
