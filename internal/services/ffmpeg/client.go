// Package ffmpeg wraps the ffmpeg command-line encoder behind a small client
// interface so the orchestration core never touches os/exec directly.
package ffmpeg

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os/exec"
	"strconv"
	"strings"
	"time"
)

var commandContext = exec.CommandContext

// ProgressUpdate captures one ffmpeg progress report.
type ProgressUpdate struct {
	// Percent is derived from out_time against the source duration; negative
	// when the duration is unknown.
	Percent float64
	OutTime time.Duration
	Speed   string
}

// Request describes one encode invocation.
type Request struct {
	// InputPath is the source media file.
	InputPath string
	// OutputArgs is the full encoder directive list, ending with the variant
	// playlist path.
	OutputArgs []string
	// DurationSeconds anchors progress percentages; <= 0 means unknown.
	DurationSeconds float64
}

// Client defines ffmpeg encoding behaviour.
type Client interface {
	Encode(ctx context.Context, req Request, progress func(ProgressUpdate)) error
}

// Option configures the CLI client.
type Option func(*CLI)

// WithBinary overrides the default binary name.
func WithBinary(binary string) Option {
	return func(c *CLI) {
		if strings.TrimSpace(binary) != "" {
			c.binary = binary
		}
	}
}

// CLI wraps the ffmpeg command-line encoder.
type CLI struct {
	binary string
}

// NewCLI constructs a CLI client using defaults.
func NewCLI(opts ...Option) *CLI {
	cli := &CLI{binary: "ffmpeg"}
	for _, opt := range opts {
		opt(cli)
	}
	return cli
}

// stderrTailLimit bounds how much encoder stderr is kept for error messages.
const stderrTailLimit = 4 * 1024

// Encode launches one ffmpeg process and streams progress reports until the
// process exits. Progress callbacks are delivered from a single goroutine,
// so per-request delivery is serial.
func (c *CLI) Encode(ctx context.Context, req Request, progress func(ProgressUpdate)) error {
	if strings.TrimSpace(req.InputPath) == "" {
		return errors.New("input path required")
	}
	if len(req.OutputArgs) == 0 {
		return errors.New("output arguments required")
	}

	args := []string{"-hide_banner", "-nostats", "-loglevel", "error", "-progress", "pipe:1", "-y", "-i", req.InputPath}
	args = append(args, req.OutputArgs...)

	cmd := commandContext(ctx, c.binary, args...) //nolint:gosec
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("stdout pipe: %w", err)
	}
	var stderr tailBuffer
	cmd.Stderr = &stderr
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start ffmpeg: %w", err)
	}

	scanner := bufio.NewScanner(stdout)
	parser := newProgressParser(req.DurationSeconds)
	for scanner.Scan() {
		update, ok := parser.feed(scanner.Text())
		if !ok {
			continue
		}
		if progress != nil {
			progress(update)
		}
	}
	if err := scanner.Err(); err != nil {
		_ = cmd.Wait()
		return fmt.Errorf("read ffmpeg output: %w", err)
	}

	if err := cmd.Wait(); err != nil {
		if detail := stderr.String(); detail != "" {
			return fmt.Errorf("ffmpeg encode failed: %w: %s", err, detail)
		}
		return fmt.Errorf("ffmpeg encode failed: %w", err)
	}
	return nil
}

var _ Client = (*CLI)(nil)

// IsLaunchError reports whether the encode never started because the binary
// is missing or not executable, as opposed to the encode itself failing.
func IsLaunchError(err error) bool {
	if err == nil {
		return false
	}
	var execErr *exec.Error
	if errors.As(err, &execErr) {
		return true
	}
	return errors.Is(err, exec.ErrNotFound) || errors.Is(err, fs.ErrNotExist) || errors.Is(err, fs.ErrPermission)
}

// progressParser accumulates ffmpeg -progress key=value blocks. ffmpeg emits
// a group of lines per report terminated by a "progress=" line.
type progressParser struct {
	durationSeconds float64
	outTime         time.Duration
	speed           string
}

func newProgressParser(durationSeconds float64) *progressParser {
	return &progressParser{durationSeconds: durationSeconds}
}

func (p *progressParser) feed(line string) (ProgressUpdate, bool) {
	key, value, found := strings.Cut(strings.TrimSpace(line), "=")
	if !found {
		return ProgressUpdate{}, false
	}
	value = strings.TrimSpace(value)
	switch key {
	case "out_time_us", "out_time_ms":
		// Both keys carry microseconds; out_time_ms is a long-standing
		// ffmpeg misnomer.
		if us, err := strconv.ParseInt(value, 10, 64); err == nil && us >= 0 {
			p.outTime = time.Duration(us) * time.Microsecond
		}
		return ProgressUpdate{}, false
	case "speed":
		p.speed = value
		return ProgressUpdate{}, false
	case "progress":
		update := ProgressUpdate{Percent: p.percent(), OutTime: p.outTime, Speed: p.speed}
		if value == "end" {
			update.Percent = 100
		}
		return update, true
	default:
		return ProgressUpdate{}, false
	}
}

// percent derives completion from decode position over source duration.
func (p *progressParser) percent() float64 {
	if p.durationSeconds <= 0 {
		return -1
	}
	percent := p.outTime.Seconds() / p.durationSeconds * 100
	if percent < 0 {
		return 0
	}
	if percent > 100 {
		return 100
	}
	return percent
}

// tailBuffer keeps the last stderrTailLimit bytes written to it.
type tailBuffer struct {
	buf bytes.Buffer
}

func (t *tailBuffer) Write(p []byte) (int, error) {
	t.buf.Write(p)
	if t.buf.Len() > stderrTailLimit {
		data := t.buf.Bytes()
		trimmed := append([]byte(nil), data[len(data)-stderrTailLimit:]...)
		t.buf.Reset()
		t.buf.Write(trimmed)
	}
	return len(p), nil
}

func (t *tailBuffer) String() string {
	return strings.TrimSpace(t.buf.String())
}
