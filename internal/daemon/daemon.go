package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"

	"hlspress/internal/config"
	"hlspress/internal/deps"
	"hlspress/internal/logging"
	"hlspress/internal/runs"
	"hlspress/internal/staging"
)

const shutdownGrace = 10 * time.Second

// Daemon coordinates the HTTP server and background janitor and enforces
// single-instance execution.
type Daemon struct {
	cfg     *config.Config
	logger  *slog.Logger
	store   *runs.Store
	handler http.Handler

	lockPath string
	lock     *flock.Flock

	server   *http.Server
	bindAddr string

	running atomic.Bool
	ctx     context.Context
	cancel  context.CancelFunc
	janitor chan struct{}
}

// Status represents daemon runtime information.
type Status struct {
	Running      bool
	BindAddr     string
	RunDBPath    string
	LockFilePath string
}

// New constructs a daemon serving the given handler.
func New(cfg *config.Config, store *runs.Store, handler http.Handler, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil || handler == nil || logger == nil {
		return nil, errors.New("daemon requires config, handler, and logger")
	}

	lockPath := filepath.Join(cfg.Paths.LogDir, "hlspressd.lock")
	return &Daemon{
		cfg:      cfg,
		logger:   logging.NewComponentLogger(logger, "daemon"),
		store:    store,
		handler:  handler,
		lockPath: lockPath,
		lock:     flock.New(lockPath),
	}, nil
}

// Start acquires the daemon lock, binds the API listener, and launches the
// janitor. It returns once the listener is accepting connections.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	if err := d.cfg.EnsureDirectories(); err != nil {
		return fmt.Errorf("ensure directories: %w", err)
	}

	// Missing binaries fail individual runs, not daemon startup.
	for _, status := range deps.CheckBinaries(deps.Required(d.cfg)) {
		if !status.Available {
			d.logger.Warn("external dependency unavailable",
				logging.String("dependency", status.Name),
				logging.String("detail", status.Detail),
			)
		}
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another hlspress daemon instance is already running")
	}

	listener, err := net.Listen("tcp", d.cfg.Paths.APIBind)
	if err != nil {
		_ = d.lock.Unlock()
		return fmt.Errorf("bind %s: %w", d.cfg.Paths.APIBind, err)
	}
	d.bindAddr = listener.Addr().String()

	d.ctx, d.cancel = context.WithCancel(ctx)
	d.server = &http.Server{
		Handler:           d.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := d.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			d.logger.Error("api server exited", logging.Error(err))
		}
	}()

	d.janitor = make(chan struct{})
	go d.runJanitor(d.ctx, d.janitor)

	d.running.Store(true)
	d.logger.Info("hlspress daemon started",
		logging.String("bind", d.bindAddr),
		logging.String("lock", d.lockPath),
	)
	return nil
}

// runJanitor sweeps the upload scratch directory on an interval derived from
// the stale age.
func (d *Daemon) runJanitor(ctx context.Context, done chan struct{}) {
	defer close(done)

	maxAge := d.cfg.StaleUploadAge()
	if maxAge <= 0 {
		return
	}
	interval := maxAge / 4
	if interval > time.Hour {
		interval = time.Hour
	}
	if interval < time.Minute {
		interval = time.Minute
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			result := staging.CleanStale(d.cfg.Paths.UploadDir, maxAge, d.logger)
			if len(result.Removed) > 0 || len(result.Errors) > 0 {
				d.logger.Info("upload janitor pass",
					logging.Int("removed", len(result.Removed)),
					logging.Int("errors", len(result.Errors)),
				)
			}
		}
	}
}

// Stop shuts down the API server, stops the janitor, and releases the lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}

	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}

	if d.server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		if err := d.server.Shutdown(shutdownCtx); err != nil {
			d.logger.Warn("api server shutdown", logging.Error(err))
		}
		cancel()
		d.server = nil
	}

	if d.janitor != nil {
		<-d.janitor
		d.janitor = nil
	}

	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.ctx = nil
	d.running.Store(false)
	d.logger.Info("hlspress daemon stopped")
}

// Close releases resources held by the daemon.
func (d *Daemon) Close() error {
	d.Stop()
	if d.store != nil {
		return d.store.Close()
	}
	return nil
}

// BindAddr reports the bound listener address; empty before Start.
func (d *Daemon) BindAddr() string {
	return d.bindAddr
}

// Status returns the current daemon status.
func (d *Daemon) Status() Status {
	return Status{
		Running:      d.running.Load(),
		BindAddr:     d.bindAddr,
		RunDBPath:    filepath.Join(d.cfg.Paths.LogDir, "runs.db"),
		LockFilePath: d.lockPath,
	}
}
