package runs

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"hlspress/internal/config"
)

// progressWriteInterval bounds how often a variant's progress row is
// rewritten. Terminal updates always go through.
const progressWriteInterval = 2 * time.Second

// Store manages run persistence backed by SQLite.
type Store struct {
	db   *sql.DB
	path string

	mu           sync.Mutex
	lastProgress map[string]time.Time
}

// Open initializes or connects to the run database and applies migrations.
func Open(cfg *config.Config) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}
	return OpenPath(filepath.Join(cfg.Paths.LogDir, "runs.db"))
}

// OpenPath opens the run database at an explicit path.
func OpenPath(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: dbPath, lastProgress: make(map[string]time.Time)}
	if err := store.applyMigrations(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Create inserts a run and its variant job rows in one transaction.
func (s *Store) Create(ctx context.Context, run *Run, jobs []Job) error {
	if run == nil {
		return errors.New("run is nil")
	}
	now := time.Now().UTC()
	run.CreatedAt = now
	run.UpdatedAt = now
	if run.Status == "" {
		run.Status = StatusPending
	}
	timestamp := now.Format(time.RFC3339Nano)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin create tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(
		ctx,
		`INSERT INTO transcode_runs (
            id, source_filename, base_name, output_root, manifest_path,
            status, error_message, created_at, updated_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID,
		run.SourceFilename,
		run.BaseName,
		run.OutputRoot,
		nullableString(run.ManifestPath),
		run.Status,
		nullableString(run.ErrorMessage),
		timestamp,
		timestamp,
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}

	for _, job := range jobs {
		status := job.Status
		if status == "" {
			status = StatusPending
		}
		_, err = tx.ExecContext(
			ctx,
			`INSERT INTO transcode_jobs (
                run_id, variant, resolution, video_kbps,
                status, progress_percent, error_message, updated_at
            ) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			run.ID,
			job.Variant,
			job.Resolution,
			job.VideoKbps,
			status,
			job.ProgressPercent,
			nullableString(job.ErrorMessage),
			timestamp,
		)
		if err != nil {
			return fmt.Errorf("insert job %s: %w", job.Variant, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit create: %w", err)
	}
	return nil
}

// GetRun fetches a run by identifier; nil when not found.
func (s *Store) GetRun(ctx context.Context, id string) (*Run, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM transcode_runs WHERE id = ?`, id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get run: %w", err)
	}
	return run, nil
}

// FindByOutputRoot returns the most recent run targeting an output root.
func (s *Store) FindByOutputRoot(ctx context.Context, outputRoot string) (*Run, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT `+runColumns+` FROM transcode_runs WHERE output_root = ? ORDER BY created_at DESC LIMIT 1`,
		outputRoot,
	)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find by output root: %w", err)
	}
	return run, nil
}

// List returns runs newest first, optionally filtered by status.
func (s *Store) List(ctx context.Context, statuses ...Status) ([]*Run, error) {
	var (
		rows *sql.Rows
		err  error
	)

	baseQuery := `SELECT ` + runColumns + ` FROM transcode_runs`
	orderClause := ` ORDER BY created_at DESC`

	if len(statuses) == 0 {
		rows, err = s.db.QueryContext(ctx, baseQuery+orderClause)
	} else {
		placeholders := makePlaceholders(len(statuses))
		args := make([]any, len(statuses))
		for i, status := range statuses {
			args[i] = status
		}
		rows, err = s.db.QueryContext(ctx, baseQuery+` WHERE status IN (`+placeholders+`)`+orderClause, args...)
	}
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// JobsForRun returns a run's variant jobs in catalog order.
func (s *Store) JobsForRun(ctx context.Context, runID string) ([]*Job, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT run_id, variant, resolution, video_kbps, status, progress_percent, error_message, updated_at
         FROM transcode_jobs WHERE run_id = ? ORDER BY rowid`,
		runID,
	)
	if err != nil {
		return nil, fmt.Errorf("query jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*Job
	for rows.Next() {
		var (
			job        Job
			statusStr  string
			errMsg     sql.NullString
			updatedRaw sql.NullString
		)
		if err := rows.Scan(&job.RunID, &job.Variant, &job.Resolution, &job.VideoKbps, &statusStr, &job.ProgressPercent, &errMsg, &updatedRaw); err != nil {
			return nil, fmt.Errorf("scan job: %w", err)
		}
		job.Status = Status(statusStr)
		job.ErrorMessage = errMsg.String
		if updated, err := parseTimeString(updatedRaw.String); err == nil {
			job.UpdatedAt = updated
		}
		jobs = append(jobs, &job)
	}
	return jobs, rows.Err()
}

// SetRunStatus updates a run's lifecycle status and error message.
func (s *Store) SetRunStatus(ctx context.Context, id string, status Status, errorMessage string) error {
	_, err := s.db.ExecContext(
		ctx,
		`UPDATE transcode_runs SET status = ?, error_message = ?, updated_at = ? WHERE id = ?`,
		status,
		nullableString(errorMessage),
		time.Now().UTC().Format(time.RFC3339Nano),
		id,
	)
	if err != nil {
		return fmt.Errorf("set run status: %w", err)
	}
	return nil
}

// CompleteRun marks a run completed and records the master manifest path.
func (s *Store) CompleteRun(ctx context.Context, id, manifestPath string) error {
	_, err := s.db.ExecContext(
		ctx,
		`UPDATE transcode_runs SET status = ?, manifest_path = ?, error_message = NULL, updated_at = ? WHERE id = ?`,
		StatusCompleted,
		nullableString(manifestPath),
		time.Now().UTC().Format(time.RFC3339Nano),
		id,
	)
	if err != nil {
		return fmt.Errorf("complete run: %w", err)
	}
	return nil
}

// SetJobStatus updates one variant job's lifecycle status.
func (s *Store) SetJobStatus(ctx context.Context, runID, variant string, status Status, errorMessage string) error {
	query := `UPDATE transcode_jobs SET status = ?, error_message = ?, updated_at = ? WHERE run_id = ? AND variant = ?`
	args := []any{status, nullableString(errorMessage), time.Now().UTC().Format(time.RFC3339Nano), runID, variant}
	if status == StatusCompleted {
		query = `UPDATE transcode_jobs SET status = ?, error_message = ?, progress_percent = 100, updated_at = ? WHERE run_id = ? AND variant = ?`
	}
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("set job status: %w", err)
	}
	return nil
}

// UpdateJobProgress records a variant's encode progress. Writes are throttled
// per variant; a 100 percent report always writes.
func (s *Store) UpdateJobProgress(ctx context.Context, runID, variant string, percent float64) error {
	key := runID + "/" + variant
	now := time.Now()

	s.mu.Lock()
	last, seen := s.lastProgress[key]
	if percent < 100 && seen && now.Sub(last) < progressWriteInterval {
		s.mu.Unlock()
		return nil
	}
	s.lastProgress[key] = now
	s.mu.Unlock()

	_, err := s.db.ExecContext(
		ctx,
		`UPDATE transcode_jobs SET progress_percent = ?, updated_at = ? WHERE run_id = ? AND variant = ?`,
		percent,
		now.UTC().Format(time.RFC3339Nano),
		runID,
		variant,
	)
	if err != nil {
		return fmt.Errorf("update job progress: %w", err)
	}
	return nil
}

// Stats returns a count of runs grouped by status.
func (s *Store) Stats(ctx context.Context) (map[Status]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(1) FROM transcode_runs GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("run stats: %w", err)
	}
	defer rows.Close()

	stats := make(map[Status]int)
	for rows.Next() {
		var status Status
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		stats[status] = count
	}
	return stats, rows.Err()
}

const runColumns = "id, source_filename, base_name, output_root, manifest_path, status, error_message, created_at, updated_at"

func scanRun(scanner interface{ Scan(dest ...any) error }) (*Run, error) {
	var (
		run          Run
		manifestPath sql.NullString
		statusStr    string
		errorMessage sql.NullString
		createdRaw   sql.NullString
		updatedRaw   sql.NullString
	)
	if err := scanner.Scan(
		&run.ID,
		&run.SourceFilename,
		&run.BaseName,
		&run.OutputRoot,
		&manifestPath,
		&statusStr,
		&errorMessage,
		&createdRaw,
		&updatedRaw,
	); err != nil {
		return nil, err
	}

	run.ManifestPath = manifestPath.String
	run.Status = Status(statusStr)
	run.ErrorMessage = errorMessage.String
	if created, err := parseTimeString(createdRaw.String); err == nil {
		run.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw.String); err == nil {
		run.UpdatedAt = updated
	}
	return &run, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02 15:04:05", value)
}

func makePlaceholders(count int) string {
	if count <= 0 {
		return ""
	}
	placeholders := make([]byte, 0, count*2)
	for i := 0; i < count; i++ {
		if i > 0 {
			placeholders = append(placeholders, ',')
		}
		placeholders = append(placeholders, '?')
	}
	return string(placeholders)
}
