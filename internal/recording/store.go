package recording

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"recap/internal/config"
)

// Store manages recording persistence backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
}

// Open initializes or connects to the recordings database.
func Open(cfg *config.Config) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}

	dbPath := cfg.Paths.DatabasePath
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

	store := &Store{db: db, path: dbPath}
	if err := store.initSchema(context.Background()); err != nil {
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

// NewRecording inserts a freshly uploaded recording awaiting validation.
func (s *Store) NewRecording(ctx context.Context, title, sourcePath string, sizeMB float64, correlationID string) (*Recording, error) {
	now := time.Now().UTC()
	timestamp := now.Format(time.RFC3339Nano)

	res, err := s.db.ExecContext(
		ctx,
		`INSERT INTO recordings (
            title, status, source_path, file_size_mb, correlation_id, created_at, updated_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		title,
		StatusUploaded,
		sourcePath,
		sizeMB,
		nullableString(correlationID),
		timestamp,
		timestamp,
	)
	if err != nil {
		return nil, fmt.Errorf("insert recording: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}

	return s.GetByID(ctx, id)
}

// GetByID fetches a recording by identifier. Returns nil when absent.
func (s *Store) GetByID(ctx context.Context, id int64) (*Recording, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+recordingColumns+` FROM recordings WHERE id = ?`, id)
	rec, err := scanRecording(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get recording: %w", err)
	}
	return rec, nil
}

// Update persists changes to an existing recording.
func (s *Store) Update(ctx context.Context, rec *Recording) error {
	if rec == nil {
		return errors.New("recording is nil")
	}
	rec.UpdatedAt = time.Now().UTC()
	_, err := s.db.ExecContext(
		ctx,
		`UPDATE recordings
         SET title = ?, status = ?, source_path = ?, repaired_path = ?,
             audio_path = ?, compressed_path = ?, transcript_json = ?, summary_text = ?,
             language = ?, duration_seconds = ?, file_size_mb = ?, speaker_count = ?,
             needs_repair = ?, error_message = ?, progress_stage = ?, progress_message = ?,
             correlation_id = ?, updated_at = ?
         WHERE id = ?`,
		rec.Title,
		rec.Status,
		nullableString(rec.SourcePath),
		nullableString(rec.RepairedPath),
		nullableString(rec.AudioPath),
		nullableString(rec.CompressedPath),
		nullableString(rec.TranscriptJSON),
		nullableString(rec.SummaryText),
		nullableString(rec.Language),
		rec.DurationSeconds,
		rec.FileSizeMB,
		rec.SpeakerCount,
		boolToInt(rec.NeedsRepair),
		nullableString(rec.ErrorMessage),
		nullableString(rec.ProgressStage),
		nullableString(rec.ProgressMessage),
		nullableString(rec.CorrelationID),
		rec.UpdatedAt.Format(time.RFC3339Nano),
		rec.ID,
	)
	if err != nil {
		return fmt.Errorf("update recording: %w", err)
	}
	return nil
}

// ListOptions filters and pages List results.
type ListOptions struct {
	Status Status
	Limit  int
	Offset int
}

// List returns recordings ordered newest first.
func (s *Store) List(ctx context.Context, opts ListOptions) ([]*Recording, error) {
	query := `SELECT ` + recordingColumns + ` FROM recordings`
	args := make([]any, 0, 3)
	if opts.Status != "" {
		query += ` WHERE status = ?`
		args = append(args, opts.Status)
	}
	query += ` ORDER BY created_at DESC, id DESC`
	if opts.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, opts.Limit)
		if opts.Offset > 0 {
			query += ` OFFSET ?`
			args = append(args, opts.Offset)
		}
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list recordings: %w", err)
	}
	defer rows.Close()

	var recs []*Recording
	for rows.Next() {
		rec, err := scanRecording(rows)
		if err != nil {
			return nil, err
		}
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}

// NextForStatuses returns the oldest recording matching any of the provided statuses.
func (s *Store) NextForStatuses(ctx context.Context, statuses ...Status) (*Recording, error) {
	if len(statuses) == 0 {
		return nil, nil
	}
	placeholders := makePlaceholders(len(statuses))
	args := make([]any, len(statuses))
	for i, status := range statuses {
		args[i] = status
	}

	query := `SELECT ` + recordingColumns + ` FROM recordings WHERE status IN (` + placeholders + `) ORDER BY created_at LIMIT 1`
	row := s.db.QueryRowContext(ctx, query, args...)
	rec, err := scanRecording(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// FailStaleProcessing marks recordings left in a processing state by a prior
// run as failed. In-flight work is never resumed automatically.
func (s *Store) FailStaleProcessing(ctx context.Context, reason string) (int64, error) {
	statuses := make([]Status, 0, len(processingStatuses))
	for status := range processingStatuses {
		statuses = append(statuses, status)
	}
	placeholders := makePlaceholders(len(statuses))
	args := make([]any, 0, len(statuses)+4)
	args = append(args, StatusFailed, reason, reason, time.Now().UTC().Format(time.RFC3339Nano))
	for _, status := range statuses {
		args = append(args, status)
	}

	res, err := s.db.ExecContext(
		ctx,
		`UPDATE recordings
         SET status = ?, error_message = ?, progress_stage = 'failed',
             progress_message = ?, updated_at = ?
         WHERE status IN (`+placeholders+`)`,
		args...,
	)
	if err != nil {
		return 0, fmt.Errorf("fail stale recordings: %w", err)
	}
	return res.RowsAffected()
}

// Stats returns a count of recordings grouped by status.
func (s *Store) Stats(ctx context.Context) (map[Status]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(1) FROM recordings GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("recording stats: %w", err)
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

// Health aggregates recording state for diagnostic output.
func (s *Store) Health(ctx context.Context) (HealthSummary, error) {
	stats, err := s.Stats(ctx)
	if err != nil {
		return HealthSummary{}, err
	}
	health := HealthSummary{}
	for status, count := range stats {
		health.Total += count
		switch status {
		case StatusFailed:
			health.Failed += count
		case StatusCompleted:
			health.Completed += count
		default:
			if _, ok := processingStatuses[status]; ok {
				health.Processing += count
			} else {
				health.Pending += count
			}
		}
	}
	return health, nil
}

// CheckHealth returns diagnostic information about the recordings database.
func (s *Store) CheckHealth(ctx context.Context) (DatabaseHealth, error) {
	health := DatabaseHealth{DBPath: s.path}

	if s.path == "" {
		return health, errors.New("recordings database path is unknown")
	}

	info, err := os.Stat(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return health, nil
		}
		return health, fmt.Errorf("stat recordings database: %w", err)
	}
	if info.IsDir() {
		return health, fmt.Errorf("recordings database path %q is a directory", s.path)
	}
	health.DatabaseExists = true

	if s.db == nil {
		return health, errors.New("recordings database connection unavailable")
	}

	connCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	if err := s.db.PingContext(connCtx); err != nil {
		health.Error = err.Error()
		return health, fmt.Errorf("ping recordings database: %w", err)
	}
	health.DatabaseReadable = true

	var tableName string
	row := s.db.QueryRowContext(connCtx, "SELECT name FROM sqlite_master WHERE type = 'table' AND name = 'recordings'")
	if err := row.Scan(&tableName); err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			health.Error = err.Error()
			return health, fmt.Errorf("query table info: %w", err)
		}
	} else {
		health.TableExists = true
	}

	if health.TableExists {
		row = s.db.QueryRowContext(connCtx, "SELECT COUNT(*) FROM recordings")
		if err := row.Scan(&health.TotalRecordings); err != nil {
			health.Error = err.Error()
			return health, fmt.Errorf("count recordings: %w", err)
		}
	}

	row = s.db.QueryRowContext(connCtx, "PRAGMA integrity_check")
	var integrityResult string
	if err := row.Scan(&integrityResult); err != nil {
		health.Error = err.Error()
		return health, fmt.Errorf("integrity check: %w", err)
	}
	health.IntegrityCheck = strings.EqualFold(integrityResult, "ok")

	return health, nil
}

// Remove deletes a recording by identifier. Speaker rows cascade.
func (s *Store) Remove(ctx context.Context, id int64) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM recordings WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("delete recording: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return affected > 0, nil
}

const recordingColumns = "id, title, status, source_path, repaired_path, audio_path, compressed_path, transcript_json, summary_text, language, duration_seconds, file_size_mb, speaker_count, needs_repair, error_message, progress_stage, progress_message, correlation_id, created_at, updated_at"

func scanRecording(scanner interface{ Scan(dest ...any) error }) (*Recording, error) {
	var (
		id              int64
		title           string
		statusStr       string
		sourcePath      sql.NullString
		repairedPath    sql.NullString
		audioPath       sql.NullString
		compressedPath  sql.NullString
		transcriptJSON  sql.NullString
		summaryText     sql.NullString
		language        sql.NullString
		duration        sql.NullFloat64
		sizeMB          sql.NullFloat64
		speakerCount    sql.NullInt64
		needsRepair     sql.NullInt64
		errorMessage    sql.NullString
		progressStage   sql.NullString
		progressMessage sql.NullString
		correlationID   sql.NullString
		createdRaw      sql.NullString
		updatedRaw      sql.NullString
	)

	if err := scanner.Scan(
		&id,
		&title,
		&statusStr,
		&sourcePath,
		&repairedPath,
		&audioPath,
		&compressedPath,
		&transcriptJSON,
		&summaryText,
		&language,
		&duration,
		&sizeMB,
		&speakerCount,
		&needsRepair,
		&errorMessage,
		&progressStage,
		&progressMessage,
		&correlationID,
		&createdRaw,
		&updatedRaw,
	); err != nil {
		return nil, err
	}

	rec := &Recording{
		ID:              id,
		Title:           title,
		Status:          Status(statusStr),
		SourcePath:      sourcePath.String,
		RepairedPath:    repairedPath.String,
		AudioPath:       audioPath.String,
		CompressedPath:  compressedPath.String,
		TranscriptJSON:  transcriptJSON.String,
		SummaryText:     summaryText.String,
		Language:        language.String,
		DurationSeconds: duration.Float64,
		FileSizeMB:      sizeMB.Float64,
		SpeakerCount:    int(speakerCount.Int64),
		NeedsRepair:     needsRepair.Int64 != 0,
		ErrorMessage:    errorMessage.String,
		ProgressStage:   progressStage.String,
		ProgressMessage: progressMessage.String,
		CorrelationID:   correlationID.String,
	}

	if created, err := parseTimeString(createdRaw.String); err == nil {
		rec.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw.String); err == nil {
		rec.UpdatedAt = updated
	}
	return rec, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func boolToInt(value bool) int {
	if value {
		return 1
	}
	return 0
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
