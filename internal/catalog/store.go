package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"replay/internal/config"
)

// Store manages clip persistence backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
}

// Open initializes or connects to the catalog database and applies
// migrations.
func Open(cfg *config.Config) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}

	dbPath := cfg.CatalogPath()
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

// Path returns the database file location.
func (s *Store) Path() string {
	return s.path
}

// NewRequest inserts a pending row for a save request.
func (s *Store) NewRequest(ctx context.Context, requestID, title, source string, requestedSeconds int) (*Clip, error) {
	if strings.TrimSpace(requestID) == "" {
		return nil, errors.New("request id is required")
	}
	if requestedSeconds <= 0 {
		return nil, fmt.Errorf("requested seconds must be positive, got %d", requestedSeconds)
	}
	if source == "" {
		source = "hotkey"
	}
	timestamp := time.Now().UTC().Format(time.RFC3339Nano)

	res, err := s.db.ExecContext(
		ctx,
		`INSERT INTO clips (
            request_id, title, status, source, requested_seconds, created_at, updated_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		requestID,
		nullableString(title),
		StatusPending,
		source,
		requestedSeconds,
		timestamp,
		timestamp,
	)
	if err != nil {
		return nil, fmt.Errorf("insert clip request: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(ctx, id)
}

// GetByID fetches a clip by identifier. It returns nil when no clip
// matches.
func (s *Store) GetByID(ctx context.Context, id int64) (*Clip, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+clipColumns+` FROM clips WHERE id = ?`, id)
	clip, err := scanClip(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get clip: %w", err)
	}
	return clip, nil
}

// GetByRequestID fetches a clip by its save request identifier.
func (s *Store) GetByRequestID(ctx context.Context, requestID string) (*Clip, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+clipColumns+` FROM clips WHERE request_id = ?`, requestID)
	clip, err := scanClip(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get clip by request id: %w", err)
	}
	return clip, nil
}

// MarkAssembling transitions a pending request to assembling. It fails
// when the request is not pending, which catches double dispatch.
func (s *Store) MarkAssembling(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(
		ctx,
		`UPDATE clips SET status = ?, updated_at = ? WHERE id = ? AND status = ?`,
		StatusAssembling,
		time.Now().UTC().Format(time.RFC3339Nano),
		id,
		StatusPending,
	)
	if err != nil {
		return fmt.Errorf("mark assembling: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("clip %d is not pending", id)
	}
	return nil
}

// SetEncodePath records which encode attempt is running on an assembling
// row, so the fast-then-fallback sequence is observable mid-flight.
func (s *Store) SetEncodePath(ctx context.Context, id int64, path EncodePath) error {
	res, err := s.db.ExecContext(
		ctx,
		`UPDATE clips SET encode_path = ?, updated_at = ? WHERE id = ? AND status = ?`,
		string(path),
		time.Now().UTC().Format(time.RFC3339Nano),
		id,
		StatusAssembling,
	)
	if err != nil {
		return fmt.Errorf("set encode path: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("clip %d is not assembling", id)
	}
	return nil
}

// MarkCompleted records a finished assembly.
func (s *Store) MarkCompleted(ctx context.Context, id int64, done Completion) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	res, err := s.db.ExecContext(
		ctx,
		`UPDATE clips
         SET status = ?, output_path = ?, thumbnail_path = ?, size_bytes = ?,
             actual_seconds = ?, segment_count = ?, encode_path = ?,
             error_message = NULL, completed_at = ?, updated_at = ?
         WHERE id = ?`,
		StatusCompleted,
		nullableString(done.OutputPath),
		nullableString(done.ThumbnailPath),
		done.SizeBytes,
		done.ActualSeconds,
		done.SegmentCount,
		nullableString(string(done.EncodePath)),
		now,
		now,
		id,
	)
	if err != nil {
		return fmt.Errorf("mark completed: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("clip %d not found", id)
	}
	return nil
}

// MarkFailed records a failed assembly with its reason.
func (s *Store) MarkFailed(ctx context.Context, id int64, message string) error {
	res, err := s.db.ExecContext(
		ctx,
		`UPDATE clips SET status = ?, error_message = ?, updated_at = ? WHERE id = ?`,
		StatusFailed,
		nullableString(message),
		time.Now().UTC().Format(time.RFC3339Nano),
		id,
	)
	if err != nil {
		return fmt.Errorf("mark failed: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("clip %d not found", id)
	}
	return nil
}

// List returns clips newest first, optionally filtered by status. A
// limit of zero or less returns all rows.
func (s *Store) List(ctx context.Context, limit int, statuses ...Status) ([]*Clip, error) {
	var (
		rows *sql.Rows
		err  error
	)

	baseQuery := `SELECT ` + clipColumns + ` FROM clips`
	orderClause := ` ORDER BY created_at DESC, id DESC`
	limitClause := ""
	if limit > 0 {
		limitClause = fmt.Sprintf(" LIMIT %d", limit)
	}

	if len(statuses) == 0 {
		rows, err = s.db.QueryContext(ctx, baseQuery+orderClause+limitClause)
	} else {
		placeholders := makePlaceholders(len(statuses))
		args := make([]any, len(statuses))
		for i, status := range statuses {
			args[i] = status
		}
		query := baseQuery + ` WHERE status IN (` + placeholders + `)` + orderClause + limitClause
		rows, err = s.db.QueryContext(ctx, query, args...)
	}
	if err != nil {
		return nil, fmt.Errorf("list clips: %w", err)
	}
	defer rows.Close()

	var clips []*Clip
	for rows.Next() {
		clip, err := scanClip(rows)
		if err != nil {
			return nil, err
		}
		clips = append(clips, clip)
	}
	return clips, rows.Err()
}

// LastCompleted returns the most recently completed clip, or nil when
// nothing has been saved yet.
func (s *Store) LastCompleted(ctx context.Context) (*Clip, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT `+clipColumns+` FROM clips WHERE status = ? ORDER BY completed_at DESC, id DESC LIMIT 1`,
		StatusCompleted,
	)
	clip, err := scanClip(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("last completed clip: %w", err)
	}
	return clip, nil
}

// FailInFlight marks pending and assembling requests failed. A request
// interrupted by shutdown cannot resume because its ring segments are
// gone by the next start.
func (s *Store) FailInFlight(ctx context.Context, reason string) (int64, error) {
	res, err := s.db.ExecContext(
		ctx,
		`UPDATE clips SET status = ?, error_message = ?, updated_at = ?
         WHERE status IN (?, ?)`,
		StatusFailed,
		nullableString(reason),
		time.Now().UTC().Format(time.RFC3339Nano),
		StatusPending,
		StatusAssembling,
	)
	if err != nil {
		return 0, fmt.Errorf("fail in-flight requests: %w", err)
	}
	return res.RowsAffected()
}

// Stats returns a count of clips grouped by status.
func (s *Store) Stats(ctx context.Context) (map[Status]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(1) FROM clips GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("catalog stats: %w", err)
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

// Health aggregates catalog state for diagnostic output.
func (s *Store) Health(ctx context.Context) (HealthSummary, error) {
	stats, err := s.Stats(ctx)
	if err != nil {
		return HealthSummary{}, err
	}
	health := HealthSummary{}
	for status, count := range stats {
		health.Total += count
		switch status {
		case StatusPending:
			health.Pending += count
		case StatusAssembling:
			health.Assembling += count
		case StatusCompleted:
			health.Completed += count
		case StatusFailed:
			health.Failed += count
		}
	}
	return health, nil
}

const clipColumns = "id, request_id, title, status, source, requested_seconds, actual_seconds, segment_count, size_bytes, encode_path, output_path, thumbnail_path, error_message, created_at, updated_at, completed_at"

func scanClip(scanner interface{ Scan(dest ...any) error }) (*Clip, error) {
	var (
		id               int64
		requestID        string
		title            sql.NullString
		statusStr        string
		source           sql.NullString
		requestedSeconds int
		actualSeconds    sql.NullFloat64
		segmentCount     sql.NullInt64
		sizeBytes        sql.NullInt64
		encodePath       sql.NullString
		outputPath       sql.NullString
		thumbnailPath    sql.NullString
		errorMessage     sql.NullString
		createdRaw       sql.NullString
		updatedRaw       sql.NullString
		completedRaw     sql.NullString
	)

	if err := scanner.Scan(
		&id,
		&requestID,
		&title,
		&statusStr,
		&source,
		&requestedSeconds,
		&actualSeconds,
		&segmentCount,
		&sizeBytes,
		&encodePath,
		&outputPath,
		&thumbnailPath,
		&errorMessage,
		&createdRaw,
		&updatedRaw,
		&completedRaw,
	); err != nil {
		return nil, err
	}

	clip := &Clip{
		ID:               id,
		RequestID:        requestID,
		Title:            title.String,
		Status:           Status(statusStr),
		Source:           source.String,
		RequestedSeconds: requestedSeconds,
		ActualSeconds:    actualSeconds.Float64,
		SegmentCount:     int(segmentCount.Int64),
		SizeBytes:        sizeBytes.Int64,
		EncodePath:       EncodePath(encodePath.String),
		OutputPath:       outputPath.String,
		ThumbnailPath:    thumbnailPath.String,
		ErrorMessage:     errorMessage.String,
	}

	if created, err := parseTimeString(createdRaw.String); err == nil {
		clip.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw.String); err == nil {
		clip.UpdatedAt = updated
	}
	if completedRaw.Valid {
		if completed, err := parseTimeString(completedRaw.String); err == nil {
			clip.CompletedAt = &completed
		}
	}
	return clip, nil
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
