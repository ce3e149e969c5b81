package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"voicetranscribe/internal/model"

	_ "modernc.org/sqlite"
)

const schema = `
	CREATE TABLE IF NOT EXISTS transcriptions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		file_name TEXT NOT NULL,
		transcribed_text TEXT NOT NULL,
		duration REAL NOT NULL DEFAULT 0,
		file_size INTEGER NOT NULL DEFAULT 0,
		mime_type TEXT NOT NULL,
		created_at INTEGER NOT NULL,
		transcription_type TEXT NOT NULL,
		confidence REAL,
		provider TEXT NOT NULL DEFAULT '',
		failure_kind TEXT NOT NULL DEFAULT ''
	);
	CREATE INDEX IF NOT EXISTS idx_transcriptions_created_at ON transcriptions (created_at);
	CREATE INDEX IF NOT EXISTS idx_transcriptions_type ON transcriptions (transcription_type);
`

const selectColumns = `
	SELECT id, file_name, transcribed_text, duration, file_size, mime_type,
		created_at, transcription_type, confidence, provider, failure_kind
	FROM transcriptions
`

const newestFirst = ` ORDER BY created_at DESC, id DESC`

type sqliteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository opens (or creates) the database at path and applies
// the schema. Use ":memory:" for a throwaway database.
func NewSQLiteRepository(ctx context.Context, path string) (TranscriptionRepository, func() error, error) {
	dsn := path
	if path != ":memory:" {
		dsn = fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", path)
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, nil, fmt.Errorf("open database: %w", err)
	}
	// One writer at a time; also keeps ":memory:" on a single connection
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("ping database: %w", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("create schema: %w", err)
	}

	return &sqliteRepository{db: db}, db.Close, nil
}

// Create inserts a new transcription record
func (r *sqliteRepository) Create(ctx context.Context, t *model.Transcription) error {
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now()
	}

	var confidence sql.NullFloat64
	if t.Confidence != nil {
		confidence = sql.NullFloat64{Float64: *t.Confidence, Valid: true}
	}

	res, err := r.db.ExecContext(ctx, `
		INSERT INTO transcriptions (
			file_name, transcribed_text, duration, file_size, mime_type,
			created_at, transcription_type, confidence, provider, failure_kind
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.FileName,
		t.TranscribedText,
		t.Duration,
		t.FileSize,
		t.MimeType,
		t.CreatedAt.UnixNano(),
		string(t.TranscriptionType),
		confidence,
		t.Provider,
		t.FailureKind,
	)
	if err != nil {
		return fmt.Errorf("failed to create transcription: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to read transcription id: %w", err)
	}
	t.ID = id
	return nil
}

// GetByID retrieves a transcription by ID
func (r *sqliteRepository) GetByID(ctx context.Context, id int64) (*model.Transcription, error) {
	row := r.db.QueryRowContext(ctx, selectColumns+` WHERE id = ?`, id)

	t, err := scanTranscription(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("transcription %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get transcription: %w", err)
	}
	return t, nil
}

func (r *sqliteRepository) ListAll(ctx context.Context) ([]model.Transcription, error) {
	return r.query(ctx, selectColumns+newestFirst)
}

// Delete removes a transcription by ID
func (r *sqliteRepository) Delete(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM transcriptions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete transcription: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to delete transcription: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("transcription %d: %w", id, ErrNotFound)
	}
	return nil
}

func (r *sqliteRepository) Search(ctx context.Context, term string) ([]model.Transcription, error) {
	pattern := "%" + escapeLike(strings.ToLower(term)) + "%"
	return r.query(ctx, selectColumns+` WHERE LOWER(transcribed_text) LIKE ? ESCAPE '\'`+newestFirst, pattern)
}

func (r *sqliteRepository) ListByType(ctx context.Context, typ model.TranscriptionType) ([]model.Transcription, error) {
	return r.query(ctx, selectColumns+` WHERE transcription_type = ?`+newestFirst, string(typ))
}

func (r *sqliteRepository) ListByDateRange(ctx context.Context, start, end time.Time) ([]model.Transcription, error) {
	return r.query(ctx, selectColumns+` WHERE created_at BETWEEN ? AND ?`+newestFirst,
		start.UnixNano(), end.UnixNano())
}

func (r *sqliteRepository) query(ctx context.Context, query string, args ...any) ([]model.Transcription, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query transcriptions: %w", err)
	}
	defer rows.Close()

	list := []model.Transcription{}
	for rows.Next() {
		t, err := scanTranscription(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transcription: %w", err)
		}
		list = append(list, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}
	return list, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanTranscription(s scanner) (*model.Transcription, error) {
	var (
		t          model.Transcription
		createdAt  int64
		typ        string
		confidence sql.NullFloat64
	)
	err := s.Scan(
		&t.ID,
		&t.FileName,
		&t.TranscribedText,
		&t.Duration,
		&t.FileSize,
		&t.MimeType,
		&createdAt,
		&typ,
		&confidence,
		&t.Provider,
		&t.FailureKind,
	)
	if err != nil {
		return nil, err
	}

	t.CreatedAt = time.Unix(0, createdAt)
	t.TranscriptionType = model.TranscriptionType(typ)
	if confidence.Valid {
		c := confidence.Float64
		t.Confidence = &c
	}
	return &t, nil
}

// escapeLike makes LIKE wildcards in term match literally
func escapeLike(term string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(term)
}
