package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

const (
	StatusProcessing = "processing"
	StatusReady      = "ready"
	StatusFailed     = "failed"
)

var ErrInvalidRecord = errors.New("invalid lesson record")

// Lesson is the database record created for an uploaded file.
type Lesson struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	FilePath    string    `json:"file_path"`
	Status      string    `json:"status"`
	OwnerID     string    `json:"user_id"`
	CreatedAt   time.Time `json:"created_at"`
}

var lessonsSchema = []string{
	`CREATE TABLE IF NOT EXISTS lessons (
		id TEXT PRIMARY KEY,
		title TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		file_path TEXT NOT NULL,
		status TEXT NOT NULL,
		user_id TEXT NOT NULL,
		created_at INTEGER NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_lessons_user ON lessons(user_id, created_at)`,
}

// Records stores lessons in SQLite.
type Records struct {
	db     *sql.DB
	mu     sync.Mutex
	logger *zap.Logger
	now    func() time.Time
}

type RecordsOption func(*Records)

func WithRecordsLogger(logger *zap.Logger) RecordsOption {
	return func(r *Records) {
		r.logger = logger
	}
}

func WithRecordsClock(now func() time.Time) RecordsOption {
	return func(r *Records) {
		r.now = now
	}
}

// OpenRecords opens (creating if needed) the lesson database at path. Use
// ":memory:" for a throwaway database.
func OpenRecords(path string, opts ...RecordsOption) (*Records, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	r := &Records{
		db:     db,
		logger: zap.NewNop(),
		now:    time.Now,
	}

	for _, opt := range opts {
		opt(r)
	}

	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		r.logger.Debug("failed to set sqlite busy_timeout", zap.Error(err))
	}

	for _, stmt := range lessonsSchema {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to initialize schema: %w", err)
		}
	}

	return r, nil
}

func (r *Records) Close() error {
	return r.db.Close()
}

func validateLesson(l Lesson) error {
	switch {
	case strings.TrimSpace(l.Title) == "":
		return fmt.Errorf("%w: title is required", ErrInvalidRecord)
	case l.FilePath == "":
		return fmt.Errorf("%w: file path is required", ErrInvalidRecord)
	case l.OwnerID == "":
		return fmt.Errorf("%w: owner is required", ErrInvalidRecord)
	case l.Status == "":
		return fmt.Errorf("%w: status is required", ErrInvalidRecord)
	}

	return nil
}

// Insert stores a new lesson and returns its generated id.
func (r *Records) Insert(ctx context.Context, l Lesson) (string, error) {
	if err := validateLesson(l); err != nil {
		return "", err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	l.ID = uuid.NewString()
	l.CreatedAt = r.now().UTC()

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO lessons (id, title, description, file_path, status, user_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		l.ID, l.Title, l.Description, l.FilePath, l.Status, l.OwnerID, l.CreatedAt.UnixMilli(),
	)
	if err != nil {
		return "", fmt.Errorf("failed to insert lesson: %w", err)
	}

	r.logger.Debug("lesson inserted",
		zap.String("id", l.ID),
		zap.String("owner", l.OwnerID),
		zap.String("path", l.FilePath))

	return l.ID, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanLesson(row rowScanner) (*Lesson, error) {
	var l Lesson
	var created int64

	if err := row.Scan(&l.ID, &l.Title, &l.Description, &l.FilePath, &l.Status, &l.OwnerID, &created); err != nil {
		return nil, err
	}

	l.CreatedAt = time.UnixMilli(created).UTC()

	return &l, nil
}

const lessonColumns = `id, title, description, file_path, status, user_id, created_at`

func (r *Records) Get(ctx context.Context, id string) (*Lesson, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+lessonColumns+` FROM lessons WHERE id = ?`, id)

	l, err := scanLesson(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: lesson %s", ErrNotFound, id)
		}
		return nil, fmt.Errorf("failed to read lesson: %w", err)
	}

	return l, nil
}

// List returns an owner's lessons, newest first.
func (r *Records) List(ctx context.Context, ownerID string) ([]*Lesson, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+lessonColumns+` FROM lessons WHERE user_id = ? ORDER BY created_at DESC, id`,
		ownerID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list lessons: %w", err)
	}
	defer rows.Close()

	lessons := []*Lesson{}

	for rows.Next() {
		l, err := scanLesson(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to read lesson: %w", err)
		}
		lessons = append(lessons, l)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list lessons: %w", err)
	}

	return lessons, nil
}

func (r *Records) UpdateStatus(ctx context.Context, id, status string) error {
	if status == "" {
		return fmt.Errorf("%w: status is required", ErrInvalidRecord)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	res, err := r.db.ExecContext(ctx, `UPDATE lessons SET status = ? WHERE id = ?`, status, id)
	if err != nil {
		return fmt.Errorf("failed to update lesson: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to update lesson: %w", err)
	}

	if n == 0 {
		return fmt.Errorf("%w: lesson %s", ErrNotFound, id)
	}

	return nil
}
