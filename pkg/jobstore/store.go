// Package jobstore persists Job records in a local SQLite database.
//
// The store supports a single writer per job (the orchestrator goroutine)
// with any number of concurrent readers (dashboard views, log polling).
package jobstore

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

// ErrJobNotFound reports a lookup for an id with no record.
var ErrJobNotFound = errors.New("job not found")

type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the database at path and runs migrations.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("database path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create database dir: %w", err)
	}

	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) migrate() error {
	q := `
	CREATE TABLE IF NOT EXISTS jobs (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		mode TEXT NOT NULL,
		template_name TEXT,
		status TEXT NOT NULL,
		created_at DATETIME NOT NULL,
		finished_at DATETIME,
		log_file_path TEXT,
		outputs_json TEXT,
		primary_output TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_jobs_user_created ON jobs(user_id, created_at);
	`
	if _, err := s.db.Exec(q); err != nil {
		return fmt.Errorf("migrate jobs table: %w", err)
	}
	return nil
}

func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Create inserts a new record, assigning an id and creation time when the
// caller left them empty.
func (s *Store) Create(j *Job) error {
	if j == nil {
		return fmt.Errorf("job is nil")
	}
	if j.ID == "" {
		j.ID = uuid.New().String()
	}
	if j.Status == "" {
		j.Status = StatusPending
	}
	if j.CreatedAt.IsZero() {
		j.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.Exec(
		`INSERT INTO jobs(id,user_id,mode,template_name,status,created_at,finished_at,log_file_path,outputs_json,primary_output)
		 VALUES(?,?,?,?,?,?,?,?,?,?)`,
		j.ID, j.UserID, j.Mode, j.TemplateName, string(j.Status),
		j.CreatedAt, nullableTime(j.FinishedAt), j.LogFilePath, j.OutputsJSON, j.PrimaryOutput,
	)
	if err != nil {
		return fmt.Errorf("insert job: %w", err)
	}
	return nil
}

// Save writes the record's mutable fields back.
func (s *Store) Save(j *Job) error {
	if j == nil || j.ID == "" {
		return fmt.Errorf("job id is required")
	}
	res, err := s.db.Exec(
		`UPDATE jobs SET status=?, finished_at=?, log_file_path=?, outputs_json=?, primary_output=? WHERE id=?`,
		string(j.Status), nullableTime(j.FinishedAt), j.LogFilePath, j.OutputsJSON, j.PrimaryOutput, j.ID,
	)
	if err != nil {
		return fmt.Errorf("update job: %w", err)
	}
	n, err := res.RowsAffected()
	if err == nil && n == 0 {
		return fmt.Errorf("%w: %s", ErrJobNotFound, j.ID)
	}
	return nil
}

// Get loads one record by id.
func (s *Store) Get(id string) (*Job, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, fmt.Errorf("job id is required")
	}
	row := s.db.QueryRow(
		`SELECT id,user_id,mode,template_name,status,created_at,finished_at,log_file_path,outputs_json,primary_output
		 FROM jobs WHERE id=?`, id)
	j, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrJobNotFound, id)
	}
	return j, err
}

// ListByUser returns a user's jobs, newest first.
func (s *Store) ListByUser(userID string) ([]Job, error) {
	return s.list(`SELECT id,user_id,mode,template_name,status,created_at,finished_at,log_file_path,outputs_json,primary_output
		FROM jobs WHERE user_id=? ORDER BY created_at DESC, id DESC`, userID)
}

// List returns all jobs, newest first.
func (s *Store) List() ([]Job, error) {
	return s.list(`SELECT id,user_id,mode,template_name,status,created_at,finished_at,log_file_path,outputs_json,primary_output
		FROM jobs ORDER BY created_at DESC, id DESC`)
}

func (s *Store) list(query string, args ...any) ([]Job, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query jobs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []Job
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *j)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanJob(row scanner) (*Job, error) {
	var (
		j            Job
		status       string
		templateName sql.NullString
		finishedAt   sql.NullTime
		logPath      sql.NullString
		outputsJSON  sql.NullString
		primary      sql.NullString
	)
	err := row.Scan(&j.ID, &j.UserID, &j.Mode, &templateName, &status,
		&j.CreatedAt, &finishedAt, &logPath, &outputsJSON, &primary)
	if err != nil {
		return nil, err
	}
	j.Status = Status(status)
	j.TemplateName = templateName.String
	if finishedAt.Valid {
		t := finishedAt.Time.UTC()
		j.FinishedAt = &t
	}
	j.LogFilePath = logPath.String
	j.OutputsJSON = outputsJSON.String
	j.PrimaryOutput = primary.String
	return &j, nil
}

func nullableTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC()
}
