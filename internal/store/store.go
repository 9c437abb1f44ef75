package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

const (
	StatusWaiting   = "waiting"
	StatusCommented = "commented"
	StatusFailed    = "failed"
)

type Store struct {
	db *sql.DB
}

// Run: один запуск ожидания и комментария.
type Run struct {
	ID        string
	GroupRef  string
	OwnerID   string
	TargetAt  time.Time
	Comment   string
	Status    string
	PostID    int
	CommentID int
	Attempts  int
	Error     string

	StartedAt  time.Time
	FinishedAt time.Time
}

// Outcome: чем закончился запуск.
type Outcome struct {
	PostID    int
	CommentID int
	Attempts  int
	Err       error
}

func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("path is required")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)

	s := &Store{db: db}
	if err := s.ensureSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) ensureSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS runs (
  id          TEXT PRIMARY KEY,
  group_ref   TEXT NOT NULL,
  owner_id    TEXT NOT NULL DEFAULT '',
  target_at   INTEGER NOT NULL DEFAULT 0,
  comment     TEXT NOT NULL DEFAULT '',
  status      TEXT NOT NULL DEFAULT 'waiting',
  post_id     INTEGER NOT NULL DEFAULT 0,
  comment_id  INTEGER NOT NULL DEFAULT 0,
  attempts    INTEGER NOT NULL DEFAULT 0,
  error       TEXT NOT NULL DEFAULT '',
  started_at  INTEGER NOT NULL DEFAULT 0,
  finished_at INTEGER NOT NULL DEFAULT 0
);
`)
	if err != nil {
		return fmt.Errorf("create runs: %w", err)
	}

	// базы первых версий: без итога запуска
	cols, err := s.tableColumns(ctx, "runs")
	if err != nil {
		return err
	}
	addCol := func(name, ddl string) error {
		if cols[name] {
			return nil
		}
		if _, e := s.db.ExecContext(ctx, ddl); e != nil {
			return fmt.Errorf("add column %s: %w", name, e)
		}
		return nil
	}

	if err := addCol("post_id", `ALTER TABLE runs ADD COLUMN post_id INTEGER NOT NULL DEFAULT 0;`); err != nil {
		return err
	}
	if err := addCol("comment_id", `ALTER TABLE runs ADD COLUMN comment_id INTEGER NOT NULL DEFAULT 0;`); err != nil {
		return err
	}
	if err := addCol("attempts", `ALTER TABLE runs ADD COLUMN attempts INTEGER NOT NULL DEFAULT 0;`); err != nil {
		return err
	}
	if err := addCol("error", `ALTER TABLE runs ADD COLUMN error TEXT NOT NULL DEFAULT '';`); err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, `
CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at DESC);
CREATE INDEX IF NOT EXISTS idx_runs_status  ON runs(status, started_at DESC);
`)
	if err != nil {
		return fmt.Errorf("create indexes: %w", err)
	}
	return nil
}

func (s *Store) tableColumns(ctx context.Context, table string) (map[string]bool, error) {
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(`PRAGMA table_info(%s);`, table))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := map[string]bool{}
	for rows.Next() {
		var cid int
		var name, ctype string
		var notnull int
		var dflt sql.NullString
		var pk int
		if err := rows.Scan(&cid, &name, &ctype, &notnull, &dflt, &pk); err != nil {
			return nil, err
		}
		out[name] = true
	}
	return out, rows.Err()
}

// StartRun пишет запуск в статусе waiting. Пустой ID заменяется на uuid.
func (s *Store) StartRun(ctx context.Context, r Run) (Run, error) {
	if strings.TrimSpace(r.GroupRef) == "" {
		return Run{}, errors.New("group is required")
	}
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.StartedAt.IsZero() {
		r.StartedAt = time.Now()
	}
	r.Status = StatusWaiting

	_, err := s.db.ExecContext(ctx, `
INSERT INTO runs (id, group_ref, owner_id, target_at, comment, status, started_at)
VALUES (?, ?, ?, ?, ?, ?, ?);
`, r.ID, r.GroupRef, r.OwnerID, r.TargetAt.Unix(), r.Comment, r.Status, r.StartedAt.Unix())
	if err != nil {
		return Run{}, fmt.Errorf("insert run: %w", err)
	}
	return r, nil
}

// FinishRun: Err == nil -> commented, иначе failed.
func (s *Store) FinishRun(ctx context.Context, id string, out Outcome) error {
	status := StatusCommented
	errText := ""
	if out.Err != nil {
		status = StatusFailed
		errText = out.Err.Error()
	}

	res, err := s.db.ExecContext(ctx, `
UPDATE runs
SET status=?, post_id=?, comment_id=?, attempts=?, error=?, finished_at=?
WHERE id=?;
`, status, out.PostID, out.CommentID, out.Attempts, errText, time.Now().Unix(), id)
	if err != nil {
		return fmt.Errorf("update run: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("run %s not found", id)
	}
	return nil
}

const runColumns = `id, group_ref, owner_id, target_at, comment, status, post_id, comment_id, attempts, error, started_at, finished_at`

func (s *Store) Get(ctx context.Context, id string) (*Run, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id=?;`, id)
	r, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

func (s *Store) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.db.QueryContext(ctx, `
SELECT `+runColumns+`
FROM runs
ORDER BY started_at DESC, rowid DESC
LIMIT ?;
`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Run{}
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Stats: число запусков по статусам.
func (s *Store) Stats(ctx context.Context) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM runs GROUP BY status;`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := map[string]int{
		StatusWaiting:   0,
		StatusCommented: 0,
		StatusFailed:    0,
	}
	for rows.Next() {
		var st string
		var c int
		if err := rows.Scan(&st, &c); err != nil {
			return nil, err
		}
		out[st] = c
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(sc scanner) (Run, error) {
	var r Run
	var target, started, finished int64
	err := sc.Scan(&r.ID, &r.GroupRef, &r.OwnerID, &target, &r.Comment, &r.Status,
		&r.PostID, &r.CommentID, &r.Attempts, &r.Error, &started, &finished)
	if err != nil {
		return Run{}, err
	}
	r.TargetAt = unixOrZero(target)
	r.StartedAt = unixOrZero(started)
	r.FinishedAt = unixOrZero(finished)
	return r, nil
}

func unixOrZero(v int64) time.Time {
	if v == 0 {
		return time.Time{}
	}
	return time.Unix(v, 0)
}
