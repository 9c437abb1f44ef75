package store

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
)

func openTestStore(t *testing.T) (*Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "nested", "history.db")
	st, err := Open(path)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	return st, path
}

func TestOpenCreatesFile(t *testing.T) {
	_, path := openTestStore(t)
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("db file not created: %v", err)
	}
	if _, err := Open("  "); err == nil {
		t.Error("expected error for blank path")
	}
}

func TestStartAndFinishRun(t *testing.T) {
	st, _ := openTestStore(t)
	ctx := context.Background()
	target := time.Date(2026, 3, 11, 6, 0, 0, 0, time.UTC)

	r, err := st.StartRun(ctx, Run{GroupRef: "stawclub", OwnerID: "-1", TargetAt: target, Comment: "+"})
	if err != nil {
		t.Fatalf("StartRun: %v", err)
	}
	if _, err := uuid.Parse(r.ID); err != nil {
		t.Errorf("run id %q is not a uuid: %v", r.ID, err)
	}
	if r.Status != StatusWaiting {
		t.Errorf("status = %q", r.Status)
	}

	if err := st.FinishRun(ctx, r.ID, Outcome{PostID: 10, CommentID: 20, Attempts: 3}); err != nil {
		t.Fatalf("FinishRun: %v", err)
	}

	got, err := st.Get(ctx, r.ID)
	if err != nil || got == nil {
		t.Fatalf("Get: %v, %v", got, err)
	}
	if got.Status != StatusCommented || got.PostID != 10 || got.CommentID != 20 || got.Attempts != 3 {
		t.Errorf("run = %+v", got)
	}
	if !got.TargetAt.Equal(target) {
		t.Errorf("target = %v, want %v", got.TargetAt, target)
	}
	if got.FinishedAt.IsZero() || got.Error != "" {
		t.Errorf("finished = %v, error = %q", got.FinishedAt, got.Error)
	}
}

func TestFinishRunFailed(t *testing.T) {
	st, _ := openTestStore(t)
	ctx := context.Background()

	r, err := st.StartRun(ctx, Run{GroupRef: "g"})
	if err != nil {
		t.Fatalf("StartRun: %v", err)
	}
	if err := st.FinishRun(ctx, r.ID, Outcome{Attempts: 300, Err: errors.New("post not found")}); err != nil {
		t.Fatalf("FinishRun: %v", err)
	}
	got, _ := st.Get(ctx, r.ID)
	if got.Status != StatusFailed || got.Error != "post not found" {
		t.Errorf("run = %+v", got)
	}

	if err := st.FinishRun(ctx, "missing", Outcome{}); err == nil {
		t.Error("expected error for unknown run")
	}
}

func TestStartRunValidation(t *testing.T) {
	st, _ := openTestStore(t)
	if _, err := st.StartRun(context.Background(), Run{}); err == nil {
		t.Error("expected error without group")
	}
}

func TestGetMissing(t *testing.T) {
	st, _ := openTestStore(t)
	got, err := st.Get(context.Background(), "nope")
	if err != nil || got != nil {
		t.Errorf("Get missing = %v, %v", got, err)
	}
}

func TestListRunsAndStats(t *testing.T) {
	st, _ := openTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	var ids []string
	for i := 0; i < 4; i++ {
		r, err := st.StartRun(ctx, Run{GroupRef: "g", StartedAt: base.Add(time.Duration(i) * time.Hour)})
		if err != nil {
			t.Fatalf("StartRun: %v", err)
		}
		ids = append(ids, r.ID)
	}
	_ = st.FinishRun(ctx, ids[0], Outcome{PostID: 1, CommentID: 1})
	_ = st.FinishRun(ctx, ids[1], Outcome{Err: errors.New("x")})

	runs, err := st.ListRuns(ctx, 3)
	if err != nil {
		t.Fatalf("ListRuns: %v", err)
	}
	if len(runs) != 3 {
		t.Fatalf("runs = %d, want 3", len(runs))
	}
	if runs[0].ID != ids[3] || runs[2].ID != ids[1] {
		t.Errorf("wrong order: %s %s %s", runs[0].ID, runs[1].ID, runs[2].ID)
	}

	stats, err := st.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats[StatusCommented] != 1 || stats[StatusFailed] != 1 || stats[StatusWaiting] != 2 {
		t.Errorf("stats = %v", stats)
	}
}

func TestFreshSchemaHasAllColumns(t *testing.T) {
	st, _ := openTestStore(t)
	ctx := context.Background()

	rows, err := st.db.QueryContext(ctx, `SELECT name FROM pragma_table_info('runs') ORDER BY cid;`)
	if err != nil {
		t.Fatalf("table info: %v", err)
	}
	defer rows.Close()
	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			t.Fatalf("scan: %v", err)
		}
		names = append(names, name)
	}

	// ALTER TABLE дописал бы колонки в конец, после finished_at
	if len(names) == 0 || names[len(names)-1] != "finished_at" {
		t.Errorf("columns = %v, want finished_at last", names)
	}
	cols, err := st.tableColumns(ctx, "runs")
	if err != nil {
		t.Fatalf("tableColumns: %v", err)
	}
	for _, c := range []string{"post_id", "comment_id", "attempts", "error"} {
		if !cols[c] {
			t.Errorf("missing column %s", c)
		}
	}
}

func TestMigratesOldSchema(t *testing.T) {
	path := filepath.Join(t.TempDir(), "old.db")
	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	_, err = db.Exec(`
CREATE TABLE runs (
  id TEXT PRIMARY KEY, group_ref TEXT NOT NULL, owner_id TEXT NOT NULL DEFAULT '',
  target_at INTEGER NOT NULL DEFAULT 0, comment TEXT NOT NULL DEFAULT '',
  status TEXT NOT NULL DEFAULT 'waiting', started_at INTEGER NOT NULL DEFAULT 0,
  finished_at INTEGER NOT NULL DEFAULT 0
);
INSERT INTO runs (id, group_ref, status, started_at) VALUES ('old', 'g', 'commented', 1);
`)
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	_ = db.Close()

	st, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer st.Close()

	got, err := st.Get(context.Background(), "old")
	if err != nil || got == nil {
		t.Fatalf("Get: %v, %v", got, err)
	}
	if got.PostID != 0 || got.CommentID != 0 || got.Error != "" {
		t.Errorf("migrated columns not defaulted: %+v", got)
	}
}
