package store

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"

	_ "modernc.org/sqlite"

	"github.com/runboardhq/runboard/internal/provider"
)

// newTestDB creates a file-backed database with the exporter schema and two runs.
func newTestDB(t *testing.T) *sql.DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "scalars.db")
	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	stmts := []string{
		`CREATE TABLE runs (id INTEGER PRIMARY KEY, name TEXT UNIQUE)`,
		`CREATE TABLE scalars (run_id INTEGER, tag TEXT, step INTEGER, wall_time REAL, value REAL)`,
		`INSERT INTO runs (id, name) VALUES (1, 'train'), (2, 'eval')`,
		`INSERT INTO scalars VALUES
			(1, 'loss', 3, 1700000002.0, 0.5),
			(1, 'loss', 1, 1700000000.5, 0.9),
			(1, 'loss', 2, 1700000001.0, 0.7),
			(1, 'accuracy', 1, 1700000000.5, 0.1),
			(2, 'loss', 1, 1700000003.0, 0.8)`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			t.Fatalf("exec %q: %v", s, err)
		}
	}
	return db
}

func TestSQLite_ListRuns(t *testing.T) {
	p := NewFromDB(newTestDB(t))
	runs, err := p.ListRuns(context.Background())
	if err != nil {
		t.Fatalf("ListRuns() error = %v", err)
	}
	if len(runs) != 2 || runs[0] != "eval" || runs[1] != "train" {
		t.Errorf("ListRuns() = %v, want [eval train]", runs)
	}
}

func TestSQLite_ListTags(t *testing.T) {
	p := NewFromDB(newTestDB(t))
	tags, err := p.ListTags(context.Background(), "train")
	if err != nil {
		t.Fatalf("ListTags() error = %v", err)
	}
	if len(tags) != 2 || tags[0] != "accuracy" || tags[1] != "loss" {
		t.Errorf("ListTags() = %v, want [accuracy loss]", tags)
	}
}

func TestSQLite_ListTags_RunNotFound(t *testing.T) {
	p := NewFromDB(newTestDB(t))
	_, err := p.ListTags(context.Background(), "missing")
	if !errors.Is(err, provider.ErrRunNotFound) {
		t.Errorf("ListTags() error = %v, want ErrRunNotFound", err)
	}
}

func TestSQLite_ReadScalars_OrderedByStep(t *testing.T) {
	p := NewFromDB(newTestDB(t))
	series, err := p.ReadScalars(context.Background(), "train", "loss")
	if err != nil {
		t.Fatalf("ReadScalars() error = %v", err)
	}
	if len(series.Points) != 3 {
		t.Fatalf("len(Points) = %d, want 3", len(series.Points))
	}
	for i, wantStep := range []int64{1, 2, 3} {
		if series.Points[i].Step != wantStep {
			t.Errorf("Points[%d].Step = %d, want %d", i, series.Points[i].Step, wantStep)
		}
	}
	if series.Points[0].WallTime.Unix() != 1700000000 {
		t.Errorf("Points[0].WallTime unix = %d, want 1700000000", series.Points[0].WallTime.Unix())
	}
}

func TestSQLite_ReadScalars_TagNotFound(t *testing.T) {
	p := NewFromDB(newTestDB(t))
	_, err := p.ReadScalars(context.Background(), "eval", "accuracy")
	if !errors.Is(err, provider.ErrTagNotFound) {
		t.Errorf("ReadScalars() error = %v, want ErrTagNotFound", err)
	}
}

func TestSQLite_Check(t *testing.T) {
	p := NewFromDB(newTestDB(t))
	if err := p.Check(context.Background()); err != nil {
		t.Errorf("Check() error = %v, want nil", err)
	}
}

func TestOpen_MissingFile(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "nope.db"))
	if !errors.Is(err, provider.ErrUnavailable) {
		t.Errorf("Open() error = %v, want ErrUnavailable", err)
	}
}
