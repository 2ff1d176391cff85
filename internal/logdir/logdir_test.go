package logdir

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/runboardhq/runboard/internal/provider"
)

// writeRun creates a run directory with the given scalars.jsonl content.
func writeRun(t *testing.T, root, run, content string) {
	t.Helper()
	dir := filepath.Join(root, run)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	if content != "" {
		if err := os.WriteFile(filepath.Join(dir, scalarsFile), []byte(content), 0o644); err != nil {
			t.Fatalf("WriteFile: %v", err)
		}
	}
}

const trainScalars = `{"tag":"loss","step":1,"wall_time":1700000000.5,"value":0.9}
{"tag":"loss","step":3,"wall_time":1700000002,"value":0.5}
{"tag":"accuracy","step":1,"wall_time":1700000000.5,"value":0.1}
{"tag":"loss","step":2,"wall_time":1700000001,"value":0.7}
`

func TestListRuns_SortedDirsOnly(t *testing.T) {
	root := t.TempDir()
	writeRun(t, root, "eval", "")
	writeRun(t, root, "train", "")
	// Stray files at the top level are not runs.
	if err := os.WriteFile(filepath.Join(root, "notes.txt"), []byte("x"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	p, err := New(root)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	runs, err := p.ListRuns(context.Background())
	if err != nil {
		t.Fatalf("ListRuns() error = %v", err)
	}
	if len(runs) != 2 || runs[0] != "eval" || runs[1] != "train" {
		t.Errorf("ListRuns() = %v, want [eval train]", runs)
	}
}

func TestListTags_DistinctSorted(t *testing.T) {
	root := t.TempDir()
	writeRun(t, root, "train", trainScalars)

	p, err := New(root)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	tags, err := p.ListTags(context.Background(), "train")
	if err != nil {
		t.Fatalf("ListTags() error = %v", err)
	}
	if len(tags) != 2 || tags[0] != "accuracy" || tags[1] != "loss" {
		t.Errorf("ListTags() = %v, want [accuracy loss]", tags)
	}
}

func TestListTags_RunNotFound(t *testing.T) {
	p, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	_, err = p.ListTags(context.Background(), "missing")
	if !errors.Is(err, provider.ErrRunNotFound) {
		t.Errorf("ListTags() error = %v, want ErrRunNotFound", err)
	}
}

func TestReadScalars_SortedByStep(t *testing.T) {
	root := t.TempDir()
	writeRun(t, root, "train", trainScalars)

	p, err := New(root)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	series, err := p.ReadScalars(context.Background(), "train", "loss")
	if err != nil {
		t.Fatalf("ReadScalars() error = %v", err)
	}
	if series.Run != "train" || series.Tag != "loss" {
		t.Errorf("series identity = %s/%s, want train/loss", series.Run, series.Tag)
	}
	if len(series.Points) != 3 {
		t.Fatalf("len(Points) = %d, want 3", len(series.Points))
	}
	for i, wantStep := range []int64{1, 2, 3} {
		if series.Points[i].Step != wantStep {
			t.Errorf("Points[%d].Step = %d, want %d", i, series.Points[i].Step, wantStep)
		}
	}
	if series.Points[0].Value != 0.9 {
		t.Errorf("Points[0].Value = %v, want 0.9", series.Points[0].Value)
	}
	if series.Points[0].WallTime.Unix() != 1700000000 {
		t.Errorf("Points[0].WallTime = %v, want unix 1700000000", series.Points[0].WallTime)
	}
}

func TestReadScalars_TagNotFound(t *testing.T) {
	root := t.TempDir()
	writeRun(t, root, "train", trainScalars)

	p, err := New(root)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	_, err = p.ReadScalars(context.Background(), "train", "learning_rate")
	if !errors.Is(err, provider.ErrTagNotFound) {
		t.Errorf("ReadScalars() error = %v, want ErrTagNotFound", err)
	}
}

func TestReadScalars_SkipsMalformedLines(t *testing.T) {
	root := t.TempDir()
	writeRun(t, root, "train", `{"tag":"loss","step":1,"wall_time":1700000000,"value":0.9}
not json at all
{"tag":"loss","step":2,"wall_time":1700000001,"value":0.7}
{"tag":"loss","step":3,"wall_`)

	p, err := New(root)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	series, err := p.ReadScalars(context.Background(), "train", "loss")
	if err != nil {
		t.Fatalf("ReadScalars() error = %v", err)
	}
	if len(series.Points) != 2 {
		t.Errorf("len(Points) = %d, want 2 (malformed lines skipped)", len(series.Points))
	}
}

func TestNew_MissingDir(t *testing.T) {
	_, err := New(filepath.Join(t.TempDir(), "nope"))
	if !errors.Is(err, provider.ErrUnavailable) {
		t.Errorf("New() error = %v, want ErrUnavailable", err)
	}
}

func TestCheck_OK(t *testing.T) {
	p, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if err := p.Check(context.Background()); err != nil {
		t.Errorf("Check() error = %v, want nil", err)
	}
}
