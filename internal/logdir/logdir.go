package logdir

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/runboardhq/runboard/internal/models"
	"github.com/runboardhq/runboard/internal/provider"
)

// scalarsFile is the per-run file holding one JSON object per line.
const scalarsFile = "scalars.jsonl"

// Provider reads scalar data from a log directory. Each immediate
// subdirectory is a run; each run directory contains scalars.jsonl with one
// scalarRecord per line.
type Provider struct {
	root string
}

// scalarRecord is the on-disk line format. WallTime is unix seconds with
// fractional part, matching what trainers typically emit.
type scalarRecord struct {
	Tag      string  `json:"tag"`
	Step     int64   `json:"step"`
	WallTime float64 `json:"wall_time"`
	Value    float64 `json:"value"`
}

// New returns a Provider rooted at dir. The directory must exist.
func New(dir string) (*Provider, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("%w: logdir %s: %v", provider.ErrUnavailable, dir, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: logdir %s is not a directory", provider.ErrUnavailable, dir)
	}
	return &Provider{root: dir}, nil
}

// ListRuns returns the run subdirectories of the log directory, sorted.
func (p *Provider) ListRuns(ctx context.Context) ([]string, error) {
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	entries, err := os.ReadDir(p.root)
	if err != nil {
		return nil, fmt.Errorf("%w: read logdir: %v", provider.ErrUnavailable, err)
	}
	runs := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			runs = append(runs, e.Name())
		}
	}
	sort.Strings(runs)
	return runs, nil
}

// ListTags returns the distinct tags appearing in the run's scalars file, sorted.
func (p *Provider) ListTags(ctx context.Context, run string) ([]string, error) {
	seen := make(map[string]struct{})
	err := p.scanRun(ctx, run, func(rec scalarRecord) {
		seen[rec.Tag] = struct{}{}
	})
	if err != nil {
		return nil, err
	}
	tags := make([]string, 0, len(seen))
	for t := range seen {
		tags = append(tags, t)
	}
	sort.Strings(tags)
	return tags, nil
}

// ReadScalars returns the series for run/tag, sorted by step ascending.
func (p *Provider) ReadScalars(ctx context.Context, run, tag string) (models.ScalarSeries, error) {
	var points []models.ScalarPoint
	err := p.scanRun(ctx, run, func(rec scalarRecord) {
		if rec.Tag != tag {
			return
		}
		points = append(points, models.ScalarPoint{
			Step:     rec.Step,
			WallTime: wallTimeToTime(rec.WallTime),
			Value:    rec.Value,
		})
	})
	if err != nil {
		return models.ScalarSeries{}, err
	}
	if len(points) == 0 {
		return models.ScalarSeries{}, fmt.Errorf("%w: %s in run %s", provider.ErrTagNotFound, tag, run)
	}
	sort.Slice(points, func(i, j int) bool { return points[i].Step < points[j].Step })
	return models.ScalarSeries{
		Run:       run,
		Tag:       tag,
		Points:    points,
		FetchedAt: time.Now(),
	}, nil
}

// Check verifies the log directory is still readable.
func (p *Provider) Check(ctx context.Context) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if _, err := os.ReadDir(p.root); err != nil {
		return fmt.Errorf("%w: %v", provider.ErrUnavailable, err)
	}
	return nil
}

// scanRun streams the run's scalars file line by line, calling fn for each
// decoded record. Malformed lines are skipped rather than failing the whole
// read; a partially written trailing line is normal while a trainer is live.
func (p *Provider) scanRun(ctx context.Context, run string, fn func(scalarRecord)) error {
	path := filepath.Join(p.root, run, scalarsFile)
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			if _, statErr := os.Stat(filepath.Join(p.root, run)); statErr != nil {
				return fmt.Errorf("%w: %s", provider.ErrRunNotFound, run)
			}
			// Run dir exists but nothing logged yet.
			return nil
		}
		return fmt.Errorf("%w: open %s: %v", provider.ErrUnavailable, path, err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var rec scalarRecord
		if err := json.Unmarshal(line, &rec); err != nil {
			continue
		}
		fn(rec)
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("%w: scan %s: %v", provider.ErrUnavailable, path, err)
	}
	return nil
}

// wallTimeToTime converts unix seconds with fractional part to time.Time.
func wallTimeToTime(sec float64) time.Time {
	whole, frac := math.Modf(sec)
	return time.Unix(int64(whole), int64(frac*1e9)).UTC()
}
