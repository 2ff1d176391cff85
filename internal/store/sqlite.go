package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/runboardhq/runboard/internal/models"
	"github.com/runboardhq/runboard/internal/provider"
)

// SQLiteProvider reads scalar data from a SQLite database produced by an
// exporter. Schema:
//
//	runs(id INTEGER PRIMARY KEY, name TEXT UNIQUE)
//	scalars(run_id INTEGER, tag TEXT, step INTEGER, wall_time REAL, value REAL)
//
// wall_time is unix seconds with fractional part.
type SQLiteProvider struct {
	db *sql.DB
}

// Open opens the database read-only. The file must exist.
func Open(path string) (*SQLiteProvider, error) {
	db, err := sql.Open("sqlite", "file:"+path+"?mode=ro")
	if err != nil {
		return nil, fmt.Errorf("%w: open sqlite %s: %v", provider.ErrUnavailable, path, err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%w: ping sqlite %s: %v", provider.ErrUnavailable, path, err)
	}
	return &SQLiteProvider{db: db}, nil
}

// NewFromDB wraps an existing handle. Used by tests that build their own schema.
func NewFromDB(db *sql.DB) *SQLiteProvider {
	return &SQLiteProvider{db: db}
}

// ListRuns returns all run names, sorted.
func (p *SQLiteProvider) ListRuns(ctx context.Context) ([]string, error) {
	rows, err := p.db.QueryContext(ctx, `SELECT name FROM runs ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("%w: list runs: %v", provider.ErrUnavailable, err)
	}
	defer rows.Close()

	var runs []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("%w: scan run: %v", provider.ErrUnavailable, err)
		}
		runs = append(runs, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: list runs: %v", provider.ErrUnavailable, err)
	}
	return runs, nil
}

// ListTags returns the distinct tags for the run, sorted.
func (p *SQLiteProvider) ListTags(ctx context.Context, run string) ([]string, error) {
	id, err := p.runID(ctx, run)
	if err != nil {
		return nil, err
	}
	rows, err := p.db.QueryContext(ctx,
		`SELECT DISTINCT tag FROM scalars WHERE run_id = ? ORDER BY tag`, id)
	if err != nil {
		return nil, fmt.Errorf("%w: list tags: %v", provider.ErrUnavailable, err)
	}
	defer rows.Close()

	var tags []string
	for rows.Next() {
		var tag string
		if err := rows.Scan(&tag); err != nil {
			return nil, fmt.Errorf("%w: scan tag: %v", provider.ErrUnavailable, err)
		}
		tags = append(tags, tag)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: list tags: %v", provider.ErrUnavailable, err)
	}
	return tags, nil
}

// ReadScalars returns the series for run/tag, sorted by step ascending.
func (p *SQLiteProvider) ReadScalars(ctx context.Context, run, tag string) (models.ScalarSeries, error) {
	id, err := p.runID(ctx, run)
	if err != nil {
		return models.ScalarSeries{}, err
	}
	rows, err := p.db.QueryContext(ctx,
		`SELECT step, wall_time, value FROM scalars WHERE run_id = ? AND tag = ? ORDER BY step`, id, tag)
	if err != nil {
		return models.ScalarSeries{}, fmt.Errorf("%w: read scalars: %v", provider.ErrUnavailable, err)
	}
	defer rows.Close()

	var points []models.ScalarPoint
	for rows.Next() {
		var (
			step     int64
			wallTime float64
			value    float64
		)
		if err := rows.Scan(&step, &wallTime, &value); err != nil {
			return models.ScalarSeries{}, fmt.Errorf("%w: scan scalar: %v", provider.ErrUnavailable, err)
		}
		sec := int64(wallTime)
		nsec := int64((wallTime - float64(sec)) * 1e9)
		points = append(points, models.ScalarPoint{
			Step:     step,
			WallTime: time.Unix(sec, nsec).UTC(),
			Value:    value,
		})
	}
	if err := rows.Err(); err != nil {
		return models.ScalarSeries{}, fmt.Errorf("%w: read scalars: %v", provider.ErrUnavailable, err)
	}
	if len(points) == 0 {
		return models.ScalarSeries{}, fmt.Errorf("%w: %s in run %s", provider.ErrTagNotFound, tag, run)
	}
	return models.ScalarSeries{
		Run:       run,
		Tag:       tag,
		Points:    points,
		FetchedAt: time.Now(),
	}, nil
}

// Check verifies the database connection is alive.
func (p *SQLiteProvider) Check(ctx context.Context) error {
	if err := p.db.PingContext(ctx); err != nil {
		return fmt.Errorf("%w: %v", provider.ErrUnavailable, err)
	}
	return nil
}

// Close closes the database handle. Call during shutdown.
func (p *SQLiteProvider) Close() error {
	return p.db.Close()
}

func (p *SQLiteProvider) runID(ctx context.Context, run string) (int64, error) {
	var id int64
	err := p.db.QueryRowContext(ctx, `SELECT id FROM runs WHERE name = ?`, run).Scan(&id)
	if err == sql.ErrNoRows {
		return 0, fmt.Errorf("%w: %s", provider.ErrRunNotFound, run)
	}
	if err != nil {
		return 0, fmt.Errorf("%w: lookup run: %v", provider.ErrUnavailable, err)
	}
	return id, nil
}
