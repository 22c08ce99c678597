// Package journal keeps a SQLite log of terrain generation runs: what was
// asked for and what came out. Terrain geometry itself is never stored.
package journal

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

// Run is one journaled generation.
type Run struct {
	ID        uuid.UUID
	Seed      int64
	Options   string // JSON
	Vertices  int
	Faces     int
	Instances int
	Caves     int
	Water     bool
	Duration  time.Duration
	CreatedAt time.Time
	Warnings  []string
}

// SetOptions stores v as the run's options JSON.
func (r *Run) SetOptions(v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode options: %w", err)
	}
	r.Options = string(b)
	return nil
}

type runRow struct {
	ID         string `db:"id"`
	Seed       int64  `db:"seed"`
	Options    string `db:"options_json"`
	Vertices   int    `db:"vertices"`
	Faces      int    `db:"faces"`
	Instances  int    `db:"instances"`
	Caves      int    `db:"caves"`
	Water      bool   `db:"water"`
	DurationNS int64  `db:"duration_ns"`
	CreatedNS  int64  `db:"created_ns"`
}

// DB wraps a SQLite connection holding the journal.
type DB struct {
	conn *sqlx.DB
}

// Open opens or creates a journal at the given path.
func Open(path string) (*DB, error) {
	conn, err := sqlx.Open("sqlite", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}

	db := &DB{conn: conn}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return db, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

func (db *DB) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		seed INTEGER NOT NULL,
		options_json TEXT NOT NULL,
		vertices INTEGER NOT NULL,
		faces INTEGER NOT NULL,
		instances INTEGER NOT NULL,
		caves INTEGER NOT NULL,
		water INTEGER NOT NULL,
		duration_ns INTEGER NOT NULL,
		created_ns INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS run_warnings (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL REFERENCES runs(id),
		message TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_runs_created ON runs(created_ns);
	CREATE INDEX IF NOT EXISTS idx_run_warnings_run ON run_warnings(run_id);
	`
	_, err := db.conn.Exec(schema)
	return err
}

// Record appends a run. A nil ID and zero CreatedAt are filled in, and the
// stored values are returned.
func (db *DB) Record(ctx context.Context, r Run) (Run, error) {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}
	if r.Options == "" {
		r.Options = "{}"
	}

	tx, err := db.conn.BeginTxx(ctx, nil)
	if err != nil {
		return r, err
	}
	defer tx.Rollback()

	_, err = tx.NamedExecContext(ctx, `INSERT INTO runs
		(id, seed, options_json, vertices, faces, instances, caves, water, duration_ns, created_ns)
		VALUES (:id, :seed, :options_json, :vertices, :faces, :instances, :caves, :water, :duration_ns, :created_ns)`,
		runRow{
			ID:         r.ID.String(),
			Seed:       r.Seed,
			Options:    r.Options,
			Vertices:   r.Vertices,
			Faces:      r.Faces,
			Instances:  r.Instances,
			Caves:      r.Caves,
			Water:      r.Water,
			DurationNS: int64(r.Duration),
			CreatedNS:  r.CreatedAt.UnixNano(),
		})
	if err != nil {
		return r, fmt.Errorf("insert run %s: %w", r.ID, err)
	}
	for _, w := range r.Warnings {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO run_warnings (run_id, message) VALUES (?, ?)",
			r.ID.String(), w,
		); err != nil {
			return r, fmt.Errorf("insert warning for run %s: %w", r.ID, err)
		}
	}
	return r, tx.Commit()
}

// Recent returns up to limit runs, newest first.
func (db *DB) Recent(ctx context.Context, limit int) ([]Run, error) {
	var rows []runRow
	err := db.conn.SelectContext(ctx, &rows,
		"SELECT * FROM runs ORDER BY created_ns DESC, rowid DESC LIMIT ?",
		limit,
	)
	if err != nil {
		return nil, err
	}

	runs := make([]Run, 0, len(rows))
	for _, row := range rows {
		id, err := uuid.Parse(row.ID)
		if err != nil {
			return nil, fmt.Errorf("run %q: %w", row.ID, err)
		}
		r := Run{
			ID:        id,
			Seed:      row.Seed,
			Options:   row.Options,
			Vertices:  row.Vertices,
			Faces:     row.Faces,
			Instances: row.Instances,
			Caves:     row.Caves,
			Water:     row.Water,
			Duration:  time.Duration(row.DurationNS),
			CreatedAt: time.Unix(0, row.CreatedNS).UTC(),
		}
		err = db.conn.SelectContext(ctx, &r.Warnings,
			"SELECT message FROM run_warnings WHERE run_id = ? ORDER BY id",
			row.ID,
		)
		if err != nil {
			return nil, fmt.Errorf("warnings for run %s: %w", id, err)
		}
		runs = append(runs, r)
	}
	return runs, nil
}
