package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/hrmap/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close() //nolint:errcheck
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS runs (
	id         TEXT PRIMARY KEY,
	stage      TEXT NOT NULL,
	label      TEXT NOT NULL,
	inputs     TEXT,
	outputs    TEXT,
	counts     TEXT,
	threshold  INTEGER NOT NULL DEFAULT 0,
	created_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS hr_summaries (
	run_id             TEXT NOT NULL REFERENCES runs(id),
	hr_uid             TEXT NOT NULL,
	participants       INTEGER,
	confirmed_positive INTEGER,
	national           BOOLEAN NOT NULL DEFAULT 0,
	position           INTEGER NOT NULL,
	PRIMARY KEY (run_id, hr_uid)
);

CREATE TABLE IF NOT EXISTS hr_summary_latest (
	label              TEXT NOT NULL,
	hr_uid             TEXT NOT NULL,
	run_id             TEXT NOT NULL REFERENCES runs(id),
	participants       INTEGER,
	confirmed_positive INTEGER,
	national           BOOLEAN NOT NULL DEFAULT 0,
	position           INTEGER NOT NULL,
	updated_at         DATETIME NOT NULL DEFAULT (datetime('now')),
	PRIMARY KEY (label, hr_uid)
);

CREATE INDEX IF NOT EXISTS idx_runs_label ON runs(label);
CREATE INDEX IF NOT EXISTS idx_hr_summaries_run_id ON hr_summaries(run_id);
`

// Migrate creates the tables.
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// SaveRun inserts a run, assigning an id and timestamp when missing.
func (s *SQLiteStore) SaveRun(ctx context.Context, run *model.Run) error {
	run.Stamp()
	inputs, outputs, counts, err := marshalRun(run)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO runs (id, stage, label, inputs, outputs, counts, threshold, created_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, string(run.Stage), run.Label, string(inputs), string(outputs), string(counts), run.Threshold, run.CreatedAt,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: insert run %s", run.ID)
	}
	return nil
}

// GetRun loads a run by id.
func (s *SQLiteStore) GetRun(ctx context.Context, runID string) (*model.Run, error) {
	var (
		run                     model.Run
		stage                   string
		inputs, outputs, counts sql.NullString
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, stage, label, inputs, outputs, counts, threshold, created_at FROM runs WHERE id = ?`,
		runID,
	).Scan(&run.ID, &stage, &run.Label, &inputs, &outputs, &counts, &run.Threshold, &run.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "sqlite: get run %s", runID)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get run %s", runID)
	}
	run.Stage = model.RunStage(stage)
	if err := unmarshalRun(&run, []byte(inputs.String), []byte(outputs.String), []byte(counts.String)); err != nil {
		return nil, err
	}
	return &run, nil
}

// SaveSummaries appends rows to the run history and replaces the latest rows
// for run.Label in one transaction.
func (s *SQLiteStore) SaveSummaries(ctx context.Context, run *model.Run, rows []model.RegionalSummary) (int64, error) {
	if run == nil || run.ID == "" {
		return 0, eris.New("sqlite: save summaries: run must be saved first")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: begin tx")
	}
	defer tx.Rollback() //nolint:errcheck

	now := time.Now().UTC()
	var n int64
	for i, r := range rows {
		part, conf := countValue(r.Participants), countValue(r.Confirmed)
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO hr_summaries (run_id, hr_uid, participants, confirmed_positive, national, position) VALUES (?, ?, ?, ?, ?, ?)`,
			run.ID, r.RegionID, part, conf, r.National, i,
		); err != nil {
			return 0, eris.Wrapf(err, "sqlite: insert summary %s", r.RegionID)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO hr_summary_latest (label, hr_uid, run_id, participants, confirmed_positive, national, position, updated_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
			 ON CONFLICT (label, hr_uid) DO UPDATE SET
				run_id = excluded.run_id,
				participants = excluded.participants,
				confirmed_positive = excluded.confirmed_positive,
				national = excluded.national,
				position = excluded.position,
				updated_at = excluded.updated_at`,
			run.Label, r.RegionID, run.ID, part, conf, r.National, i, now,
		); err != nil {
			return 0, eris.Wrapf(err, "sqlite: upsert latest %s", r.RegionID)
		}
		n++
	}

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM hr_summary_latest WHERE label = ? AND run_id <> ?`, run.Label, run.ID,
	); err != nil {
		return 0, eris.Wrapf(err, "sqlite: prune latest %s", run.Label)
	}

	if err := tx.Commit(); err != nil {
		return 0, eris.Wrap(err, "sqlite: commit tx")
	}
	return n, nil
}

// LatestSummaries returns the most recent rows for a label in output order.
func (s *SQLiteStore) LatestSummaries(ctx context.Context, label string) ([]model.RegionalSummary, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT hr_uid, participants, confirmed_positive, national FROM hr_summary_latest WHERE label = ? ORDER BY position`,
		label,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: query latest %s", label)
	}
	defer rows.Close() //nolint:errcheck

	var out []model.RegionalSummary
	for rows.Next() {
		var (
			r         model.RegionalSummary
			part, pos sql.NullInt64
		)
		if err := rows.Scan(&r.RegionID, &part, &pos, &r.National); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan summary")
		}
		r.Participants = countFrom(nullInt(part))
		r.Confirmed = countFrom(nullInt(pos))
		out = append(out, r)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: iterate summaries")
}

func nullInt(v sql.NullInt64) *int64 {
	if !v.Valid {
		return nil
	}
	return &v.Int64
}
