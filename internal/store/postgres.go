package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/hrmap/internal/db"
	"github.com/sells-group/hrmap/internal/model"
)

const (
	pgRunsTable    = "hrmap.runs"
	pgHistoryTable = "hrmap.hr_summaries"
	pgLatestTable  = "hrmap.hr_summary_latest"
)

var (
	historyColumns = []string{"run_id", "hr_uid", "participants", "confirmed_positive", "national", "position"}
	latestColumns  = []string{"label", "hr_uid", "run_id", "participants", "confirmed_positive", "national", "position", "updated_at"}
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(4)
	minConns := int32(1)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

const postgresMigration = `
CREATE SCHEMA IF NOT EXISTS hrmap;

CREATE TABLE IF NOT EXISTS hrmap.runs (
	id         TEXT PRIMARY KEY,
	stage      TEXT NOT NULL,
	label      TEXT NOT NULL,
	inputs     JSONB,
	outputs    JSONB,
	counts     JSONB,
	threshold  BIGINT NOT NULL DEFAULT 0,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS hrmap.hr_summaries (
	run_id             TEXT NOT NULL REFERENCES hrmap.runs(id),
	hr_uid             TEXT NOT NULL,
	participants       BIGINT,
	confirmed_positive BIGINT,
	national           BOOLEAN NOT NULL DEFAULT false,
	position           INT NOT NULL,
	PRIMARY KEY (run_id, hr_uid)
);

CREATE TABLE IF NOT EXISTS hrmap.hr_summary_latest (
	label              TEXT NOT NULL,
	hr_uid             TEXT NOT NULL,
	run_id             TEXT NOT NULL REFERENCES hrmap.runs(id),
	participants       BIGINT,
	confirmed_positive BIGINT,
	national           BOOLEAN NOT NULL DEFAULT false,
	position           INT NOT NULL,
	updated_at         TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (label, hr_uid)
);

CREATE INDEX IF NOT EXISTS idx_runs_label ON hrmap.runs(label);
CREATE INDEX IF NOT EXISTS idx_hr_summaries_run_id ON hrmap.hr_summaries(run_id);
`

// Migrate creates the schema and tables.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

// Close releases the pool.
func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

// SaveRun inserts a run, assigning an id and timestamp when missing.
func (s *PostgresStore) SaveRun(ctx context.Context, run *model.Run) error {
	run.Stamp()
	inputs, outputs, counts, err := marshalRun(run)
	if err != nil {
		return err
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO hrmap.runs (id, stage, label, inputs, outputs, counts, threshold, created_at) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		run.ID, string(run.Stage), run.Label, inputs, outputs, counts, run.Threshold, run.CreatedAt,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: insert run %s", run.ID)
	}
	return nil
}

// GetRun loads a run by id.
func (s *PostgresStore) GetRun(ctx context.Context, runID string) (*model.Run, error) {
	var (
		run                     model.Run
		stage                   string
		inputs, outputs, counts []byte
	)
	err := s.pool.QueryRow(ctx,
		`SELECT id, stage, label, inputs, outputs, counts, threshold, created_at FROM hrmap.runs WHERE id = $1`,
		runID,
	).Scan(&run.ID, &stage, &run.Label, &inputs, &outputs, &counts, &run.Threshold, &run.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "postgres: get run %s", runID)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get run %s", runID)
	}
	run.Stage = model.RunStage(stage)
	if err := unmarshalRun(&run, inputs, outputs, counts); err != nil {
		return nil, err
	}
	return &run, nil
}

// SaveSummaries copies rows into the run history and upserts them as the
// latest rows for run.Label in one transaction. Latest rows from older runs
// of the same label that the new run no longer reports are removed.
func (s *PostgresStore) SaveSummaries(ctx context.Context, run *model.Run, rows []model.RegionalSummary) (int64, error) {
	if run == nil || run.ID == "" {
		return 0, eris.New("postgres: save summaries: run must be saved first")
	}

	now := time.Now().UTC()
	history := make([][]any, len(rows))
	latest := make([][]any, len(rows))
	for i, r := range rows {
		history[i] = []any{run.ID, r.RegionID, countValue(r.Participants), countValue(r.Confirmed), r.National, i}
		latest[i] = []any{run.Label, r.RegionID, run.ID, countValue(r.Participants), countValue(r.Confirmed), r.National, i, now}
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: begin tx")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	n, err := db.CopyFrom(ctx, tx, pgHistoryTable, historyColumns, history)
	if err != nil {
		return 0, err
	}
	if _, err := db.Upsert(ctx, tx, pgLatestTable, []string{"label", "hr_uid"}, latestColumns, latest); err != nil {
		return 0, err
	}

	tag, err := tx.Exec(ctx, `DELETE FROM hrmap.hr_summary_latest WHERE label = $1 AND run_id <> $2`, run.Label, run.ID)
	if err != nil {
		return 0, eris.Wrapf(err, "postgres: prune latest %s", run.Label)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, eris.Wrap(err, "postgres: commit tx")
	}
	if tag.RowsAffected() > 0 {
		zap.L().Debug("pruned stale summary rows",
			zap.String("label", run.Label),
			zap.Int64("rows", tag.RowsAffected()),
		)
	}
	return n, nil
}

// LatestSummaries returns the most recent rows for a label in output order.
func (s *PostgresStore) LatestSummaries(ctx context.Context, label string) ([]model.RegionalSummary, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT hr_uid, participants, confirmed_positive, national FROM hrmap.hr_summary_latest WHERE label = $1 ORDER BY position`,
		label,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: query latest %s", label)
	}
	defer rows.Close()

	var out []model.RegionalSummary
	for rows.Next() {
		var (
			r         model.RegionalSummary
			part, pos *int64
		)
		if err := rows.Scan(&r.RegionID, &part, &pos, &r.National); err != nil {
			return nil, eris.Wrap(err, "postgres: scan summary")
		}
		r.Participants = countFrom(part)
		r.Confirmed = countFrom(pos)
		out = append(out, r)
	}
	return out, eris.Wrap(rows.Err(), "postgres: iterate summaries")
}


func marshalRun(run *model.Run) (inputs, outputs, counts []byte, err error) {
	if inputs, err = json.Marshal(run.Inputs); err != nil {
		return nil, nil, nil, eris.Wrap(err, "store: marshal inputs")
	}
	if outputs, err = json.Marshal(run.Outputs); err != nil {
		return nil, nil, nil, eris.Wrap(err, "store: marshal outputs")
	}
	if counts, err = json.Marshal(run.Counts); err != nil {
		return nil, nil, nil, eris.Wrap(err, "store: marshal counts")
	}
	return inputs, outputs, counts, nil
}

func unmarshalRun(run *model.Run, inputs, outputs, counts []byte) error {
	for _, f := range []struct {
		name string
		raw  []byte
		dst  any
	}{
		{"inputs", inputs, &run.Inputs},
		{"outputs", outputs, &run.Outputs},
		{"counts", counts, &run.Counts},
	} {
		if len(f.raw) == 0 {
			continue
		}
		if err := json.Unmarshal(f.raw, f.dst); err != nil {
			return eris.Wrapf(err, "store: unmarshal %s", f.name)
		}
	}
	return nil
}
