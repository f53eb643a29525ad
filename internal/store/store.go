// Package store persists pipeline runs and regional summaries.
package store

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/hrmap/internal/model"
)

// ErrNotFound is returned when a run does not exist.
var ErrNotFound = eris.New("store: not found")

// Store defines the persistence interface for pipeline results.
type Store interface {
	// Runs
	SaveRun(ctx context.Context, run *model.Run) error
	GetRun(ctx context.Context, runID string) (*model.Run, error)

	// Summaries. Rows are appended to the run history and replace the latest
	// rows for the run label.
	SaveSummaries(ctx context.Context, run *model.Run, rows []model.RegionalSummary) (int64, error)
	LatestSummaries(ctx context.Context, label string) ([]model.RegionalSummary, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

// Open connects to the store named by driver ("postgres" or "sqlite").
func Open(ctx context.Context, driver, dsn string) (Store, error) {
	switch driver {
	case "postgres":
		s, err := NewPostgres(ctx, dsn, nil)
		if err != nil {
			return nil, err
		}
		return s, nil
	case "sqlite":
		s, err := NewSQLite(dsn)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, eris.Errorf("store: unknown driver %q", driver)
	}
}

// countValue maps a suppressed count to SQL NULL.
func countValue(c model.Count) any {
	if c.Suppressed {
		return nil
	}
	return c.Value
}

// countFrom is the inverse of countValue.
func countFrom(v *int64) model.Count {
	if v == nil {
		return model.SuppressedCount()
	}
	return model.NewCount(*v)
}
