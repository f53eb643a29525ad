package weighting

import (
	"errors"
	"math"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/hrmap/internal/model"
)

// InvalidUnitPolicy decides what happens to a fine unit whose weight cannot
// be computed (missing or zero coarse population).
type InvalidUnitPolicy string

const (
	// PolicyAbort stops the run at the first invalid unit.
	PolicyAbort InvalidUnitPolicy = "abort"
	// PolicySkip drops invalid units with a warning.
	PolicySkip InvalidUnitPolicy = "skip"
)

// ParsePolicy parses a policy name, case-insensitively.
func ParsePolicy(s string) (InvalidUnitPolicy, error) {
	switch p := InvalidUnitPolicy(strings.ToLower(strings.TrimSpace(s))); p {
	case PolicyAbort, PolicySkip:
		return p, nil
	case "":
		return PolicyAbort, nil
	default:
		return "", eris.Errorf("weighting: unknown invalid-unit policy %q", s)
	}
}

// ObservationTable indexes coarse-unit observations by coarse id.
type ObservationTable struct {
	rows map[string]model.Observation
}

// NewObservationTable indexes rows by coarse id. Duplicate ids and negative
// or non-finite counts are rejected.
func NewObservationTable(rows []model.Observation) (*ObservationTable, error) {
	t := &ObservationTable{rows: make(map[string]model.Observation, len(rows))}
	for _, r := range rows {
		if _, dup := t.rows[r.CoarseID]; dup {
			return nil, eris.Wrapf(ErrDuplicateObservation, "coarse unit %s", r.CoarseID)
		}
		if !nonNegative(r.Participants) || !nonNegative(r.Confirmed) {
			return nil, eris.Wrapf(ErrInvalidObservation, "coarse unit %s: participants=%v confirmed=%v",
				r.CoarseID, r.Participants, r.Confirmed)
		}
		t.rows[r.CoarseID] = r
	}
	return t, nil
}

// Lookup returns the observation for a coarse unit. A false result means
// the unit has no surveillance data for the period.
func (t *ObservationTable) Lookup(coarseID string) (model.Observation, bool) {
	if t == nil {
		return model.Observation{}, false
	}
	o, ok := t.rows[coarseID]
	return o, ok
}

// Len returns the number of observation rows.
func (t *ObservationTable) Len() int {
	if t == nil {
		return 0
	}
	return len(t.rows)
}

// SkippedUnit records a fine unit dropped under PolicySkip.
type SkippedUnit struct {
	FineID   string
	CoarseID string
	Reason   string
}

// DisaggregationStats summarizes a disaggregation pass.
type DisaggregationStats struct {
	Units              int
	Expanded           int
	MissingObservation int // units whose coarse unit had no observation row
	Skipped            []SkippedUnit
}

// ExpandFineUnit computes the six derived values for one fine unit. The
// second result reports whether an observation row was found; when it was
// not, both observed counts are zero.
func ExpandFineUnit(u model.FineUnit, pops PopulationTable, obs *ObservationTable) (model.ExpandedFineUnit, bool, error) {
	if !nonNegative(u.Population) {
		return model.ExpandedFineUnit{}, false, eris.Wrapf(ErrInvalidPopulation,
			"fine unit %s: population %v", u.ID, u.Population)
	}

	coarsePop, ok := pops.Lookup(u.CoarseID)
	if !ok {
		return model.ExpandedFineUnit{}, false, eris.Wrapf(ErrMissingCoarsePopulation,
			"fine unit %s: coarse unit %s", u.ID, u.CoarseID)
	}
	if coarsePop == 0 {
		return model.ExpandedFineUnit{}, false, eris.Wrapf(ErrDivisionByZeroPopulation,
			"fine unit %s: coarse unit %s", u.ID, u.CoarseID)
	}

	fraction := u.Population / coarsePop
	o, found := obs.Lookup(u.CoarseID)

	return model.ExpandedFineUnit{
		FineUnit:           u,
		CoarsePopulation:   coarsePop,
		Fraction:           fraction,
		CoarseParticipants: o.Participants,
		CoarseConfirmed:    o.Confirmed,
		FineParticipants:   fraction * o.Participants,
		FineConfirmed:      fraction * o.Confirmed,
	}, found, nil
}

// Disaggregate expands every fine unit. Units that fail with
// ErrMissingCoarsePopulation or ErrDivisionByZeroPopulation abort the pass
// under PolicyAbort and are dropped under PolicySkip. Invalid populations
// always abort.
func Disaggregate(units []model.FineUnit, pops PopulationTable, obs *ObservationTable, policy InvalidUnitPolicy) ([]model.ExpandedFineUnit, DisaggregationStats, error) {
	log := zap.L().With(zap.String("component", "weighting.disaggregate"))

	stats := DisaggregationStats{Units: len(units)}
	out := make([]model.ExpandedFineUnit, 0, len(units))
	missing := make(map[string]bool)

	for _, u := range units {
		e, found, err := ExpandFineUnit(u, pops, obs)
		if err != nil {
			skippable := errors.Is(err, ErrMissingCoarsePopulation) || errors.Is(err, ErrDivisionByZeroPopulation)
			if policy != PolicySkip || !skippable {
				return nil, stats, err
			}
			log.Warn("skipping fine unit",
				zap.String("fine_id", u.ID),
				zap.String("coarse_id", u.CoarseID),
				zap.Error(err),
			)
			stats.Skipped = append(stats.Skipped, SkippedUnit{FineID: u.ID, CoarseID: u.CoarseID, Reason: err.Error()})
			continue
		}
		if !found {
			stats.MissingObservation++
			if !missing[u.CoarseID] {
				missing[u.CoarseID] = true
				log.Debug("no observation for coarse unit, using zero counts", zap.String("coarse_id", u.CoarseID))
			}
		}
		out = append(out, e)
	}

	stats.Expanded = len(out)
	return out, stats, nil
}

func nonNegative(f float64) bool {
	return f >= 0 && !math.IsInf(f, 0)
}
