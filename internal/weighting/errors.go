package weighting

import "github.com/rotisserie/eris"

var (
	// ErrMissingCoarsePopulation is returned when a fine unit's coarse unit has no population entry.
	ErrMissingCoarsePopulation = eris.New("weighting: missing coarse population")

	// ErrDivisionByZeroPopulation is returned when a coarse unit's population is zero.
	ErrDivisionByZeroPopulation = eris.New("weighting: coarse population is zero")

	// ErrInvalidPopulation is returned for negative or non-finite fine-unit populations.
	ErrInvalidPopulation = eris.New("weighting: invalid population")

	// ErrDuplicateObservation is returned when the observation table has two rows for one coarse unit.
	ErrDuplicateObservation = eris.New("weighting: duplicate observation")

	// ErrInvalidObservation is returned for negative or non-finite observed counts.
	ErrInvalidObservation = eris.New("weighting: invalid observation")
)
