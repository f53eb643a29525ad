package geo

import "github.com/rotisserie/eris"

var (
	// ErrNoRegionsDefined is returned when a query runs against an index with no regions.
	ErrNoRegionsDefined = eris.New("geo: no regions defined")

	// ErrMalformedGeometry is returned when a region polygon fails validation.
	ErrMalformedGeometry = eris.New("geo: malformed geometry")

	// ErrDuplicateRegion is returned when two regions share an identifier.
	ErrDuplicateRegion = eris.New("geo: duplicate region id")

	// ErrInvalidPoint is returned for points with non-finite coordinates.
	ErrInvalidPoint = eris.New("geo: invalid point")
)
