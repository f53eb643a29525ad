package model

import (
	"strconv"

	"github.com/rotisserie/eris"
)

// SuppressedMarker is written in place of a count that was masked for disclosure control.
const SuppressedMarker = "data_suppressed"

// Observation is a coarse-unit (FSA) surveillance row for one reporting period.
type Observation struct {
	CoarseID     string
	Participants float64
	Confirmed    float64
}

// FineUnit is a dissemination-area row from the correspondence table.
type FineUnit struct {
	ID         string
	CoarseID   string
	RegionID   string
	Population float64
	Attrs      []Attr
}

// ExpandedFineUnit is a FineUnit with its disaggregated estimates appended.
type ExpandedFineUnit struct {
	FineUnit

	CoarsePopulation   float64
	Fraction           float64
	CoarseParticipants float64
	CoarseConfirmed    float64
	FineParticipants   float64
	FineConfirmed      float64
}

// Count is an integer total that may have been suppressed.
type Count struct {
	Value      int64
	Suppressed bool
}

// NewCount returns an unsuppressed count.
func NewCount(v int64) Count { return Count{Value: v} }

// SuppressedCount returns a count that renders as SuppressedMarker.
func SuppressedCount() Count { return Count{Suppressed: true} }

// String renders the count for tabular output.
func (c Count) String() string {
	if c.Suppressed {
		return SuppressedMarker
	}
	return strconv.FormatInt(c.Value, 10)
}

// MarshalText implements encoding.TextMarshaler.
func (c Count) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (c *Count) UnmarshalText(b []byte) error {
	s := string(b)
	if s == SuppressedMarker {
		*c = SuppressedCount()
		return nil
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return eris.Wrapf(err, "model: parse count %q", s)
	}
	*c = NewCount(v)
	return nil
}

// RegionalSummary is one row of the health-region table.
type RegionalSummary struct {
	RegionID     string `csv:"HR_UID"`
	Participants Count  `csv:"participants"`
	Confirmed    Count  `csv:"confirmed_positive"`
	National     bool   `csv:"-"`
}
