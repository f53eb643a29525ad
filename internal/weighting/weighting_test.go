package weighting

import (
	"errors"
	"fmt"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/hrmap/internal/model"
)

func fine(id, coarse, region string, pop float64) model.FineUnit {
	return model.FineUnit{ID: id, CoarseID: coarse, RegionID: region, Population: pop}
}

func TestBuildPopulationTable(t *testing.T) {
	units := []model.FineUnit{
		fine("1", "K1A", "3551", 100),
		fine("2", "K1A", "3551", 250.5),
		fine("3", "M5V", "3595", 0),
	}
	pops := BuildPopulationTable(units)

	assert.Len(t, pops, 2)
	assert.InDelta(t, 350.5, pops["K1A"], 1e-12)

	p, ok := pops.Lookup("M5V")
	assert.True(t, ok)
	assert.Zero(t, p)

	_, ok = pops.Lookup("H2X")
	assert.False(t, ok, "coarse units with no fine units are absent")
}

func TestBuildPopulationTable_ExactSum(t *testing.T) {
	var units []model.FineUnit
	for i := 0; i < 10; i++ {
		units = append(units, fine(fmt.Sprint(i), "X", "R", 0.1))
	}
	// Naive float summation of ten 0.1 values gives 0.9999999999999999.
	assert.Equal(t, 1.0, BuildPopulationTable(units)["X"])
}

func TestScenario_TwoFineUnitsTwoRegions(t *testing.T) {
	units := []model.FineUnit{
		fine("DA1", "X", "R1", 100),
		fine("DA2", "X", "R2", 300),
	}
	obs, err := NewObservationTable([]model.Observation{{CoarseID: "X", Participants: 40, Confirmed: 4}})
	require.NoError(t, err)

	expanded, stats, err := Disaggregate(units, BuildPopulationTable(units), obs, PolicyAbort)
	require.NoError(t, err)
	require.Len(t, expanded, 2)
	assert.Equal(t, 2, stats.Expanded)
	assert.Zero(t, stats.MissingObservation)

	e := expanded[0]
	assert.Equal(t, 400.0, e.CoarsePopulation)
	assert.Equal(t, 0.25, e.Fraction)
	assert.Equal(t, 40.0, e.CoarseParticipants)
	assert.Equal(t, 4.0, e.CoarseConfirmed)
	assert.Equal(t, 10.0, e.FineParticipants)
	assert.Equal(t, 1.0, e.FineConfirmed)

	rows := Aggregate(expanded)
	require.Len(t, rows, 2)
	assert.Equal(t, model.RegionalSummary{RegionID: "R1", Participants: model.NewCount(10), Confirmed: model.NewCount(1)}, rows[0])
	assert.Equal(t, model.RegionalSummary{RegionID: "R2", Participants: model.NewCount(30), Confirmed: model.NewCount(3)}, rows[1])
}

func TestFractionsPartitionCoarseUnit(t *testing.T) {
	units := []model.FineUnit{
		fine("1", "A", "R1", 13),
		fine("2", "A", "R2", 7),
		fine("3", "A", "R2", 1001),
		fine("4", "B", "R3", 3),
		fine("5", "B", "R3", 3),
		fine("6", "B", "R1", 3),
	}
	expanded, _, err := Disaggregate(units, BuildPopulationTable(units), nil, PolicyAbort)
	require.NoError(t, err)

	sums := map[string]float64{}
	for _, e := range expanded {
		sums[e.CoarseID] += e.Fraction
	}
	for id, s := range sums {
		assert.InDelta(t, 1.0, s, 1e-12, "coarse unit %s", id)
	}
}

func TestConservation(t *testing.T) {
	units := []model.FineUnit{
		fine("1", "A", "R1", 17),
		fine("2", "A", "R1", 29),
		fine("3", "A", "R1", 54),
		fine("4", "B", "R2", 11),
		fine("5", "B", "R3", 89),
		fine("6", "C", "R3", 1),
	}
	obsRows := []model.Observation{
		{CoarseID: "A", Participants: 37, Confirmed: 5},
		{CoarseID: "B", Participants: 123, Confirmed: 17},
		{CoarseID: "C", Participants: 9, Confirmed: 0},
	}
	obs, err := NewObservationTable(obsRows)
	require.NoError(t, err)

	expanded, _, err := Disaggregate(units, BuildPopulationTable(units), obs, PolicyAbort)
	require.NoError(t, err)

	// Single-region coarse unit reproduces its observed count.
	var a float64
	for _, e := range expanded {
		if e.CoarseID == "A" {
			a += e.FineParticipants
		}
	}
	assert.InDelta(t, 37.0, a, 1e-9)

	// Whole-table sum reproduces the national total.
	var total float64
	for _, e := range expanded {
		total += e.FineParticipants
	}
	national := NationalRow(obsRows, "")
	assert.InDelta(t, float64(national.Participants.Value), total, 1e-9)
	assert.Equal(t, DefaultNationalID, national.RegionID)
	assert.True(t, national.National)
	assert.Equal(t, int64(169), national.Participants.Value)
	assert.Equal(t, int64(22), national.Confirmed.Value)

	rows := Aggregate(expanded)
	var regional int64
	for _, r := range rows {
		regional += r.Participants.Value
	}
	assert.InDelta(t, 169, regional, float64(len(rows)))
}

func TestDisaggregate_MissingObservationDefaultsToZero(t *testing.T) {
	units := []model.FineUnit{fine("1", "A", "R1", 10), fine("2", "B", "R1", 10)}
	obs, err := NewObservationTable([]model.Observation{{CoarseID: "A", Participants: 8, Confirmed: 2}})
	require.NoError(t, err)

	expanded, stats, err := Disaggregate(units, BuildPopulationTable(units), obs, PolicyAbort)
	require.NoError(t, err)
	require.Len(t, expanded, 2)
	assert.Equal(t, 1, stats.MissingObservation)
	assert.Zero(t, expanded[1].CoarseParticipants)
	assert.Zero(t, expanded[1].FineParticipants)
	assert.Zero(t, expanded[1].FineConfirmed)
}

func TestDisaggregate_InvalidUnits(t *testing.T) {
	units := []model.FineUnit{
		fine("ok", "A", "R1", 10),
		fine("zero", "Z", "R1", 0),
	}
	pops := BuildPopulationTable(units)
	pops2 := PopulationTable{"A": 10}

	tests := []struct {
		name string
		pops PopulationTable
		want error
	}{
		{"zero population", pops, ErrDivisionByZeroPopulation},
		{"missing population", pops2, ErrMissingCoarsePopulation},
	}
	for _, tt := range tests {
		t.Run(tt.name+"/abort", func(t *testing.T) {
			_, _, err := Disaggregate(units, tt.pops, nil, PolicyAbort)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.want), "got %v", err)
			assert.Contains(t, err.Error(), "zero")
		})
		t.Run(tt.name+"/skip", func(t *testing.T) {
			expanded, stats, err := Disaggregate(units, tt.pops, nil, PolicySkip)
			require.NoError(t, err)
			require.Len(t, expanded, 1)
			assert.Equal(t, "ok", expanded[0].ID)
			require.Len(t, stats.Skipped, 1)
			assert.Equal(t, "zero", stats.Skipped[0].FineID)
			assert.Equal(t, "Z", stats.Skipped[0].CoarseID)
		})
	}
}

func TestDisaggregate_InvalidPopulationAlwaysAborts(t *testing.T) {
	units := []model.FineUnit{fine("neg", "A", "R1", -1)}
	_, _, err := Disaggregate(units, PopulationTable{"A": 10}, nil, PolicySkip)
	assert.True(t, errors.Is(err, ErrInvalidPopulation))
}

func TestNewObservationTable(t *testing.T) {
	_, err := NewObservationTable([]model.Observation{{CoarseID: "A"}, {CoarseID: "A"}})
	assert.True(t, errors.Is(err, ErrDuplicateObservation))

	_, err = NewObservationTable([]model.Observation{{CoarseID: "A", Participants: -3}})
	assert.True(t, errors.Is(err, ErrInvalidObservation))

	_, err = NewObservationTable([]model.Observation{{CoarseID: "A", Confirmed: math.NaN()}})
	assert.True(t, errors.Is(err, ErrInvalidObservation))

	tbl, err := NewObservationTable([]model.Observation{{CoarseID: "A", Participants: 3}})
	require.NoError(t, err)
	assert.Equal(t, 1, tbl.Len())
	o, ok := tbl.Lookup("A")
	assert.True(t, ok)
	assert.Equal(t, 3.0, o.Participants)
	_, ok = tbl.Lookup("B")
	assert.False(t, ok)
}

func TestParsePolicy(t *testing.T) {
	p, err := ParsePolicy("Skip")
	require.NoError(t, err)
	assert.Equal(t, PolicySkip, p)

	p, err = ParsePolicy("")
	require.NoError(t, err)
	assert.Equal(t, PolicyAbort, p)

	_, err = ParsePolicy("ignore")
	assert.Error(t, err)
}

func TestAggregate_RoundsOnceAfterSumming(t *testing.T) {
	// Three units of 0.4 each: per-unit rounding would give 0, summing first gives 1.
	expanded := []model.ExpandedFineUnit{
		{FineUnit: fine("1", "A", "R", 1), FineParticipants: 0.4, FineConfirmed: 0.2},
		{FineUnit: fine("2", "A", "R", 1), FineParticipants: 0.4, FineConfirmed: 0.2},
		{FineUnit: fine("3", "A", "R", 1), FineParticipants: 0.4, FineConfirmed: 0.2},
	}
	rows := Aggregate(expanded)
	require.Len(t, rows, 1)
	assert.Equal(t, int64(1), rows[0].Participants.Value)
	assert.Equal(t, int64(1), rows[0].Confirmed.Value)
}

func TestAggregate_SortedByRegion(t *testing.T) {
	expanded := []model.ExpandedFineUnit{
		{FineUnit: fine("1", "A", "5910", 1), FineParticipants: 1},
		{FineUnit: fine("2", "A", "1011", 1), FineParticipants: 2},
		{FineUnit: fine("3", "A", "3595", 1), FineParticipants: 3},
	}
	rows := Aggregate(expanded)
	require.Len(t, rows, 3)
	assert.Equal(t, "1011", rows[0].RegionID)
	assert.Equal(t, "3595", rows[1].RegionID)
	assert.Equal(t, "5910", rows[2].RegionID)
}

func TestExactSumRound(t *testing.T) {
	tests := []struct {
		in   []float64
		want int64
	}{
		{[]float64{2.5}, 3},
		{[]float64{1.5}, 2},
		{[]float64{0.49999}, 0},
		{[]float64{-2.5}, -3},
		{[]float64{0.1, 0.2, 0.2}, 1},
		{nil, 0},
	}
	for _, tt := range tests {
		var s exactSum
		for _, f := range tt.in {
			s.add(f)
		}
		assert.Equal(t, tt.want, s.round(), "%v", tt.in)
	}
}

func TestSuppress_Boundary(t *testing.T) {
	rows := []model.RegionalSummary{
		{RegionID: "A", Participants: model.NewCount(DefaultThreshold - 1), Confirmed: model.NewCount(1)},
		{RegionID: "B", Participants: model.NewCount(DefaultThreshold), Confirmed: model.NewCount(2)},
		{RegionID: "C", Participants: model.NewCount(0), Confirmed: model.NewCount(0)},
	}
	out := Suppress(rows, DefaultThreshold)

	assert.True(t, out[0].Participants.Suppressed)
	assert.True(t, out[0].Confirmed.Suppressed)
	assert.Equal(t, model.SuppressedMarker, out[0].Participants.String())
	assert.NotEqual(t, "0", out[0].Participants.String())

	assert.Equal(t, model.NewCount(5), out[1].Participants)
	assert.Equal(t, model.NewCount(2), out[1].Confirmed)

	// A genuine zero renders differently from a suppressed value only when it is not suppressed.
	assert.True(t, out[2].Participants.Suppressed)

	// Input untouched.
	assert.False(t, rows[0].Participants.Suppressed)
}

func TestSuppress_NationalRowExempt(t *testing.T) {
	rows := []model.RegionalSummary{
		{RegionID: "Canada", Participants: model.NewCount(1), Confirmed: model.NewCount(0), National: true},
	}
	out := Suppress(rows, DefaultThreshold)
	assert.False(t, out[0].Participants.Suppressed)
	assert.Equal(t, "1", out[0].Participants.String())
}

func TestSuppress_ZeroThresholdKeepsZeros(t *testing.T) {
	rows := []model.RegionalSummary{{RegionID: "A", Participants: model.NewCount(0), Confirmed: model.NewCount(0)}}
	out := Suppress(rows, 0)
	assert.False(t, out[0].Participants.Suppressed)
	assert.Equal(t, "0", out[0].Participants.String())
}
