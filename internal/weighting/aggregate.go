package weighting

import (
	"sort"

	"github.com/sells-group/hrmap/internal/model"
)

// DefaultNationalID is the region id used for the national row.
const DefaultNationalID = "Canada"

type regionSums struct {
	participants exactSum
	confirmed    exactSum
}

// Aggregate sums the fine-unit estimates by region id and rounds each
// region's totals once, after summation. Rows are sorted by region id.
func Aggregate(expanded []model.ExpandedFineUnit) []model.RegionalSummary {
	sums := make(map[string]*regionSums)
	for _, e := range expanded {
		s, ok := sums[e.RegionID]
		if !ok {
			s = &regionSums{}
			sums[e.RegionID] = s
		}
		s.participants.add(e.FineParticipants)
		s.confirmed.add(e.FineConfirmed)
	}

	ids := make([]string, 0, len(sums))
	for id := range sums {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	out := make([]model.RegionalSummary, 0, len(ids))
	for _, id := range ids {
		s := sums[id]
		out = append(out, model.RegionalSummary{
			RegionID:     id,
			Participants: model.NewCount(s.participants.round()),
			Confirmed:    model.NewCount(s.confirmed.round()),
		})
	}
	return out
}

// NationalRow sums the raw coarse observations, bypassing disaggregation.
// An empty id uses DefaultNationalID.
func NationalRow(obs []model.Observation, id string) model.RegionalSummary {
	if id == "" {
		id = DefaultNationalID
	}
	var participants, confirmed exactSum
	for _, o := range obs {
		participants.add(o.Participants)
		confirmed.add(o.Confirmed)
	}
	return model.RegionalSummary{
		RegionID:     id,
		Participants: model.NewCount(participants.round()),
		Confirmed:    model.NewCount(confirmed.round()),
		National:     true,
	}
}
