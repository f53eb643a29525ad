// Package weighting spreads coarse-unit surveillance counts over fine units
// by population share, sums them back up by health region, and applies
// disclosure suppression.
package weighting

import "github.com/sells-group/hrmap/internal/model"

// PopulationTable maps a coarse-unit id to the summed population of its fine units.
type PopulationTable map[string]float64

// BuildPopulationTable sums fine-unit populations per coarse unit in one
// pass. Coarse units with no fine units are absent, not zero.
func BuildPopulationTable(units []model.FineUnit) PopulationTable {
	sums := make(map[string]*exactSum)
	for _, u := range units {
		s, ok := sums[u.CoarseID]
		if !ok {
			s = &exactSum{}
			sums[u.CoarseID] = s
		}
		s.add(u.Population)
	}

	out := make(PopulationTable, len(sums))
	for id, s := range sums {
		out[id] = s.float64()
	}
	return out
}

// Lookup returns the population of a coarse unit.
func (t PopulationTable) Lookup(coarseID string) (float64, bool) {
	p, ok := t[coarseID]
	return p, ok
}
