package weighting

import "github.com/sells-group/hrmap/internal/model"

// DefaultThreshold is the smallest participant count published unmasked.
const DefaultThreshold int64 = 5

// Suppress masks both counts of every regional row whose participant count
// is below threshold. National rows are never masked. The input is not modified.
func Suppress(rows []model.RegionalSummary, threshold int64) []model.RegionalSummary {
	out := make([]model.RegionalSummary, len(rows))
	for i, r := range rows {
		if !r.National && !r.Participants.Suppressed && r.Participants.Value < threshold {
			r.Participants = model.SuppressedCount()
			r.Confirmed = model.SuppressedCount()
		}
		out[i] = r
	}
	return out
}
