package geo

import (
	"context"
	"math"
	"runtime"
	"sync/atomic"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/hrmap/internal/model"
)

const progressEvery = 100

// AttributionStats summarizes an attribution pass.
type AttributionStats struct {
	Total               int
	Contained           int
	Fallback            int
	MaxFallbackDistance float64
}

// Attribute resolves a region for every point and returns a copy of the
// points, in input order, with RegionID set. Points are split into
// contiguous chunks across workers; a worker count below one uses GOMAXPROCS.
func Attribute(ctx context.Context, idx *Index, points []model.PointRecord, workers int) ([]model.PointRecord, AttributionStats, error) {
	if idx == nil || idx.Len() == 0 {
		return nil, AttributionStats{}, ErrNoRegionsDefined
	}
	if workers < 1 {
		workers = runtime.GOMAXPROCS(0)
	}

	log := zap.L().With(zap.String("component", "geo.attribute"))

	out := make([]model.PointRecord, len(points))
	matches := make([]Match, len(points))
	var done atomic.Int64

	chunk := (len(points) + workers - 1) / workers
	g, gCtx := errgroup.WithContext(ctx)
	for start := 0; start < len(points); start += chunk {
		end := min(start+chunk, len(points))
		g.Go(func() error {
			for i := start; i < end; i++ {
				if err := gCtx.Err(); err != nil {
					return eris.Wrap(err, "geo: attribution cancelled")
				}
				p := points[i]
				if !finite(p.Lon) || !finite(p.Lat) {
					return eris.Wrapf(ErrInvalidPoint, "point %s: lon=%v lat=%v", p.ID, p.Lon, p.Lat)
				}
				m, err := idx.Resolve(p.Lon, p.Lat)
				if err != nil {
					return eris.Wrapf(err, "geo: resolve point %s", p.ID)
				}
				if m.Fallback {
					log.Debug("point outside all regions, using nearest",
						zap.String("point_id", p.ID),
						zap.String("region_id", m.RegionID),
						zap.Float64("distance", m.Distance),
					)
				}
				p.Attrs = append([]model.Attr(nil), p.Attrs...)
				p.RegionID = m.RegionID
				out[i] = p
				matches[i] = m

				if n := done.Add(1); n%progressEvery == 0 {
					log.Debug("processing points", zap.Int64("done", n), zap.Int("total", len(points)))
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, AttributionStats{}, err
	}

	stats := AttributionStats{Total: len(points)}
	for _, m := range matches {
		if !m.Fallback {
			stats.Contained++
			continue
		}
		stats.Fallback++
		stats.MaxFallbackDistance = math.Max(stats.MaxFallbackDistance, m.Distance)
	}
	return out, stats, nil
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
