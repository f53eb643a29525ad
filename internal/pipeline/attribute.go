package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/hrmap/internal/boundary"
	"github.com/sells-group/hrmap/internal/config"
	"github.com/sells-group/hrmap/internal/crs"
	"github.com/sells-group/hrmap/internal/geo"
	"github.com/sells-group/hrmap/internal/model"
	"github.com/sells-group/hrmap/internal/store"
	"github.com/sells-group/hrmap/internal/tabular"
)

// AttributeInput names the inputs of an attribution run.
type AttributeInput struct {
	PointsPath  string
	RegionsPath string
	// Date stamps the output file name. Zero means today.
	Date time.Time
}

// AttributeResult reports what an attribution run produced.
type AttributeResult struct {
	Run    *model.Run
	Stats  geo.AttributionStats
	Output string
}

// Attribute assigns a health region to every point and writes the
// attribution table. st may be nil.
func Attribute(ctx context.Context, cfg *config.Config, in AttributeInput, st store.Store) (*AttributeResult, error) {
	log := zap.L().With(zap.String("component", "pipeline.attribute"))

	regions, err := boundary.Load(in.RegionsPath, boundary.Options{
		IDField:   cfg.Regions.IDField,
		NameField: cfg.Regions.NameField,
		SourceCRS: cfg.Regions.SourceCRS,
		TargetCRS: cfg.Geometry.CRS,
		TempDir:   os.TempDir(),
	})
	if err != nil {
		return nil, stageErr(StageLoadRegions, err)
	}

	idx, err := geo.NewIndex(regions, geo.WithSelfIntersectionCheck(cfg.Geometry.CheckSelfIntersection))
	if err != nil {
		return nil, stageErr(StageBuildIndex, err)
	}

	points, header, err := tabular.ReadPoints(in.PointsPath, cfg.Points.Encoding, tabular.PointColumns{
		ID:  cfg.Points.IDColumn,
		Lon: cfg.Points.LonColumn,
		Lat: cfg.Points.LatColumn,
	})
	if err != nil {
		return nil, stageErr(StageReadPoints, err)
	}
	log.Info("inputs loaded", zap.Int("regions", idx.Len()), zap.Int("points", len(points)))

	query, err := reprojectPoints(points, cfg.Points.CRS, cfg.Geometry.CRS)
	if err != nil {
		return nil, stageErr(StageReproject, err)
	}

	attributed, stats, err := geo.Attribute(ctx, idx, query, cfg.Attribution.Workers)
	if err != nil {
		return nil, stageErr(StageAttribute, err)
	}
	log.Info("points attributed",
		zap.Int("total", stats.Total),
		zap.Int("contained", stats.Contained),
		zap.Int("fallback", stats.Fallback),
		zap.Float64("max_fallback_distance", stats.MaxFallbackDistance),
	)

	date := in.Date
	if date.IsZero() {
		date = time.Now()
	}
	label := date.Format("2006-01-02")
	out := filepath.Join(cfg.Output.Dir, fmt.Sprintf("places_to_HRs_%s.csv", label))
	manifest := filepath.Join(cfg.Output.Dir, fmt.Sprintf("places_to_HRs_%s.manifest.yaml", label))

	run := &model.Run{
		Stage: model.StageAttribute,
		Label: label,
		Inputs: map[string]string{
			"points":  in.PointsPath,
			"regions": in.RegionsPath,
		},
		Outputs: []string{out},
		Counts: map[string]int64{
			"regions":   int64(idx.Len()),
			"points":    int64(stats.Total),
			"contained": int64(stats.Contained),
			"fallback":  int64(stats.Fallback),
		},
	}
	run.Stamp()

	if err := tabular.WritePoints(out, header, attributed, cfg.Regions.RegionColumn); err != nil {
		return nil, stageErr(StageWrite, err)
	}
	if err := WriteManifest(manifest, run); err != nil {
		return nil, stageErr(StageWrite, err)
	}
	if st != nil {
		if err := st.SaveRun(ctx, run); err != nil {
			return nil, stageErr(StagePersist, err)
		}
	}
	log.Info("attribution written", zap.String("path", out), zap.String("run_id", run.ID))

	return &AttributeResult{Run: run, Stats: stats, Output: out}, nil
}

// reprojectPoints returns a copy of points with coordinates in the index CRS.
// Passthrough attributes keep the original coordinates.
func reprojectPoints(points []model.PointRecord, src, dst string) ([]model.PointRecord, error) {
	rp, err := crs.New(src, dst)
	if err != nil {
		return nil, err
	}
	if rp == nil {
		return points, nil
	}

	out := make([]model.PointRecord, len(points))
	for i, p := range points {
		if p.Lon, p.Lat, err = rp.Point(p.Lon, p.Lat); err != nil {
			return nil, eris.Wrapf(err, "pipeline: reproject point %s", p.ID)
		}
		out[i] = p
	}
	return out, nil
}

