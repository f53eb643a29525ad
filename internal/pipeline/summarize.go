package pipeline

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/sells-group/hrmap/internal/config"
	"github.com/sells-group/hrmap/internal/model"
	"github.com/sells-group/hrmap/internal/store"
	"github.com/sells-group/hrmap/internal/tabular"
	"github.com/sells-group/hrmap/internal/weighting"
)

// SummarizeInput names the inputs of a summary run.
type SummarizeInput struct {
	ObservationsPath   string
	CorrespondencePath string
}

// SummarizeResult reports what a summary run produced.
type SummarizeResult struct {
	Run      *model.Run
	EpiWeek  string
	Stats    weighting.DisaggregationStats
	Rows     []model.RegionalSummary
	Expanded string
	Summary  string
}

// Summarize disaggregates coarse observations to fine units, reaggregates
// them per health region, suppresses small counts and writes the expanded
// and regional tables. st may be nil.
func Summarize(ctx context.Context, cfg *config.Config, in SummarizeInput, st store.Store) (*SummarizeResult, error) {
	log := zap.L().With(zap.String("component", "pipeline.summarize"))

	policy, err := weighting.ParsePolicy(cfg.Weighting.OnInvalidUnit)
	if err != nil {
		return nil, stageErr(StageDisaggregate, err)
	}

	units, header, err := tabular.ReadFineUnits(in.CorrespondencePath, cfg.Correspondence.Encoding, tabular.CorrespondenceColumns{
		FineID:     cfg.Correspondence.FineIDColumn,
		CoarseID:   cfg.Correspondence.CoarseIDColumn,
		RegionID:   cfg.Correspondence.RegionIDColumn,
		Population: cfg.Correspondence.PopulationColumn,
	})
	if err != nil {
		return nil, stageErr(StageReadCorrespondence, err)
	}

	obsRows, err := tabular.ReadObservations(in.ObservationsPath, cfg.Observations.Encoding, tabular.ObservationColumns{
		ID:           cfg.Observations.IDColumn,
		Participants: cfg.ParticipantsColumns(),
		Confirmed:    cfg.ConfirmedColumns(),
	})
	if err != nil {
		return nil, stageErr(StageReadObservations, err)
	}
	obs, err := weighting.NewObservationTable(obsRows)
	if err != nil {
		return nil, stageErr(StageReadObservations, err)
	}
	log.Info("inputs loaded", zap.Int("fine_units", len(units)), zap.Int("observations", obs.Len()))

	pops := weighting.BuildPopulationTable(units)
	expanded, dstats, err := weighting.Disaggregate(units, pops, obs, policy)
	if err != nil {
		return nil, stageErr(StageDisaggregate, err)
	}

	rows := weighting.Suppress(weighting.Aggregate(expanded), cfg.Summary.Threshold)
	suppressed := 0
	for _, r := range rows {
		if r.Participants.Suppressed {
			suppressed++
		}
	}
	regions := len(rows)
	if cfg.Summary.IncludeNational {
		rows = append(rows, weighting.NationalRow(obsRows, cfg.Summary.NationalID))
	}
	log.Info("regions summarized",
		zap.Int("regions", regions),
		zap.Int("suppressed", suppressed),
		zap.Int("missing_observation", dstats.MissingObservation),
		zap.Int("skipped", len(dstats.Skipped)),
		zap.Int64("threshold", cfg.Summary.Threshold),
	)

	week := EpiWeek(in.ObservationsPath)
	refDir := filepath.Join(cfg.Output.Dir, "reference")
	expandedPath := filepath.Join(refDir, fmt.Sprintf("%s_expanded_df_%s.csv", week, stem(in.CorrespondencePath)))
	summaryPath := filepath.Join(cfg.Output.Dir, fmt.Sprintf("%s_hr_fluwatchers.%s", week, summaryExt(cfg.Output.Format)))
	manifestPath := filepath.Join(refDir, fmt.Sprintf("%s_manifest.yaml", week))

	run := &model.Run{
		Stage: model.StageSummarize,
		Label: week,
		Inputs: map[string]string{
			"observations":   in.ObservationsPath,
			"correspondence": in.CorrespondencePath,
		},
		Outputs: []string{summaryPath, expandedPath},
		Counts: map[string]int64{
			"fine_units":          int64(dstats.Units),
			"expanded":            int64(dstats.Expanded),
			"missing_observation": int64(dstats.MissingObservation),
			"skipped":             int64(len(dstats.Skipped)),
			"regions":             int64(regions),
			"suppressed":          int64(suppressed),
		},
		Threshold: cfg.Summary.Threshold,
	}
	run.Stamp()

	if err := tabular.WriteExpanded(expandedPath, header, expanded); err != nil {
		return nil, stageErr(StageWrite, err)
	}
	if err := writeSummary(summaryPath, cfg.Output.Format, rows); err != nil {
		return nil, stageErr(StageWrite, err)
	}
	if err := WriteManifest(manifestPath, run); err != nil {
		return nil, stageErr(StageWrite, err)
	}

	if st != nil {
		if err := st.SaveRun(ctx, run); err != nil {
			return nil, stageErr(StagePersist, err)
		}
		if _, err := st.SaveSummaries(ctx, run, rows); err != nil {
			return nil, stageErr(StagePersist, err)
		}
	}
	log.Info("summary written",
		zap.String("epi_week", week),
		zap.String("path", summaryPath),
		zap.String("run_id", run.ID),
	)

	return &SummarizeResult{
		Run:      run,
		EpiWeek:  week,
		Stats:    dstats,
		Rows:     rows,
		Expanded: expandedPath,
		Summary:  summaryPath,
	}, nil
}

func summaryExt(format string) string {
	if strings.EqualFold(format, "xlsx") {
		return "xlsx"
	}
	return "csv"
}

func writeSummary(path, format string, rows []model.RegionalSummary) error {
	if summaryExt(format) == "xlsx" {
		return tabular.WriteSummaryXLSX(path, rows)
	}
	return tabular.WriteSummaryCSV(path, rows)
}
