package main

import (
	"github.com/spf13/cobra"

	"github.com/sells-group/hrmap/internal/pipeline"
)

var summarizeCmd = &cobra.Command{
	Use:   "summarize",
	Short: "Disaggregate FSA observations and summarize them per health region",
	Long: "Spreads FSA participant and confirmed-positive counts over dissemination areas by population share, " +
		"sums them per health region, suppresses small regions and writes <epiweek>_hr_fluwatchers.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		observations, _ := cmd.Flags().GetString("observations")
		correspondence, _ := cmd.Flags().GetString("correspondence")
		if out, _ := cmd.Flags().GetString("out"); out != "" {
			cfg.Output.Dir = out
		}
		if cmd.Flags().Changed("threshold") {
			cfg.Summary.Threshold, _ = cmd.Flags().GetInt64("threshold")
		}
		if cmd.Flags().Changed("format") {
			cfg.Output.Format, _ = cmd.Flags().GetString("format")
		}
		if cmd.Flags().Changed("on-invalid-unit") {
			cfg.Weighting.OnInvalidUnit, _ = cmd.Flags().GetString("on-invalid-unit")
		}

		if err := cfg.Validate("summarize"); err != nil {
			return err
		}

		st, err := initStore(ctx)
		if err != nil {
			return logFailure(err)
		}
		if st != nil {
			defer st.Close() //nolint:errcheck
		}

		_, err = pipeline.Summarize(ctx, cfg, pipeline.SummarizeInput{
			ObservationsPath:   observations,
			CorrespondencePath: correspondence,
		}, st)
		return logFailure(err)
	},
}

func init() {
	summarizeCmd.Flags().String("observations", "", "FSA observation CSV; the epi week is the last _ token of its name")
	summarizeCmd.Flags().String("correspondence", "", "DA to FSA to HR correspondence CSV with DA populations")
	summarizeCmd.Flags().String("out", "", "output directory (overrides output.dir)")
	summarizeCmd.Flags().Int64("threshold", 5, "suppress regions with fewer participants than this")
	summarizeCmd.Flags().String("format", "csv", "summary format: csv or xlsx")
	summarizeCmd.Flags().String("on-invalid-unit", "abort", "abort or skip units whose FSA population is missing or zero")
	_ = summarizeCmd.MarkFlagRequired("observations")
	_ = summarizeCmd.MarkFlagRequired("correspondence")
	rootCmd.AddCommand(summarizeCmd)
}
