package main

import (
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/hrmap/internal/pipeline"
)

var attributeCmd = &cobra.Command{
	Use:   "attribute",
	Short: "Assign a health region to every point record",
	Long: "Reads a points CSV and a health-region shapefile or GeoJSON, assigns each point the region " +
		"that contains it (or the nearest region), and writes places_to_HRs_<date>.csv.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		points, _ := cmd.Flags().GetString("points")
		regions, _ := cmd.Flags().GetString("regions")
		dateStr, _ := cmd.Flags().GetString("date")
		if out, _ := cmd.Flags().GetString("out"); out != "" {
			cfg.Output.Dir = out
		}
		if cmd.Flags().Changed("workers") {
			cfg.Attribution.Workers, _ = cmd.Flags().GetInt("workers")
		}

		if err := cfg.Validate("attribute"); err != nil {
			return err
		}

		var date time.Time
		if dateStr != "" {
			d, err := time.Parse("2006-01-02", dateStr)
			if err != nil {
				return eris.Wrapf(err, "attribute: parse --date %q", dateStr)
			}
			date = d
		}

		st, err := initStore(ctx)
		if err != nil {
			return logFailure(err)
		}
		if st != nil {
			defer st.Close() //nolint:errcheck
		}

		_, err = pipeline.Attribute(ctx, cfg, pipeline.AttributeInput{
			PointsPath:  points,
			RegionsPath: regions,
			Date:        date,
		}, st)
		return logFailure(err)
	},
}

func init() {
	attributeCmd.Flags().String("points", "", "points CSV with id and coordinate columns")
	attributeCmd.Flags().String("regions", "", "health-region polygons (.shp, .zip or .geojson)")
	attributeCmd.Flags().String("date", "", "date stamped on the output file name (YYYY-MM-DD, default today)")
	attributeCmd.Flags().String("out", "", "output directory (overrides output.dir)")
	attributeCmd.Flags().Int("workers", 0, "attribution workers (0 uses all CPUs)")
	_ = attributeCmd.MarkFlagRequired("points")
	_ = attributeCmd.MarkFlagRequired("regions")
	rootCmd.AddCommand(attributeCmd)
}
