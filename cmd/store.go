package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/hrmap/internal/model"
)

var storeCmd = &cobra.Command{
	Use:   "store",
	Short: "Manage the result store",
	Long:  "Commands for migrating and inspecting the optional Postgres or SQLite result store.",
}

// -- store migrate --

var storeMigrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create the result store tables",
	RunE: func(cmd *cobra.Command, _ []string) error {
		if err := cfg.Validate("store"); err != nil {
			return err
		}
		st, err := initStore(cmd.Context())
		if err != nil {
			return eris.Wrap(err, "store migrate")
		}
		defer st.Close() //nolint:errcheck

		zap.L().Info("result store migrated", zap.String("driver", cfg.Store.Driver))
		return nil
	},
}

// -- store show --

var storeShowCmd = &cobra.Command{
	Use:   "show <label>",
	Short: "Print the latest regional summary stored for an epi week",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if err := cfg.Validate("store"); err != nil {
			return err
		}
		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		rows, err := st.LatestSummaries(ctx, args[0])
		if err != nil {
			return eris.Wrap(err, "store show")
		}
		if len(rows) == 0 {
			fmt.Fprintf(os.Stderr, "No summary stored for %s.\n", args[0])
			return nil
		}
		return printSummaries(os.Stdout, rows)
	},
}

func printSummaries(w io.Writer, rows []model.RegionalSummary) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "HR_UID\tPARTICIPANTS\tCONFIRMED_POSITIVE")
	for _, r := range rows {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", r.RegionID, r.Participants, r.Confirmed)
	}
	return tw.Flush()
}

func init() {
	storeCmd.AddCommand(storeMigrateCmd)
	storeCmd.AddCommand(storeShowCmd)
	rootCmd.AddCommand(storeCmd)
}
