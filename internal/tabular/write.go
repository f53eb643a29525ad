package tabular

import (
	"bytes"
	"encoding/csv"
	"os"
	"path/filepath"
	"strconv"

	"github.com/jszwec/csvutil"
	"github.com/rotisserie/eris"

	"github.com/sells-group/hrmap/internal/model"
)

// ExpandedColumns are appended to the correspondence columns in the expanded table.
var ExpandedColumns = []string{
	"fsa_population",
	"da_population_fraction",
	"fsa_participants",
	"fsa_confirmed_positive",
	"da_participants",
	"da_confirmed_positive",
}

var summaryColumns = []string{"HR_UID", "participants", "confirmed_positive"}

// WritePoints writes the attribution table: the original point columns plus
// regionCol. If the input already had regionCol it is overwritten in place.
func WritePoints(path string, header []string, points []model.PointRecord, regionCol string) error {
	out := append([]string(nil), header...)
	regionIdx := -1
	for i, h := range out {
		if h == regionCol {
			regionIdx = i
		}
	}
	if regionIdx < 0 {
		regionIdx = len(out)
		out = append(out, regionCol)
	}

	records := make([][]string, 0, len(points)+1)
	records = append(records, out)
	for _, p := range points {
		row := make([]string, len(out))
		for i, a := range p.Attrs {
			if i < len(row) {
				row[i] = a.Value
			}
		}
		row[regionIdx] = p.RegionID
		records = append(records, row)
	}
	return writeCSV(path, records)
}

// WriteExpanded writes the correspondence rows with the six derived columns appended.
func WriteExpanded(path string, header []string, units []model.ExpandedFineUnit) error {
	out := append(append([]string(nil), header...), ExpandedColumns...)

	records := make([][]string, 0, len(units)+1)
	records = append(records, out)
	for _, u := range units {
		row := make([]string, 0, len(out))
		for i := range header {
			v := ""
			if i < len(u.Attrs) {
				v = u.Attrs[i].Value
			}
			row = append(row, v)
		}
		row = append(row,
			formatFloat(u.CoarsePopulation),
			formatFloat(u.Fraction),
			formatFloat(u.CoarseParticipants),
			formatFloat(u.CoarseConfirmed),
			formatFloat(u.FineParticipants),
			formatFloat(u.FineConfirmed),
		)
		records = append(records, row)
	}
	return writeCSV(path, records)
}

// WriteSummaryCSV writes the regional summary. Suppressed counts are written
// as the suppression marker.
func WriteSummaryCSV(path string, rows []model.RegionalSummary) error {
	if len(rows) == 0 {
		return writeCSV(path, [][]string{summaryColumns})
	}
	b, err := csvutil.Marshal(rows)
	if err != nil {
		return eris.Wrap(err, "tabular: encode summary")
	}
	if err := ensureDir(path); err != nil {
		return err
	}
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return eris.Wrapf(err, "tabular: write %s", path)
	}
	return nil
}

// ReadSummaryCSV reads a summary written by WriteSummaryCSV.
func ReadSummaryCSV(path string) ([]model.RegionalSummary, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "tabular: read %s", path)
	}
	var rows []model.RegionalSummary
	if err := csvutil.Unmarshal(b, &rows); err != nil {
		return nil, eris.Wrapf(err, "tabular: decode %s", path)
	}
	return rows, nil
}

func writeCSV(path string, records [][]string) error {
	if err := ensureDir(path); err != nil {
		return err
	}
	var buf bytes.Buffer
	if err := csv.NewWriter(&buf).WriteAll(records); err != nil {
		return eris.Wrapf(err, "tabular: encode %s", path)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return eris.Wrapf(err, "tabular: write %s", path)
	}
	return nil
}

func ensureDir(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return eris.Wrapf(err, "tabular: create directory for %s", path)
	}
	return nil
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
