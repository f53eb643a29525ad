package tabular

import (
	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/hrmap/internal/model"
)

// readXLSX reads the first sheet of an XLSX file as string rows.
func readXLSX(path string) ([][]string, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "tabular: open %s", path)
	}
	if len(f.Sheets) == 0 {
		return nil, eris.Errorf("tabular: %s has no sheets", path)
	}

	var rows [][]string
	for _, row := range f.Sheets[0].Rows {
		cells := make([]string, len(row.Cells))
		for j, cell := range row.Cells {
			cells[j] = cell.String()
		}
		rows = append(rows, cells)
	}
	return rows, nil
}

// WriteSummaryXLSX writes the regional summary as a single-sheet workbook.
// Counts are numeric cells; suppressed counts are the marker string.
func WriteSummaryXLSX(path string, rows []model.RegionalSummary) error {
	f := xlsx.NewFile()
	sheet, err := f.AddSheet("health_regions")
	if err != nil {
		return eris.Wrap(err, "tabular: add sheet")
	}

	header := sheet.AddRow()
	for _, h := range summaryColumns {
		header.AddCell().SetString(h)
	}

	for _, r := range rows {
		row := sheet.AddRow()
		row.AddCell().SetString(r.RegionID)
		setCount(row.AddCell(), r.Participants)
		setCount(row.AddCell(), r.Confirmed)
	}

	if err := ensureDir(path); err != nil {
		return err
	}
	if err := f.Save(path); err != nil {
		return eris.Wrapf(err, "tabular: save %s", path)
	}
	return nil
}

func setCount(cell *xlsx.Cell, c model.Count) {
	if c.Suppressed {
		cell.SetString(model.SuppressedMarker)
		return
	}
	cell.SetInt(int(c.Value))
}
