// Package tabular reads the point, observation and correspondence tables and
// writes the attribution, expanded and regional summary tables.
package tabular

import (
	"encoding/csv"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"golang.org/x/text/encoding/htmlindex"
)

// Table is a parsed input file: a header and its data rows.
type Table struct {
	Path   string
	Header []string
	Rows   [][]string

	colIdx map[string]int
}

// ReadTable reads a .csv or .xlsx file. For CSV, encoding names a charset
// label understood by the WHATWG encoding index (e.g. "latin1", "utf-8");
// empty means UTF-8. For XLSX the first sheet is read.
func ReadTable(path, encoding string) (*Table, error) {
	var records [][]string
	var err error
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx":
		records, err = readXLSX(path)
	default:
		records, err = readCSV(path, encoding)
	}
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, eris.Errorf("tabular: %s has no header row", path)
	}

	header := make([]string, len(records[0]))
	for i, h := range records[0] {
		header[i] = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
	}

	t := &Table{Path: path, Header: header, Rows: records[1:], colIdx: make(map[string]int, len(header))}
	for i, h := range header {
		if _, dup := t.colIdx[h]; !dup {
			t.colIdx[h] = i
		}
	}
	return t, nil
}

func readCSV(path, encoding string) ([][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "tabular: open %s", path)
	}
	defer f.Close() //nolint:errcheck

	var r io.Reader = f
	if enc := strings.TrimSpace(encoding); enc != "" && !strings.EqualFold(enc, "utf-8") && !strings.EqualFold(enc, "utf8") {
		e, err := htmlindex.Get(enc)
		if err != nil {
			return nil, eris.Wrapf(err, "tabular: unsupported charset %q", enc)
		}
		r = e.NewDecoder().Reader(f)
	}

	reader := csv.NewReader(r)
	reader.LazyQuotes = true
	reader.FieldsPerRecord = -1

	records, err := reader.ReadAll()
	if err != nil {
		return nil, eris.Wrapf(err, "tabular: read %s", path)
	}
	return records, nil
}

// Has reports whether the table has a column.
func (t *Table) Has(col string) bool {
	_, ok := t.colIdx[col]
	return ok
}

// First returns the first of the candidate columns present in the header.
func (t *Table) First(candidates ...string) (string, bool) {
	for _, c := range candidates {
		if c != "" && t.Has(c) {
			return c, true
		}
	}
	return "", false
}

// Require returns an error naming the first missing column.
func (t *Table) Require(cols ...string) error {
	for _, c := range cols {
		if !t.Has(c) {
			return eris.Errorf("tabular: %s: missing required column %q", t.Path, c)
		}
	}
	return nil
}

// Get returns a trimmed cell value, or "" when the row is short or the column is absent.
func (t *Table) Get(row []string, col string) string {
	idx, ok := t.colIdx[col]
	if !ok || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}

// Float parses a numeric cell. Row numbers in errors are 1-based data rows.
func (t *Table) Float(row []string, rowNum int, col string) (float64, error) {
	s := strings.ReplaceAll(t.Get(row, col), ",", "")
	if s == "" {
		return 0, eris.Errorf("tabular: %s row %d: empty %s", t.Path, rowNum, col)
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, eris.Wrapf(err, "tabular: %s row %d: parse %s", t.Path, rowNum, col)
	}
	return f, nil
}
