package tabular

import (
	"strconv"

	"github.com/rotisserie/eris"

	"github.com/sells-group/hrmap/internal/model"
)

// PointColumns names the point table columns.
type PointColumns struct {
	ID  string // optional; the 1-based row number is used when absent
	Lon string
	Lat string
}

// ObservationColumns names the observation table columns. Participants and
// Confirmed list candidate names in preference order, since the column
// naming differs between reporting periods.
type ObservationColumns struct {
	ID           string
	Participants []string
	Confirmed    []string
}

// CorrespondenceColumns names the fine-unit correspondence columns.
type CorrespondenceColumns struct {
	FineID     string
	CoarseID   string
	RegionID   string
	Population string
}

// ReadPoints reads point records. All columns are kept as passthrough attributes.
func ReadPoints(path, encoding string, cols PointColumns) ([]model.PointRecord, []string, error) {
	t, err := ReadTable(path, encoding)
	if err != nil {
		return nil, nil, err
	}
	if err := t.Require(cols.Lon, cols.Lat); err != nil {
		return nil, nil, err
	}
	useID := cols.ID != "" && t.Has(cols.ID)

	points := make([]model.PointRecord, 0, len(t.Rows))
	for i, row := range t.Rows {
		n := i + 1
		lon, err := t.Float(row, n, cols.Lon)
		if err != nil {
			return nil, nil, err
		}
		lat, err := t.Float(row, n, cols.Lat)
		if err != nil {
			return nil, nil, err
		}

		id := strconv.Itoa(n)
		if useID {
			id = t.Get(row, cols.ID)
		}
		points = append(points, model.PointRecord{ID: id, Lon: lon, Lat: lat, Attrs: attrs(t.Header, row)})
	}
	return points, t.Header, nil
}

// ReadObservations reads coarse-unit observation rows.
func ReadObservations(path, encoding string, cols ObservationColumns) ([]model.Observation, error) {
	t, err := ReadTable(path, encoding)
	if err != nil {
		return nil, err
	}
	if err := t.Require(cols.ID); err != nil {
		return nil, err
	}
	pCol, ok := t.First(cols.Participants...)
	if !ok {
		return nil, eris.Errorf("tabular: %s: none of the participant columns %v found", path, cols.Participants)
	}
	cCol, ok := t.First(cols.Confirmed...)
	if !ok {
		return nil, eris.Errorf("tabular: %s: none of the confirmed-positive columns %v found", path, cols.Confirmed)
	}

	obs := make([]model.Observation, 0, len(t.Rows))
	for i, row := range t.Rows {
		n := i + 1
		id := t.Get(row, cols.ID)
		if id == "" {
			return nil, eris.Errorf("tabular: %s row %d: empty %s", path, n, cols.ID)
		}
		p, err := t.Float(row, n, pCol)
		if err != nil {
			return nil, err
		}
		c, err := t.Float(row, n, cCol)
		if err != nil {
			return nil, err
		}
		obs = append(obs, model.Observation{CoarseID: id, Participants: p, Confirmed: c})
	}
	return obs, nil
}

// ReadFineUnits reads the fine-unit correspondence table. All columns are
// kept as passthrough attributes for the expanded output.
func ReadFineUnits(path, encoding string, cols CorrespondenceColumns) ([]model.FineUnit, []string, error) {
	t, err := ReadTable(path, encoding)
	if err != nil {
		return nil, nil, err
	}
	if err := t.Require(cols.CoarseID, cols.RegionID, cols.Population); err != nil {
		return nil, nil, err
	}
	useID := cols.FineID != "" && t.Has(cols.FineID)

	units := make([]model.FineUnit, 0, len(t.Rows))
	for i, row := range t.Rows {
		n := i + 1
		pop, err := t.Float(row, n, cols.Population)
		if err != nil {
			return nil, nil, err
		}
		u := model.FineUnit{
			ID:         strconv.Itoa(n),
			CoarseID:   t.Get(row, cols.CoarseID),
			RegionID:   t.Get(row, cols.RegionID),
			Population: pop,
			Attrs:      attrs(t.Header, row),
		}
		if useID {
			u.ID = t.Get(row, cols.FineID)
		}
		if u.CoarseID == "" || u.RegionID == "" {
			return nil, nil, eris.Errorf("tabular: %s row %d: fine unit %s has no %s or %s",
				path, n, u.ID, cols.CoarseID, cols.RegionID)
		}
		units = append(units, u)
	}
	return units, t.Header, nil
}

func attrs(header, row []string) []model.Attr {
	out := make([]model.Attr, len(header))
	for i, h := range header {
		v := ""
		if i < len(row) {
			v = row[i]
		}
		out[i] = model.Attr{Name: h, Value: v}
	}
	return out
}
