// Package boundary loads health-region polygons from shapefiles and GeoJSON
// and brings them into the CRS used for point matching.
package boundary

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/jonas-p/go-shp"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"
	"go.uber.org/zap"

	"github.com/sells-group/hrmap/internal/crs"
	"github.com/sells-group/hrmap/internal/model"
)

// Options controls how region polygons are read.
type Options struct {
	IDField   string // attribute holding the region id, e.g. HR_UID
	NameField string // optional display name attribute
	SourceCRS string // overrides the .prj sidecar; GeoJSON defaults to TargetCRS
	TargetCRS string // CRS the polygons are reprojected into
	TempDir   string // where zipped shapefiles are extracted
}

// Load reads regions from a .shp, .zip (containing a shapefile), .geojson or .json file.
func Load(path string, opts Options) ([]model.Region, error) {
	if opts.IDField == "" {
		return nil, eris.New("boundary: id field is required")
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".shp":
		return LoadShapefile(path, opts)
	case ".zip":
		return loadZippedShapefile(path, opts)
	case ".geojson", ".json":
		return LoadGeoJSON(path, opts)
	default:
		return nil, eris.Errorf("boundary: unsupported region file %s", path)
	}
}

func loadZippedShapefile(zipPath string, opts Options) ([]model.Region, error) {
	dir, err := os.MkdirTemp(opts.TempDir, "hrmap-regions-")
	if err != nil {
		return nil, eris.Wrap(err, "boundary: create extract dir")
	}
	defer os.RemoveAll(dir) //nolint:errcheck

	if err := extractZIP(zipPath, dir); err != nil {
		return nil, eris.Wrapf(err, "boundary: extract %s", zipPath)
	}
	shpPath, err := findFileByExt(dir, ".shp")
	if err != nil {
		return nil, eris.Wrap(err, "boundary: find .shp file")
	}
	return LoadShapefile(shpPath, opts)
}

// LoadShapefile reads polygon records from an ESRI shapefile. The source CRS
// comes from opts.SourceCRS or, failing that, the .prj sidecar.
func LoadShapefile(shpPath string, opts Options) ([]model.Region, error) {
	reader, err := shp.Open(shpPath)
	if err != nil {
		return nil, eris.Wrapf(err, "boundary: open shapefile %s", shpPath)
	}
	defer func() { _ = reader.Close() }()

	idIdx := fieldIndex(reader, opts.IDField)
	if idIdx < 0 {
		return nil, eris.Errorf("boundary: field %s not found in %s", opts.IDField, shpPath)
	}
	nameIdx := -1
	if opts.NameField != "" {
		nameIdx = fieldIndex(reader, opts.NameField)
	}

	src := opts.SourceCRS
	if src == "" {
		prj := strings.TrimSuffix(shpPath, filepath.Ext(shpPath)) + ".prj"
		if src, err = crs.FromPRJ(prj); err != nil {
			return nil, eris.Wrap(err, "boundary: read projection")
		}
	}
	rp, err := crs.New(src, opts.TargetCRS)
	if err != nil {
		return nil, eris.Wrap(err, "boundary: reprojection")
	}

	var regions []model.Region
	for reader.Next() {
		_, shape := reader.Shape()
		r := model.Region{
			ID:   attribute(reader, idIdx),
			Name: attribute(reader, nameIdx),
			Geom: shapeToMultiPolygon(shape),
		}
		if r.Geom, err = rp.MultiPolygon(r.Geom); err != nil {
			return nil, eris.Wrapf(err, "boundary: reproject region %s", r.ID)
		}
		regions = append(regions, r)
	}

	zap.L().Info("loaded region shapefile",
		zap.String("component", "boundary"),
		zap.String("path", shpPath),
		zap.Int("regions", len(regions)),
		zap.Bool("reprojected", rp != nil),
	)
	return regions, nil
}

// LoadGeoJSON reads Polygon and MultiPolygon features from a GeoJSON
// FeatureCollection. Extra coordinate dimensions are dropped.
func LoadGeoJSON(path string, opts Options) ([]model.Region, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "boundary: read %s", path)
	}

	var fc geojson.FeatureCollection
	if err := json.Unmarshal(data, &fc); err != nil {
		return nil, eris.Wrapf(err, "boundary: decode %s", path)
	}

	rp, err := crs.New(opts.SourceCRS, opts.TargetCRS)
	if err != nil {
		return nil, eris.Wrap(err, "boundary: reprojection")
	}

	regions := make([]model.Region, 0, len(fc.Features))
	for i, f := range fc.Features {
		id := propertyString(f.Properties, opts.IDField)
		mp, err := toMultiPolygon(f.Geometry)
		if err != nil {
			return nil, eris.Wrapf(err, "boundary: feature %d (%s)", i, id)
		}
		if mp, err = rp.MultiPolygon(mp); err != nil {
			return nil, eris.Wrapf(err, "boundary: reproject region %s", id)
		}
		regions = append(regions, model.Region{
			ID:   id,
			Name: propertyString(f.Properties, opts.NameField),
			Geom: mp,
		})
	}

	zap.L().Info("loaded region geojson",
		zap.String("component", "boundary"),
		zap.String("path", path),
		zap.Int("regions", len(regions)),
	)
	return regions, nil
}

// toMultiPolygon normalizes a feature geometry to an XY MultiPolygon. Nil and
// non-areal geometries produce an empty MultiPolygon.
func toMultiPolygon(g geom.T) (*geom.MultiPolygon, error) {
	var polys [][][]geom.Coord
	switch t := g.(type) {
	case *geom.Polygon:
		polys = [][][]geom.Coord{t.Coords()}
	case *geom.MultiPolygon:
		polys = t.Coords()
	default:
		return geom.NewMultiPolygon(geom.XY), nil
	}

	for _, poly := range polys {
		for _, ring := range poly {
			for i, c := range ring {
				ring[i] = geom.Coord{c[0], c[1]}
			}
		}
	}
	mp, err := geom.NewMultiPolygon(geom.XY).SetCoords(polys)
	if err != nil {
		return nil, eris.Wrap(err, "build multipolygon")
	}
	return mp, nil
}

// fieldIndex returns the index of a named field in the shapefile, or -1 if not found.
func fieldIndex(reader *shp.Reader, name string) int {
	for i, f := range reader.Fields() {
		if strings.EqualFold(strings.TrimRight(f.String(), "\x00"), name) {
			return i
		}
	}
	return -1
}

func attribute(reader *shp.Reader, idx int) string {
	if idx < 0 {
		return ""
	}
	return strings.TrimSpace(strings.TrimRight(reader.Attribute(idx), "\x00"))
}

func propertyString(props map[string]interface{}, key string) string {
	if key == "" {
		return ""
	}
	switch v := props[key].(type) {
	case string:
		return strings.TrimSpace(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case json.Number:
		return v.String()
	case nil:
		return ""
	default:
		return ""
	}
}
