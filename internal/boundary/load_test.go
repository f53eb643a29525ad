package boundary

import (
	"archive/zip"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/jonas-p/go-shp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/hrmap/internal/geo"
)

// clockwise square, as ESRI stores shells
func shell(minX, minY, maxX, maxY float64) []shp.Point {
	return []shp.Point{
		{X: minX, Y: minY}, {X: minX, Y: maxY}, {X: maxX, Y: maxY}, {X: maxX, Y: minY}, {X: minX, Y: minY},
	}
}

// counter-clockwise square, as ESRI stores holes
func hole(minX, minY, maxX, maxY float64) []shp.Point {
	return []shp.Point{
		{X: minX, Y: minY}, {X: maxX, Y: minY}, {X: maxX, Y: maxY}, {X: minX, Y: maxY}, {X: minX, Y: minY},
	}
}

// polygon builds a POLYGON shape; go-shp shares the PolyLine layout for both.
func polygon(parts ...[]shp.Point) *shp.Polygon {
	return (*shp.Polygon)(shp.NewPolyLine(parts))
}

func writeShapefile(t *testing.T, dir string) string {
	t.Helper()
	path := filepath.Join(dir, "hr.shp")

	w, err := shp.Create(path, shp.POLYGON)
	require.NoError(t, err)
	require.NoError(t, w.SetFields([]shp.Field{
		shp.StringField("HR_UID", 10),
		shp.StringField("ENGNAME", 40),
	}))

	n := w.Write(polygon(shell(0, 0, 4, 4), hole(1, 1, 3, 3)))
	require.NoError(t, w.WriteAttribute(int(n), 0, "3595"))
	require.NoError(t, w.WriteAttribute(int(n), 1, "City of Toronto"))

	n = w.Write(polygon(shell(4, 0, 8, 4), shell(20, 20, 21, 21)))
	require.NoError(t, w.WriteAttribute(int(n), 0, "3530"))
	require.NoError(t, w.WriteAttribute(int(n), 1, "Peel"))

	w.Close()
	return path
}

func TestLoadShapefile(t *testing.T) {
	path := writeShapefile(t, t.TempDir())

	regions, err := Load(path, Options{IDField: "HR_UID", NameField: "ENGNAME"})
	require.NoError(t, err)
	require.Len(t, regions, 2)

	assert.Equal(t, "3595", regions[0].ID)
	assert.Equal(t, "City of Toronto", regions[0].Name)
	require.Equal(t, 1, regions[0].Geom.NumPolygons(), "hole attaches to its shell")
	assert.Equal(t, 2, regions[0].Geom.Polygon(0).NumLinearRings())

	assert.Equal(t, "3530", regions[1].ID)
	assert.Equal(t, 2, regions[1].Geom.NumPolygons())

	idx, err := geo.NewIndex(regions)
	require.NoError(t, err)

	_, ok := idx.Contains(2, 2)
	assert.False(t, ok, "inside the hole")

	id, ok := idx.Contains(0.5, 0.5)
	require.True(t, ok)
	assert.Equal(t, "3595", id)

	id, ok = idx.Contains(20.5, 20.5)
	require.True(t, ok)
	assert.Equal(t, "3530", id)
}

func TestLoadShapefile_MissingIDField(t *testing.T) {
	path := writeShapefile(t, t.TempDir())
	_, err := Load(path, Options{IDField: "PRUID"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "PRUID")
}

func TestLoad_ZippedShapefile(t *testing.T) {
	src := t.TempDir()
	writeShapefile(t, src)

	zipPath := filepath.Join(t.TempDir(), "hr.zip")
	zf, err := os.Create(zipPath)
	require.NoError(t, err)
	zw := zip.NewWriter(zf)
	for _, ext := range []string{".shp", ".shx", ".dbf"} {
		in, err := os.Open(filepath.Join(src, "hr"+ext))
		require.NoError(t, err)
		out, err := zw.Create("HR_2019/hr" + ext)
		require.NoError(t, err)
		_, err = io.Copy(out, in)
		require.NoError(t, err)
		require.NoError(t, in.Close())
	}
	require.NoError(t, zw.Close())
	require.NoError(t, zf.Close())

	regions, err := Load(zipPath, Options{IDField: "HR_UID", TempDir: t.TempDir()})
	require.NoError(t, err)
	assert.Len(t, regions, 2)
}

const featureCollection = `{
  "type": "FeatureCollection",
  "features": [
    {
      "type": "Feature",
      "properties": {"HR_UID": 3595, "ENGNAME": "City of Toronto"},
      "geometry": {"type": "Polygon", "coordinates": [[[0,0,10],[1,0,10],[1,1,10],[0,1,10],[0,0,10]]]}
    },
    {
      "type": "Feature",
      "properties": {"HR_UID": "3530"},
      "geometry": {"type": "MultiPolygon", "coordinates": [[[[1,0],[2,0],[2,1],[1,1],[1,0]]]]}
    },
    {
      "type": "Feature",
      "properties": {"HR_UID": "9999"},
      "geometry": {"type": "Point", "coordinates": [5,5]}
    }
  ]
}`

func TestLoadGeoJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hr.geojson")
	require.NoError(t, os.WriteFile(path, []byte(featureCollection), 0o644))

	regions, err := Load(path, Options{IDField: "HR_UID", NameField: "ENGNAME"})
	require.NoError(t, err)
	require.Len(t, regions, 3)

	assert.Equal(t, "3595", regions[0].ID)
	assert.Equal(t, "City of Toronto", regions[0].Name)
	assert.Equal(t, 1, regions[0].Geom.NumPolygons())
	assert.Equal(t, "3530", regions[1].ID)

	// Non-areal geometry is carried through empty and rejected by the index.
	assert.True(t, regions[2].Geom.Empty())
	_, err = geo.NewIndex(regions)
	require.Error(t, err)
	assert.ErrorIs(t, err, geo.ErrMalformedGeometry)
	assert.Contains(t, err.Error(), "9999")

	idx, err := geo.NewIndex(regions[:2])
	require.NoError(t, err)
	id, ok := idx.Contains(1, 0.5)
	require.True(t, ok)
	assert.Equal(t, "3530", id, "shared edge goes to the lowest id")
}

func TestLoad_UnsupportedExtension(t *testing.T) {
	_, err := Load("regions.kml", Options{IDField: "HR_UID"})
	assert.Error(t, err)

	_, err = Load("regions.shp", Options{})
	assert.Error(t, err)
}
