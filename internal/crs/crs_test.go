package crs

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-geom"
)

const webMercator = "+proj=merc +a=6378137 +b=6378137 +lat_ts=0 +lon_0=0 +x_0=0 +y_0=0 +k=1 +units=m +no_defs"

func TestNew_Identity(t *testing.T) {
	for _, tc := range [][2]string{{"", NAD83}, {NAD83, ""}, {NAD83, NAD83}} {
		r, err := New(tc[0], tc[1])
		require.NoError(t, err)
		assert.Nil(t, r)
	}

	var r *Reprojector
	x, y, err := r.Point(-75.7, 45.4)
	require.NoError(t, err)
	assert.Equal(t, -75.7, x)
	assert.Equal(t, 45.4, y)
}

func TestReprojector_Point(t *testing.T) {
	r, err := New(NAD83, webMercator)
	require.NoError(t, err)
	require.NotNil(t, r)

	x, y, err := r.Point(10, 0)
	require.NoError(t, err)
	assert.InDelta(t, 6378137*10*math.Pi/180, x, 1)
	assert.InDelta(t, 0, y, 1)
}

func TestReprojector_MultiPolygon(t *testing.T) {
	r, err := New(NAD83, webMercator)
	require.NoError(t, err)

	mp := geom.NewMultiPolygon(geom.XY).MustSetCoords([][][]geom.Coord{{
		{{0, 0}, {10, 0}, {10, 10}, {0, 10}, {0, 0}},
	}})
	out, err := r.MultiPolygon(mp)
	require.NoError(t, err)

	assert.Equal(t, 1, out.NumPolygons())
	assert.InDelta(t, 6378137*10*math.Pi/180, out.Polygon(0).LinearRing(0).Coord(1)[0], 1)
	// Source untouched.
	assert.Equal(t, 10.0, mp.Polygon(0).LinearRing(0).Coord(1)[0])
}

func TestFromPRJ(t *testing.T) {
	dir := t.TempDir()

	def, err := FromPRJ(filepath.Join(dir, "missing.prj"))
	require.NoError(t, err)
	assert.Empty(t, def)

	path := filepath.Join(dir, "hr.prj")
	require.NoError(t, os.WriteFile(path, []byte("  "+NAD83+"\n"), 0o644))
	def, err = FromPRJ(path)
	require.NoError(t, err)
	assert.Equal(t, NAD83, def)
}
