// Package crs reprojects coordinates between spatial reference systems.
package crs

import (
	"os"
	"strings"

	"github.com/ctessum/geom/proj"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
)

// NAD83 is the geographic CRS health-region points are usually published in (EPSG:4269).
const NAD83 = "+proj=longlat +ellps=GRS80 +datum=NAD83 +no_defs"

// Reprojector converts coordinates from a source CRS to a target CRS. A nil
// Reprojector is the identity.
type Reprojector struct {
	src, dst string
	trans    proj.Transformer
}

// New builds a reprojector between two CRS definitions, each either a PROJ.4
// string or ESRI/OGC WKT. It returns nil when either side is empty or both
// definitions are identical.
func New(src, dst string) (*Reprojector, error) {
	src, dst = strings.TrimSpace(src), strings.TrimSpace(dst)
	if src == "" || dst == "" || src == dst {
		return nil, nil
	}

	srcSR, err := proj.Parse(src)
	if err != nil {
		return nil, eris.Wrap(err, "crs: parse source")
	}
	dstSR, err := proj.Parse(dst)
	if err != nil {
		return nil, eris.Wrap(err, "crs: parse target")
	}
	trans, err := srcSR.NewTransform(dstSR)
	if err != nil {
		return nil, eris.Wrap(err, "crs: build transform")
	}
	return &Reprojector{src: src, dst: dst, trans: trans}, nil
}

// FromPRJ reads a .prj sidecar file. A missing file yields an empty definition.
func FromPRJ(path string) (string, error) {
	b, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return "", nil
	}
	if err != nil {
		return "", eris.Wrapf(err, "crs: read %s", path)
	}
	return strings.TrimSpace(string(b)), nil
}

// Point reprojects a single coordinate.
func (r *Reprojector) Point(x, y float64) (float64, float64, error) {
	if r == nil {
		return x, y, nil
	}
	tx, ty, err := r.trans(x, y)
	if err != nil {
		return 0, 0, eris.Wrapf(err, "crs: transform (%v, %v)", x, y)
	}
	return tx, ty, nil
}

// MultiPolygon returns a reprojected copy of mp.
func (r *Reprojector) MultiPolygon(mp *geom.MultiPolygon) (*geom.MultiPolygon, error) {
	if r == nil || mp == nil {
		return mp, nil
	}
	coords := mp.Coords()
	for _, poly := range coords {
		for _, ring := range poly {
			for i, c := range ring {
				x, y, err := r.Point(c[0], c[1])
				if err != nil {
					return nil, err
				}
				ring[i] = geom.Coord{x, y}
			}
		}
	}
	out, err := geom.NewMultiPolygon(geom.XY).SetCoords(coords)
	if err != nil {
		return nil, eris.Wrap(err, "crs: rebuild multipolygon")
	}
	return out, nil
}
