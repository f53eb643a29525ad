package boundary

import (
	"github.com/jonas-p/go-shp"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/xy"
)

// shapeToMultiPolygon converts a shapefile polygon into a go-geom
// MultiPolygon. ESRI rings are clockwise for shells and counter-clockwise
// for holes; each hole is attached to the first shell that contains its
// first vertex. A hole with no enclosing shell is kept as a shell of its own.
// Unsupported or empty shapes yield an empty MultiPolygon, which index
// validation reports as malformed.
func shapeToMultiPolygon(s shp.Shape) *geom.MultiPolygon {
	mp := geom.NewMultiPolygon(geom.XY)
	p, ok := s.(*shp.Polygon)
	if !ok || p == nil || p.NumParts == 0 || len(p.Points) == 0 {
		return mp
	}

	var shells, holes [][]geom.Coord
	for _, ring := range ringsOf(p) {
		// Degenerate rings stay shells so validation can report them.
		if len(ring) >= 4 && xy.IsRingCounterClockwise(geom.XY, flatCoords(ring)) {
			holes = append(holes, ring)
		} else {
			shells = append(shells, ring)
		}
	}

	polys := make([][][]geom.Coord, 0, len(shells))
	for _, s := range shells {
		polys = append(polys, [][]geom.Coord{s})
	}
	for _, h := range holes {
		attached := false
		for i := range polys {
			if xy.IsPointInRing(geom.XY, h[0], flatCoords(polys[i][0])) {
				polys[i] = append(polys[i], h)
				attached = true
				break
			}
		}
		if !attached {
			polys = append(polys, [][]geom.Coord{h})
		}
	}

	out, err := mp.SetCoords(polys)
	if err != nil {
		return geom.NewMultiPolygon(geom.XY)
	}
	return out
}

// ringsOf slices a shapefile polygon's point array into its parts.
func ringsOf(p *shp.Polygon) [][]geom.Coord {
	rings := make([][]geom.Coord, 0, p.NumParts)
	for i := int32(0); i < p.NumParts; i++ {
		start := p.Parts[i]
		end := int32(len(p.Points))
		if i+1 < p.NumParts {
			end = p.Parts[i+1]
		}
		if start >= end {
			continue
		}

		ring := make([]geom.Coord, 0, end-start)
		for j := start; j < end; j++ {
			ring = append(ring, geom.Coord{p.Points[j].X, p.Points[j].Y})
		}
		rings = append(rings, ring)
	}
	return rings
}

func flatCoords(coords []geom.Coord) []float64 {
	flat := make([]float64, 0, len(coords)*2)
	for _, c := range coords {
		flat = append(flat, c[0], c[1])
	}
	return flat
}
