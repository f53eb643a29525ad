package geo

import (
	"math"
	"sort"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/xy"
	"github.com/twpayne/go-geom/xy/orientation"

	"github.com/sells-group/hrmap/internal/model"
)

// minRingCoords is the smallest closed ring: a triangle plus its closing vertex.
const minRingCoords = 4

// ValidateRegion checks that a region's geometry is usable for containment
// and distance queries. Rings must be closed, finite, have at least four
// coordinates, and (when checkSelfIntersection is set) must not cross or
// touch themselves. Intersections between different rings are not checked.
func ValidateRegion(r model.Region, checkSelfIntersection bool) error {
	if r.ID == "" {
		return eris.Wrap(ErrMalformedGeometry, "region has empty id")
	}
	if r.Geom == nil || r.Geom.Empty() || r.Geom.NumPolygons() == 0 {
		return eris.Wrapf(ErrMalformedGeometry, "region %s: empty geometry", r.ID)
	}
	if r.Geom.Layout() != geom.XY {
		return eris.Wrapf(ErrMalformedGeometry, "region %s: unsupported layout %v", r.ID, r.Geom.Layout())
	}

	for pi := 0; pi < r.Geom.NumPolygons(); pi++ {
		poly := r.Geom.Polygon(pi)
		if poly.NumLinearRings() == 0 {
			return eris.Wrapf(ErrMalformedGeometry, "region %s part %d: no rings", r.ID, pi)
		}
		for ri := 0; ri < poly.NumLinearRings(); ri++ {
			coords := poly.LinearRing(ri).Coords()
			if err := validateRing(coords, checkSelfIntersection); err != nil {
				return eris.Wrapf(ErrMalformedGeometry, "region %s part %d ring %d: %s", r.ID, pi, ri, err.Error())
			}
		}
	}
	return nil
}

func validateRing(coords []geom.Coord, checkSelfIntersection bool) error {
	if len(coords) < minRingCoords {
		return eris.Errorf("%d coordinates, need at least %d", len(coords), minRingCoords)
	}
	for _, c := range coords {
		if math.IsNaN(c[0]) || math.IsNaN(c[1]) || math.IsInf(c[0], 0) || math.IsInf(c[1], 0) {
			return eris.New("non-finite coordinate")
		}
	}
	if !coords[0].Equal(geom.XY, coords[len(coords)-1]) {
		return eris.New("ring is not closed")
	}

	ring := dedupe(coords)
	if len(ring) < minRingCoords {
		return eris.New("ring collapses to fewer than three distinct vertices")
	}
	if checkSelfIntersection {
		if i, j, ok := selfIntersection(ring); ok {
			return eris.Errorf("self-intersection between segments %d and %d", i, j)
		}
	}
	return nil
}

// dedupe drops consecutive repeated vertices.
func dedupe(coords []geom.Coord) []geom.Coord {
	out := make([]geom.Coord, 0, len(coords))
	for _, c := range coords {
		if len(out) > 0 && out[len(out)-1].Equal(geom.XY, c) {
			continue
		}
		out = append(out, c)
	}
	return out
}

type segment struct {
	idx        int
	a, b       geom.Coord
	minX, maxX float64
}

// selfIntersection reports the first pair of non-adjacent segments of a closed
// ring that share any point. Segments are swept in order of minimum x so only
// pairs with overlapping x-extents are compared.
func selfIntersection(ring []geom.Coord) (int, int, bool) {
	n := len(ring) - 1
	segs := make([]segment, n)
	for i := 0; i < n; i++ {
		a, b := ring[i], ring[i+1]
		segs[i] = segment{idx: i, a: a, b: b, minX: math.Min(a[0], b[0]), maxX: math.Max(a[0], b[0])}
	}
	sort.Slice(segs, func(i, j int) bool { return segs[i].minX < segs[j].minX })

	for i := range segs {
		s := segs[i]
		for j := i + 1; j < len(segs) && segs[j].minX <= s.maxX; j++ {
			t := segs[j]
			if adjacent(s.idx, t.idx, n) {
				continue
			}
			if segmentsIntersect(s.a, s.b, t.a, t.b) {
				lo, hi := s.idx, t.idx
				if lo > hi {
					lo, hi = hi, lo
				}
				return lo, hi, true
			}
		}
	}
	return 0, 0, false
}

func adjacent(i, j, n int) bool {
	d := i - j
	if d < 0 {
		d = -d
	}
	return d == 1 || d == n-1
}

func segmentsIntersect(p1, p2, q1, q2 geom.Coord) bool {
	o1 := xy.OrientationIndex(p1, p2, q1)
	o2 := xy.OrientationIndex(p1, p2, q2)
	o3 := xy.OrientationIndex(q1, q2, p1)
	o4 := xy.OrientationIndex(q1, q2, p2)

	if o1 != o2 && o3 != o4 &&
		o1 != orientation.Collinear && o2 != orientation.Collinear &&
		o3 != orientation.Collinear && o4 != orientation.Collinear {
		return true
	}

	return (o1 == orientation.Collinear && onSegment(p1, p2, q1)) ||
		(o2 == orientation.Collinear && onSegment(p1, p2, q2)) ||
		(o3 == orientation.Collinear && onSegment(q1, q2, p1)) ||
		(o4 == orientation.Collinear && onSegment(q1, q2, p2))
}

// onSegment reports whether c, already known to be collinear with a and b, lies between them.
func onSegment(a, b, c geom.Coord) bool {
	return c[0] >= math.Min(a[0], b[0]) && c[0] <= math.Max(a[0], b[0]) &&
		c[1] >= math.Min(a[1], b[1]) && c[1] <= math.Max(a[1], b[1])
}
