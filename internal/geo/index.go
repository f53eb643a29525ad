// Package geo resolves points to health regions by polygon containment with
// a nearest-boundary fallback.
package geo

import (
	"math"
	"sort"

	cgeom "github.com/ctessum/geom"
	"github.com/ctessum/geom/index/rtree"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/xy"
	"github.com/twpayne/go-geom/xy/location"

	"github.com/sells-group/hrmap/internal/model"
)

// bboxPad widens point search boxes so points on a bounding-box edge are
// never filtered out by the tree.
const bboxPad = 1e-9

// Match is the outcome of resolving a single point.
type Match struct {
	RegionID string
	Fallback bool    // true when no region contained the point
	Distance float64 // boundary distance for fallback matches, 0 otherwise
}

// entry is stored in the R-tree; the embedded Geom is the region's bounding box.
type entry struct {
	cgeom.Geom

	pos  int // position in id order
	id   string
	geom *geom.MultiPolygon
}

// IndexOption configures an Index.
type IndexOption func(*indexOptions)

type indexOptions struct {
	checkSelfIntersection bool
}

// WithSelfIntersectionCheck toggles the ring self-intersection check at build time.
func WithSelfIntersectionCheck(enabled bool) IndexOption {
	return func(o *indexOptions) {
		o.checkSelfIntersection = enabled
	}
}

// Index answers containment and nearest-region queries over a fixed set of
// region polygons. It is immutable once built and safe for concurrent use.
//
// Containment is boundary-inclusive: a point on an edge or vertex of a
// region's outer ring, or on the edge of one of its holes, is contained.
// When a point is contained by several regions (a shared boundary) the
// lowest region id wins.
type Index struct {
	entries []*entry
	tree    *rtree.Rtree
}

// NewIndex validates the regions and builds an index over them. An empty
// region set is accepted; queries against it return ErrNoRegionsDefined.
func NewIndex(regions []model.Region, opts ...IndexOption) (*Index, error) {
	o := indexOptions{checkSelfIntersection: true}
	for _, opt := range opts {
		opt(&o)
	}

	seen := make(map[string]bool, len(regions))
	entries := make([]*entry, 0, len(regions))
	for _, r := range regions {
		if err := ValidateRegion(r, o.checkSelfIntersection); err != nil {
			return nil, err
		}
		if seen[r.ID] {
			return nil, eris.Wrapf(ErrDuplicateRegion, "region %s", r.ID)
		}
		seen[r.ID] = true

		b := r.Geom.Bounds()
		entries = append(entries, &entry{
			id:   r.ID,
			geom: r.Geom,
			Geom: &cgeom.Bounds{
				Min: cgeom.Point{X: b.Min(0), Y: b.Min(1)},
				Max: cgeom.Point{X: b.Max(0), Y: b.Max(1)},
			},
		})
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].id < entries[j].id })

	tree := rtree.NewTree(25, 50)
	for i, e := range entries {
		e.pos = i
		tree.Insert(e)
	}

	return &Index{entries: entries, tree: tree}, nil
}

// Len returns the number of indexed regions.
func (idx *Index) Len() int { return len(idx.entries) }

// Regions returns the indexed region ids in ascending order.
func (idx *Index) Regions() []string {
	ids := make([]string, len(idx.entries))
	for i, e := range idx.entries {
		ids[i] = e.id
	}
	return ids
}

// Contains returns the region containing the point, if any.
func (idx *Index) Contains(lon, lat float64) (string, bool) {
	if len(idx.entries) == 0 {
		return "", false
	}

	pad := bboxPad * math.Max(1, math.Max(math.Abs(lon), math.Abs(lat)))
	box := &cgeom.Bounds{
		Min: cgeom.Point{X: lon - pad, Y: lat - pad},
		Max: cgeom.Point{X: lon + pad, Y: lat + pad},
	}

	var candidates []*entry
	for _, s := range idx.tree.SearchIntersect(box) {
		if e, ok := s.(*entry); ok {
			candidates = append(candidates, e)
		}
	}
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].pos < candidates[j].pos })

	pt := geom.Coord{lon, lat}
	for _, e := range candidates {
		if multiPolygonContains(e.geom, pt) {
			return e.id, true
		}
	}
	return "", false
}

// Nearest returns the region whose boundary is closest to the point, and
// that distance in CRS units. Every region is scanned; ties keep the lowest id.
func (idx *Index) Nearest(lon, lat float64) (string, float64, error) {
	if len(idx.entries) == 0 {
		return "", 0, ErrNoRegionsDefined
	}

	pt := geom.Coord{lon, lat}
	bestID := ""
	best := math.Inf(1)
	for _, e := range idx.entries {
		d := boundaryDistance(e.geom, pt)
		if d < best {
			best = d
			bestID = e.id
		}
	}
	return bestID, best, nil
}

// Resolve returns the containing region, or the nearest one when no region contains the point.
func (idx *Index) Resolve(lon, lat float64) (Match, error) {
	if len(idx.entries) == 0 {
		return Match{}, ErrNoRegionsDefined
	}
	if id, ok := idx.Contains(lon, lat); ok {
		return Match{RegionID: id}, nil
	}
	id, d, err := idx.Nearest(lon, lat)
	if err != nil {
		return Match{}, err
	}
	return Match{RegionID: id, Fallback: true, Distance: d}, nil
}

func multiPolygonContains(mp *geom.MultiPolygon, pt geom.Coord) bool {
	for i := 0; i < mp.NumPolygons(); i++ {
		if polygonContains(mp.Polygon(i), pt) {
			return true
		}
	}
	return false
}

// polygonContains treats the first ring as the shell and the rest as holes.
func polygonContains(p *geom.Polygon, pt geom.Coord) bool {
	if p.NumLinearRings() == 0 {
		return false
	}
	switch xy.LocatePointInRing(geom.XY, pt, p.LinearRing(0).FlatCoords()) {
	case location.Exterior:
		return false
	case location.Boundary:
		return true
	}
	for i := 1; i < p.NumLinearRings(); i++ {
		if xy.LocatePointInRing(geom.XY, pt, p.LinearRing(i).FlatCoords()) == location.Interior {
			return false
		}
	}
	return true
}

func boundaryDistance(mp *geom.MultiPolygon, pt geom.Coord) float64 {
	best := math.Inf(1)
	for i := 0; i < mp.NumPolygons(); i++ {
		p := mp.Polygon(i)
		for j := 0; j < p.NumLinearRings(); j++ {
			if d := xy.DistanceFromPointToLineString(geom.XY, pt, p.LinearRing(j).FlatCoords()); d < best {
				best = d
			}
		}
	}
	return best
}
