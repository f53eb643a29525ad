package model

import "github.com/twpayne/go-geom"

// Attr is a single passthrough column carried from an input table to an output table.
type Attr struct {
	Name  string
	Value string
}

// PointRecord is a point-located facility or case record.
type PointRecord struct {
	ID       string
	Lon      float64
	Lat      float64
	Attrs    []Attr // original columns in input order
	RegionID string // set by attribution
}

// Region is a health region boundary.
type Region struct {
	ID   string // HR_UID
	Name string
	Geom *geom.MultiPolygon
}
