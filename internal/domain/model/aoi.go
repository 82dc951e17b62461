package model

import (
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/planar"
)

// Provenance records how an AOI was obtained.
type Provenance string

const (
	ProvenanceLocalFile   Provenance = "local-file"
	ProvenanceRemoteAsset Provenance = "remote-asset"
	ProvenanceAdminLookup Provenance = "admin-lookup"
)

// AOI is the resolved sampling region. Remote-asset AOIs carry only the
// asset reference; the compute backend materializes their geometry.
type AOI struct {
	Label      string                     `json:"label"`
	Provenance Provenance                 `json:"provenance"`
	Asset      string                     `json:"asset,omitempty"`
	Features   *geojson.FeatureCollection `json:"features,omitempty"`
}

// MultiPolygon merges every polygonal feature of the AOI. Point and line
// features carry no area and are ignored.
func (a AOI) MultiPolygon() orb.MultiPolygon {
	var mp orb.MultiPolygon
	if a.Features == nil {
		return mp
	}
	for _, f := range a.Features.Features {
		mp = appendPolygons(mp, f.Geometry)
	}
	return mp
}

func appendPolygons(mp orb.MultiPolygon, g orb.Geometry) orb.MultiPolygon {
	switch geom := g.(type) {
	case orb.Polygon:
		return append(mp, geom)
	case orb.MultiPolygon:
		return append(mp, geom...)
	case orb.Collection:
		for _, inner := range geom {
			mp = appendPolygons(mp, inner)
		}
	}
	return mp
}

func (a AOI) Bound() orb.Bound {
	return a.MultiPolygon().Bound()
}

// AreaSqKm returns the geodesic area of the AOI in square kilometres.
func (a AOI) AreaSqKm() float64 {
	mp := a.MultiPolygon()
	if len(mp) == 0 {
		return 0
	}
	return geo.Area(mp) / 1e6
}

func (a AOI) Contains(p orb.Point) bool {
	return planar.MultiPolygonContains(a.MultiPolygon(), p)
}

// HasGeometry reports whether the AOI carries a local geometry.
func (a AOI) HasGeometry() bool {
	return len(a.MultiPolygon()) > 0
}
