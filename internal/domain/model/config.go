package model

import (
	"fmt"
	"time"
)

const DateLayout = "2006-01-02"

// FeatureGroup names an optional bundle of derived bands.
type FeatureGroup string

const (
	GroupIndices       FeatureGroup = "indices"
	GroupTemporal      FeatureGroup = "temporal"
	GroupTerrain       FeatureGroup = "terrain"
	GroupRadar         FeatureGroup = "radar"
	GroupHyperspectral FeatureGroup = "hyperspectral"
	GroupMagnetic      FeatureGroup = "magnetic"
	GroupGravity       FeatureGroup = "gravity"
	GroupSoilMoisture  FeatureGroup = "soil_moisture"
)

// GroupOrder is the declaration order used when concatenating group bands.
var GroupOrder = []FeatureGroup{
	GroupIndices,
	GroupTemporal,
	GroupTerrain,
	GroupRadar,
	GroupHyperspectral,
	GroupMagnetic,
	GroupGravity,
	GroupSoilMoisture,
}

type DateWindow struct {
	Start time.Time `json:"start" yaml:"start"`
	End   time.Time `json:"end" yaml:"end"`
}

func (w DateWindow) Valid() bool {
	return !w.Start.IsZero() && !w.End.IsZero() && w.Start.Before(w.End)
}

func (w DateWindow) String() string {
	return fmt.Sprintf("%s..%s", w.Start.Format(DateLayout), w.End.Format(DateLayout))
}

// AOIDescriptor selects the sampling region. The first non-empty of
// GeoJSONPath, Asset and Name wins.
type AOIDescriptor struct {
	GeoJSONPath string `json:"geojson,omitempty" yaml:"geojson"`
	Asset       string `json:"asset,omitempty" yaml:"asset"`
	Level       int    `json:"level" yaml:"level" validate:"gte=0,lte=2"`
	Name        string `json:"name,omitempty" yaml:"name"`
	Country     string `json:"country,omitempty" yaml:"country"`
}

// SamplingConfig is the immutable description of one sampling run.
type SamplingConfig struct {
	SourceID    string                `json:"asset_id" yaml:"source" validate:"required"`
	Window      DateWindow            `json:"window" yaml:"window"`
	Bands       []string              `json:"bands" yaml:"bands" validate:"required,min=1,unique,dive,required"`
	Scale       float64               `json:"scale" yaml:"scale" validate:"gt=0"`
	SampleCount int                   `json:"sample_count" yaml:"sample_count" validate:"gt=0"`
	Seed        int64                 `json:"random_seed" yaml:"seed"`
	Groups      map[FeatureGroup]bool `json:"groups" yaml:"groups"`
	AOI         AOIDescriptor         `json:"aoi" yaml:"aoi"`
}

// Enabled reports whether the group is switched on. Groups missing from
// the map are treated as disabled.
func (c SamplingConfig) Enabled(g FeatureGroup) bool {
	return c.Groups[g]
}

// EnabledGroups returns the switched-on groups in declaration order.
func (c SamplingConfig) EnabledGroups() []FeatureGroup {
	var groups []FeatureGroup
	for _, g := range GroupOrder {
		if c.Enabled(g) {
			groups = append(groups, g)
		}
	}
	return groups
}
