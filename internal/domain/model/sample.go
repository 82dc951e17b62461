package model

import (
	"time"

	"github.com/paulmach/orb"
)

type SampleSpec struct {
	Count int     `json:"count"`
	Scale float64 `json:"scale"`
	Seed  int64   `json:"seed"`
}

// Plan is the deferred command realized by a compute backend in one call:
// the stack graph, the sampling request and the region statistics that
// the export metadata needs.
type Plan struct {
	Stack       FeatureStack `json:"stack"`
	Region      AOI          `json:"region"`
	Sample      SampleSpec   `json:"sample"`
	RegionMeans []string     `json:"region_means,omitempty"`
}

type PlanResult struct {
	Rows        []SampleRow        `json:"rows"`
	RegionMeans map[string]float64 `json:"region_means,omitempty"`
	AreaSqKm    float64            `json:"area_sq_km"`
}

// SampleRow holds the value of every stack band at one sample point.
type SampleRow struct {
	Values map[string]float64 `json:"values"`
	Point  orb.Point          `json:"point"`
}

// RunMetadata accompanies exported samples.
type RunMetadata struct {
	RunID                string             `json:"run_id"`
	Config               SamplingConfig     `json:"config"`
	Bands                []string           `json:"bands"`
	RecordCount          int                `json:"record_count"`
	AOILabel             string             `json:"aoi_label"`
	AOIAreaSqKm          float64            `json:"aoi_area_sq_km"`
	DataAvailabilityMean *float64           `json:"data_availability_mean"`
	AssetsPresent        AvailabilityReport `json:"assets_present"`
	CreatedAt            time.Time          `json:"created_at"`
}
