package model

import (
	"context"

	"github.com/paulmach/orb/geojson"
)

// ComputeBackend is the remote geospatial engine. Implementations are
// passed explicitly to every component that needs them.
type ComputeBackend interface {
	// Exists checks the catalog for an asset or collection id.
	Exists(ctx context.Context, id string) (bool, error)

	// Describe counts the images of a filtered collection and lists their bands.
	Describe(ctx context.Context, query CollectionQuery) (CollectionInfo, error)

	// Features fetches a vector dataset filtered by properties.
	Features(ctx context.Context, query FeatureQuery) (*geojson.FeatureCollection, error)

	// Execute realizes a deferred plan.
	Execute(ctx context.Context, plan Plan) (PlanResult, error)
}

type FeatureQuery struct {
	Dataset string           `json:"dataset"`
	Filters []PropertyFilter `json:"filters,omitempty"`
}

// BoundaryQuery selects administrative regions by name at a level.
type BoundaryQuery struct {
	Level   int    `json:"level"`
	Name    string `json:"name"`
	Country string `json:"country,omitempty"`
}

// BoundarySource looks up administrative boundaries.
type BoundarySource interface {
	Boundaries(ctx context.Context, query BoundaryQuery) (*geojson.FeatureCollection, error)
}

// ExportWriter persists sample rows and run metadata.
type ExportWriter interface {
	Write(ctx context.Context, rows []SampleRow, meta RunMetadata) error
}

// BoundaryFileReader parses a local vector boundary file.
type BoundaryFileReader interface {
	ReadBoundary(path string) (*geojson.FeatureCollection, error)
}
