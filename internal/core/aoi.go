package core

import (
	"context"
	"errors"
	"fmt"
	"io/fs"

	"github.com/paulmach/orb/geojson"
	"go.uber.org/zap"

	"geostack_service/internal/domain/model"
)

const gaulDatasetTemplate = "FAO/GAUL/2015/level%d"

var gaulFieldByLevel = map[int]string{0: "ADM0_NAME", 1: "ADM1_NAME", 2: "ADM2_NAME"}

func gaulField(level int) string {
	if f, ok := gaulFieldByLevel[level]; ok {
		return f
	}
	return gaulFieldByLevel[1]
}

// AOIResolver turns an AOI descriptor into a concrete region.
type AOIResolver struct {
	files      model.BoundaryFileReader
	boundaries model.BoundarySource
	logger     *zap.Logger
}

func NewAOIResolver(files model.BoundaryFileReader, boundaries model.BoundarySource, logger *zap.Logger) *AOIResolver {
	return &AOIResolver{files: files, boundaries: boundaries, logger: logger}
}

// Resolve applies, first match wins: local boundary file, remote asset
// reference, administrative-name lookup.
func (r *AOIResolver) Resolve(ctx context.Context, cfg model.SamplingConfig) (model.AOI, error) {
	d := cfg.AOI
	switch {
	case d.GeoJSONPath != "":
		return r.fromFile(d.GeoJSONPath)
	case d.Asset != "":
		r.logger.Debug("using remote AOI asset", zap.String("asset", d.Asset))
		return model.AOI{Label: d.Asset, Provenance: model.ProvenanceRemoteAsset, Asset: d.Asset}, nil
	case d.Name != "":
		return r.fromAdminName(ctx, d)
	default:
		return model.AOI{}, &model.ConfigurationError{Field: "aoi", Reason: "one of geojson, asset or name is required"}
	}
}

func (r *AOIResolver) fromFile(path string) (model.AOI, error) {
	fc, err := r.files.ReadBoundary(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return model.AOI{}, &model.ConfigurationError{Field: "aoi.geojson", Reason: "boundary file not found: " + path, Err: err}
		}
		return model.AOI{}, &model.ConfigurationError{Field: "aoi.geojson", Reason: "unreadable boundary file: " + path, Err: err}
	}
	return model.AOI{Label: path, Provenance: model.ProvenanceLocalFile, Features: fc}, nil
}

func (r *AOIResolver) fromAdminName(ctx context.Context, d model.AOIDescriptor) (model.AOI, error) {
	query := model.BoundaryQuery{Level: d.Level, Name: d.Name}
	if d.Level > 0 {
		query.Country = d.Country
	}
	fc, err := r.boundaries.Boundaries(ctx, query)
	if err != nil {
		return model.AOI{}, fmt.Errorf("failed to query boundaries: %w", err)
	}
	if fc == nil || len(fc.Features) == 0 {
		return model.AOI{}, &model.NotFoundError{Level: query.Level, Name: query.Name, Country: query.Country}
	}
	if len(fc.Features) > 1 {
		r.logger.Info("administrative lookup matched several regions, merging",
			zap.String("name", d.Name), zap.Int("matches", len(fc.Features)))
	}

	label := d.Name
	if query.Country != "" {
		label = fmt.Sprintf("%s, %s", d.Name, query.Country)
	}
	return model.AOI{Label: label, Provenance: model.ProvenanceAdminLookup, Features: fc}, nil
}

// GAULBoundaries looks up FAO GAUL 2015 regions on the compute backend.
type GAULBoundaries struct {
	backend model.ComputeBackend
}

func NewGAULBoundaries(backend model.ComputeBackend) *GAULBoundaries {
	return &GAULBoundaries{backend: backend}
}

func (g *GAULBoundaries) Boundaries(ctx context.Context, q model.BoundaryQuery) (*geojson.FeatureCollection, error) {
	filters := []model.PropertyFilter{{Property: gaulField(q.Level), Op: model.FilterEq, Value: q.Name}}
	if q.Level > 0 && q.Country != "" {
		filters = append(filters, model.PropertyFilter{Property: gaulFieldByLevel[0], Op: model.FilterEq, Value: q.Country})
	}
	fc, err := g.backend.Features(ctx, model.FeatureQuery{
		Dataset: fmt.Sprintf(gaulDatasetTemplate, q.Level),
		Filters: filters,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query GAUL level %d: %w", q.Level, err)
	}
	return fc, nil
}
