package core

import (
	"context"

	"go.uber.org/zap"

	"geostack_service/internal/domain/model"
)

// AvailabilityProbe checks the catalog for optional sources. It fails
// closed: any backend error counts as absent.
type AvailabilityProbe struct {
	backend model.ComputeBackend
	logger  *zap.Logger
}

func NewAvailabilityProbe(backend model.ComputeBackend, logger *zap.Logger) *AvailabilityProbe {
	return &AvailabilityProbe{backend: backend, logger: logger}
}

func (p *AvailabilityProbe) Exists(ctx context.Context, sourceID string) bool {
	ok, err := p.backend.Exists(ctx, sourceID)
	if err != nil {
		p.logger.Warn("availability probe failed, treating source as absent",
			zap.String("source", sourceID), zap.Error(err))
		return false
	}
	return ok
}

// Available reports whether the source is present and its filtered
// collection holds at least one image over the AOI. The date window does
// not apply to static sources, their footprint still does.
func (p *AvailabilityProbe) Available(ctx context.Context, src model.FeatureSource, query model.CollectionQuery) (model.CollectionInfo, bool) {
	if !p.Exists(ctx, src.ID) {
		return model.CollectionInfo{}, false
	}
	info, err := p.backend.Describe(ctx, query)
	if err != nil {
		p.logger.Warn("describe failed, treating source as absent",
			zap.String("source", src.ID), zap.Error(err))
		return model.CollectionInfo{}, false
	}
	return info, info.Count > 0
}
