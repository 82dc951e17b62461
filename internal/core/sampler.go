package core

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"geostack_service/internal/domain/model"
)

// Sampler realizes the stack by submitting one deferred plan per run.
type Sampler struct {
	backend model.ComputeBackend
	logger  *zap.Logger
}

func NewSampler(backend model.ComputeBackend, logger *zap.Logger) *Sampler {
	return &Sampler{backend: backend, logger: logger}
}

// Sample draws up to count reproducible random pixels inside the AOI.
// The backend also reports the AOI area and the regional mean of
// data_availability so a run needs a single round trip.
func (s *Sampler) Sample(ctx context.Context, stack model.FeatureStack, aoi model.AOI, count int, scale float64, seed int64) (model.PlanResult, error) {
	if count <= 0 {
		return model.PlanResult{}, &model.ConfigurationError{Field: "sample_count", Reason: "must be positive"}
	}
	if scale <= 0 {
		return model.PlanResult{}, &model.ConfigurationError{Field: "scale", Reason: "must be positive"}
	}

	plan := model.Plan{
		Stack:       stack,
		Region:      aoi,
		Sample:      model.SampleSpec{Count: count, Scale: scale, Seed: seed},
		RegionMeans: []string{model.AvailabilityBand},
	}
	result, err := s.backend.Execute(ctx, plan)
	if err != nil {
		return model.PlanResult{}, fmt.Errorf("failed to execute sampling plan: %w", err)
	}
	if len(result.Rows) == 0 {
		return model.PlanResult{}, &model.EmptyResultError{Region: aoi.Label, Scale: scale}
	}
	if len(result.Rows) > count {
		result.Rows = result.Rows[:count]
	}

	s.logger.Info("sampled stack",
		zap.String("aoi", aoi.Label), zap.Int("rows", len(result.Rows)), zap.Int("requested", count))
	return result, nil
}
