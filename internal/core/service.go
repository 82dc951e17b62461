package core

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"geostack_service/internal/domain/model"
)

// SamplingService runs the full pipeline: AOI resolution, stack
// assembly, sampling and export.
type SamplingService struct {
	resolver  *AOIResolver
	assembler *StackAssembler
	sampler   *Sampler
	writer    model.ExportWriter
	logger    *zap.Logger
	now       func() time.Time
}

// NewSamplingService wires the pipeline around one backend handle. A nil
// boundary source falls back to GAUL on the backend; a nil writer skips
// export.
func NewSamplingService(
	backend model.ComputeBackend,
	files model.BoundaryFileReader,
	boundaries model.BoundarySource,
	writer model.ExportWriter,
	logger *zap.Logger,
) *SamplingService {
	if boundaries == nil {
		boundaries = NewGAULBoundaries(backend)
	}
	probe := NewAvailabilityProbe(backend, logger)
	return &SamplingService{
		resolver:  NewAOIResolver(files, boundaries, logger),
		assembler: NewStackAssembler(backend, probe, logger),
		sampler:   NewSampler(backend, logger),
		writer:    writer,
		logger:    logger,
		now:       time.Now,
	}
}

type RunResult struct {
	Metadata model.RunMetadata
	Rows     []model.SampleRow
}

func (s *SamplingService) Run(ctx context.Context, cfg model.SamplingConfig) (*RunResult, error) {
	aoi, err := s.resolver.Resolve(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve AOI: %w", err)
	}

	stack, report, err := s.assembler.Build(ctx, cfg, aoi)
	if err != nil {
		return nil, fmt.Errorf("failed to build feature stack: %w", err)
	}

	result, err := s.sampler.Sample(ctx, stack, aoi, cfg.SampleCount, cfg.Scale, cfg.Seed)
	if err != nil {
		return nil, fmt.Errorf("failed to sample stack: %w", err)
	}

	meta := model.RunMetadata{
		RunID:         uuid.NewString(),
		Config:        cfg,
		Bands:         stack.Names(),
		RecordCount:   len(result.Rows),
		AOILabel:      aoi.Label,
		AOIAreaSqKm:   result.AreaSqKm,
		AssetsPresent: report,
		CreatedAt:     s.now().UTC(),
	}
	if meta.AOIAreaSqKm == 0 {
		meta.AOIAreaSqKm = aoi.AreaSqKm()
	}
	if mean, ok := result.RegionMeans[model.AvailabilityBand]; ok {
		meta.DataAvailabilityMean = &mean
	}

	if s.writer != nil {
		if err := s.writer.Write(ctx, result.Rows, meta); err != nil {
			return nil, fmt.Errorf("failed to export samples: %w", err)
		}
	}

	s.logger.Info("sampling run complete",
		zap.String("run_id", meta.RunID), zap.Int("records", meta.RecordCount), zap.Float64("aoi_area_sq_km", meta.AOIAreaSqKm))
	return &RunResult{Metadata: meta, Rows: result.Rows}, nil
}
