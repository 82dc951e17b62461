package core

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/stat"

	"geostack_service/internal/domain/model"
)

const availabilitySource = "availability"

// StackAssembler fuses the primary collection and the enabled feature
// groups into one fixed-schema stack.
type StackAssembler struct {
	backend model.ComputeBackend
	probe   *AvailabilityProbe
	logger  *zap.Logger
}

func NewStackAssembler(backend model.ComputeBackend, probe *AvailabilityProbe, logger *zap.Logger) *StackAssembler {
	return &StackAssembler{backend: backend, probe: probe, logger: logger}
}

type groupOutput struct {
	group   model.FeatureGroup
	source  string
	flagged bool
	present bool
	results []Result
}

// Build assembles the stack. Only an empty primary collection is fatal;
// optional groups fall back to their defaults and show up in the report.
func (a *StackAssembler) Build(ctx context.Context, cfg model.SamplingConfig, aoi model.AOI) (model.FeatureStack, model.AvailabilityReport, error) {
	primary := PrimarySource(cfg)
	pq := primary.Query(aoi, cfg.Window)

	info, err := a.backend.Describe(ctx, pq)
	if err != nil {
		return model.FeatureStack{}, nil, fmt.Errorf("failed to query primary source %s: %w", primary.ID, err)
	}
	if info.Count == 0 {
		return model.FeatureStack{}, nil, &model.SourceUnavailableError{SourceID: primary.ID, Window: cfg.Window}
	}
	a.logger.Info("primary collection resolved",
		zap.String("source", primary.ID), zap.Int("images", info.Count), zap.Strings("bands", info.Bands))

	composite := model.Composite{Query: pq, Reducer: primary.Reducer}
	base := model.CompositeImage(composite, primary.ID, info.Bands)

	bands := make([]model.Band, 0, len(cfg.Bands))
	for _, name := range cfg.Bands {
		b, ok := base.Band(name)
		if !ok {
			return model.FeatureStack{}, nil, &model.ConfigurationError{
				Field:  "bands",
				Reason: fmt.Sprintf("band %s is not provided by %s", name, primary.ID),
			}
		}
		bands = append(bands, b)
	}

	groups := cfg.EnabledGroups()
	outputs := make([]groupOutput, len(groups))
	g, gctx := errgroup.WithContext(ctx)
	for i, name := range groups {
		i := i
		def := featureGroups[name]
		g.Go(func() error {
			outputs[i] = a.buildGroup(gctx, def, cfg, aoi, base, composite)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return model.FeatureStack{}, nil, err
	}
	if err := ctx.Err(); err != nil {
		return model.FeatureStack{}, nil, fmt.Errorf("stack assembly interrupted: %w", err)
	}

	report := model.AvailabilityReport{primary.ID: true}
	flags := []float64{1}
	for _, out := range outputs {
		if out.flagged {
			if _, seen := report[out.source]; !seen {
				report[out.source] = out.present
				flags = append(flags, boolToFloat(out.present))
			}
		}
		for _, r := range out.results {
			if r.Defaulted {
				a.logger.Debug("band defaulted",
					zap.String("group", string(out.group)), zap.String("band", r.Band.Name), zap.String("reason", r.Reason))
			}
			bands = append(bands, r.Band)
		}
	}

	confidence := stat.Mean(flags, nil)
	bands = append(bands, constantBand(model.AvailabilityBand, availabilitySource, confidence))

	if dup := firstDuplicate(bands); dup != "" {
		return model.FeatureStack{}, nil, &model.ConfigurationError{
			Field:  "bands",
			Reason: fmt.Sprintf("band name %s is produced twice", dup),
		}
	}

	a.logger.Info("feature stack assembled",
		zap.Int("bands", len(bands)), zap.Float64("data_availability", confidence))
	return model.FeatureStack{Bands: bands, Confidence: confidence}, report, nil
}

func (a *StackAssembler) buildGroup(
	ctx context.Context,
	def featureGroup,
	cfg model.SamplingConfig,
	aoi model.AOI,
	base model.Image,
	primary model.Composite,
) groupOutput {
	out := groupOutput{group: def.name}
	if def.source == nil {
		out.results = def.compute(groupInput{cfg: cfg, image: base, composite: primary, primary: primary.Query})
		return out
	}

	src := *def.source
	query := src.Query(aoi, cfg.Window)
	info, present := a.probe.Available(ctx, src, query)
	out.source, out.flagged, out.present = src.ID, true, present
	if !present {
		a.logger.Warn("optional source unavailable, substituting defaults",
			zap.String("group", string(def.name)), zap.String("source", src.ID))
		out.results = defaultResults(def.outputs(cfg), src.ID, unavailableReason(src.ID))
		return out
	}

	composite := model.Composite{Query: query, Reducer: src.Reducer}
	out.results = def.compute(groupInput{
		cfg:       cfg,
		image:     model.CompositeImage(composite, src.ID, info.Bands),
		composite: composite,
		primary:   primary.Query,
	})
	return out
}

func boolToFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

func firstDuplicate(bands []model.Band) string {
	seen := make(map[string]struct{}, len(bands))
	for _, b := range bands {
		if _, ok := seen[b.Name]; ok {
			return b.Name
		}
		seen[b.Name] = struct{}{}
	}
	return ""
}
