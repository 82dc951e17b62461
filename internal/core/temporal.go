package core

import (
	"geostack_service/internal/domain/model"
)

const stdDevSuffix = "_stdDev"

func temporalOutputs(cfg model.SamplingConfig) []string {
	names := make([]string, 0, len(cfg.Bands))
	for _, b := range cfg.Bands {
		names = append(names, b+stdDevSuffix)
	}
	return names
}

// temporalStats computes the per-pixel standard deviation through time of
// every configured base band over the primary collection.
func temporalStats(in groupInput) []Result {
	std := model.CompositeImage(
		model.Composite{Query: in.primary, Reducer: model.ReducerStdDev},
		in.image.Source,
		in.image.Names(),
	)

	results := make([]Result, 0, len(in.cfg.Bands))
	for _, b := range in.cfg.Bands {
		r := SafeBand(std, b, 0)
		results = append(results, derive(r, b+stdDevSuffix, func(e *model.Expr) *model.Expr { return e }))
	}
	return results
}
