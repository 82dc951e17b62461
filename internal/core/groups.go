package core

import (
	"fmt"

	"geostack_service/internal/domain/model"
)

const (
	sentinel2SR           = "COPERNICUS/S2_SR"
	sentinel2SRHarmonized = "COPERNICUS/S2_SR_HARMONIZED"
)

var (
	terrainSource = model.FeatureSource{
		ID:         "USGS/SRTMGL1_003",
		Group:      model.GroupTerrain,
		Static:     true,
		Reducer:    model.ReducerMean,
		InputBands: []string{"elevation"},
	}
	radarSource = model.FeatureSource{
		ID:         "COPERNICUS/S1_GRD",
		Group:      model.GroupRadar,
		Reducer:    model.ReducerMedian,
		InputBands: []string{"VV", "VH"},
		Defaults:   map[string]float64{"VV": -20, "VH": -25},
		Filters: []model.PropertyFilter{
			{Property: "instrumentMode", Op: model.FilterEq, Value: "IW"},
			{Property: "transmitterReceiverPolarisation", Op: model.FilterListContains, Value: "VV"},
			{Property: "transmitterReceiverPolarisation", Op: model.FilterListContains, Value: "VH"},
		},
	}
	emitSource = model.FeatureSource{
		ID:      "NASA/EMIT/SurfaceMineralogy",
		Group:   model.GroupHyperspectral,
		Reducer: model.ReducerMean,
	}
	emagSource = model.FeatureSource{
		ID:         "NOAA/NGDC/EMAG2_2",
		Group:      model.GroupMagnetic,
		Static:     true,
		Reducer:    model.ReducerMean,
		InputBands: []string{"total_mag"},
	}
	graceSource = model.FeatureSource{
		ID:         "NASA/GRACE/MASS_GRIDS",
		Group:      model.GroupGravity,
		Reducer:    model.ReducerMean,
		InputBands: []string{"lwe_thickness_csr"},
	}
	smapSource = model.FeatureSource{
		ID:         "NASA_USDA/HSL/SMAP_soil_moisture",
		Group:      model.GroupSoilMoisture,
		Reducer:    model.ReducerMean,
		InputBands: []string{"susm"},
	}
)

// PrimarySource describes the configured base collection.
func PrimarySource(cfg model.SamplingConfig) model.FeatureSource {
	src := model.FeatureSource{
		ID:         cfg.SourceID,
		Reducer:    model.ReducerMedian,
		InputBands: cfg.Bands,
	}
	if cfg.SourceID == sentinel2SR || cfg.SourceID == sentinel2SRHarmonized {
		src.Preprocess = model.PreprocessS2CloudMask
	}
	return src
}

type groupInput struct {
	cfg       model.SamplingConfig
	image     model.Image
	composite model.Composite
	primary   model.CollectionQuery
}

// featureGroup declares one optional bundle of bands. A nil source means
// the group is derived from the primary collection and shares its flag.
type featureGroup struct {
	name    model.FeatureGroup
	source  *model.FeatureSource
	outputs func(cfg model.SamplingConfig) []string
	compute func(in groupInput) []Result
}

func fixed(names ...string) func(model.SamplingConfig) []string {
	return func(model.SamplingConfig) []string { return names }
}

var featureGroups = map[model.FeatureGroup]featureGroup{
	model.GroupIndices: {
		name:    model.GroupIndices,
		outputs: fixed("NDVI", "NDWI", "ClayIndex", "IronOxideIndex", "SilicaIndex"),
		compute: spectralIndices,
	},
	model.GroupTemporal: {
		name:    model.GroupTemporal,
		outputs: temporalOutputs,
		compute: temporalStats,
	},
	model.GroupTerrain: {
		name:    model.GroupTerrain,
		source:  &terrainSource,
		outputs: fixed("elevation", "slope_norm", "aspect_norm"),
		compute: terrainFeatures,
	},
	model.GroupRadar: {
		name:    model.GroupRadar,
		source:  &radarSource,
		outputs: fixed("S1_VV_minus_VH", "S1_quality"),
		compute: radarFeatures,
	},
	model.GroupHyperspectral: {
		name:    model.GroupHyperspectral,
		source:  &emitSource,
		outputs: fixed("EMIT_mean"),
		compute: emitFeatures,
	},
	model.GroupMagnetic: {
		name:    model.GroupMagnetic,
		source:  &emagSource,
		outputs: fixed("EMAG2_norm"),
		compute: scaledAbs("total_mag", 200, "EMAG2_norm"),
	},
	model.GroupGravity: {
		name:    model.GroupGravity,
		source:  &graceSource,
		outputs: fixed("GRACE_water"),
		compute: scaledAbs("lwe_thickness_csr", 50, "GRACE_water"),
	},
	model.GroupSoilMoisture: {
		name:    model.GroupSoilMoisture,
		source:  &smapSource,
		outputs: fixed("SMAP_moisture"),
		compute: soilMoisture,
	},
}

// GroupBands returns the band names a group contributes under cfg.
func GroupBands(cfg model.SamplingConfig, g model.FeatureGroup) []string {
	def, ok := featureGroups[g]
	if !ok {
		return nil
	}
	return def.outputs(cfg)
}

// GroupSource returns the dataset feeding a group; derived groups report
// the primary source.
func GroupSource(cfg model.SamplingConfig, g model.FeatureGroup) model.FeatureSource {
	if def, ok := featureGroups[g]; ok && def.source != nil {
		return *def.source
	}
	return PrimarySource(cfg)
}

func defaultResults(names []string, source, reason string) []Result {
	results := make([]Result, 0, len(names))
	for _, name := range names {
		results = append(results, Defaulted(constantBand(name, source, 0), reason))
	}
	return results
}

// derive applies fn to the input band, keeping the Defaulted tag of the input.
func derive(in Result, name string, fn func(*model.Expr) *model.Expr) Result {
	band := model.Band{Name: name, Source: in.Band.Source, Expr: fn(in.Band.Expr)}
	if in.Defaulted {
		return Defaulted(band, in.Reason)
	}
	return Computed(band)
}

func spectralIndices(in groupInput) []Result {
	return []Result{
		SafeNormalizedDifference(in.image, [2]string{"B8", "B4"}, "NDVI"),
		SafeNormalizedDifference(in.image, [2]string{"B3", "B8"}, "NDWI"),
		SafeRatio(in.image, "B11", "B12", "ClayIndex"),
		SafeRatio(in.image, "B4", "B2", "IronOxideIndex"),
		SafeRatio(in.image, "B8", "B11", "SilicaIndex"),
	}
}

func terrainFeatures(in groupInput) []Result {
	elev := SafeBand(in.image, "elevation", 0)
	if elev.Defaulted {
		return defaultResults([]string{"elevation", "slope_norm", "aspect_norm"}, in.image.Source, elev.Reason)
	}
	return []Result{
		elev,
		derive(elev, "slope_norm", func(e *model.Expr) *model.Expr { return e.Slope().Divide(model.Constant(90)) }),
		derive(elev, "aspect_norm", func(e *model.Expr) *model.Expr { return e.Aspect().Divide(model.Constant(360)) }),
	}
}

func radarFeatures(in groupInput) []Result {
	vv := SafeBand(in.image, "VV", radarSource.Default("VV"))
	vh := SafeBand(in.image, "VH", radarSource.Default("VH"))
	ratio := model.Band{
		Name:   "S1_VV_minus_VH",
		Source: in.image.Source,
		Expr: vv.Band.Expr.Subtract(vh.Band.Expr).
			Divide(model.Constant(30)).
			Add(model.Constant(0.5)).
			Clamp(0, 1),
	}
	quality := constantBand("S1_quality", in.image.Source, 1)

	var ratioResult Result
	switch {
	case vv.Defaulted:
		ratioResult = Defaulted(ratio, vv.Reason)
	case vh.Defaulted:
		ratioResult = Defaulted(ratio, vh.Reason)
	default:
		ratioResult = Computed(ratio)
	}
	return []Result{ratioResult, Computed(quality)}
}

func emitFeatures(in groupInput) []Result {
	if len(in.image.Bands) == 0 {
		return defaultResults([]string{"EMIT_mean"}, in.image.Source, "composite has no bands")
	}
	band := model.Band{
		Name:   "EMIT_mean",
		Source: in.image.Source,
		Expr:   model.BandMean(in.composite).MaxZero(),
	}
	return []Result{Computed(band)}
}

func scaledAbs(input string, divisor float64, output string) func(groupInput) []Result {
	return func(in groupInput) []Result {
		r := SafeBand(in.image, input, 0)
		return []Result{derive(r, output, func(e *model.Expr) *model.Expr {
			return e.Abs().Divide(model.Constant(divisor))
		})}
	}
}

func soilMoisture(in groupInput) []Result {
	r := SafeBand(in.image, "susm", 0)
	return []Result{derive(r, "SMAP_moisture", func(e *model.Expr) *model.Expr {
		return e.Divide(model.Constant(0.6)).Clamp(0, 1)
	})}
}

func unavailableReason(sourceID string) string {
	return fmt.Sprintf("source %s unavailable for the requested region and window", sourceID)
}
