package core

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"go.uber.org/goleak"
	"go.uber.org/zap"

	"geostack_service/internal/domain/model"
	"geostack_service/internal/infrastructure/compute"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var baseBands = []string{"B2", "B3", "B4", "B5", "B6", "B7", "B8", "B11", "B12"}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func square(minLon, minLat, size float64) orb.Polygon {
	return orb.Polygon{orb.Ring{
		{minLon, minLat},
		{minLon + size, minLat},
		{minLon + size, minLat + size},
		{minLon, minLat + size},
		{minLon, minLat},
	}}
}

// s2Collection holds three cloud-free scenes, one per year, with every
// base band plus any extra band names.
func s2Collection(extra ...string) compute.Collection {
	names := append(append([]string(nil), baseBands...), extra...)
	var scenes []compute.Scene
	for i, d := range []time.Time{date(2022, 3, 1), date(2023, 3, 1), date(2024, 3, 1)} {
		bands := map[string]compute.Raster{"QA60": compute.ConstantRaster(0)}
		for j, name := range names {
			bands[name] = compute.ConstantRaster(float64(1000 + 100*j + 10*i))
		}
		scenes = append(scenes, compute.Scene{ID: fmt.Sprintf("s2-%d", i), Date: d, Bands: bands})
	}
	return compute.Collection{ID: sentinel2SR, Scenes: scenes}
}

func srtmCollection() compute.Collection {
	elevation := compute.RasterFunc(func(p orb.Point) (float64, bool) {
		return (p.Lon() - 124) * 100000, true
	})
	return compute.Collection{
		ID:     terrainSource.ID,
		Static: true,
		Scenes: []compute.Scene{{ID: "srtm", Bands: map[string]compute.Raster{"elevation": elevation}}},
	}
}

func gaulLevel1() *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	f := geojson.NewFeature(square(124.0, 8.0, 0.01))
	f.Properties["ADM0_NAME"] = "Philippines"
	f.Properties["ADM1_NAME"] = "Northern Mindanao"
	fc.Append(f)
	return fc
}

// newFixtureBackend serves the primary collection, terrain and the GAUL
// level 1 boundary. Every other optional source is absent.
func newFixtureBackend() *compute.MemoryBackend {
	b := compute.NewMemoryBackend()
	b.AddCollection(s2Collection())
	b.AddCollection(srtmCollection())
	b.AddVector("FAO/GAUL/2015/level1", gaulLevel1())
	return b
}

func fixtureConfig(groups ...model.FeatureGroup) model.SamplingConfig {
	enabled := make(map[model.FeatureGroup]bool, len(groups))
	for _, g := range groups {
		enabled[g] = true
	}
	return model.SamplingConfig{
		SourceID:    sentinel2SR,
		Window:      model.DateWindow{Start: date(2022, 1, 1), End: date(2024, 12, 31)},
		Bands:       append([]string(nil), baseBands...),
		Scale:       30,
		SampleCount: 5000,
		Seed:        42,
		Groups:      enabled,
		AOI:         model.AOIDescriptor{Level: 1, Name: "Northern Mindanao", Country: "Philippines"},
	}
}

func fixtureAOI() model.AOI {
	return model.AOI{
		Label:      "Northern Mindanao, Philippines",
		Provenance: model.ProvenanceAdminLookup,
		Features:   gaulLevel1(),
	}
}

func newTestAssembler(backend model.ComputeBackend) *StackAssembler {
	logger := zap.NewNop()
	return NewStackAssembler(backend, NewAvailabilityProbe(backend, logger), logger)
}

func buildFixtureStack(t *testing.T, backend model.ComputeBackend, cfg model.SamplingConfig) (model.FeatureStack, model.AvailabilityReport) {
	t.Helper()
	stack, report, err := newTestAssembler(backend).Build(context.Background(), cfg, fixtureAOI())
	if err != nil {
		t.Fatalf("build stack: %v", err)
	}
	return stack, report
}

// evalConst folds an expression made only of constants.
func evalConst(t *testing.T, e *model.Expr) float64 {
	t.Helper()
	switch e.Op {
	case model.OpConstant:
		return e.Value
	case model.OpAdd:
		return evalConst(t, e.Args[0]) + evalConst(t, e.Args[1])
	case model.OpSubtract:
		return evalConst(t, e.Args[0]) - evalConst(t, e.Args[1])
	case model.OpMultiply:
		return evalConst(t, e.Args[0]) * evalConst(t, e.Args[1])
	case model.OpDivide:
		d := evalConst(t, e.Args[1])
		if d == 0 {
			return 0
		}
		return evalConst(t, e.Args[0]) / d
	}
	t.Fatalf("evalConst: unsupported op %s", e.Op)
	return 0
}

func constImage(source string, values map[string]float64) model.Image {
	img := model.Image{Source: source}
	for _, name := range []string{"B2", "B3", "B4", "B8", "B11", "B12"} {
		if v, ok := values[name]; ok {
			img.Bands = append(img.Bands, model.Band{Name: name, Source: source, Expr: model.Constant(v)})
		}
	}
	return img
}
