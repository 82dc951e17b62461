package core

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"geostack_service/internal/domain/model"
	"geostack_service/internal/infrastructure/compute"
)

func TestBuildNorthernMindanaoIndicesAndTerrain(t *testing.T) {
	cfg := fixtureConfig(model.GroupIndices, model.GroupTerrain)
	cfg.Window = model.DateWindow{Start: date(2022, 1, 1), End: date(2024, 12, 31)}

	stack, report := buildFixtureStack(t, newFixtureBackend(), cfg)

	want := append(append([]string(nil), baseBands...),
		"NDVI", "NDWI", "ClayIndex", "IronOxideIndex", "SilicaIndex",
		"elevation", "slope_norm", "aspect_norm",
		model.AvailabilityBand,
	)
	if diff := cmp.Diff(want, stack.Names()); diff != "" {
		t.Errorf("band names mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, 1.0, stack.Confidence)
	assert.Equal(t, model.AvailabilityReport{sentinel2SR: true, terrainSource.ID: true}, report)

	avail, ok := stack.Band(model.AvailabilityBand)
	require.True(t, ok)
	v, ok := avail.Expr.IsConstant()
	require.True(t, ok)
	assert.Equal(t, 1.0, v)
}

func TestBuildSchemaIndependentOfAvailability(t *testing.T) {
	cfg := fixtureConfig(model.GroupOrder...)

	sparse := compute.NewMemoryBackend()
	sparse.AddCollection(s2Collection())

	rich := newFixtureBackend()
	rich.AddCollection(compute.Collection{ID: emagSource.ID, Static: true, Scenes: []compute.Scene{{
		ID: "emag", Bands: map[string]compute.Raster{"total_mag": compute.ConstantRaster(-150)},
	}}})
	rich.AddCollection(compute.Collection{ID: smapSource.ID, Scenes: []compute.Scene{{
		ID: "smap", Date: date(2023, 7, 1), Bands: map[string]compute.Raster{"susm": compute.ConstantRaster(0.3)},
	}}})

	sparseStack, sparseReport := buildFixtureStack(t, sparse, cfg)
	richStack, richReport := buildFixtureStack(t, rich, cfg)

	if diff := cmp.Diff(sparseStack.Names(), richStack.Names()); diff != "" {
		t.Errorf("schema depends on availability (-sparse +rich):\n%s", diff)
	}
	assert.Greater(t, richStack.Confidence, sparseStack.Confidence)

	// primary plus six optional sources, only the primary present
	assert.InDelta(t, 1.0/7.0, sparseStack.Confidence, 1e-12)
	assert.InDelta(t, 4.0/7.0, richStack.Confidence, 1e-12)
	assert.Len(t, sparseReport, 7)
	assert.Len(t, richReport, 7)
	assert.True(t, richReport[emagSource.ID])
	assert.False(t, sparseReport[emagSource.ID])
}

func TestBuildNamesUnique(t *testing.T) {
	stack, _ := buildFixtureStack(t, newFixtureBackend(), fixtureConfig(model.GroupOrder...))

	seen := map[string]bool{}
	for _, name := range stack.Names() {
		assert.False(t, seen[name], "duplicate band %s", name)
		seen[name] = true
	}
	assert.Equal(t, model.AvailabilityBand, stack.Names()[len(stack.Names())-1])
	assert.GreaterOrEqual(t, stack.Confidence, 0.0)
	assert.LessOrEqual(t, stack.Confidence, 1.0)
}

func TestBuildOptionalSourceFailureDegrades(t *testing.T) {
	backend := newFixtureBackend()
	backend.FailOn(terrainSource.ID, errors.New("quota exceeded"))

	stack, report := buildFixtureStack(t, backend, fixtureConfig(model.GroupTerrain))

	assert.False(t, report[terrainSource.ID])
	assert.Equal(t, 0.5, stack.Confidence)
	for _, name := range []string{"elevation", "slope_norm", "aspect_norm"} {
		b, ok := stack.Band(name)
		require.True(t, ok, name)
		v, isConst := b.Expr.IsConstant()
		assert.True(t, isConst, name)
		assert.Equal(t, 0.0, v, name)
	}
}

func TestBuildStaticSourceOutsideAOI(t *testing.T) {
	backend := compute.NewMemoryBackend()
	backend.AddCollection(s2Collection())
	srtm := srtmCollection()
	srtm.Scenes[0].Footprint = orb.Bound{Min: orb.Point{0, 0}, Max: orb.Point{1, 1}}
	backend.AddCollection(srtm)

	stack, report := buildFixtureStack(t, backend, fixtureConfig(model.GroupTerrain))

	assert.False(t, report[terrainSource.ID], "no coverage over the AOI")
	assert.Equal(t, 0.5, stack.Confidence)
	elev, ok := stack.Band("elevation")
	require.True(t, ok)
	_, isConst := elev.Expr.IsConstant()
	assert.True(t, isConst)
}

func TestBuildRadarDefaults(t *testing.T) {
	stack, report := buildFixtureStack(t, newFixtureBackend(), fixtureConfig(model.GroupRadar))

	assert.False(t, report[radarSource.ID])
	b, ok := stack.Band("S1_VV_minus_VH")
	require.True(t, ok)
	assert.Equal(t, radarSource.ID, b.Source)
	q, ok := stack.Band("S1_quality")
	require.True(t, ok)
	v, _ := q.Expr.IsConstant()
	assert.Equal(t, 0.0, v, "absent radar yields zero quality")
}

func TestBuildErrors(t *testing.T) {
	t.Run("empty primary window", func(t *testing.T) {
		cfg := fixtureConfig()
		cfg.Window = model.DateWindow{Start: date(2019, 1, 1), End: date(2020, 1, 1)}
		_, _, err := newTestAssembler(newFixtureBackend()).Build(context.Background(), cfg, fixtureAOI())

		var unavailable *model.SourceUnavailableError
		require.ErrorAs(t, err, &unavailable)
		assert.Equal(t, sentinel2SR, unavailable.SourceID)
		assert.ErrorIs(t, err, model.ErrSourceUnavailable)
	})

	t.Run("unknown base band", func(t *testing.T) {
		cfg := fixtureConfig()
		cfg.Bands = append(cfg.Bands, "B99")
		_, _, err := newTestAssembler(newFixtureBackend()).Build(context.Background(), cfg, fixtureAOI())
		assert.ErrorIs(t, err, model.ErrConfiguration)
	})

	t.Run("base band collides with derived band", func(t *testing.T) {
		backend := newFixtureBackend()
		backend.AddCollection(s2Collection("NDVI"))
		cfg := fixtureConfig(model.GroupIndices)
		cfg.Bands = append(cfg.Bands, "NDVI")
		_, _, err := newTestAssembler(backend).Build(context.Background(), cfg, fixtureAOI())

		var cfgErr *model.ConfigurationError
		require.ErrorAs(t, err, &cfgErr)
		assert.Contains(t, cfgErr.Reason, "NDVI")
	})

	t.Run("primary backend failure", func(t *testing.T) {
		backend := newFixtureBackend()
		boom := errors.New("backend down")
		backend.FailOn(sentinel2SR, boom)
		_, _, err := newTestAssembler(backend).Build(context.Background(), fixtureConfig(), fixtureAOI())
		assert.ErrorIs(t, err, boom)
	})

	t.Run("canceled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, _, err := newTestAssembler(newFixtureBackend()).Build(ctx, fixtureConfig(model.GroupOrder...), fixtureAOI())
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestGroupBands(t *testing.T) {
	cfg := fixtureConfig()
	cfg.Bands = []string{"B4", "B8"}

	assert.Equal(t, []string{"B4_stdDev", "B8_stdDev"}, GroupBands(cfg, model.GroupTemporal))
	assert.Equal(t, []string{"EMAG2_norm"}, GroupBands(cfg, model.GroupMagnetic))
	assert.Nil(t, GroupBands(cfg, model.FeatureGroup("lidar")))
	assert.Equal(t, sentinel2SR, GroupSource(cfg, model.GroupIndices).ID)
	assert.Equal(t, model.PreprocessS2CloudMask, PrimarySource(cfg).Preprocess)
}
