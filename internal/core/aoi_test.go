package core

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"testing"

	"github.com/paulmach/orb/geojson"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"geostack_service/internal/domain/model"
)

type stubFiles map[string]*geojson.FeatureCollection

func (s stubFiles) ReadBoundary(path string) (*geojson.FeatureCollection, error) {
	fc, ok := s[path]
	if !ok {
		return nil, fmt.Errorf("failed to read boundary file: %w", fs.ErrNotExist)
	}
	return fc, nil
}

type recordingBoundaries struct {
	queries []model.BoundaryQuery
	result  *geojson.FeatureCollection
	err     error
}

func (r *recordingBoundaries) Boundaries(_ context.Context, q model.BoundaryQuery) (*geojson.FeatureCollection, error) {
	r.queries = append(r.queries, q)
	return r.result, r.err
}

func TestAOIResolverPrecedence(t *testing.T) {
	files := stubFiles{"region.geojson": gaulLevel1()}
	boundaries := &recordingBoundaries{result: gaulLevel1()}
	resolver := NewAOIResolver(files, boundaries, zap.NewNop())
	ctx := context.Background()

	aoi, err := resolver.Resolve(ctx, model.SamplingConfig{AOI: model.AOIDescriptor{
		GeoJSONPath: "region.geojson", Asset: "users/me/aoi", Name: "Northern Mindanao",
	}})
	require.NoError(t, err)
	assert.Equal(t, model.ProvenanceLocalFile, aoi.Provenance)
	assert.True(t, aoi.HasGeometry())

	aoi, err = resolver.Resolve(ctx, model.SamplingConfig{AOI: model.AOIDescriptor{
		Asset: "users/me/aoi", Name: "Northern Mindanao",
	}})
	require.NoError(t, err)
	assert.Equal(t, model.ProvenanceRemoteAsset, aoi.Provenance)
	assert.Equal(t, "users/me/aoi", aoi.Asset)

	assert.Empty(t, boundaries.queries, "administrative lookup must not run when a higher source is set")
}

func TestAOIResolverAdminLookup(t *testing.T) {
	boundaries := &recordingBoundaries{result: gaulLevel1()}
	resolver := NewAOIResolver(stubFiles{}, boundaries, zap.NewNop())

	aoi, err := resolver.Resolve(context.Background(), fixtureConfig())
	require.NoError(t, err)
	assert.Equal(t, "Northern Mindanao, Philippines", aoi.Label)
	assert.Equal(t, model.ProvenanceAdminLookup, aoi.Provenance)
	assert.Greater(t, aoi.AreaSqKm(), 1.0)
	require.Len(t, boundaries.queries, 1)
	assert.Equal(t, model.BoundaryQuery{Level: 1, Name: "Northern Mindanao", Country: "Philippines"}, boundaries.queries[0])
}

func TestAOIResolverCountryIgnoredAtLevelZero(t *testing.T) {
	boundaries := &recordingBoundaries{result: gaulLevel1()}
	resolver := NewAOIResolver(stubFiles{}, boundaries, zap.NewNop())

	aoi, err := resolver.Resolve(context.Background(), model.SamplingConfig{AOI: model.AOIDescriptor{
		Level: 0, Name: "Philippines", Country: "Ignored",
	}})
	require.NoError(t, err)
	assert.Equal(t, "Philippines", aoi.Label)
	assert.Equal(t, "", boundaries.queries[0].Country)
}

func TestAOIResolverErrors(t *testing.T) {
	tests := []struct {
		name       string
		descriptor model.AOIDescriptor
		boundaries *recordingBoundaries
		sentinel   error
	}{
		{
			name:       "nothing set",
			descriptor: model.AOIDescriptor{Level: 1},
			boundaries: &recordingBoundaries{},
			sentinel:   model.ErrConfiguration,
		},
		{
			name:       "missing file",
			descriptor: model.AOIDescriptor{GeoJSONPath: "nope.geojson"},
			boundaries: &recordingBoundaries{},
			sentinel:   fs.ErrNotExist,
		},
		{
			name:       "no admin match",
			descriptor: model.AOIDescriptor{Level: 1, Name: "Atlantis", Country: "Philippines"},
			boundaries: &recordingBoundaries{result: geojson.NewFeatureCollection()},
			sentinel:   model.ErrNotFound,
		},
		{
			name:       "lookup failure",
			descriptor: model.AOIDescriptor{Level: 1, Name: "Caraga"},
			boundaries: &recordingBoundaries{err: errors.New("timeout")},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resolver := NewAOIResolver(stubFiles{}, tt.boundaries, zap.NewNop())
			_, err := resolver.Resolve(context.Background(), model.SamplingConfig{AOI: tt.descriptor})
			require.Error(t, err)
			if tt.sentinel != nil {
				assert.ErrorIs(t, err, tt.sentinel)
			}
		})
	}
}

func TestAOIResolverMissingFileIsConfigurationError(t *testing.T) {
	resolver := NewAOIResolver(stubFiles{}, &recordingBoundaries{}, zap.NewNop())
	_, err := resolver.Resolve(context.Background(), model.SamplingConfig{AOI: model.AOIDescriptor{GeoJSONPath: "nope.geojson"}})

	var cfgErr *model.ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "aoi.geojson", cfgErr.Field)
}

func TestAOIResolverNotFoundCarriesQuery(t *testing.T) {
	resolver := NewAOIResolver(stubFiles{}, &recordingBoundaries{result: geojson.NewFeatureCollection()}, zap.NewNop())
	_, err := resolver.Resolve(context.Background(), model.SamplingConfig{AOI: model.AOIDescriptor{
		Level: 2, Name: "Atlantis", Country: "Philippines",
	}})

	var nf *model.NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, 2, nf.Level)
	assert.Equal(t, "Atlantis", nf.Name)
	assert.Equal(t, "Philippines", nf.Country)
}

func TestGAULBoundaries(t *testing.T) {
	g := NewGAULBoundaries(newFixtureBackend())
	ctx := context.Background()

	fc, err := g.Boundaries(ctx, model.BoundaryQuery{Level: 1, Name: "Northern Mindanao", Country: "Philippines"})
	require.NoError(t, err)
	assert.Len(t, fc.Features, 1)

	fc, err = g.Boundaries(ctx, model.BoundaryQuery{Level: 1, Name: "Northern Mindanao", Country: "Indonesia"})
	require.NoError(t, err)
	assert.Empty(t, fc.Features)

	_, err = g.Boundaries(ctx, model.BoundaryQuery{Level: 2, Name: "Bukidnon"})
	assert.Error(t, err, "level 2 dataset is not registered")
}
