package repository

import (
	"io/fs"
	"os"
	"path/filepath"
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGeoJSONFileReader(t *testing.T) {
	polygon := `{"type":"Polygon","coordinates":[[[124,8],[125,8],[125,9],[124,9],[124,8]]]}`
	tests := []struct {
		name    string
		content string
		want    int
	}{
		{"feature collection", `{"type":"FeatureCollection","features":[{"type":"Feature","properties":{},"geometry":` + polygon + `},{"type":"Feature","properties":{},"geometry":` + polygon + `}]}`, 2},
		{"feature", `{"type":"Feature","properties":{"name":"aoi"},"geometry":` + polygon + `}`, 1},
		{"bare geometry", polygon, 1},
	}
	dir := t.TempDir()
	reader := NewGeoJSONFileReader()

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(dir, tt.name+".geojson")
			require.NoError(t, os.WriteFile(path, []byte(tt.content), 0o644))

			fc, err := reader.ReadBoundary(path)
			require.NoError(t, err)
			require.Len(t, fc.Features, tt.want)
			_, ok := fc.Features[0].Geometry.(orb.Polygon)
			assert.True(t, ok)
		})
	}
}

func TestGeoJSONFileReaderErrors(t *testing.T) {
	reader := NewGeoJSONFileReader()
	dir := t.TempDir()

	_, err := reader.ReadBoundary(filepath.Join(dir, "missing.geojson"))
	assert.ErrorIs(t, err, fs.ErrNotExist)

	for name, content := range map[string]string{
		"garbage": "not json",
		"untyped": `{"coordinates":[1,2]}`,
		"broken":  `{"type":"Polygon","coordinates":"nope"}`,
	} {
		path := filepath.Join(dir, name+".geojson")
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
		_, err := reader.ReadBoundary(path)
		assert.Error(t, err, name)
	}
}
