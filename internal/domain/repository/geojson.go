package repository

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/paulmach/orb/geojson"
)

// GeoJSONFileReader reads local AOI boundary files. A file may hold a
// FeatureCollection, a single Feature or a bare geometry.
type GeoJSONFileReader struct{}

func NewGeoJSONFileReader() *GeoJSONFileReader {
	return &GeoJSONFileReader{}
}

func (GeoJSONFileReader) ReadBoundary(path string) (*geojson.FeatureCollection, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read boundary file: %w", err)
	}
	return parseBoundary(data)
}

func parseBoundary(data []byte) (*geojson.FeatureCollection, error) {
	var head struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return nil, fmt.Errorf("invalid GeoJSON: %w", err)
	}

	switch head.Type {
	case "FeatureCollection":
		fc, err := geojson.UnmarshalFeatureCollection(data)
		if err != nil {
			return nil, fmt.Errorf("invalid feature collection: %w", err)
		}
		return fc, nil
	case "Feature":
		f, err := geojson.UnmarshalFeature(data)
		if err != nil {
			return nil, fmt.Errorf("invalid feature: %w", err)
		}
		return geojson.NewFeatureCollection().Append(f), nil
	case "":
		return nil, fmt.Errorf("invalid GeoJSON: missing type")
	default:
		g, err := geojson.UnmarshalGeometry(data)
		if err != nil {
			return nil, fmt.Errorf("invalid geometry: %w", err)
		}
		return geojson.NewFeatureCollection().Append(geojson.NewFeature(g.Geometry())), nil
	}
}
