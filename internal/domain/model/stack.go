package model

const AvailabilityBand = "data_availability"

// FeatureSource is the declarative description of one external dataset
// feeding a feature group.
type FeatureSource struct {
	ID         string             `json:"id"`
	Group      FeatureGroup       `json:"group"`
	Static     bool               `json:"static,omitempty"`
	Reducer    Reducer            `json:"reducer"`
	InputBands []string           `json:"input_bands"`
	Defaults   map[string]float64 `json:"defaults,omitempty"`
	Filters    []PropertyFilter   `json:"filters,omitempty"`
	Preprocess Preprocess         `json:"preprocess,omitempty"`
}

// Default returns the substitution value for an input band.
func (s FeatureSource) Default(band string) float64 {
	return s.Defaults[band]
}

// Query builds the filtered collection query of the source over a region.
func (s FeatureSource) Query(region AOI, window DateWindow) CollectionQuery {
	return CollectionQuery{
		Collection: s.ID,
		Static:     s.Static,
		Region:     region,
		Window:     window,
		Filters:    s.Filters,
		Preprocess: s.Preprocess,
	}
}

// FeatureStack is the fixed-schema multi-band image handed to sampling.
type FeatureStack struct {
	Bands      []Band  `json:"bands"`
	Confidence float64 `json:"data_availability"`
}

func (s FeatureStack) Names() []string {
	names := make([]string, 0, len(s.Bands))
	for _, b := range s.Bands {
		names = append(names, b.Name)
	}
	return names
}

func (s FeatureStack) Band(name string) (Band, bool) {
	for _, b := range s.Bands {
		if b.Name == name {
			return b, true
		}
	}
	return Band{}, false
}

// AvailabilityReport maps probed source ids to their presence.
type AvailabilityReport map[string]bool
