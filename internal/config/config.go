package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"geostack_service/internal/domain/model"
)

// File is the user-facing run description, read from YAML or a JSON
// request body. Dates stay as strings until Build.
type File struct {
	Source      string              `json:"source" yaml:"source"`
	StartDate   string              `json:"start_date" yaml:"start_date"`
	EndDate     string              `json:"end_date" yaml:"end_date"`
	Bands       []string            `json:"bands" yaml:"bands"`
	Scale       float64             `json:"scale" yaml:"scale"`
	SampleCount int                 `json:"sample_count" yaml:"sample_count"`
	Seed        int64               `json:"random_seed" yaml:"random_seed"`
	Groups      map[string]bool     `json:"groups" yaml:"groups"`
	AOI         model.AOIDescriptor `json:"aoi" yaml:"aoi"`
	Output      Output              `json:"output" yaml:"output"`
}

type Output struct {
	CSV      string `json:"csv" yaml:"csv"`
	Metadata string `json:"metadata" yaml:"metadata"`
}

// Default returns the stock Northern Mindanao run.
func Default() File {
	groups := make(map[string]bool, len(model.GroupOrder))
	for _, g := range model.GroupOrder {
		groups[string(g)] = true
	}
	return File{
		Source:      "COPERNICUS/S2_SR",
		StartDate:   "2021-01-01",
		EndDate:     "2024-12-31",
		Bands:       []string{"B2", "B3", "B4", "B5", "B6", "B7", "B8", "B11", "B12"},
		Scale:       30,
		SampleCount: 5000,
		Seed:        42,
		Groups:      groups,
		AOI: model.AOIDescriptor{
			Level:   1,
			Name:    "Northern Mindanao",
			Country: "Philippines",
		},
		Output: Output{CSV: "training_samples.csv"},
	}
}

// Load reads a YAML file over the defaults. Keys absent from the file
// keep their default value.
func Load(path string) (File, error) {
	f := Default()
	if path == "" {
		return f, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return File{}, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, &f); err != nil {
		return File{}, &model.ConfigurationError{Field: "config", Reason: "invalid YAML in " + path, Err: err}
	}
	return f, nil
}

var validate = validator.New()

// Build validates the file and produces an immutable SamplingConfig.
// Slices and maps are copied so later edits to f do not leak into it.
func (f File) Build() (model.SamplingConfig, error) {
	start, err := parseDate("start_date", f.StartDate)
	if err != nil {
		return model.SamplingConfig{}, err
	}
	end, err := parseDate("end_date", f.EndDate)
	if err != nil {
		return model.SamplingConfig{}, err
	}

	groups := make(map[model.FeatureGroup]bool, len(model.GroupOrder))
	for name, on := range f.Groups {
		g := model.FeatureGroup(name)
		if !knownGroup(g) {
			return model.SamplingConfig{}, &model.ConfigurationError{Field: "groups", Reason: "unknown feature group " + name}
		}
		groups[g] = on
	}

	cfg := model.SamplingConfig{
		SourceID:    strings.TrimSpace(f.Source),
		Window:      model.DateWindow{Start: start, End: end},
		Bands:       append([]string(nil), f.Bands...),
		Scale:       f.Scale,
		SampleCount: f.SampleCount,
		Seed:        f.Seed,
		Groups:      groups,
		AOI:         f.AOI,
	}

	if err := validate.Struct(cfg); err != nil {
		return model.SamplingConfig{}, validationError(err)
	}
	if !cfg.Window.Valid() {
		return model.SamplingConfig{}, &model.ConfigurationError{Field: "window", Reason: "start_date must be before end_date"}
	}
	return cfg, nil
}

func parseDate(field, value string) (time.Time, error) {
	t, err := time.Parse(model.DateLayout, value)
	if err != nil {
		return time.Time{}, &model.ConfigurationError{Field: field, Reason: "expected YYYY-MM-DD", Err: err}
	}
	return t, nil
}

func knownGroup(g model.FeatureGroup) bool {
	for _, known := range model.GroupOrder {
		if g == known {
			return true
		}
	}
	return false
}

func validationError(err error) error {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		return &model.ConfigurationError{
			Field:  fe.Namespace(),
			Reason: fmt.Sprintf("failed %q check (value %v)", fe.Tag(), fe.Value()),
		}
	}
	return &model.ConfigurationError{Field: "config", Reason: "invalid", Err: err}
}

// Env holds the endpoints the binary talks to.
type Env struct {
	ComputeURL     string
	ComputeToken   string
	ComputeTimeout time.Duration
	OverpassURL    string
	PostgresURL    string
	ExportDriver   string
	ExportDSN      string
	ListenAddr     string
}

// FromEnv reads Env from the process environment.
func FromEnv() Env {
	e := Env{
		ComputeURL:     os.Getenv("COMPUTE_URL"),
		ComputeToken:   os.Getenv("COMPUTE_TOKEN"),
		ComputeTimeout: 5 * time.Minute,
		OverpassURL:    getenv("OVERPASS_URL", "https://overpass-api.de/api/interpreter"),
		PostgresURL:    os.Getenv("POSTGRES_URL"),
		ExportDriver:   getenv("EXPORT_DRIVER", "sqlite"),
		ExportDSN:      os.Getenv("EXPORT_DSN"),
		ListenAddr:     getenv("LISTEN_ADDR", ":8080"),
	}
	if v := os.Getenv("COMPUTE_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			e.ComputeTimeout = d
		}
	}
	return e
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
