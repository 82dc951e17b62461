package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"geostack_service/internal/config"
	"geostack_service/internal/core"
	"geostack_service/internal/domain/model"
	"geostack_service/internal/domain/repository"
)

var sampleCmd = &cobra.Command{
	Use:   "sample",
	Short: "Build the feature stack for an AOI and export random samples",
	Long: `Resolves the AOI, assembles the base bands plus every enabled feature
group, samples the stack and writes the rows to CSV with a JSON metadata
sidecar. Set EXPORT_DSN to also record the run in SQL.

Example:
  geostack sample --aoi-name "Northern Mindanao" --aoi-country Philippines --skip-radar`,
	RunE: runSample,
}

var skipFlags = map[model.FeatureGroup]string{
	model.GroupIndices:       "skip-indices",
	model.GroupTemporal:      "skip-temporal",
	model.GroupTerrain:       "skip-terrain",
	model.GroupRadar:         "skip-radar",
	model.GroupHyperspectral: "skip-hyperspectral",
	model.GroupMagnetic:      "skip-magnetic",
	model.GroupGravity:       "skip-gravity",
	model.GroupSoilMoisture:  "skip-soil-moisture",
}

func addSampleFlags(cmd *cobra.Command) {
	d := config.Default()
	f := cmd.Flags()
	f.String("asset", d.Source, "primary image collection id")
	f.String("start-date", d.StartDate, "window start (YYYY-MM-DD)")
	f.String("end-date", d.EndDate, "window end, exclusive (YYYY-MM-DD)")
	f.String("bands", strings.Join(d.Bands, ","), "comma-separated base bands")
	f.Float64("scale", d.Scale, "sampling scale in metres")
	f.Int("sample-count", d.SampleCount, "number of sample points")
	f.Int64("random-seed", d.Seed, "sampling seed")
	f.Int("aoi-level", d.AOI.Level, "administrative level (0-2)")
	f.String("aoi-name", d.AOI.Name, "administrative region name")
	f.String("aoi-country", d.AOI.Country, "country used to disambiguate the region")
	f.String("aoi-asset", "", "remote vector asset used as AOI")
	f.String("geojson", "", "local GeoJSON boundary used as AOI")
	f.String("output-csv", d.Output.CSV, "CSV output path")
	f.String("metadata", "", "metadata JSON path (default: next to the CSV)")
	for _, g := range model.GroupOrder {
		f.Bool(skipFlags[g], false, fmt.Sprintf("disable the %s feature group", g))
	}
}

// applyFlags overlays explicitly set flags on the file configuration.
func applyFlags(cmd *cobra.Command, file *config.File) {
	f := cmd.Flags()
	set := func(name string, apply func()) {
		if f.Changed(name) {
			apply()
		}
	}
	set("asset", func() { file.Source, _ = f.GetString("asset") })
	set("start-date", func() { file.StartDate, _ = f.GetString("start-date") })
	set("end-date", func() { file.EndDate, _ = f.GetString("end-date") })
	set("bands", func() {
		raw, _ := f.GetString("bands")
		file.Bands = splitList(raw)
	})
	set("scale", func() { file.Scale, _ = f.GetFloat64("scale") })
	set("sample-count", func() { file.SampleCount, _ = f.GetInt("sample-count") })
	set("random-seed", func() { file.Seed, _ = f.GetInt64("random-seed") })
	set("aoi-level", func() { file.AOI.Level, _ = f.GetInt("aoi-level") })
	set("aoi-name", func() { file.AOI.Name, _ = f.GetString("aoi-name") })
	set("aoi-country", func() { file.AOI.Country, _ = f.GetString("aoi-country") })
	set("aoi-asset", func() { file.AOI.Asset, _ = f.GetString("aoi-asset") })
	set("geojson", func() { file.AOI.GeoJSONPath, _ = f.GetString("geojson") })
	set("output-csv", func() { file.Output.CSV, _ = f.GetString("output-csv") })
	set("metadata", func() { file.Output.Metadata, _ = f.GetString("metadata") })

	for g, name := range skipFlags {
		if skip, _ := f.GetBool(name); skip {
			if file.Groups == nil {
				file.Groups = map[string]bool{}
			}
			file.Groups[string(g)] = false
		}
	}
}

func splitList(raw string) []string {
	var out []string
	for _, s := range strings.Split(raw, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func runSample(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	file, err := config.Load(configPath)
	if err != nil {
		return err
	}
	applyFlags(cmd, &file)
	cfg, err := file.Build()
	if err != nil {
		return err
	}

	env := config.FromEnv()
	backend, err := newBackend(env)
	if err != nil {
		return err
	}
	boundaries, closeBoundaries, err := newBoundaries(env)
	if err != nil {
		return err
	}
	defer closeBoundaries()

	exporter := repository.NewFileExporter(file.Output.CSV, file.Output.Metadata)
	writers := repository.MultiExporter{exporter}
	recorder, err := newRecorder(ctx, env)
	if err != nil {
		return err
	}
	if recorder != nil {
		defer recorder.Close()
		writers = append(writers, recorder)
	}

	service := core.NewSamplingService(backend, repository.NewGeoJSONFileReader(), boundaries, writers, logger)

	logger.Info("starting sampling run",
		zap.String("source", cfg.SourceID),
		zap.Stringer("window", cfg.Window),
		zap.Int("sample_count", cfg.SampleCount))

	result, err := service.Run(ctx, cfg)
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Exported %d samples with %d bands to %s\n",
		result.Metadata.RecordCount, len(result.Metadata.Bands), exporter.CSVPath())
	fmt.Fprintf(cmd.OutOrStdout(), "Metadata written to %s\n", exporter.MetadataPath())
	return nil
}
