package repository

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"geostack_service/internal/domain/model"
)

func TestFileExporterWrite(t *testing.T) {
	dir := t.TempDir()
	csvPath := filepath.Join(dir, "out", "samples.csv")
	exporter := NewFileExporter(csvPath, "")
	assert.Equal(t, filepath.Join(dir, "out", "samples.metadata.json"), exporter.MetadataPath())

	rows, meta := testRun()
	require.NoError(t, exporter.Write(context.Background(), rows, meta))

	f, err := os.Open(csvPath)
	require.NoError(t, err)
	defer f.Close()
	records, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)

	require.Len(t, records, 3)
	assert.Equal(t, []string{"B4", "NDVI", "data_availability", ".geo"}, records[0])
	assert.Equal(t, []string{"0.12", "0.8", "0.75", `{"type":"Point","coordinates":[124.61,8.15]}`}, records[1])

	data, err := os.ReadFile(exporter.MetadataPath())
	require.NoError(t, err)
	var doc map[string]any
	require.NoError(t, json.Unmarshal(data, &doc))
	assert.Equal(t, meta.RunID, doc["run_id"])
	assert.Equal(t, float64(2), doc["record_count"])
	assert.Equal(t, 0.75, doc["data_availability_mean"])
	assert.Equal(t, "Northern Mindanao, Philippines", doc["aoi_label"])
	assert.Equal(t, map[string]any{"COPERNICUS/S2_SR": true, "NASA/GRACE/MASS_GRIDS": false}, doc["assets_present"])
}

func TestFileExporterExplicitMetadataPath(t *testing.T) {
	dir := t.TempDir()
	exporter := NewFileExporter(filepath.Join(dir, "a.csv"), filepath.Join(dir, "meta", "run.json"))
	rows, meta := testRun()
	meta.DataAvailabilityMean = nil

	require.NoError(t, exporter.Write(context.Background(), rows, meta))

	data, err := os.ReadFile(filepath.Join(dir, "meta", "run.json"))
	require.NoError(t, err)
	assert.Contains(t, string(data), `"data_availability_mean": null`)
}

type failingWriter struct{ err error }

func (f failingWriter) Write(context.Context, []model.SampleRow, model.RunMetadata) error { return f.err }

type countingWriter struct{ calls int }

func (c *countingWriter) Write(context.Context, []model.SampleRow, model.RunMetadata) error {
	c.calls++
	return nil
}

func TestMultiExporter(t *testing.T) {
	rows, meta := testRun()
	first, last := &countingWriter{}, &countingWriter{}

	require.NoError(t, MultiExporter{first, last}.Write(context.Background(), rows, meta))
	assert.Equal(t, 1, first.calls)
	assert.Equal(t, 1, last.calls)

	boom := errors.New("boom")
	err := MultiExporter{first, failingWriter{boom}, last}.Write(context.Background(), rows, meta)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 2, first.calls)
	assert.Equal(t, 1, last.calls)
}
