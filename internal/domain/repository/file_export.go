package repository

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"geostack_service/internal/domain/model"
)

const geoColumn = ".geo"

// FileExporter writes samples as CSV and run metadata as JSON.
type FileExporter struct {
	csvPath      string
	metadataPath string
}

// NewFileExporter derives the metadata path from the CSV path when
// metadataPath is empty.
func NewFileExporter(csvPath, metadataPath string) *FileExporter {
	if metadataPath == "" {
		metadataPath = strings.TrimSuffix(csvPath, filepath.Ext(csvPath)) + ".metadata.json"
	}
	return &FileExporter{csvPath: csvPath, metadataPath: metadataPath}
}

func (e *FileExporter) CSVPath() string      { return e.csvPath }
func (e *FileExporter) MetadataPath() string { return e.metadataPath }

func (e *FileExporter) Write(ctx context.Context, rows []model.SampleRow, meta model.RunMetadata) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := e.writeCSV(rows, meta.Bands); err != nil {
		return err
	}
	return e.writeMetadata(meta)
}

func (e *FileExporter) writeCSV(rows []model.SampleRow, bands []string) error {
	if err := os.MkdirAll(filepath.Dir(e.csvPath), 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	f, err := os.Create(e.csvPath)
	if err != nil {
		return fmt.Errorf("failed to create CSV file: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	header := append(append([]string(nil), bands...), geoColumn)
	if err := w.Write(header); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}

	record := make([]string, len(header))
	for _, row := range rows {
		for i, b := range bands {
			record[i] = strconv.FormatFloat(row.Values[b], 'g', -1, 64)
		}
		record[len(bands)] = fmt.Sprintf(`{"type":"Point","coordinates":[%s,%s]}`,
			strconv.FormatFloat(row.Point.Lon(), 'f', -1, 64),
			strconv.FormatFloat(row.Point.Lat(), 'f', -1, 64))
		if err := w.Write(record); err != nil {
			return fmt.Errorf("failed to write CSV row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("failed to flush CSV: %w", err)
	}
	return f.Close()
}

func (e *FileExporter) writeMetadata(meta model.RunMetadata) error {
	if err := os.MkdirAll(filepath.Dir(e.metadataPath), 0o755); err != nil {
		return fmt.Errorf("failed to create metadata directory: %w", err)
	}
	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}
	if err := os.WriteFile(e.metadataPath, data, 0o644); err != nil {
		return fmt.Errorf("failed to write metadata: %w", err)
	}
	return nil
}

// MultiExporter fans one run out to several writers in order and stops
// at the first failure.
type MultiExporter []model.ExportWriter

func (m MultiExporter) Write(ctx context.Context, rows []model.SampleRow, meta model.RunMetadata) error {
	for _, w := range m {
		if err := w.Write(ctx, rows, meta); err != nil {
			return err
		}
	}
	return nil
}
