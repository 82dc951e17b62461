package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jmoiron/sqlx"

	"geostack_service/internal/domain/model"
)

var samplesSchema = []string{`
CREATE TABLE IF NOT EXISTS sampling_runs (
	run_id                 TEXT PRIMARY KEY,
	source_id              TEXT NOT NULL,
	aoi_label              TEXT NOT NULL,
	bands                  TEXT NOT NULL,
	record_count           INTEGER NOT NULL,
	aoi_area_sq_km         DOUBLE PRECISION NOT NULL,
	data_availability_mean DOUBLE PRECISION,
	assets_present         TEXT NOT NULL,
	config                 TEXT NOT NULL,
	created_at             TIMESTAMP NOT NULL
)`, `
CREATE TABLE IF NOT EXISTS training_samples (
	run_id       TEXT NOT NULL,
	sample_index INTEGER NOT NULL,
	lon          DOUBLE PRECISION NOT NULL,
	lat          DOUBLE PRECISION NOT NULL,
	band_values  TEXT NOT NULL,
	PRIMARY KEY (run_id, sample_index)
)`,
}

// SQLSampleRecorder stores sampling runs in PostgreSQL or SQLite.
type SQLSampleRecorder struct {
	db *sqlx.DB
}

func NewSQLSampleRecorder(db *sqlx.DB) *SQLSampleRecorder {
	return &SQLSampleRecorder{db: db}
}

// OpenSQLSampleRecorder connects with the given driver ("postgres" or
// "sqlite") and creates the tables when missing.
func OpenSQLSampleRecorder(ctx context.Context, driver, dsn string) (*SQLSampleRecorder, error) {
	db, err := sqlx.ConnectContext(ctx, driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", driver, err)
	}
	r := NewSQLSampleRecorder(db)
	if err := r.EnsureSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return r, nil
}

func (r *SQLSampleRecorder) EnsureSchema(ctx context.Context) error {
	for _, stmt := range samplesSchema {
		if _, err := r.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to create sample tables: %w", err)
		}
	}
	return nil
}

func (r *SQLSampleRecorder) Close() error {
	return r.db.Close()
}

func (r *SQLSampleRecorder) Write(ctx context.Context, rows []model.SampleRow, meta model.RunMetadata) error {
	bandsJSON, err := json.Marshal(meta.Bands)
	if err != nil {
		return fmt.Errorf("failed to marshal bands: %w", err)
	}
	assetsJSON, err := json.Marshal(meta.AssetsPresent)
	if err != nil {
		return fmt.Errorf("failed to marshal availability: %w", err)
	}
	configJSON, err := json.Marshal(meta.Config)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	const runQuery = `
		INSERT INTO sampling_runs (
			run_id, source_id, aoi_label, bands,
			record_count, aoi_area_sq_km, data_availability_mean,
			assets_present, config, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err = tx.ExecContext(ctx, tx.Rebind(runQuery),
		meta.RunID, meta.Config.SourceID, meta.AOILabel, string(bandsJSON),
		meta.RecordCount, meta.AOIAreaSqKm, meta.DataAvailabilityMean,
		string(assetsJSON), string(configJSON), meta.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert run %s: %w", meta.RunID, err)
	}

	stmt, err := tx.PreparexContext(ctx, tx.Rebind(`
		INSERT INTO training_samples (run_id, sample_index, lon, lat, band_values)
		VALUES (?, ?, ?, ?, ?)`))
	if err != nil {
		return fmt.Errorf("failed to prepare sample insert: %w", err)
	}
	defer stmt.Close()

	for i, row := range rows {
		valuesJSON, err := json.Marshal(row.Values)
		if err != nil {
			return fmt.Errorf("failed to marshal sample %d: %w", i, err)
		}
		if _, err := stmt.ExecContext(ctx, meta.RunID, i, row.Point.Lon(), row.Point.Lat(), string(valuesJSON)); err != nil {
			return fmt.Errorf("failed to insert sample %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit run %s: %w", meta.RunID, err)
	}
	return nil
}
