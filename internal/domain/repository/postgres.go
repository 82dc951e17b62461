package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/paulmach/orb/geojson"

	"geostack_service/internal/domain/model"
)

// boundaryColumns whitelists the name column per admin level.
var boundaryColumns = map[int]string{0: "adm0_name", 1: "adm1_name", 2: "adm2_name"}

// PostGISRepository serves GAUL boundaries imported into PostGIS.
type PostGISRepository struct {
	db *sqlx.DB
}

func NewPostgresRepository(connStr string) (*PostGISRepository, error) {
	db, err := sqlx.Connect("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}
	return &PostGISRepository{db: db}, nil
}

func NewPostGISRepositoryFromDB(db *sqlx.DB) *PostGISRepository {
	return &PostGISRepository{db: db}
}

func (r *PostGISRepository) DB() *sqlx.DB {
	return r.db
}

type boundaryRow struct {
	Adm0Name string `db:"adm0_name"`
	Adm1Name string `db:"adm1_name"`
	Adm2Name string `db:"adm2_name"`
	Geometry string `db:"geometry"`
}

func (r *PostGISRepository) Boundaries(ctx context.Context, q model.BoundaryQuery) (*geojson.FeatureCollection, error) {
	column, ok := boundaryColumns[q.Level]
	if !ok {
		return nil, &model.ConfigurationError{Field: "aoi.level", Reason: fmt.Sprintf("unsupported admin level %d", q.Level)}
	}

	query := fmt.Sprintf(`
		SELECT
			adm0_name,
			COALESCE(adm1_name, '') AS adm1_name,
			COALESCE(adm2_name, '') AS adm2_name,
			ST_AsGeoJSON(geom) AS geometry
		FROM admin_boundaries
		WHERE level = $1
		AND %s = $2`, column)
	args := []any{q.Level, q.Name}
	if q.Level > 0 && q.Country != "" {
		query += "\n\t\tAND adm0_name = $3"
		args = append(args, q.Country)
	}

	var rows []boundaryRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("failed to query boundaries: %w", err)
	}

	fc := geojson.NewFeatureCollection()
	for _, row := range rows {
		g, err := geojson.UnmarshalGeometry([]byte(row.Geometry))
		if err != nil {
			return nil, fmt.Errorf("invalid boundary geometry for %s: %w", row.Adm0Name, err)
		}
		f := geojson.NewFeature(g.Geometry())
		f.Properties["ADM0_NAME"] = row.Adm0Name
		f.Properties["ADM1_NAME"] = row.Adm1Name
		f.Properties["ADM2_NAME"] = row.Adm2Name
		fc.Append(f)
	}
	return fc, nil
}
