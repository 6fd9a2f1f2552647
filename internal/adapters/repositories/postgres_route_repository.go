package repositories

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
	"tour-optimization-service/internal/domain"
	"tour-optimization-service/internal/platform/obs"
	"tour-optimization-service/internal/ports"

	"github.com/jackc/pgx/v5/pgtype"
)

// Postgres-backed implementation of the RouteRepository port.
type PostgresRouteRepository struct{ DB *sql.DB }

var _ ports.RouteRepository = (*PostgresRouteRepository)(nil)

func NewPostgresRouteRepository(db *sql.DB) *PostgresRouteRepository {
	return &PostgresRouteRepository{DB: db}
}

// Return the driver's routes on date with their waypoints in visiting order.
func (r *PostgresRouteRepository) ListDriverRoutes(ctx context.Context, driverID string, date time.Time) (_ []domain.Route, err error) {
	defer obs.Time(ctx, "routes.ListDriverRoutes")(&err)

	if r.DB == nil {
		return nil, errors.New("postgres route repository: DB is nil")
	}

	query := `
	SELECT
		r.route_id,
		r.status,
		r.route_date,
		r.meta,
		COALESCE(array_agg(rw.waypoint_id ORDER BY rw.position) FILTER (WHERE rw.waypoint_id IS NOT NULL), '{}')
	FROM routes r
	LEFT JOIN route_waypoints rw ON rw.route_id = r.route_id
	WHERE r.driver_id = $1 AND r.route_date = $2::date
	GROUP BY r.route_id, r.status, r.route_date, r.meta
	ORDER BY r.route_id;
	`
	rows, err := r.DB.QueryContext(ctx, query, driverID, date.Format(time.DateOnly))
	if err != nil {
		return nil, fmt.Errorf("list driver routes: query routes table: %w", err)
	}
	defer rows.Close()

	typeMap := pgtype.NewMap()
	routes := make([]domain.Route, 0, 2)
	for rows.Next() {
		rt := domain.Route{DriverID: driverID}
		var meta []byte
		var waypointIDs []string
		if err := rows.Scan(&rt.ID, &rt.Status, &rt.Date, &meta, typeMap.SQLScanner(&waypointIDs)); err != nil {
			return nil, fmt.Errorf("list driver routes: scan row: %w", err)
		}
		if len(meta) > 0 {
			if err := json.Unmarshal(meta, &rt.Meta); err != nil {
				return nil, fmt.Errorf("list driver routes: decode meta route_id=%s: %w", rt.ID, err)
			}
		}
		rt.WaypointIDs = waypointIDs
		routes = append(routes, rt)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list driver routes: row iteration: %w", err)
	}

	return routes, nil
}
