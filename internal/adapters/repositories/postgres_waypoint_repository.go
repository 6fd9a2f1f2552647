package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
	"tour-optimization-service/internal/domain"
	"tour-optimization-service/internal/platform/obs"
	"tour-optimization-service/internal/ports"
)

// Postgres-backed implementation of the WaypointRepository port.
type PostgresWaypointRepository struct{ DB *sql.DB }

var _ ports.WaypointRepository = (*PostgresWaypointRepository)(nil)

func NewPostgresWaypointRepository(db *sql.DB) *PostgresWaypointRepository {
	return &PostgresWaypointRepository{DB: db}
}

// Return the stored waypoints among ids. Unknown ids are silently absent.
func (r *PostgresWaypointRepository) GetWaypoints(ctx context.Context, ids []string) (_ []domain.Waypoint, err error) {
	defer obs.Time(ctx, "waypoints.GetWaypoints")(&err)

	if r.DB == nil {
		return nil, errors.New("postgres waypoint repository: DB is nil")
	}
	if len(ids) == 0 {
		return []domain.Waypoint{}, nil
	}

	query := `
	SELECT
		waypoint_id,
		order_id,
		kind,
		lat,
		lng,
		address,
		service_seconds,
		window_from,
		window_to,
		completed
	FROM waypoints
	WHERE waypoint_id = ANY($1::text[])
	ORDER BY order_id, position;
	`
	rows, err := r.DB.QueryContext(ctx, query, ids)
	if err != nil {
		return nil, fmt.Errorf("get waypoints: query waypoints table: %w", err)
	}
	defer rows.Close()

	waypoints := make([]domain.Waypoint, 0, len(ids))
	for rows.Next() {
		var w domain.Waypoint
		var kind string
		var serviceSeconds int
		if err := rows.Scan(
			&w.ID,
			&w.OrderID,
			&kind,
			&w.Location.Lat,
			&w.Location.Lng,
			&w.Location.Address,
			&serviceSeconds,
			&w.TimeWindow.From,
			&w.TimeWindow.To,
			&w.Completed,
		); err != nil {
			return nil, fmt.Errorf("get waypoints: scan row: %w", err)
		}
		w.Kind = domain.WaypointKind(kind)
		w.ServiceTime = time.Duration(serviceSeconds) * time.Second
		waypoints = append(waypoints, w)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("get waypoints: row iteration: %w", err)
	}

	return waypoints, nil
}

// Return the owning order of each waypoint with its full stop sequence,
// keyed by waypoint id.
func (r *PostgresWaypointRepository) GetWaypointOrders(ctx context.Context, waypointIDs []string) (_ map[string]domain.Order, err error) {
	defer obs.Time(ctx, "waypoints.GetWaypointOrders")(&err)

	if r.DB == nil {
		return nil, errors.New("postgres waypoint repository: DB is nil")
	}
	if len(waypointIDs) == 0 {
		return map[string]domain.Order{}, nil
	}

	query := `
	SELECT o.waypoint_id, o.order_id, o.completed
	FROM waypoints o
	WHERE o.order_id IN (
		SELECT order_id FROM waypoints WHERE waypoint_id = ANY($1::text[])
	)
	ORDER BY o.order_id, o.position;
	`
	rows, err := r.DB.QueryContext(ctx, query, waypointIDs)
	if err != nil {
		return nil, fmt.Errorf("get waypoint orders: query waypoints table: %w", err)
	}
	defer rows.Close()

	orders := map[string]*domain.Order{}
	ownerOf := map[string]string{}
	for rows.Next() {
		var waypointID, orderID string
		var completed bool
		if err := rows.Scan(&waypointID, &orderID, &completed); err != nil {
			return nil, fmt.Errorf("get waypoint orders: scan row: %w", err)
		}
		o, ok := orders[orderID]
		if !ok {
			o = &domain.Order{ID: orderID}
			orders[orderID] = o
		}
		o.Stops = append(o.Stops, domain.OrderStop{WaypointID: waypointID, Completed: completed})
		ownerOf[waypointID] = orderID
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("get waypoint orders: row iteration: %w", err)
	}

	out := make(map[string]domain.Order, len(waypointIDs))
	for _, id := range waypointIDs {
		if orderID, ok := ownerOf[id]; ok {
			out[id] = *orders[orderID]
		}
	}
	return out, nil
}
