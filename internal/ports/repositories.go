package ports

import (
	"context"
	"time"
	"tour-optimization-service/internal/domain"
)

// Port: read access to waypoints and their owning orders.
type WaypointRepository interface {
	// Return the waypoints that exist among ids.
	GetWaypoints(ctx context.Context, ids []string) ([]domain.Waypoint, error)
	// Return the owning order of each waypoint, keyed by waypoint id.
	GetWaypointOrders(ctx context.Context, waypointIDs []string) (map[string]domain.Order, error)
}

// Port: drivers eligible for an optimization.
type DriverRepository interface {
	// Return the manager's drivers available on date, restricted to driverIDs when non-empty.
	ListDriversForOptimization(ctx context.Context, managerID string, driverIDs []string, date time.Time) ([]domain.Driver, error)
}

// Port: routes already assigned to drivers.
type RouteRepository interface {
	ListDriverRoutes(ctx context.Context, driverID string, date time.Time) ([]domain.Route, error)
}

type ManagerRepository interface {
	GetManager(ctx context.Context, id string) (*domain.Manager, error)
}
