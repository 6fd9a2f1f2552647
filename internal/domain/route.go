package domain

import "time"

const (
	RouteStatusAwaiting   = "awaiting"
	RouteStatusInProgress = "in_progress"
	RouteStatusCompleted  = "completed"
)

// Location/time overrides recorded when an existing route was planned.
type RouteMeta struct {
	StartLocation    *LocationPolicy `json:"start_location,omitempty"`
	EndLocation      *LocationPolicy `json:"end_location,omitempty"`
	OptimizationTime string          `json:"optimization_time,omitempty"`
}

// Represents a route already assigned to a driver on a date.
// Only routes that have not started (status awaiting) can be re-optimized.
type Route struct {
	ID          string
	DriverID    string
	Status      string
	Date        time.Time
	WaypointIDs []string
	Meta        RouteMeta
}

func (r Route) IsAwaiting() bool { return r.Status == RouteStatusAwaiting }
