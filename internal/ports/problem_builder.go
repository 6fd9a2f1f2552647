package ports

import (
	"time"
	"tour-optimization-service/internal/domain"
)

// Driver with resolved locations and shift, ready to join the fleet.
type DriverEntry struct {
	Driver     domain.Driver
	Start      domain.Location
	End        *domain.Location
	ShiftStart time.Time
	ShiftEnd   time.Time
}

// Mutable builder for the shared problem description.
type ProblemBuilder interface {
	SetRouteDate(date time.Time)
	RouteDate() time.Time
	// Add a validated waypoint as a task of its order. A returned error means
	// the waypoint cannot be planned (e.g. unsatisfiable time window) and was
	// not added.
	AddWaypoint(waypoint domain.Waypoint, order domain.Order, loc *time.Location, optimizationTime string) error
	// Add a driver to the fleet. A returned error means the driver was not added.
	AddDriver(entry DriverEntry) error
	// Keep the jobs of an existing route with its driver.
	AddDriverRoute(driver domain.Driver, route domain.Route)
	HasFleetTypes() bool
	Build() domain.Problem
}
