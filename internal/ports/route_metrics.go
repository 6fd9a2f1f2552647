package ports

import (
	"context"
	"time"
	"tour-optimization-service/internal/domain"
)

// Intermediate stop of a route with its dwell time.
type RouteStop struct {
	Location    domain.Location
	ServiceTime time.Duration
}

// Travel summary of a fixed route.
type RouteMetrics struct {
	DurationSeconds int      `json:"duration_seconds"`
	LengthMeters    int      `json:"length_meters"`
	Polylines       []string `json:"polylines,omitempty"`
}

// Contract for computing metrics of an already ordered route.
type RouteMetricsProvider interface {
	CalculateRouteMetrics(ctx context.Context, origin domain.Location, destination RouteStop, stops []RouteStop) (RouteMetrics, error)
}
