package cache

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"tour-optimization-service/internal/platform/obs"
	"tour-optimization-service/internal/ports"
)

// SQLRouteMetricsCache is a SQL-backed cache for fixed-route travel summaries.
type SQLRouteMetricsCache struct {
	DB *sql.DB
}

func NewSQLRouteMetricsCache(db *sql.DB) *SQLRouteMetricsCache {
	return &SQLRouteMetricsCache{DB: db}
}

// Fetch the cached metrics for one route fingerprint.
func (s *SQLRouteMetricsCache) Get(ctx context.Context, key string) (_ ports.RouteMetrics, _ bool, err error) {
	defer obs.Time(ctx, "route_metrics.cache.Get")(&err)

	if s.DB == nil {
		return ports.RouteMetrics{}, false, errors.New("route metrics cache: db is nil")
	}

	key = strings.TrimSpace(key)
	if key == "" {
		return ports.RouteMetrics{}, false, errors.New("get route metrics cache: key must not be empty")
	}

	q := `
	SELECT duration_seconds, length_meters, polylines
	FROM route_metrics_cache
	WHERE route_key = $1;
	`

	var out ports.RouteMetrics
	var polylines []byte
	err = s.DB.QueryRowContext(ctx, q, key).Scan(&out.DurationSeconds, &out.LengthMeters, &polylines)
	if errors.Is(err, sql.ErrNoRows) {
		return ports.RouteMetrics{}, false, nil
	}
	if err != nil {
		return ports.RouteMetrics{}, false, fmt.Errorf("get route metrics cache: query route_metrics_cache table: %w", err)
	}

	if len(polylines) > 0 {
		if err := json.Unmarshal(polylines, &out.Polylines); err != nil {
			return ports.RouteMetrics{}, false, fmt.Errorf("get route metrics cache: decode polylines: %w", err)
		}
	}

	return out, true, nil
}

// Store the metrics of one route fingerprint, replacing any previous entry.
func (s *SQLRouteMetricsCache) Put(ctx context.Context, key string, m ports.RouteMetrics) error {
	if s.DB == nil {
		return errors.New("route metrics cache: db is nil")
	}

	key = strings.TrimSpace(key)
	if key == "" {
		return errors.New("insert route metrics cache: key must not be empty")
	}

	polylines, err := json.Marshal(m.Polylines)
	if err != nil {
		return fmt.Errorf("insert route metrics cache: encode polylines: %w", err)
	}

	_, err = s.DB.ExecContext(ctx, `
	INSERT INTO route_metrics_cache (route_key, duration_seconds, length_meters, polylines)
	VALUES ($1, $2, $3, $4)
	ON CONFLICT (route_key) DO UPDATE
	SET duration_seconds = EXCLUDED.duration_seconds,
		length_meters = EXCLUDED.length_meters,
		polylines = EXCLUDED.polylines;
	`, key, m.DurationSeconds, m.LengthMeters, polylines)
	if err != nil {
		return fmt.Errorf("insert route metrics cache key=%q: %w", key, err)
	}

	return nil
}
