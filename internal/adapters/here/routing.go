package here

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strings"
	"tour-optimization-service/internal/domain"
	"tour-optimization-service/internal/platform/obs"
	"tour-optimization-service/internal/ports"
)

// Persistent cache of route metrics keyed by a route fingerprint.
type RouteMetricsCache interface {
	Get(ctx context.Context, key string) (ports.RouteMetrics, bool, error)
	Put(ctx context.Context, key string, m ports.RouteMetrics) error
}

type routesResponse struct {
	Routes []struct {
		Sections []struct {
			TravelSummary struct {
				Duration int `json:"duration"`
				Length   int `json:"length"`
			} `json:"travelSummary"`
			Polyline string `json:"polyline"`
		} `json:"sections"`
	} `json:"routes"`
}

var _ ports.RouteMetricsProvider = (*Client)(nil)

// CalculateRouteMetrics returns the travel summary of a fixed route
// origin -> stops... -> destination using the car "fast" routing mode.
func (c *Client) CalculateRouteMetrics(
	ctx context.Context,
	origin domain.Location,
	destination ports.RouteStop,
	stops []ports.RouteStop,
) (_ ports.RouteMetrics, err error) {
	defer obs.Time(ctx, "here.CalculateRouteMetrics")(&err)

	if c.routingURL == "" {
		return ports.RouteMetrics{}, fmt.Errorf("route metrics: routing url is not configured")
	}
	if !origin.HasCoordinates() || !destination.Location.HasCoordinates() {
		return ports.RouteMetrics{}, fmt.Errorf("route metrics: origin and destination need coordinates")
	}

	key := routeFingerprint(origin, destination, stops)
	if c.metricsCache != nil {
		cached, ok, err := c.metricsCache.Get(ctx, key)
		if err != nil {
			return ports.RouteMetrics{}, fmt.Errorf("route metrics cache: %w", err)
		}
		if ok {
			return cached, nil
		}
	}

	q := url.Values{}
	q.Set("routingMode", "fast")
	q.Set("transportMode", "car")
	q.Set("origin", origin.String())
	q.Set("destination", waypointParam(destination))
	q.Set("return", "travelSummary,polyline")
	for _, s := range stops {
		q.Add("via", waypointParam(s))
	}
	endpoint := c.routingURL + "/v8/routes?" + q.Encode()

	resp, err := c.doWithRetry(ctx, func() (*http.Request, error) {
		return c.newRequest(ctx, http.MethodGet, endpoint, nil)
	})
	if err != nil {
		return ports.RouteMetrics{}, fmt.Errorf("[HERE ROUTE METRICS] %w", err)
	}

	var rr routesResponse
	if err := decodeJSON(resp, &rr); err != nil {
		return ports.RouteMetrics{}, fmt.Errorf("[HERE ROUTE METRICS] %w", err)
	}
	if len(rr.Routes) == 0 {
		return ports.RouteMetrics{}, fmt.Errorf("[HERE ROUTE METRICS] no route found")
	}

	var out ports.RouteMetrics
	for _, s := range rr.Routes[0].Sections {
		out.DurationSeconds += s.TravelSummary.Duration
		out.LengthMeters += s.TravelSummary.Length
		if s.Polyline != "" {
			out.Polylines = append(out.Polylines, s.Polyline)
		}
	}

	if c.metricsCache != nil {
		if err := c.metricsCache.Put(ctx, key, out); err != nil {
			log.Printf("route metrics cache write failed: %v", err)
		}
	}

	return out, nil
}

func waypointParam(s ports.RouteStop) string {
	return fmt.Sprintf("%s!stopDuration=%d", s.Location.String(), int(s.ServiceTime.Seconds()))
}

// routeFingerprint derives a stable cache key from the route geometry and dwell times.
func routeFingerprint(origin domain.Location, destination ports.RouteStop, stops []ports.RouteStop) string {
	parts := make([]string, 0, len(stops)+2)
	parts = append(parts, origin.String())
	for _, s := range stops {
		parts = append(parts, waypointParam(s))
	}
	parts = append(parts, waypointParam(destination))

	sum := sha256.Sum256([]byte(strings.Join(parts, "|")))
	return hex.EncodeToString(sum[:])
}
