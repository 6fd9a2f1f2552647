package handlers

import (
	"net/http"
	"time"
	"tour-optimization-service/internal/api/dto"
	"tour-optimization-service/internal/domain"
	"tour-optimization-service/internal/ports"
)

// RouteMetricsHandler reports travel duration and length of an already ordered route.
type RouteMetricsHandler struct {
	Provider ports.RouteMetricsProvider
}

func (h *RouteMetricsHandler) Calculate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		writeError(w, r, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req dto.RouteMetricsRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	origin := domain.Location{Lat: req.Origin.Lat, Lng: req.Origin.Lng}
	dest := toRouteStop(req.Destination)
	if !origin.HasCoordinates() || !dest.Location.HasCoordinates() {
		writeError(w, r, http.StatusBadRequest, "origin and destination coordinates are required")
		return
	}

	stops := make([]ports.RouteStop, 0, len(req.Stops))
	for _, s := range req.Stops {
		stops = append(stops, toRouteStop(s))
	}

	m, err := h.Provider.CalculateRouteMetrics(r.Context(), origin, dest, stops)
	if err != nil {
		writeServiceError(w, r, "route metrics", err)
		return
	}

	polylines := m.Polylines
	if polylines == nil {
		polylines = []string{}
	}
	writeJSON(w, r, http.StatusOK, dto.RouteMetricsResponse{
		DurationSeconds: m.DurationSeconds,
		LengthMeters:    m.LengthMeters,
		Polylines:       polylines,
	})
}

func toRouteStop(s dto.RouteStopRequest) ports.RouteStop {
	return ports.RouteStop{
		Location:    domain.Location{Lat: s.Lat, Lng: s.Lng},
		ServiceTime: time.Duration(s.ServiceTimeSeconds) * time.Second,
	}
}
