package handlers

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"
	"tour-optimization-service/internal/api/dto"
	"tour-optimization-service/internal/domain"
	"tour-optimization-service/internal/ports"
	"tour-optimization-service/internal/services"
)

const ManagerHeader = "X-Manager-Id"

type WaypointOptimizer interface {
	OptimizeWaypoints(ctx context.Context, req services.OptimizeRequest) (*domain.OptimizationResult, error)
}

// OptimizationHandler runs multi-strategy optimizations for the calling manager.
type OptimizationHandler struct {
	Optimizer WaypointOptimizer
	Managers  ports.ManagerRepository
	// Deadline for one optimization. The server's write timeout does not
	// cancel the request context, so remote polling is bounded here.
	Timeout time.Duration
}

func (h *OptimizationHandler) Optimize(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		writeError(w, r, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	managerID := strings.TrimSpace(r.Header.Get(ManagerHeader))
	if managerID == "" {
		writeError(w, r, http.StatusBadRequest, ManagerHeader+" header is required")
		return
	}

	var req dto.OptimizeRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	svcReq, err := toOptimizeRequest(req)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	manager, err := h.Managers.GetManager(r.Context(), managerID)
	if err != nil {
		writeServiceError(w, r, "get manager", err)
		return
	}
	// An unknown manager is reported by the optimizer as a precondition failure.
	svcReq.Manager = manager

	ctx := r.Context()
	if h.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.Timeout)
		defer cancel()
	}

	res, err := h.Optimizer.OptimizeWaypoints(ctx, svcReq)
	if err != nil {
		writeServiceError(w, r, "optimize waypoints", err)
		return
	}

	writeJSON(w, r, http.StatusOK, dto.OptimizationResponse{
		Balanced:   toSolutionResponse(res.Balanced.Solution),
		Fastest:    toSolutionResponse(res.Fastest.Solution),
		MinVehicle: toSolutionResponse(res.MinVehicle.Solution),
		Cheapest:   toSolutionResponse(res.Cheapest.Solution),
	})
}

func toOptimizeRequest(req dto.OptimizeRequest) (services.OptimizeRequest, error) {
	date, err := time.Parse(time.DateOnly, strings.TrimSpace(req.Date))
	if err != nil {
		return services.OptimizeRequest{}, fmt.Errorf("date must be YYYY-MM-DD")
	}

	clock := strings.TrimSpace(req.Time)
	if clock != "" {
		if _, err := time.Parse("15:04", clock); err != nil {
			return services.OptimizeRequest{}, fmt.Errorf("time must be HH:MM")
		}
	}

	start, err := toLocationPolicy(req.DriverStartLocation, domain.LocationCurrent, false)
	if err != nil {
		return services.OptimizeRequest{}, fmt.Errorf("driver_start_location: %w", err)
	}
	end, err := toLocationPolicy(req.DriverEndLocation, domain.LocationWarehouse, true)
	if err != nil {
		return services.OptimizeRequest{}, fmt.Errorf("driver_end_location: %w", err)
	}

	return services.OptimizeRequest{
		Date:        date,
		Time:        clock,
		WaypointIDs: req.WaypointIDs,
		DriverIDs:   req.DriverIDs,
		DriverStart: start,
		DriverEnd:   end,
	}, nil
}

func toLocationPolicy(p *dto.LocationPolicyRequest, fallback domain.LocationType, end bool) (domain.LocationPolicy, error) {
	if p == nil || strings.TrimSpace(p.Type) == "" {
		return domain.LocationPolicy{Type: fallback}, nil
	}

	t := domain.LocationType(strings.ToUpper(strings.TrimSpace(p.Type)))
	if !t.Valid() {
		return domain.LocationPolicy{}, fmt.Errorf("unknown type %q", p.Type)
	}
	if t == domain.LocationLastStop && !end {
		return domain.LocationPolicy{}, fmt.Errorf("%s is only valid as an end location", t)
	}

	out := domain.LocationPolicy{Type: t}
	if p.Value != nil {
		out.Value = &domain.Location{Lat: p.Value.Lat, Lng: p.Value.Lng, Address: strings.TrimSpace(p.Value.Address)}
	}
	if t == domain.LocationCustom && (out.Value == nil || (!out.Value.HasCoordinates() && out.Value.Address == "")) {
		return domain.LocationPolicy{}, fmt.Errorf("CUSTOM requires coordinates or an address")
	}
	return out, nil
}

func toStatistic(s domain.Statistic) dto.StatisticResponse {
	return dto.StatisticResponse{Cost: s.Cost, DistanceMeters: s.DistanceMeters, DurationSeconds: s.DurationSeconds}
}

func toSolutionResponse(sol domain.Solution) dto.SolutionResponse {
	res := dto.SolutionResponse{
		Statistic:  toStatistic(sol.Statistic),
		Tours:      make([]dto.TourResponse, 0, len(sol.Tours)),
		Unassigned: sol.Unassigned,
	}

	for _, t := range sol.Tours {
		tour := dto.TourResponse{
			VehicleID: t.VehicleID,
			DriverID:  t.TypeID,
			Statistic: toStatistic(t.Statistic),
			Stops:     make([]dto.StopResponse, 0, len(t.Stops)),
		}
		for _, s := range t.Stops {
			stop := dto.StopResponse{
				Lat:        s.Location.Lat,
				Lng:        s.Location.Lng,
				Arrival:    s.Arrival,
				Departure:  s.Departure,
				Load:       s.Load,
				Activities: make([]dto.ActivityResponse, 0, len(s.Activities)),
			}
			for _, a := range s.Activities {
				stop.Activities = append(stop.Activities, dto.ActivityResponse{JobID: a.JobID, JobKey: a.Key(), Type: a.Type})
			}
			tour.Stops = append(tour.Stops, stop)
		}
		res.Tours = append(res.Tours, tour)
	}

	return res
}
