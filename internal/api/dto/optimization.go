package dto

import (
	"time"
	"tour-optimization-service/internal/domain"
)

type LocationRequest struct {
	Lat     float64 `json:"lat"`
	Lng     float64 `json:"lng"`
	Address string  `json:"address"`
}

type LocationPolicyRequest struct {
	Type  string           `json:"type"`
	Value *LocationRequest `json:"value"`
}

type OptimizeRequest struct {
	Date                string                 `json:"date"`
	Time                string                 `json:"time"`
	WaypointIDs         []string               `json:"waypoint_ids"`
	DriverIDs           []string               `json:"driver_ids"`
	DriverStartLocation *LocationPolicyRequest `json:"driver_start_location"`
	DriverEndLocation   *LocationPolicyRequest `json:"driver_end_location"`
}

type StatisticResponse struct {
	Cost            float64 `json:"cost"`
	DistanceMeters  int     `json:"distance_meters"`
	DurationSeconds int     `json:"duration_seconds"`
}

type ActivityResponse struct {
	JobID string `json:"job_id"`
	// Waypoint job key; matches the keys of the unassigned ledger.
	JobKey string `json:"job_key"`
	Type   string `json:"type"`
}

type StopResponse struct {
	Lat        float64            `json:"lat"`
	Lng        float64            `json:"lng"`
	Arrival    time.Time          `json:"arrival"`
	Departure  time.Time          `json:"departure"`
	Load       []int              `json:"load"`
	Activities []ActivityResponse `json:"activities"`
}

type TourResponse struct {
	VehicleID string            `json:"vehicle_id"`
	DriverID  string            `json:"driver_id"`
	Statistic StatisticResponse `json:"statistic"`
	Stops     []StopResponse    `json:"stops"`
}

type SolutionResponse struct {
	Statistic  StatisticResponse `json:"statistic"`
	Tours      []TourResponse    `json:"tours"`
	Unassigned domain.Ledger     `json:"unassigned"`
}

type OptimizationResponse struct {
	Balanced   SolutionResponse `json:"balanced"`
	Fastest    SolutionResponse `json:"fastest"`
	MinVehicle SolutionResponse `json:"min_vehicle"`
	Cheapest   SolutionResponse `json:"cheapest"`
}
