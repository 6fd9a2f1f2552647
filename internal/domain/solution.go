package domain

import "time"

type Statistic struct {
	Cost            float64
	DistanceMeters  int
	DurationSeconds int
}

type Activity struct {
	JobID  string
	JobTag string
	Type   string
}

// Key returns the waypoint job key served by the activity.
func (a Activity) Key() string {
	if a.JobTag != "" {
		return a.JobTag
	}
	return a.JobID
}

type TourStop struct {
	Location   Location
	Arrival    time.Time
	Departure  time.Time
	Load       []int
	Activities []Activity
}

type Tour struct {
	VehicleID string
	// Fleet type id; the builder uses the driver id.
	TypeID    string
	Stops     []TourStop
	Statistic Statistic
}

// Solution is the plan materialized by the remote service for one strategy.
type Solution struct {
	Statistic  Statistic
	Tours      []Tour
	Unassigned Ledger
}

type StrategyResult struct {
	Strategy Strategy
	Solution Solution
}

// OptimizationResult holds one result per strategy.
type OptimizationResult struct {
	Balanced   StrategyResult
	Fastest    StrategyResult
	MinVehicle StrategyResult
	Cheapest   StrategyResult
}

// Results returns the strategy results in the fixed strategy order.
func (r OptimizationResult) Results() []StrategyResult {
	return []StrategyResult{r.Balanced, r.Fastest, r.MinVehicle, r.Cheapest}
}
