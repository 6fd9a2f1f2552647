package services

import (
	"context"
	"testing"
	"tour-optimization-service/internal/adapters/here"
	"tour-optimization-service/internal/domain"
	"tour-optimization-service/internal/ports"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOptimizeWaypointsEndToEnd(t *testing.T) {
	f := newOptimizerFixture()

	res, err := f.optimizer().OptimizeWaypoints(context.Background(), request("w1", "w2", "w3"))
	require.NoError(t, err)

	results := res.Results()
	require.Len(t, results, 4)
	for i, s := range domain.Strategies() {
		r := results[i]
		assert.Equal(t, s, r.Strategy)
		require.NotEmpty(t, r.Solution.Tours, s)
		assert.Len(t, r.Solution.Tours[0].Stops, 3, s)
		assert.Zero(t, r.Solution.Unassigned.Len(), s)
	}

	submitted := f.client.Submitted()
	require.Len(t, submitted, 4)
	for _, p := range submitted {
		require.Len(t, p.Plan.Jobs, 2, "o1 pickup and delivery share one job")
		assert.Equal(t, []string{"o1_w1", "o1_w2"}, p.Plan.Jobs[0].Keys())
		assert.Equal(t, "o2_w3", p.Plan.Jobs[1].ID)
		require.Len(t, p.Fleet.Types, 1)
		assert.Equal(t, "d1", p.Fleet.Types[0].ID)
		assert.Equal(t, "minimizeUnassigned", p.Objectives[0].Type)
	}

	for _, s := range domain.Strategies() {
		assert.Contains(t, f.events.kinds(s), ports.JobSucceeded)
	}
}

func TestOptimizeWaypointsCollectionOnly(t *testing.T) {
	f := newOptimizerFixture()

	_, err := f.optimizer().OptimizeWaypoints(context.Background(), request("w1"))
	require.ErrorIs(t, err, domain.ErrPrecondition)
	assert.Contains(t, err.Error(), "Only Collection waypoints were provided.")
	assert.Empty(t, f.client.Submitted())
}

func TestOptimizeWaypointsPreconditions(t *testing.T) {
	f := newOptimizerFixture()
	o := f.optimizer()
	ctx := context.Background()

	noManager := request("w3")
	noManager.Manager = nil
	_, err := o.OptimizeWaypoints(ctx, noManager)
	require.ErrorIs(t, err, domain.ErrPrecondition)

	_, err = o.OptimizeWaypoints(ctx, request())
	require.ErrorIs(t, err, domain.ErrPrecondition)

	_, err = o.OptimizeWaypoints(ctx, request("w3", "missing"))
	require.ErrorIs(t, err, domain.ErrPrecondition)

	f.drivers.drivers = nil
	_, err = o.OptimizeWaypoints(ctx, request("w3"))
	require.ErrorIs(t, err, domain.ErrPrecondition)
	assert.Contains(t, err.Error(), "No available drivers.")

	assert.Empty(t, f.client.Submitted())
}

func TestOptimizeWaypointsNoDriverWithKnownLocation(t *testing.T) {
	f := newOptimizerFixture()
	d := testDriver("d1")
	d.CurrentLocation = nil
	f.drivers.drivers = []domain.Driver{d}

	_, err := f.optimizer().OptimizeWaypoints(context.Background(), request("w3"))
	require.ErrorIs(t, err, domain.ErrPrecondition)
	assert.Contains(t, err.Error(), "No available drivers with known location.")
	assert.Empty(t, f.client.Submitted())
}

func TestOptimizeWaypointsSequenceViolation(t *testing.T) {
	f := newOptimizerFixture()

	res, err := f.optimizer().OptimizeWaypoints(context.Background(), request("w2", "w3"))
	require.NoError(t, err)

	for _, r := range res.Results() {
		require.True(t, r.Solution.Unassigned.Has("o1_w2"), r.Strategy)
		reasons := r.Solution.Unassigned.Reasons("o1_w2")
		require.Len(t, reasons, 1)
		assert.Equal(t, domain.CodeOrderSequence, reasons[0].Code)
	}

	for _, p := range f.client.Submitted() {
		assert.False(t, p.HasJob("o1_w2"))
		assert.True(t, p.HasJob("o2_w3"))
	}
}

func TestOptimizeWaypointsTimeWindowViolation(t *testing.T) {
	f := newOptimizerFixture()
	w3 := f.waypoints.waypoints["w3"]
	w3.TimeWindow = domain.ClockWindow{From: "05:00", To: "06:00"}
	f.waypoints.waypoints["w3"] = w3

	res, err := f.optimizer().OptimizeWaypoints(context.Background(), request("w1", "w2", "w3"))
	require.NoError(t, err)

	for _, r := range res.Results() {
		reasons := r.Solution.Unassigned.Reasons("o2_w3")
		require.Len(t, reasons, 1, r.Strategy)
		assert.Equal(t, domain.CodeTimeWindow, reasons[0].Code)
	}
	for _, p := range f.client.Submitted() {
		assert.True(t, p.HasJob("o1_w1"))
		assert.True(t, p.HasJob("o1_w2"))
		assert.False(t, p.HasJob("o2_w3"))
	}
}

func TestOptimizeWaypointsDropsStopsAfterExpiredPickup(t *testing.T) {
	f := newOptimizerFixture()
	w1 := f.waypoints.waypoints["w1"]
	w1.TimeWindow = domain.ClockWindow{From: "05:00", To: "06:00"}
	f.waypoints.waypoints["w1"] = w1

	res, err := f.optimizer().OptimizeWaypoints(context.Background(), request("w2", "w1", "w3"))
	require.NoError(t, err)

	for _, r := range res.Results() {
		pickup := r.Solution.Unassigned.Reasons("o1_w1")
		require.Len(t, pickup, 1, r.Strategy)
		assert.Equal(t, domain.CodeTimeWindow, pickup[0].Code)

		delivery := r.Solution.Unassigned.Reasons("o1_w2")
		require.Len(t, delivery, 1, r.Strategy)
		assert.Equal(t, domain.CodeOrderSequence, delivery[0].Code)
		assert.Contains(t, delivery[0].Description, "follows waypoint w1")
	}
	for _, p := range f.client.Submitted() {
		assert.False(t, p.HasJob("o1_w1"))
		assert.False(t, p.HasJob("o1_w2"))
		assert.True(t, p.HasJob("o2_w3"))
	}
}

func TestOptimizeWaypointsMergesRemoteUnassigned(t *testing.T) {
	f := newOptimizerFixture()
	f.client.Solution = func(p domain.Problem) *domain.Solution {
		sol := here.SolutionForAllJobs(p)
		sol.Unassigned.Add("o1_w1", domain.UnassignedReason{Code: "CAPACITY_CONSTRAINT", Description: "full"})
		return sol
	}

	res, err := f.optimizer().OptimizeWaypoints(context.Background(), request("w1", "w2", "w3"))
	require.NoError(t, err)

	for _, r := range res.Results() {
		assert.True(t, r.Solution.Unassigned.Has("o1_w1"))
	}
}

func TestOptimizeWaypointsExpandsUnassignedPairedJob(t *testing.T) {
	f := newOptimizerFixture()
	f.client.Solution = func(p domain.Problem) *domain.Solution {
		sol := &domain.Solution{}
		sol.Unassigned.Add("o1", domain.UnassignedReason{Code: "CAPACITY_CONSTRAINT", Description: "full"})
		return sol
	}

	res, err := f.optimizer().OptimizeWaypoints(context.Background(), request("w1", "w2", "w3"))
	require.NoError(t, err)

	for _, r := range res.Results() {
		assert.False(t, r.Solution.Unassigned.Has("o1"))
		assert.Equal(t, "CAPACITY_CONSTRAINT", r.Solution.Unassigned.Reasons("o1_w1")[0].Code)
		assert.Equal(t, "CAPACITY_CONSTRAINT", r.Solution.Unassigned.Reasons("o1_w2")[0].Code)
	}
}

func TestOptimizeWaypointsSkipsDriverWithSeveralRoutes(t *testing.T) {
	f := newOptimizerFixture()
	f.drivers.drivers = []domain.Driver{testDriver("d1"), testDriver("d2")}
	f.routes.routes["d2"] = []domain.Route{
		{ID: "r1", DriverID: "d2", Status: domain.RouteStatusAwaiting},
		{ID: "r2", DriverID: "d2", Status: domain.RouteStatusAwaiting},
	}

	res, err := f.optimizer().OptimizeWaypoints(context.Background(), request("w1", "w2", "w3"))
	require.NoError(t, err)

	for _, p := range f.client.Submitted() {
		require.Len(t, p.Fleet.Types, 1)
		assert.Equal(t, "d1", p.Fleet.Types[0].ID)
	}
	for _, r := range res.Results() {
		assert.Zero(t, r.Solution.Unassigned.Len())
	}
}

func TestOptimizeWaypointsSkipsStartedRoute(t *testing.T) {
	f := newOptimizerFixture()
	f.drivers.drivers = []domain.Driver{testDriver("d1"), testDriver("d2")}
	f.routes.routes["d2"] = []domain.Route{{ID: "r1", DriverID: "d2", Status: domain.RouteStatusInProgress}}

	_, err := f.optimizer().OptimizeWaypoints(context.Background(), request("w3"))
	require.NoError(t, err)

	for _, p := range f.client.Submitted() {
		require.Len(t, p.Fleet.Types, 1)
		assert.Equal(t, "d1", p.Fleet.Types[0].ID)
	}
}

func TestOptimizeWaypointsAwaitingRouteOverridesDefaults(t *testing.T) {
	f := newOptimizerFixture()
	f.routes.routes["d1"] = []domain.Route{{
		ID:          "r1",
		DriverID:    "d1",
		Status:      domain.RouteStatusAwaiting,
		WaypointIDs: []string{"w3"},
		Meta: domain.RouteMeta{
			StartLocation:    &domain.LocationPolicy{Type: domain.LocationCustom, Value: &domain.Location{Address: "1 Depot Rd"}},
			EndLocation:      &domain.LocationPolicy{Type: domain.LocationLastStop},
			OptimizationTime: "10:00",
		},
	}}

	_, err := f.optimizer().OptimizeWaypoints(context.Background(), request("w3"))
	require.NoError(t, err)

	p := f.client.Submitted()[0]
	require.Len(t, p.Fleet.Types, 1)
	shift := p.Fleet.Types[0].Shifts[0]
	assert.Equal(t, 33.3, shift.Start.Location.Lat, "custom start is geocoded")
	assert.Equal(t, 10, shift.Start.Time.Hour())
	assert.Nil(t, shift.End, "last stop end leaves the shift open")

	require.Len(t, p.Plan.Relations, 1)
	assert.Equal(t, []string{"o2_w3"}, p.Plan.Relations[0].Jobs)
	assert.Equal(t, "d1_1", p.Plan.Relations[0].VehicleID)
}

func TestOptimizeWaypointsOneFailedStrategyFailsAll(t *testing.T) {
	f := newOptimizerFixture()
	f.client.Script = func(n int, p domain.Problem) []here.MockStep {
		if hasObjective(p, "minimizeTours") {
			return []here.MockStep{pending(), failure(&domain.RemoteError{Title: "Solver error", Cause: "no feasible tours"})}
		}
		return []here.MockStep{success(n)}
	}

	res, err := f.optimizer().OptimizeWaypoints(context.Background(), request("w1", "w2", "w3"))
	require.Error(t, err)
	assert.Nil(t, res)

	var optErr *domain.OptimizationError
	require.ErrorAs(t, err, &optErr)
	assert.Equal(t, domain.StrategyMinVehicle, optErr.Strategy)
	assert.Equal(t, "Optimization error: no feasible tours", err.Error())

	assert.Len(t, f.client.Submitted(), 4, "every strategy settles before the call fails")
}

func TestOptimizeWaypointsFailureWithoutReason(t *testing.T) {
	f := newOptimizerFixture()
	f.client.Script = func(n int, p domain.Problem) []here.MockStep {
		if hasObjective(p, "balanceDuration") {
			return []here.MockStep{failure(&domain.RemoteError{Code: "E500"})}
		}
		return []here.MockStep{success(n)}
	}

	_, err := f.optimizer().OptimizeWaypoints(context.Background(), request("w3"))
	require.Error(t, err)
	assert.Equal(t, "Optimization error: Internal error", err.Error())
}

func TestOptimizeWaypointsRecoversFromAvoidRejection(t *testing.T) {
	f := newOptimizerFixture()
	f.avoid = []string{"tollRoad"}
	f.client.Script = func(n int, p domain.Problem) []here.MockStep {
		if len(p.AvoidFeatures()) > 0 {
			return []here.MockStep{failure(avoidRejection("tollRoad"))}
		}
		return []here.MockStep{pending(), success(n)}
	}

	res, err := f.optimizer().OptimizeWaypoints(context.Background(), request("w1", "w2", "w3"))
	require.NoError(t, err)
	for _, r := range res.Results() {
		assert.NotEmpty(t, r.Solution.Tours)
	}

	submitted := f.client.Submitted()
	require.Len(t, submitted, 8)
	withFeature := 0
	for _, p := range submitted {
		if len(p.AvoidFeatures()) > 0 {
			withFeature++
		}
	}
	assert.Equal(t, 4, withFeature, "each strategy resubmits exactly once")

	for _, s := range domain.Strategies() {
		assert.Contains(t, f.events.kinds(s), ports.JobRepaired)
	}
}
