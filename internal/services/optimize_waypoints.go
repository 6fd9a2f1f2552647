package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"
	"tour-optimization-service/internal/domain"
	"tour-optimization-service/internal/metrics"
	"tour-optimization-service/internal/platform/obs"
	"tour-optimization-service/internal/ports"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

type OptimizeRequest struct {
	// Route date; only the calendar day is used.
	Date time.Time
	// Clock time ("HH:MM") in the manager timezone from which planning starts.
	Time        string
	Manager     *domain.Manager
	WaypointIDs []string
	// Restricts the fleet to these drivers when non-empty.
	DriverIDs   []string
	DriverStart domain.LocationPolicy
	DriverEnd   domain.LocationPolicy
}

// Optimizer runs one optimization request against every strategy.
type Optimizer struct {
	Waypoints ports.WaypointRepository
	Drivers   ports.DriverRepository
	Routes    ports.RouteRepository
	Resolver  *Resolver
	// Optional; custom locations given only by address fail without it.
	Geocoder   ports.Geocoder
	NewBuilder func() ports.ProblemBuilder
}

type strategyOutcome struct {
	solution *domain.Solution
	err      error
}

// OptimizeWaypoints assembles one problem from the requested waypoints and
// drivers, resolves it under every strategy concurrently and returns the
// four results in fixed order.
//
// Waypoints rejected before submission are reported in every result's
// unassigned ledger. A failure of any strategy fails the whole call.
func (o *Optimizer) OptimizeWaypoints(ctx context.Context, req OptimizeRequest) (_ *domain.OptimizationResult, err error) {
	runID := uuid.NewString()
	ctx = obs.WithRunID(ctx, runID)
	defer obs.Time(ctx, "optimize.OptimizeWaypoints")(&err)

	if req.Manager == nil {
		return nil, domain.Precondition("Optimization requires manager entity to be defined.")
	}
	if len(req.WaypointIDs) == 0 {
		return nil, domain.Precondition("Optimization requires at least 1 waypoint.")
	}
	tz, err := req.Manager.LoadLocation()
	if err != nil {
		return nil, domain.Precondition("%v", err)
	}
	if req.DriverStart.Type == "" {
		req.DriverStart.Type = domain.LocationCurrent
	}
	if req.DriverEnd.Type == "" {
		req.DriverEnd.Type = domain.LocationWarehouse
	}

	var (
		waypoints []domain.Waypoint
		orders    map[string]domain.Order
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		waypoints, err = o.Waypoints.GetWaypoints(gctx, req.WaypointIDs)
		if err != nil {
			return fmt.Errorf("optimize: get waypoints: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		orders, err = o.Waypoints.GetWaypointOrders(gctx, req.WaypointIDs)
		if err != nil {
			return fmt.Errorf("optimize: get waypoint orders: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if len(waypoints) != len(req.WaypointIDs) {
		return nil, domain.Precondition("Optimization requires every requested waypoint to exist (%d of %d found).", len(waypoints), len(req.WaypointIDs))
	}
	if allCollections(waypoints) {
		return nil, domain.Precondition("Only Collection waypoints were provided.")
	}
	for _, w := range waypoints {
		if _, ok := orders[w.ID]; !ok {
			return nil, domain.Precondition("Waypoint %s has no order.", w.ID)
		}
	}

	var unassigned domain.Ledger

	violations := CheckOrderWaypointsSequence(waypoints, orders)
	rejected := make(map[string]bool, len(violations))
	for _, v := range violations {
		unassigned.Add(v.JobKey, domain.UnassignedReason{Code: domain.CodeOrderSequence, Description: v.Description})
		metrics.Unassigned.WithLabelValues(domain.CodeOrderSequence).Inc()
		rejected[v.WaypointID] = true
	}

	builder := o.NewBuilder()
	builder.SetRouteDate(req.Date)

	// Earlier stops are added first so a dropped stop also drops the stops
	// that must follow it.
	dropped := make(map[string]bool)
	for _, w := range inSequence(waypoints, orders) {
		if rejected[w.ID] {
			continue
		}
		order := orders[w.ID]
		key := domain.JobKey(order.ID, w.ID)
		if prev := droppedPredecessor(order, w.ID, dropped); prev != "" {
			unassigned.Add(key, domain.UnassignedReason{Code: domain.CodeOrderSequence, Description: followsUnplannable(order.ID, w.ID, prev)})
			metrics.Unassigned.WithLabelValues(domain.CodeOrderSequence).Inc()
			dropped[w.ID] = true
			continue
		}
		if err := builder.AddWaypoint(w, order, tz, req.Time); err != nil {
			unassigned.Add(key, domain.UnassignedReason{Code: domain.CodeTimeWindow, Description: err.Error()})
			metrics.Unassigned.WithLabelValues(domain.CodeTimeWindow).Inc()
			dropped[w.ID] = true
		}
	}

	drivers, err := o.Drivers.ListDriversForOptimization(ctx, req.Manager.ID, req.DriverIDs, builder.RouteDate())
	if err != nil {
		return nil, fmt.Errorf("optimize: list drivers: %w", err)
	}
	if len(drivers) == 0 {
		return nil, domain.Precondition("No available drivers.")
	}

	for _, d := range drivers {
		if err := o.addDriver(ctx, builder, req, *req.Manager, tz, d); err != nil {
			log.Printf("Couldn't add driver %s to optimization run_id=%s: %v", d.ID, runID, err)
		}
	}

	if !builder.HasFleetTypes() {
		return nil, domain.Precondition("No available drivers with known location.")
	}

	problem := builder.Build()
	log.Printf("run_id=%s optimize jobs=%d fleet=%d unassigned=%d", runID, len(problem.Plan.Jobs), len(problem.Fleet.Types), unassigned.Len())

	strategies := domain.Strategies()
	outcomes := make([]strategyOutcome, len(strategies))

	var wg sync.WaitGroup
	for i, s := range strategies {
		wg.Add(1)
		go func(i int, s domain.Strategy) {
			defer wg.Done()
			sol, err := o.Resolver.Resolve(ctx, s, problem.WithObjectives(s.Objectives()))
			outcomes[i] = strategyOutcome{solution: sol, err: err}
		}(i, s)
	}
	wg.Wait()

	results := make([]domain.StrategyResult, len(strategies))
	for i, s := range strategies {
		out := outcomes[i]
		if out.err != nil {
			return nil, newOptimizationError(s, out.err)
		}
		if out.solution == nil {
			return nil, newOptimizationError(s, errors.New("empty solution"))
		}

		sol := *out.solution
		sol.Unassigned = domain.MergeLedgers(unassigned, problem.UnassignedByWaypoint(sol.Unassigned))
		results[i] = domain.StrategyResult{Strategy: s, Solution: sol}
	}

	return &domain.OptimizationResult{
		Balanced:   results[0],
		Fastest:    results[1],
		MinVehicle: results[2],
		Cheapest:   results[3],
	}, nil
}

// addDriver merges one driver into the fleet. Drivers with more than one
// route on the date, or whose route already started, are skipped.
func (o *Optimizer) addDriver(
	ctx context.Context,
	builder ports.ProblemBuilder,
	req OptimizeRequest,
	manager domain.Manager,
	tz *time.Location,
	driver domain.Driver,
) error {
	routes, err := o.Routes.ListDriverRoutes(ctx, driver.ID, builder.RouteDate())
	if err != nil {
		return fmt.Errorf("list routes: %w", err)
	}
	if len(routes) > 1 {
		return fmt.Errorf("%w: number of routes assigned to driver is more than one", domain.ErrDriverAssembly)
	}

	var route *domain.Route
	if len(routes) == 1 {
		route = &routes[0]
		if !route.IsAwaiting() {
			log.Printf("driver %s skipped: route %s is %s", driver.ID, route.ID, route.Status)
			return nil
		}
	}

	startPolicy, endPolicy, clock := req.DriverStart, req.DriverEnd, req.Time
	if route != nil {
		if route.Meta.StartLocation != nil {
			startPolicy = *route.Meta.StartLocation
		}
		if route.Meta.EndLocation != nil {
			endPolicy = *route.Meta.EndLocation
		}
		if route.Meta.OptimizationTime != "" {
			clock = route.Meta.OptimizationTime
		}
	}

	start, err := resolveLocation(ctx, startPolicy, false, driver, manager, o.Geocoder)
	if err != nil {
		return err
	}
	end, err := resolveLocation(ctx, endPolicy, true, driver, manager, o.Geocoder)
	if err != nil {
		return err
	}

	shift, err := driver.Shift.On(builder.RouteDate(), tz)
	if err != nil {
		return fmt.Errorf("%w: driver %s shift: %v", domain.ErrDriverAssembly, driver.ID, err)
	}
	if clock != "" {
		now, err := optimizationInstant(builder.RouteDate(), tz, clock)
		if err != nil {
			return fmt.Errorf("%w: %v", domain.ErrDriverAssembly, err)
		}
		if now.After(shift.Start) {
			shift.Start = now
		}
	}

	if err := builder.AddDriver(ports.DriverEntry{
		Driver:     driver,
		Start:      *start,
		End:        end,
		ShiftStart: shift.Start,
		ShiftEnd:   shift.End,
	}); err != nil {
		return err
	}

	if route != nil {
		builder.AddDriverRoute(driver, *route)
	}
	return nil
}

func allCollections(waypoints []domain.Waypoint) bool {
	for _, w := range waypoints {
		if !w.IsCollection() {
			return false
		}
	}
	return true
}

func newOptimizationError(s domain.Strategy, err error) *domain.OptimizationError {
	reason := ""
	var remote *domain.RemoteError
	if errors.As(err, &remote) {
		reason = remote.Reason()
	} else if err != nil {
		reason = err.Error()
	}
	if strings.TrimSpace(reason) == "" {
		reason = "Internal error"
	}
	return &domain.OptimizationError{Strategy: s, Reason: reason, Err: err}
}
