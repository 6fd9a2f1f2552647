package services

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"
	"tour-optimization-service/internal/adapters/here"
	"tour-optimization-service/internal/domain"
	"tour-optimization-service/internal/ports"
)

var testDate = time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)

type fakeWaypoints struct {
	waypoints map[string]domain.Waypoint
	orders    map[string]domain.Order
}

func (f *fakeWaypoints) GetWaypoints(_ context.Context, ids []string) ([]domain.Waypoint, error) {
	out := make([]domain.Waypoint, 0, len(ids))
	for _, id := range ids {
		if w, ok := f.waypoints[id]; ok {
			out = append(out, w)
		}
	}
	return out, nil
}

func (f *fakeWaypoints) GetWaypointOrders(_ context.Context, ids []string) (map[string]domain.Order, error) {
	out := map[string]domain.Order{}
	for _, id := range ids {
		w, ok := f.waypoints[id]
		if !ok {
			continue
		}
		if o, ok := f.orders[w.OrderID]; ok {
			out[id] = o
		}
	}
	return out, nil
}

type fakeDrivers struct{ drivers []domain.Driver }

func (f *fakeDrivers) ListDriversForOptimization(_ context.Context, _ string, ids []string, _ time.Time) ([]domain.Driver, error) {
	if len(ids) == 0 {
		return f.drivers, nil
	}
	var out []domain.Driver
	for _, d := range f.drivers {
		if slices.Contains(ids, d.ID) {
			out = append(out, d)
		}
	}
	return out, nil
}

type fakeRoutes struct{ routes map[string][]domain.Route }

func (f *fakeRoutes) ListDriverRoutes(_ context.Context, driverID string, _ time.Time) ([]domain.Route, error) {
	return f.routes[driverID], nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []ports.JobEvent
}

func (p *recordingPublisher) Publish(_ context.Context, e ports.JobEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
}

func (p *recordingPublisher) kinds(strategy domain.Strategy) []ports.JobEventKind {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []ports.JobEventKind
	for _, e := range p.events {
		if e.Strategy == strategy {
			out = append(out, e.Kind)
		}
	}
	return out
}

type fakeGeocoder struct{ loc domain.Location }

func (g fakeGeocoder) Geocode(_ context.Context, address string) (domain.Location, error) {
	loc := g.loc
	loc.Address = address
	return loc, nil
}

func loc(lat, lng float64) *domain.Location {
	return &domain.Location{Lat: lat, Lng: lng}
}

func waypoint(id, orderID string, kind domain.WaypointKind) domain.Waypoint {
	return domain.Waypoint{
		ID:          id,
		OrderID:     orderID,
		Kind:        kind,
		Location:    domain.Location{Lat: 33.4, Lng: -112.0},
		ServiceTime: 5 * time.Minute,
		TimeWindow:  domain.ClockWindow{From: "08:00", To: "17:00"},
	}
}

// Two orders: o1 collects at w1 and delivers at w2, o2 delivers at w3.
func testWaypoints() *fakeWaypoints {
	return &fakeWaypoints{
		waypoints: map[string]domain.Waypoint{
			"w1": waypoint("w1", "o1", domain.WaypointCollection),
			"w2": waypoint("w2", "o1", domain.WaypointDelivery),
			"w3": waypoint("w3", "o2", domain.WaypointDelivery),
		},
		orders: map[string]domain.Order{
			"o1": {ID: "o1", Stops: []domain.OrderStop{{WaypointID: "w1"}, {WaypointID: "w2"}}},
			"o2": {ID: "o2", Stops: []domain.OrderStop{{WaypointID: "w3"}}},
		},
	}
}

func testDriver(id string) domain.Driver {
	return domain.Driver{
		ID:              id,
		Name:            "Driver " + id,
		CurrentLocation: loc(33.45, -112.07),
		Shift:           domain.ClockWindow{From: "08:00", To: "18:00"},
		Capacity:        10,
	}
}

func testManager() *domain.Manager {
	return &domain.Manager{ID: "m1", Timezone: "UTC", Warehouse: loc(33.5, -112.1)}
}

type optimizerFixture struct {
	client    *here.MockTouringClient
	events    *recordingPublisher
	waypoints *fakeWaypoints
	drivers   *fakeDrivers
	routes    *fakeRoutes
	avoid     []string
}

func newOptimizerFixture() *optimizerFixture {
	return &optimizerFixture{
		client:    &here.MockTouringClient{},
		events:    &recordingPublisher{},
		waypoints: testWaypoints(),
		drivers:   &fakeDrivers{drivers: []domain.Driver{testDriver("d1")}},
		routes:    &fakeRoutes{routes: map[string][]domain.Route{}},
	}
}

func (f *optimizerFixture) optimizer() *Optimizer {
	return &Optimizer{
		Waypoints: f.waypoints,
		Drivers:   f.drivers,
		Routes:    f.routes,
		Resolver: &Resolver{
			Client:       f.client,
			Events:       f.events,
			PollInterval: time.Millisecond,
		},
		Geocoder: fakeGeocoder{loc: domain.Location{Lat: 33.3, Lng: -111.9}},
		NewBuilder: func() ports.ProblemBuilder {
			return NewTourProblemBuilder(domain.Profile{Name: "car", Type: "car", AvoidFeatures: f.avoid}, 50)
		},
	}
}

func request(ids ...string) OptimizeRequest {
	return OptimizeRequest{
		Date:        testDate,
		Time:        "07:00",
		Manager:     testManager(),
		WaypointIDs: ids,
	}
}

func pending() here.MockStep {
	return here.MockStep{Status: ports.JobStatus{Status: "inProgress"}}
}

func success(submission int) here.MockStep {
	res := ports.ResourceHandle(fmt.Sprintf("mock://solution/%d", submission))
	return here.MockStep{Status: ports.JobStatus{Status: ports.JobStatusSuccess, Resource: &res}}
}

func failure(remote *domain.RemoteError) here.MockStep {
	return here.MockStep{Status: ports.JobStatus{Status: ports.JobStatusFailure, Error: remote}}
}

func hasObjective(p domain.Problem, objective string) bool {
	return slices.ContainsFunc(p.Objectives, func(o domain.Objective) bool { return o.Type == objective })
}
