package services

import (
	"cmp"
	"fmt"
	"slices"
	"time"
	"tour-optimization-service/internal/domain"
	"tour-optimization-service/internal/ports"
)

// Cost model applied to every fleet type.
var defaultVehicleCosts = domain.VehicleCosts{Fixed: 22, Distance: 0.0001, Time: 0.0048}

// TourProblemBuilder assembles the shared problem description for one run.
// It is not safe for concurrent use; Build returns an independent copy.
type TourProblemBuilder struct {
	routeDate       time.Time
	profile         domain.Profile
	defaultCapacity int

	types    []domain.VehicleType
	orderIDs []string
	stops    map[string][]plannedStop
	planned  map[string]bool
	routes   []routeBinding
}

// A validated waypoint waiting to be grouped into jobs by Build.
type plannedStop struct {
	waypointID string
	position   int
	collection bool
	task       domain.JobTask
}

type routeBinding struct {
	vehicleID   string
	waypointIDs []string
}

var _ ports.ProblemBuilder = (*TourProblemBuilder)(nil)

func NewTourProblemBuilder(profile domain.Profile, defaultCapacity int) *TourProblemBuilder {
	if profile.Name == "" {
		profile.Name = "car"
	}
	if profile.Type == "" {
		profile.Type = "car"
	}
	profile.AvoidFeatures = slices.Clone(profile.AvoidFeatures)

	return &TourProblemBuilder{
		profile:         profile,
		defaultCapacity: defaultCapacity,
		stops:           map[string][]plannedStop{},
		planned:         map[string]bool{},
	}
}

func (b *TourProblemBuilder) SetRouteDate(date time.Time) { b.routeDate = date }

func (b *TourProblemBuilder) RouteDate() time.Time { return b.routeDate }

// Add a waypoint as one task of its order. The time window is resolved on
// the route date in loc and clipped to the optimization time.
func (b *TourProblemBuilder) AddWaypoint(
	w domain.Waypoint,
	order domain.Order,
	loc *time.Location,
	optimizationTime string,
) error {
	key := domain.JobKey(order.ID, w.ID)
	if b.planned[w.ID] {
		return fmt.Errorf("%w: waypoint %s is already planned", domain.ErrConstraintViolation, w.ID)
	}
	if !w.Location.HasCoordinates() {
		return fmt.Errorf("%w: waypoint %s has no coordinates", domain.ErrConstraintViolation, w.ID)
	}

	window, err := w.TimeWindow.On(b.routeDate, loc)
	if err != nil {
		return fmt.Errorf("%w: waypoint %s: %v", domain.ErrConstraintViolation, w.ID, err)
	}
	if !window.Valid() {
		return fmt.Errorf("%w: waypoint %s time window %s-%s is empty",
			domain.ErrConstraintViolation, w.ID, w.TimeWindow.From, w.TimeWindow.To)
	}

	if optimizationTime != "" {
		now, err := optimizationInstant(b.routeDate, loc, optimizationTime)
		if err != nil {
			return fmt.Errorf("%w: %v", domain.ErrConstraintViolation, err)
		}
		if !window.End.After(now) {
			return fmt.Errorf("%w: waypoint %s time window closes at %s, before optimization time %s",
				domain.ErrConstraintViolation, w.ID, window.End.Format("15:04"), optimizationTime)
		}
		if window.Start.Before(now) {
			window.Start = now
		}
	}

	task := domain.JobTask{
		Tag:    key,
		Demand: []int{1},
		Places: []domain.JobPlace{{
			Location: w.Location,
			Duration: w.ServiceTime,
			Times:    []domain.TimeWindow{window},
		}},
	}

	if _, seen := b.stops[order.ID]; !seen {
		b.orderIDs = append(b.orderIDs, order.ID)
	}
	b.stops[order.ID] = append(b.stops[order.ID], plannedStop{
		waypointID: w.ID,
		position:   order.IndexOf(w.ID),
		collection: w.IsCollection(),
		task:       task,
	})
	b.planned[w.ID] = true
	return nil
}

// Add a driver as a fleet type with a single vehicle.
func (b *TourProblemBuilder) AddDriver(entry ports.DriverEntry) error {
	d := entry.Driver
	if slices.ContainsFunc(b.types, func(t domain.VehicleType) bool { return t.ID == d.ID }) {
		return fmt.Errorf("%w: driver %s is already in the fleet", domain.ErrDriverAssembly, d.ID)
	}
	if !entry.Start.HasCoordinates() {
		return fmt.Errorf("%w: driver %s has no start location", domain.ErrDriverAssembly, d.ID)
	}
	if entry.ShiftStart.IsZero() {
		return fmt.Errorf("%w: driver %s has no shift start", domain.ErrDriverAssembly, d.ID)
	}
	if !entry.ShiftEnd.IsZero() && !entry.ShiftEnd.After(entry.ShiftStart) {
		return fmt.Errorf("%w: driver %s shift is already over", domain.ErrDriverAssembly, d.ID)
	}

	shift := domain.Shift{Start: domain.ShiftPoint{Time: entry.ShiftStart, Location: entry.Start}}
	if entry.End != nil {
		end := entry.ShiftEnd
		if end.IsZero() {
			end = entry.ShiftStart.Add(24 * time.Hour)
		}
		shift.End = &domain.ShiftPoint{Time: end, Location: *entry.End}
	}

	capacity := d.Capacity
	if capacity <= 0 {
		capacity = b.defaultCapacity
	}

	b.types = append(b.types, domain.VehicleType{
		ID:       d.ID,
		DriverID: d.ID,
		Profile:  b.profile.Name,
		Costs:    defaultVehicleCosts,
		Shifts:   []domain.Shift{shift},
		Capacity: []int{capacity},
		Amount:   1,
	})
	return nil
}

// Bind the planned jobs of an existing route to the driver's vehicle.
// Route waypoints that are not part of the problem are ignored.
func (b *TourProblemBuilder) AddDriverRoute(driver domain.Driver, route domain.Route) {
	b.routes = append(b.routes, routeBinding{
		vehicleID:   domain.VehicleType{ID: driver.ID}.VehicleID(),
		waypointIDs: slices.Clone(route.WaypointIDs),
	})
}

func (b *TourProblemBuilder) HasFleetTypes() bool { return len(b.types) > 0 }

func (b *TourProblemBuilder) Build() domain.Problem {
	jobs, jobOf := b.assembleJobs()

	var relations []domain.Relation
	for _, r := range b.routes {
		var ids []string
		for _, wid := range r.waypointIDs {
			if id, ok := jobOf[wid]; ok && !slices.Contains(ids, id) {
				ids = append(ids, id)
			}
		}
		if len(ids) == 0 {
			continue
		}
		relations = append(relations, domain.Relation{Type: domain.RelationTour, Jobs: ids, VehicleID: r.vehicleID})
	}

	p := domain.Problem{
		RouteDate: b.routeDate,
		Fleet: domain.Fleet{
			Types:    b.types,
			Profiles: []domain.Profile{b.profile},
		},
		Plan: domain.Plan{
			Jobs:      jobs,
			Relations: relations,
		},
	}
	return p.Clone()
}

// assembleJobs groups each order's planned stops into jobs and returns them
// with the job id of every planned waypoint.
//
// Consecutive collections followed by deliveries of one order form a single
// pickup+delivery job, so the remote service serves them with one vehicle in
// that order. Any other stop becomes a job of its own keyed by its job key.
func (b *TourProblemBuilder) assembleJobs() ([]domain.Job, map[string]string) {
	var jobs []domain.Job
	jobOf := map[string]string{}

	for _, orderID := range b.orderIDs {
		stops := slices.Clone(b.stops[orderID])
		slices.SortStableFunc(stops, func(a, c plannedStop) int { return cmp.Compare(a.position, c.position) })

		multi := 0
		for _, seg := range pickupDeliveryRuns(stops) {
			if len(seg) == 1 || !hasBothKinds(seg) {
				for _, st := range seg {
					jobs = append(jobs, singleTaskJob(st))
					jobOf[st.waypointID] = st.task.Tag
				}
				continue
			}

			multi++
			id := orderID
			if multi > 1 {
				id = fmt.Sprintf("%s#%d", orderID, multi)
			}
			jobs = append(jobs, pickupDeliveryJob(id, seg))
			for _, st := range seg {
				jobOf[st.waypointID] = id
			}
		}
	}
	return jobs, jobOf
}

// pickupDeliveryRuns splits stops sorted by position wherever a collection
// follows a delivery. Stops missing from their order's sequence stand alone.
func pickupDeliveryRuns(stops []plannedStop) [][]plannedStop {
	var runs [][]plannedStop
	var cur []plannedStop
	for _, st := range stops {
		if st.position < 0 {
			runs = append(runs, []plannedStop{st})
			continue
		}
		if len(cur) > 0 && st.collection && !cur[len(cur)-1].collection {
			runs = append(runs, cur)
			cur = nil
		}
		cur = append(cur, st)
	}
	if len(cur) > 0 {
		runs = append(runs, cur)
	}
	return runs
}

func hasBothKinds(stops []plannedStop) bool {
	pickups := 0
	for _, st := range stops {
		if st.collection {
			pickups++
		}
	}
	return pickups > 0 && pickups < len(stops)
}

func singleTaskJob(st plannedStop) domain.Job {
	job := domain.Job{ID: st.task.Tag}
	if st.collection {
		job.Pickups = []domain.JobTask{st.task}
	} else {
		job.Deliveries = []domain.JobTask{st.task}
	}
	return job
}

// pickupDeliveryJob spreads the delivered amount over the pickups so both
// sides of the job carry the same demand.
func pickupDeliveryJob(id string, stops []plannedStop) domain.Job {
	job := domain.Job{ID: id}
	for _, st := range stops {
		if !st.collection {
			job.Deliveries = append(job.Deliveries, st.task)
		}
	}
	for _, st := range stops {
		if st.collection {
			job.Pickups = append(job.Pickups, st.task)
		}
	}

	total, n := len(job.Deliveries), len(job.Pickups)
	for i := range job.Pickups {
		amount := total / n
		if i < total%n {
			amount++
		}
		job.Pickups[i].Demand = []int{amount}
	}
	return job
}

// Return the optimization time ("HH:MM") on the route date in loc.
func optimizationInstant(routeDate time.Time, loc *time.Location, clock string) (time.Time, error) {
	y, m, d := routeDate.Date()
	t, err := domain.AtClock(time.Date(y, m, d, 0, 0, 0, 0, loc), clock)
	if err != nil {
		return time.Time{}, fmt.Errorf("optimization time: %w", err)
	}
	return t, nil
}
