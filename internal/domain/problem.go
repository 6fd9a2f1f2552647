package domain

import (
	"slices"
	"time"
)

const AllAvoidFeatures = "*"

type Objective struct {
	Type string
}

type ShiftPoint struct {
	Time     time.Time
	Location Location
}

// A shift without End is open-ended: the tour finishes at its last stop.
type Shift struct {
	Start ShiftPoint
	End   *ShiftPoint
}

type VehicleCosts struct {
	Fixed    float64
	Distance float64
	Time     float64
}

// One fleet entry contributed by a driver.
type VehicleType struct {
	ID       string
	DriverID string
	Profile  string
	Costs    VehicleCosts
	Shifts   []Shift
	Capacity []int
	Amount   int
}

// VehicleID names the single vehicle instance of a fleet type.
func (v VehicleType) VehicleID() string { return v.ID + "_1" }

// Routing profile shared by vehicle types; AvoidFeatures lists road
// features (tollRoad, ferry, ...) the remote service should route around.
type Profile struct {
	Name          string
	Type          string
	AvoidFeatures []string
}

type Fleet struct {
	Types    []VehicleType
	Profiles []Profile
}

type JobPlace struct {
	Location Location
	Duration time.Duration
	Times    []TimeWindow
}

type JobTask struct {
	// Job key of the waypoint served by this task.
	Tag    string
	Places []JobPlace
	Demand []int
}

// A job with both pickups and deliveries is served by one vehicle, every
// pickup before any delivery.
type Job struct {
	ID         string
	Pickups    []JobTask
	Deliveries []JobTask
}

// Keys returns the tags of the job's tasks, pickups first. A job without
// tagged tasks is keyed by its id.
func (j Job) Keys() []string {
	var keys []string
	for _, t := range slices.Concat(j.Pickups, j.Deliveries) {
		if t.Tag != "" {
			keys = append(keys, t.Tag)
		}
	}
	if len(keys) == 0 {
		return []string{j.ID}
	}
	return keys
}

const RelationTour = "tour"

type Relation struct {
	Type      string
	Jobs      []string
	VehicleID string
}

type Plan struct {
	Jobs      []Job
	Relations []Relation
}

// Problem is the fleet + jobs aggregate submitted to the remote routing service.
//
// It is assembled once per optimization run and shared read-only by every
// strategy. Methods that produce variants (objectives, stripped avoid
// features) return deep copies and never touch the receiver.
type Problem struct {
	RouteDate  time.Time
	Fleet      Fleet
	Plan       Plan
	Objectives []Objective
}

func (p Problem) HasFleetTypes() bool { return len(p.Fleet.Types) > 0 }

// HasJob reports whether key names a job or one of its tasks.
func (p Problem) HasJob(key string) bool {
	for _, j := range p.Plan.Jobs {
		if j.ID == key || slices.Contains(j.Keys(), key) {
			return true
		}
	}
	return false
}

// UnassignedByWaypoint rekeys a ledger reported per remote job so that
// every entry is keyed by waypoint job key. Unknown keys are kept as they are.
func (p Problem) UnassignedByWaypoint(l Ledger) Ledger {
	var out Ledger
	for _, key := range l.Keys() {
		keys := []string{key}
		for _, j := range p.Plan.Jobs {
			if j.ID == key {
				keys = j.Keys()
				break
			}
		}
		for _, k := range keys {
			for _, r := range l.Reasons(key) {
				out.Add(k, r)
			}
		}
	}
	return out
}

// Clone returns a deep copy.
func (p Problem) Clone() Problem {
	out := Problem{RouteDate: p.RouteDate}

	out.Fleet.Types = make([]VehicleType, len(p.Fleet.Types))
	for i, t := range p.Fleet.Types {
		t.Capacity = slices.Clone(t.Capacity)
		shifts := make([]Shift, len(t.Shifts))
		for si, s := range t.Shifts {
			if s.End != nil {
				end := *s.End
				s.End = &end
			}
			shifts[si] = s
		}
		t.Shifts = shifts
		out.Fleet.Types[i] = t
	}

	out.Fleet.Profiles = make([]Profile, len(p.Fleet.Profiles))
	for i, pr := range p.Fleet.Profiles {
		pr.AvoidFeatures = slices.Clone(pr.AvoidFeatures)
		out.Fleet.Profiles[i] = pr
	}

	out.Plan.Jobs = make([]Job, len(p.Plan.Jobs))
	for i, j := range p.Plan.Jobs {
		j.Pickups = cloneTasks(j.Pickups)
		j.Deliveries = cloneTasks(j.Deliveries)
		out.Plan.Jobs[i] = j
	}

	out.Plan.Relations = make([]Relation, len(p.Plan.Relations))
	for i, r := range p.Plan.Relations {
		r.Jobs = slices.Clone(r.Jobs)
		out.Plan.Relations[i] = r
	}

	out.Objectives = slices.Clone(p.Objectives)
	return out
}

func cloneTasks(tasks []JobTask) []JobTask {
	if tasks == nil {
		return nil
	}
	out := make([]JobTask, len(tasks))
	for i, t := range tasks {
		places := make([]JobPlace, len(t.Places))
		for pi, pl := range t.Places {
			pl.Times = slices.Clone(pl.Times)
			places[pi] = pl
		}
		out[i] = JobTask{Tag: t.Tag, Places: places, Demand: slices.Clone(t.Demand)}
	}
	return out
}

// Return a copy of the problem with the given objectives.
func (p Problem) WithObjectives(objectives []Objective) Problem {
	out := p.Clone()
	out.Objectives = slices.Clone(objectives)
	return out
}

// AvoidFeatures lists the distinct avoid features across all profiles.
func (p Problem) AvoidFeatures() []string {
	var out []string
	for _, pr := range p.Fleet.Profiles {
		for _, f := range pr.AvoidFeatures {
			if !slices.Contains(out, f) {
				out = append(out, f)
			}
		}
	}
	return out
}

// WithoutAvoidFeature returns a copy with feature removed from every profile.
// AllAvoidFeatures strips every avoid feature. The boolean reports whether
// anything was removed.
func (p Problem) WithoutAvoidFeature(feature string) (Problem, bool) {
	out := p.Clone()
	changed := false
	for i, pr := range out.Fleet.Profiles {
		kept := pr.AvoidFeatures[:0]
		for _, f := range pr.AvoidFeatures {
			if feature == AllAvoidFeatures || f == feature {
				changed = true
				continue
			}
			kept = append(kept, f)
		}
		if len(kept) == 0 {
			kept = nil
		}
		out.Fleet.Profiles[i].AvoidFeatures = kept
	}
	return out, changed
}
