package here

import (
	"time"
	"tour-optimization-service/internal/domain"
)

type wireLocation struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

type wireProblem struct {
	Fleet      wireFleet       `json:"fleet"`
	Plan       wirePlan        `json:"plan"`
	Objectives []wireObjective `json:"objectives,omitempty"`
}

type wireObjective struct {
	Type string `json:"type"`
}

type wireFleet struct {
	Types    []wireVehicleType `json:"types"`
	Profiles []wireProfile     `json:"profiles"`
}

type wireVehicleType struct {
	ID       string      `json:"id"`
	Profile  string      `json:"profile"`
	Costs    wireCosts   `json:"costs"`
	Shifts   []wireShift `json:"shifts"`
	Capacity []int       `json:"capacity"`
	Amount   int         `json:"amount"`
}

type wireCosts struct {
	Fixed    float64 `json:"fixed"`
	Distance float64 `json:"distance"`
	Time     float64 `json:"time"`
}

type wireShift struct {
	Start wireShiftPoint  `json:"start"`
	End   *wireShiftPoint `json:"end,omitempty"`
}

type wireShiftPoint struct {
	Time     string       `json:"time"`
	Location wireLocation `json:"location"`
}

type wireProfile struct {
	Name  string     `json:"name"`
	Type  string     `json:"type"`
	Avoid *wireAvoid `json:"avoid,omitempty"`
}

type wireAvoid struct {
	Features []string `json:"features"`
}

type wirePlan struct {
	Jobs      []wireJob      `json:"jobs"`
	Relations []wireRelation `json:"relations,omitempty"`
}

type wireJob struct {
	ID    string    `json:"id"`
	Tasks wireTasks `json:"tasks"`
}

type wireTasks struct {
	Pickups    []wireTask `json:"pickups,omitempty"`
	Deliveries []wireTask `json:"deliveries,omitempty"`
}

type wireTask struct {
	Places []wirePlace `json:"places"`
	Demand []int       `json:"demand"`
	Tag    string      `json:"tag,omitempty"`
}

type wirePlace struct {
	Location wireLocation `json:"location"`
	Duration int          `json:"duration"`
	Times    [][2]string  `json:"times,omitempty"`
}

type wireRelation struct {
	Type      string   `json:"type"`
	Jobs      []string `json:"jobs"`
	VehicleID string   `json:"vehicleId"`
}

type submitResponse struct {
	StatusID string `json:"statusId"`
	Href     string `json:"href"`
}

type statusResponse struct {
	Status   string `json:"status"`
	Resource *struct {
		Type string `json:"type"`
		Href string `json:"href"`
	} `json:"resource"`
	Error *domain.RemoteError `json:"error"`
}

type wireStatistic struct {
	Cost     float64 `json:"cost"`
	Distance int     `json:"distance"`
	Duration int     `json:"duration"`
}

type wireSolution struct {
	Statistic  wireStatistic    `json:"statistic"`
	Tours      []wireTour       `json:"tours"`
	Unassigned []wireUnassigned `json:"unassigned"`
}

type wireTour struct {
	VehicleID string        `json:"vehicleId"`
	TypeID    string        `json:"typeId"`
	Stops     []wireStop    `json:"stops"`
	Statistic wireStatistic `json:"statistic"`
}

type wireStop struct {
	Location wireLocation `json:"location"`
	Time     struct {
		Arrival   time.Time `json:"arrival"`
		Departure time.Time `json:"departure"`
	} `json:"time"`
	Load       []int          `json:"load"`
	Activities []wireActivity `json:"activities"`
}

type wireActivity struct {
	JobID  string `json:"jobId"`
	JobTag string `json:"jobTag,omitempty"`
	Type   string `json:"type"`
}

type wireUnassigned struct {
	JobID   string                    `json:"jobId"`
	Reasons []domain.UnassignedReason `json:"reasons"`
}

func toWireLocation(l domain.Location) wireLocation {
	return wireLocation{Lat: l.Lat, Lng: l.Lng}
}

func toWireProblem(p domain.Problem) wireProblem {
	out := wireProblem{
		Fleet: wireFleet{
			Types:    make([]wireVehicleType, 0, len(p.Fleet.Types)),
			Profiles: make([]wireProfile, 0, len(p.Fleet.Profiles)),
		},
		Plan: wirePlan{Jobs: make([]wireJob, 0, len(p.Plan.Jobs))},
	}

	for _, t := range p.Fleet.Types {
		wt := wireVehicleType{
			ID:       t.ID,
			Profile:  t.Profile,
			Costs:    wireCosts{Fixed: t.Costs.Fixed, Distance: t.Costs.Distance, Time: t.Costs.Time},
			Capacity: t.Capacity,
			Amount:   t.Amount,
		}
		for _, s := range t.Shifts {
			ws := wireShift{Start: toWireShiftPoint(s.Start)}
			if s.End != nil {
				end := toWireShiftPoint(*s.End)
				ws.End = &end
			}
			wt.Shifts = append(wt.Shifts, ws)
		}
		out.Fleet.Types = append(out.Fleet.Types, wt)
	}

	for _, pr := range p.Fleet.Profiles {
		wp := wireProfile{Name: pr.Name, Type: pr.Type}
		if len(pr.AvoidFeatures) > 0 {
			wp.Avoid = &wireAvoid{Features: pr.AvoidFeatures}
		}
		out.Fleet.Profiles = append(out.Fleet.Profiles, wp)
	}

	for _, j := range p.Plan.Jobs {
		out.Plan.Jobs = append(out.Plan.Jobs, wireJob{
			ID: j.ID,
			Tasks: wireTasks{
				Pickups:    toWireTasks(j.Pickups),
				Deliveries: toWireTasks(j.Deliveries),
			},
		})
	}

	for _, r := range p.Plan.Relations {
		out.Plan.Relations = append(out.Plan.Relations, wireRelation{Type: r.Type, Jobs: r.Jobs, VehicleID: r.VehicleID})
	}

	for _, o := range p.Objectives {
		out.Objectives = append(out.Objectives, wireObjective{Type: o.Type})
	}

	return out
}

func toWireShiftPoint(sp domain.ShiftPoint) wireShiftPoint {
	return wireShiftPoint{Time: sp.Time.Format(time.RFC3339), Location: toWireLocation(sp.Location)}
}

func toWireTasks(tasks []domain.JobTask) []wireTask {
	if len(tasks) == 0 {
		return nil
	}
	out := make([]wireTask, 0, len(tasks))
	for _, t := range tasks {
		wt := wireTask{Demand: t.Demand, Tag: t.Tag}
		for _, pl := range t.Places {
			wp := wirePlace{
				Location: toWireLocation(pl.Location),
				Duration: int(pl.Duration.Seconds()),
			}
			for _, tw := range pl.Times {
				wp.Times = append(wp.Times, [2]string{tw.Start.Format(time.RFC3339), tw.End.Format(time.RFC3339)})
			}
			wt.Places = append(wt.Places, wp)
		}
		out = append(out, wt)
	}
	return out
}

func fromWireStatistic(s wireStatistic) domain.Statistic {
	return domain.Statistic{Cost: s.Cost, DistanceMeters: s.Distance, DurationSeconds: s.Duration}
}

func fromWireSolution(ws wireSolution) *domain.Solution {
	sol := &domain.Solution{
		Statistic: fromWireStatistic(ws.Statistic),
		Tours:     make([]domain.Tour, 0, len(ws.Tours)),
	}

	for _, wt := range ws.Tours {
		tour := domain.Tour{
			VehicleID: wt.VehicleID,
			TypeID:    wt.TypeID,
			Statistic: fromWireStatistic(wt.Statistic),
			Stops:     make([]domain.TourStop, 0, len(wt.Stops)),
		}
		for _, s := range wt.Stops {
			stop := domain.TourStop{
				Location:  domain.Location{Lat: s.Location.Lat, Lng: s.Location.Lng},
				Arrival:   s.Time.Arrival,
				Departure: s.Time.Departure,
				Load:      s.Load,
			}
			for _, a := range s.Activities {
				stop.Activities = append(stop.Activities, domain.Activity{JobID: a.JobID, JobTag: a.JobTag, Type: a.Type})
			}
			tour.Stops = append(tour.Stops, stop)
		}
		sol.Tours = append(sol.Tours, tour)
	}

	for _, u := range ws.Unassigned {
		for _, r := range u.Reasons {
			sol.Unassigned.Add(u.JobID, r)
		}
	}

	return sol
}
