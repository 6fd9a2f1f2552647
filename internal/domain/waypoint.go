package domain

import "time"

type WaypointKind string

const (
	WaypointCollection WaypointKind = "collection"
	WaypointDelivery   WaypointKind = "delivery"
)

// Represents a single physical stop to visit.
// Waypoints are read-only to the optimizer; they are loaded from persistence,
// validated and converted into jobs of the problem description.
type Waypoint struct {
	ID          string
	OrderID     string
	Kind        WaypointKind
	Location    Location
	ServiceTime time.Duration
	TimeWindow  ClockWindow
	Completed   bool
}

func (w Waypoint) IsCollection() bool { return w.Kind == WaypointCollection }

// One entry of an order's required visiting sequence.
type OrderStop struct {
	WaypointID string
	Completed  bool
}

// Groups waypoints that must be visited in the listed sequence
// (e.g. pickup before drop-off).
type Order struct {
	ID    string
	Stops []OrderStop
}

// Return the position of the waypoint in the order sequence, or -1.
func (o Order) IndexOf(waypointID string) int {
	for i, s := range o.Stops {
		if s.WaypointID == waypointID {
			return i
		}
	}
	return -1
}

// JobKey identifies a waypoint inside a problem description and the unassigned ledger.
func JobKey(orderID, waypointID string) string {
	return orderID + "_" + waypointID
}
