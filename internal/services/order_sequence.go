package services

import (
	"cmp"
	"fmt"
	"slices"
	"time"
	"tour-optimization-service/internal/domain"
)

// A selected waypoint that cannot be visited in its order's sequence.
type SequenceViolation struct {
	JobKey      string
	WaypointID  string
	Description string
}

// Check that every selected waypoint can be visited after the earlier stops
// of its order.
//
// A waypoint violates the sequence when an earlier stop of the same order is
// neither completed nor part of the selection, when that earlier stop itself
// violates, or when the earlier stop's time window opens after this
// waypoint's window closes. Waypoints without a known order are left to the
// caller. Violations are returned in input order.
func CheckOrderWaypointsSequence(waypoints []domain.Waypoint, orders map[string]domain.Order) []SequenceViolation {
	selected := make(map[string]domain.Waypoint, len(waypoints))
	for _, w := range waypoints {
		selected[w.ID] = w
	}

	reasons := map[string]string{}
	checked := map[string]bool{}

	for _, w := range waypoints {
		order, ok := orders[w.ID]
		if !ok || checked[order.ID] {
			continue
		}
		checked[order.ID] = true

		for i, stop := range order.Stops {
			cur, ok := selected[stop.WaypointID]
			if !ok {
				continue
			}
			if reason := sequenceReason(order, i, cur, selected, reasons); reason != "" {
				reasons[cur.ID] = reason
			}
		}
	}

	out := make([]SequenceViolation, 0, len(reasons))
	for _, w := range waypoints {
		reason, ok := reasons[w.ID]
		if !ok {
			continue
		}
		out = append(out, SequenceViolation{
			JobKey:      domain.JobKey(orders[w.ID].ID, w.ID),
			WaypointID:  w.ID,
			Description: reason,
		})
	}
	return out
}

func sequenceReason(
	order domain.Order,
	idx int,
	cur domain.Waypoint,
	selected map[string]domain.Waypoint,
	reasons map[string]string,
) string {
	for _, prev := range order.Stops[:idx] {
		if prev.Completed {
			continue
		}

		before, ok := selected[prev.WaypointID]
		if !ok {
			return fmt.Sprintf(
				"Waypoint %s of order %s requires waypoint %s to be visited first, but it is not part of this optimization.",
				cur.ID, order.ID, prev.WaypointID,
			)
		}
		if _, bad := reasons[before.ID]; bad {
			return followsUnplannable(order.ID, cur.ID, before.ID)
		}
		if opensAfterClose(before.TimeWindow, cur.TimeWindow) {
			return fmt.Sprintf(
				"Waypoint %s of order %s closes at %s, before preceding waypoint %s opens at %s.",
				cur.ID, order.ID, cur.TimeWindow.To, before.ID, before.TimeWindow.From,
			)
		}
	}
	return ""
}

// Report whether the earlier window opens after the later window closes.
// Unparseable or missing bounds never conflict here; the builder rejects them.
func opensAfterClose(earlier, later domain.ClockWindow) bool {
	if earlier.From == "" || later.To == "" {
		return false
	}
	var day time.Time
	from, err := domain.AtClock(day, earlier.From)
	if err != nil {
		return false
	}
	to, err := domain.AtClock(day, later.To)
	if err != nil {
		return false
	}
	return from.After(to)
}

func followsUnplannable(orderID, waypointID, prevID string) string {
	return fmt.Sprintf("Waypoint %s of order %s follows waypoint %s, which cannot be optimized.", waypointID, orderID, prevID)
}

// droppedPredecessor returns the first earlier stop of the order that is not
// completed and was dropped, or "".
func droppedPredecessor(order domain.Order, waypointID string, dropped map[string]bool) string {
	idx := order.IndexOf(waypointID)
	if idx < 0 {
		return ""
	}
	for _, prev := range order.Stops[:idx] {
		if !prev.Completed && dropped[prev.WaypointID] {
			return prev.WaypointID
		}
	}
	return ""
}

// inSequence returns the waypoints ordered by their position in their order,
// so every stop comes after the stops it follows. Ties keep input order.
func inSequence(waypoints []domain.Waypoint, orders map[string]domain.Order) []domain.Waypoint {
	out := slices.Clone(waypoints)
	slices.SortStableFunc(out, func(a, b domain.Waypoint) int {
		return cmp.Compare(orders[a.ID].IndexOf(a.ID), orders[b.ID].IndexOf(b.ID))
	})
	return out
}
