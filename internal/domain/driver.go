package domain

import (
	"fmt"
	"time"
)

// Manager is the account on whose behalf an optimization runs.
type Manager struct {
	ID        string
	Timezone  string
	Warehouse *Location
}

// Resolve the manager timezone, defaulting to UTC when unset.
func (m Manager) LoadLocation() (*time.Location, error) {
	if m.Timezone == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(m.Timezone)
	if err != nil {
		return nil, fmt.Errorf("manager %s: load timezone %q: %w", m.ID, m.Timezone, err)
	}
	return loc, nil
}

// Vehicle-and-operator unit available for routing.
type Driver struct {
	ID              string
	Name            string
	CurrentLocation *Location
	Warehouse       *Location
	Shift           ClockWindow
	Capacity        int
}

type LocationType string

const (
	LocationCurrent   LocationType = "CURRENT_LOCATION"
	LocationWarehouse LocationType = "WAREHOUSE"
	LocationCustom    LocationType = "CUSTOM"
	// Only valid as an end policy: the tour ends at its last stop.
	LocationLastStop LocationType = "LAST_STOP"
)

func (t LocationType) Valid() bool {
	switch t {
	case LocationCurrent, LocationWarehouse, LocationCustom, LocationLastStop:
		return true
	}
	return false
}

// Where a driver starts or ends the tour.
type LocationPolicy struct {
	Type  LocationType `json:"type"`
	Value *Location    `json:"value,omitempty"`
}
