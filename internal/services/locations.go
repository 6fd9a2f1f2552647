package services

import (
	"context"
	"fmt"
	"strings"
	"tour-optimization-service/internal/domain"
	"tour-optimization-service/internal/ports"
)

// Resolve a start or end location policy for a driver.
// A LAST_STOP end yields a nil location: the tour ends at its final stop.
func resolveLocation(
	ctx context.Context,
	policy domain.LocationPolicy,
	end bool,
	driver domain.Driver,
	manager domain.Manager,
	geocoder ports.Geocoder,
) (*domain.Location, error) {
	switch policy.Type {
	case domain.LocationCurrent:
		if driver.CurrentLocation == nil || !driver.CurrentLocation.HasCoordinates() {
			return nil, fmt.Errorf("%w: driver %s has no current location", domain.ErrDriverAssembly, driver.ID)
		}
		loc := *driver.CurrentLocation
		return &loc, nil

	case domain.LocationWarehouse:
		for _, wh := range []*domain.Location{driver.Warehouse, manager.Warehouse} {
			if wh != nil && wh.HasCoordinates() {
				loc := *wh
				return &loc, nil
			}
		}
		return nil, fmt.Errorf("%w: driver %s has no warehouse", domain.ErrDriverAssembly, driver.ID)

	case domain.LocationCustom:
		if policy.Value == nil {
			return nil, fmt.Errorf("%w: custom location for driver %s has no value", domain.ErrDriverAssembly, driver.ID)
		}
		if policy.Value.HasCoordinates() {
			loc := *policy.Value
			return &loc, nil
		}
		address := strings.TrimSpace(policy.Value.Address)
		if address == "" || geocoder == nil {
			return nil, fmt.Errorf("%w: custom location for driver %s cannot be resolved", domain.ErrDriverAssembly, driver.ID)
		}
		loc, err := geocoder.Geocode(ctx, address)
		if err != nil {
			return nil, fmt.Errorf("%w: driver %s: %v", domain.ErrDriverAssembly, driver.ID, err)
		}
		return &loc, nil

	case domain.LocationLastStop:
		if !end {
			return nil, fmt.Errorf("%w: %s is only valid as an end location", domain.ErrDriverAssembly, policy.Type)
		}
		return nil, nil
	}

	return nil, fmt.Errorf("%w: unknown location type %q", domain.ErrDriverAssembly, policy.Type)
}
