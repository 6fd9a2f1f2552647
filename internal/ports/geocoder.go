package ports

import (
	"context"
	"tour-optimization-service/internal/domain"
)

// Contract for resolving an address into coordinates.
type Geocoder interface {
	Geocode(ctx context.Context, address string) (domain.Location, error)
}
