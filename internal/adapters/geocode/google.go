package geocode

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"tour-optimization-service/internal/domain"
	"tour-optimization-service/internal/platform/obs"
	"tour-optimization-service/internal/ports"

	"googlemaps.github.io/maps"
)

var ErrAddressNotFound = errors.New("address not found")

// Address -> location cache consulted before the geocoding API.
type Cache interface {
	GetMany(ctx context.Context, addresses []string) (map[string]domain.Location, error)
	PutMany(ctx context.Context, results map[string]domain.Location) error
}

// GoogleGeocoder resolves free-form addresses with the Google Geocoding API.
type GoogleGeocoder struct {
	client *maps.Client
	cache  Cache
}

var _ ports.Geocoder = (*GoogleGeocoder)(nil)

func NewGoogleGeocoder(apiKey string, cache Cache, opts ...maps.ClientOption) (*GoogleGeocoder, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.New("google geocoder: api key is empty")
	}

	opts = append([]maps.ClientOption{maps.WithAPIKey(apiKey)}, opts...)
	client, err := maps.NewClient(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create maps client: %w", err)
	}
	return &GoogleGeocoder{client: client, cache: cache}, nil
}

// Geocode returns the first match for the address. Cache failures are logged
// and fall through to the API.
func (g *GoogleGeocoder) Geocode(ctx context.Context, address string) (_ domain.Location, err error) {
	defer obs.Time(ctx, "geocode.Geocode")(&err)

	address = strings.TrimSpace(address)
	if address == "" {
		return domain.Location{}, errors.New("geocode: address is empty")
	}
	key := normalize(address)

	if g.cache != nil {
		hits, err := g.cache.GetMany(ctx, []string{key})
		if err != nil {
			log.Printf("geocode cache read failed: %v", err)
		} else if loc, ok := hits[key]; ok {
			loc.Address = address
			return loc, nil
		}
	}

	results, err := g.client.Geocode(ctx, &maps.GeocodingRequest{Address: address})
	if err != nil {
		return domain.Location{}, fmt.Errorf("geocode %q: %w", address, err)
	}
	if len(results) == 0 {
		return domain.Location{}, fmt.Errorf("geocode %q: %w", address, ErrAddressNotFound)
	}

	ll := results[0].Geometry.Location
	loc := domain.Location{Lat: ll.Lat, Lng: ll.Lng, Address: address}

	if g.cache != nil {
		if err := g.cache.PutMany(ctx, map[string]domain.Location{key: loc}); err != nil {
			log.Printf("geocode cache write failed: %v", err)
		}
	}

	return loc, nil
}

func normalize(address string) string {
	return strings.ToLower(strings.Join(strings.Fields(address), " "))
}
