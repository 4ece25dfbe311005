package maps

import "context"

// Geocoder resolves a coordinate pair into a human-readable address for
// alert messages. Alerts still go out with raw coordinates if it fails.
type Geocoder interface {
	ReverseGeocode(ctx context.Context, lat, lng float64) (*GeocodeResult, error)
}

type GeocodeResult struct {
	PlaceID string `json:"place_id"`
	Address string `json:"formatted_address"`
}
