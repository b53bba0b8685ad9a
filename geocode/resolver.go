package geocode

import (
	"context"
	"log"
	"math"
	"time"

	"farm_prospector/models"
)

// Cache is the durable address→coordinate map (the geocode_cache table).
type Cache interface {
	GetGeocode(addressKey string) (*models.GeocodeEntry, error)
	PutGeocode(*models.GeocodeEntry) error
}

// Lookuper is the external provider boundary, satisfied by Client.
type Lookuper interface {
	Lookup(ctx context.Context, query string) (float64, float64, error)
}

// Resolver combines the persistent cache with the rate-limited provider.
type Resolver struct {
	cache  Cache
	client Lookuper
}

func NewResolver(cache Cache, client Lookuper) *Resolver {
	return &Resolver{cache: cache, client: client}
}

// Resolve returns coordinates for a street part, or nil when the address
// cannot be geocoded. Cache keys are tried as the bare street part, then
// "street part, suburb". On a miss one provider lookup is issued; a
// successful result is persisted under the first key tried before
// returning. Provider failures are absorbed (nil result, no cache write)
// so a later run can retry; only cache storage errors propagate.
func (r *Resolver) Resolve(ctx context.Context, streetPart, suburb string) (*models.GeocodeEntry, error) {
	if streetPart == "" {
		return nil, nil
	}

	keys := []string{streetPart}
	query := streetPart
	if suburb != "" {
		keys = append(keys, streetPart+", "+suburb)
		query = streetPart + ", " + suburb
	}

	for _, key := range keys {
		entry, err := r.cache.GetGeocode(key)
		if err != nil {
			return nil, err
		}
		if entry != nil {
			return entry, nil
		}
	}

	lat, lon, err := r.client.Lookup(ctx, query)
	if err != nil {
		log.Printf("Warning: geocode lookup failed for %q: %v", query, err)
		return nil, nil
	}

	entry := &models.GeocodeEntry{
		AddressKey: keys[0],
		Lat:        lat,
		Lon:        lon,
		ResolvedAt: time.Now(),
	}
	if err := r.cache.PutGeocode(entry); err != nil {
		return nil, err
	}
	return entry, nil
}

const earthRadiusMeters = 6371000

// Haversine returns the great-circle distance in meters between two points.
func Haversine(lat1, lon1, lat2, lon2 float64) float64 {
	phi1 := lat1 * math.Pi / 180
	phi2 := lat2 * math.Pi / 180
	dPhi := (lat2 - lat1) * math.Pi / 180
	dLambda := (lon2 - lon1) * math.Pi / 180

	a := math.Sin(dPhi/2)*math.Sin(dPhi/2) +
		math.Cos(phi1)*math.Cos(phi2)*math.Sin(dLambda/2)*math.Sin(dLambda/2)
	return earthRadiusMeters * 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
}
