package possessionreports

import (
	"context"
	"math"
	"sort"

	"estate-backend/internal/domain"
	"estate-backend/internal/pkg/validation"
)

// metersPerDegree is the planar approximation used for proximity search. It holds at city
// scale and degrades toward the poles.
const metersPerDegree = 111300.0

// MaxSearchRadiusMeters caps ProximitySearch.
const MaxSearchRadiusMeters = 50000

type NearbyPossession struct {
	domain.Possession
	DistanceMeters float64 `json:"distance_meters"`
}

// ProximitySearch returns handed-over possessions within maxDistanceMeters of (lat, lon),
// nearest first. A record exactly at the origin is always included.
func (s *Service) ProximitySearch(ctx context.Context, lat, lon, maxDistanceMeters float64) ([]NearbyPossession, error) {
	switch {
	case !validation.IsValidLatitude(lat):
		return nil, invalid("lat", "must be between -90 and 90")
	case !validation.IsValidLongitude(lon):
		return nil, invalid("lon", "must be between -180 and 180")
	case math.IsNaN(maxDistanceMeters) || maxDistanceMeters < 0 || maxDistanceMeters > MaxSearchRadiusMeters:
		return nil, invalid("maxDistance", "must be between 0 and 50000 meters")
	}

	deg := maxDistanceMeters / metersPerDegree
	candidates, err := s.Store.FindInBox(ctx, []domain.PossessionStatus{domain.StatusHandedOver},
		lat-deg, lat+deg, lon-deg, lon+deg)
	if err != nil {
		return nil, err
	}

	out := make([]NearbyPossession, 0, len(candidates))
	for _, p := range candidates {
		d := planarDistance(lat, lon, *p.Latitude, *p.Longitude)
		if d <= maxDistanceMeters {
			out = append(out, NearbyPossession{Possession: p, DistanceMeters: d})
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].DistanceMeters < out[j].DistanceMeters })
	return out, nil
}

func planarDistance(lat1, lon1, lat2, lon2 float64) float64 {
	return math.Hypot(lat2-lat1, lon2-lon1) * metersPerDegree
}
