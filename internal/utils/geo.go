package utils

import "math"

const earthRadiusKm = 6371.0

type LatLng struct {
	Lat float64
	Lng float64
}

// Usable reports whether p looks like a real position. Zero coordinates are
// what the sources emit for unknown sites.
func (p LatLng) Usable() bool {
	if p.Lat == 0 && p.Lng == 0 {
		return false
	}
	return p.Lat >= -90 && p.Lat <= 90 && p.Lng >= -180 && p.Lng <= 180
}

// DistanceKm is the great circle distance between a and b.
func DistanceKm(a, b LatLng) float64 {
	dLat := radians(b.Lat - a.Lat)
	dLng := radians(b.Lng - a.Lng)

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Sin(dLng/2)*math.Sin(dLng/2)*math.Cos(radians(a.Lat))*math.Cos(radians(b.Lat))
	return 2 * earthRadiusKm * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
}

func radians(d float64) float64 {
	return d * math.Pi / 180
}
