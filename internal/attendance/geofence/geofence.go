// Package geofence is pure geometry: great-circle distance, radius
// containment, and accuracy sufficiency. No I/O, no clock.
package geofence

import "math"

// earthRadiusMeters is the mean Earth radius used by the haversine formula.
const earthRadiusMeters = 6371000.0

// Point is a WGS84 coordinate.
type Point struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// DistanceMeters computes the haversine great-circle distance between two
// points, in meters. It is symmetric and zero for identical points.
func DistanceMeters(p1, p2 Point) float64 {
	lat1 := radians(p1.Latitude)
	lat2 := radians(p2.Latitude)
	dLat := radians(p2.Latitude - p1.Latitude)
	dLon := radians(p2.Longitude - p1.Longitude)

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return earthRadiusMeters * c
}

// IsWithin reports whether point lies inside the circular fence around
// center. The boundary is inclusive: a point exactly radiusMeters away
// passes.
func IsWithin(point, center Point, radiusMeters float64) bool {
	return DistanceMeters(point, center) <= radiusMeters
}

// HasSufficientAccuracy reports whether a GPS fix is trustworthy enough to
// gate a check-in on. An unknown accuracy (nil) fails: never trust an
// unverifiable fix.
func HasSufficientAccuracy(accuracyMeters *float64, requiredMeters float64) bool {
	if accuracyMeters == nil {
		return false
	}
	return *accuracyMeters <= requiredMeters
}

func radians(deg float64) float64 {
	return deg * math.Pi / 180
}
