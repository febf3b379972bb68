package matching

import (
	"math"
	"strconv"
	"strings"
)

const earthRadiusKm = 6371.0

// HaversineKm returns the great-circle distance between two points.
func HaversineKm(a, b GeoPoint) float64 {
	lat1 := a.Lat * math.Pi / 180
	lat2 := b.Lat * math.Pi / 180
	dLat := (b.Lat - a.Lat) * math.Pi / 180
	dLng := (b.Lng - a.Lng) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLng/2)*math.Sin(dLng/2)
	return 2 * earthRadiusKm * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
}

// Distance returns the distance between two locations, or nil when either lacks coordinates.
func Distance(a, b Location) *float64 {
	if a.Point == nil || b.Point == nil {
		return nil
	}
	d := HaversineKm(*a.Point, *b.Point)
	return &d
}

// proximityTier maps a distance to its score. Breakpoints are inclusive.
func proximityTier(km float64) float64 {
	switch {
	case km <= 50:
		return 1.0
	case km <= 150:
		return 0.85
	case km <= 300:
		return 0.65
	case km <= 600:
		return 0.45
	default:
		return 0.25
	}
}

// SameCity compares city names ignoring case and surrounding spaces.
func SameCity(a, b Location) bool {
	ca := strings.TrimSpace(a.City)
	cb := strings.TrimSpace(b.City)
	return ca != "" && cb != "" && strings.EqualFold(ca, cb)
}

// ParseLocation reads a free-form address payload. Coordinates may be at the top
// level or nested under "coords" or "geo", keyed lat/latitude and lng/lon/longitude.
func ParseLocation(raw map[string]any) Location {
	var loc Location
	if raw == nil {
		return loc
	}
	for _, key := range []string{"cidade", "city", "municipio"} {
		if v, ok := raw[key].(string); ok && strings.TrimSpace(v) != "" {
			loc.City = strings.TrimSpace(v)
			break
		}
	}
	loc.Point = pointFrom(raw)
	if loc.Point == nil {
		for _, key := range []string{"coords", "geo"} {
			if nested, ok := raw[key].(map[string]any); ok {
				if p := pointFrom(nested); p != nil {
					loc.Point = p
					break
				}
			}
		}
	}
	return loc
}

func pointFrom(raw map[string]any) *GeoPoint {
	lat, okLat := firstNumber(raw, "lat", "latitude")
	lng, okLng := firstNumber(raw, "lng", "lon", "longitude")
	if !okLat || !okLng {
		return nil
	}
	return &GeoPoint{Lat: lat, Lng: lng}
}

func firstNumber(raw map[string]any, keys ...string) (float64, bool) {
	for _, key := range keys {
		v, ok := raw[key]
		if !ok || v == nil {
			continue
		}
		switch n := v.(type) {
		case float64:
			return n, true
		case float32:
			return float64(n), true
		case int:
			return float64(n), true
		case int64:
			return float64(n), true
		case string:
			if f, err := strconv.ParseFloat(strings.TrimSpace(n), 64); err == nil {
				return f, true
			}
		}
	}
	return 0, false
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
