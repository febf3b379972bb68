package matching_test

import (
	"math"
	"testing"

	"github.com/mmdatafocus/agromatch_backend/matching"
)

func TestHaversineKm(t *testing.T) {
	if d := matching.HaversineKm(*brasilia, *brasilia); d != 0 {
		t.Fatalf("distance to self = %v", d)
	}
	d := matching.HaversineKm(*brasilia, *saoPaulo)
	if d < 850 || d > 900 {
		t.Fatalf("brasilia-sao paulo = %v km, expected about 870", d)
	}
	back := matching.HaversineKm(*saoPaulo, *brasilia)
	if math.Abs(d-back) > 1e-9 {
		t.Fatalf("distance is not symmetric: %v vs %v", d, back)
	}
}

func TestParseLocation(t *testing.T) {
	tests := []struct {
		name     string
		raw      map[string]any
		city     string
		lat, lng float64
		hasPoint bool
	}{
		{"nil payload", nil, "", 0, 0, false},
		{"top level lat lng", map[string]any{"cidade": " Brasilia ", "lat": -15.79, "lng": -47.88}, "Brasilia", -15.79, -47.88, true},
		{"long names", map[string]any{"city": "Goiania", "latitude": -16.68, "longitude": -49.26}, "Goiania", -16.68, -49.26, true},
		{"string coordinates", map[string]any{"municipio": "Anapolis", "lat": "-16.32", "lon": " -48.95 "}, "Anapolis", -16.32, -48.95, true},
		{"nested coords", map[string]any{"cidade": "Formosa", "coords": map[string]any{"lat": -15.53, "lng": -47.33}}, "Formosa", -15.53, -47.33, true},
		{"nested geo", map[string]any{"geo": map[string]any{"latitude": -15.0, "longitude": -47.0}}, "", -15.0, -47.0, true},
		{"latitude only", map[string]any{"cidade": "Luziania", "lat": -16.25}, "Luziania", 0, 0, false},
		{"unparseable", map[string]any{"lat": "norte", "lng": "-47"}, "", 0, 0, false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			loc := matching.ParseLocation(tc.raw)
			if loc.City != tc.city {
				t.Fatalf("city = %q, want %q", loc.City, tc.city)
			}
			if (loc.Point != nil) != tc.hasPoint {
				t.Fatalf("point = %v, want present=%v", loc.Point, tc.hasPoint)
			}
			if tc.hasPoint && (loc.Point.Lat != tc.lat || loc.Point.Lng != tc.lng) {
				t.Fatalf("point = %+v, want (%v, %v)", *loc.Point, tc.lat, tc.lng)
			}
		})
	}
}

func TestSameCity(t *testing.T) {
	a := matching.Location{City: "  brasilia"}
	b := matching.Location{City: "BRASILIA "}
	if !matching.SameCity(a, b) {
		t.Fatalf("expected same city")
	}
	if matching.SameCity(matching.Location{}, matching.Location{}) {
		t.Fatalf("empty cities must not match")
	}
}
