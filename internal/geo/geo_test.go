package geo

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/example/campus-carpool/internal/models"
)

func TestHaversineZero(t *testing.T) {
	d := Haversine(0, 0, 0, 0)
	if d != 0 {
		t.Fatalf("expected 0, got %f", d)
	}
}

func TestHaversineKnownDistances(t *testing.T) {
	tests := []struct {
		name      string
		a, b      models.GeoPoint
		wantKm    float64
		tolerance float64
	}{
		{"one degree of latitude", models.GeoPoint{Lat: 0, Lon: 0}, models.GeoPoint{Lat: 1, Lon: 0}, 111.195, 0.01},
		{"start to York University", models.GeoPoint{Lat: 43.7280, Lon: -79.4500}, models.GeoPoint{Lat: 43.7735, Lon: -79.5019}, 6.5556, 0.001},
		{"New York to Los Angeles", models.GeoPoint{Lat: 40.7128, Lon: -74.0060}, models.GeoPoint{Lat: 34.0522, Lon: -118.2437}, 3936, 10},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Distance(tt.a, tt.b)
			if math.Abs(got-tt.wantKm) > tt.tolerance {
				t.Errorf("Distance() = %f, want %f (±%f)", got, tt.wantKm, tt.tolerance)
			}
		})
	}
}

func TestDistanceSymmetry(t *testing.T) {
	points := []models.GeoPoint{
		{Lat: 43.7624, Lon: -79.4381},
		{Lat: 43.7520, Lon: -79.4578},
		{Lat: -33.8688, Lon: 151.2093},
		{Lat: 89.9, Lon: 179.9},
	}
	for _, a := range points {
		for _, b := range points {
			if d1, d2 := Distance(a, b), Distance(b, a); math.Abs(d1-d2) > 1e-9 {
				t.Errorf("Distance(%v,%v)=%f but reverse=%f", a, b, d1, d2)
			}
		}
	}
}

func TestIndexNearbySkipsOfflineAndOrdersByDistance(t *testing.T) {
	idx := NewIndex()
	ctx := context.Background()
	idx.Upsert(ctx, models.Driver{ID: "far", Loc: models.GeoPoint{Lat: 43.80, Lon: -79.50}, Online: true})
	idx.Upsert(ctx, models.Driver{ID: "near", Loc: models.GeoPoint{Lat: 43.73, Lon: -79.45}, Online: true})
	idx.Upsert(ctx, models.Driver{ID: "off", Loc: models.GeoPoint{Lat: 43.728, Lon: -79.45}, Online: false})

	got := idx.Nearby(ctx, models.GeoPoint{Lat: 43.728, Lon: -79.45}, 5)
	if len(got) != 2 {
		t.Fatalf("expected 2 online drivers, got %d", len(got))
	}
	if got[0].ID != "near" || got[1].ID != "far" {
		t.Fatalf("unexpected order: %s, %s", got[0].ID, got[1].ID)
	}
	if got := idx.Nearby(ctx, models.GeoPoint{Lat: 43.728, Lon: -79.45}, 1); len(got) != 1 || got[0].ID != "near" {
		t.Fatalf("limit not honoured: %+v", got)
	}
}

func TestMetaFieldsReadBack(t *testing.T) {
	now := time.Date(2026, 9, 14, 8, 0, 0, 0, time.UTC)
	in := models.Driver{ID: "d1", Name: "Priya", Rating: 4.75, Online: true, AvailableSeats: 3, Departures: []string{"08:00", "09:30"}}
	raw := MetaFields(in, now)
	m := make(map[string]string, len(raw))
	for k, v := range raw {
		m[k] = v.(string)
	}
	var out models.Driver
	applyMeta(&out, m)
	if out.Name != "Priya" || out.Rating != 4.75 || !out.Online || out.AvailableSeats != 3 || !out.Updated.Equal(now) ||
		len(out.Departures) != 2 || out.Departures[1] != "09:30" {
		t.Fatalf("unexpected driver %+v", out)
	}
}

func TestIndexGet(t *testing.T) {
	g := NewIndex()
	g.Upsert(context.Background(), models.Driver{ID: "d1", AvailableSeats: 2, Online: true})
	d, ok := g.Get(context.Background(), "d1")
	if !ok || d.AvailableSeats != 2 {
		t.Fatalf("expected d1 with 2 seats, got %+v %v", d, ok)
	}
	if _, ok := g.Get(context.Background(), "missing"); ok {
		t.Fatal("expected missing driver")
	}
}
