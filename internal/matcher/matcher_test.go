package matcher

import (
	"context"
	"errors"
	"testing"

	"github.com/example/campus-carpool/internal/models"
)

type fakeGeo struct{ drivers []models.Driver }

func (f *fakeGeo) Nearby(_ context.Context, _ models.GeoPoint, _ int) []models.Driver {
	return f.drivers
}

func TestChooseHigherRatingIfETAEqual(t *testing.T) {
	g := &fakeGeo{drivers: []models.Driver{
		{ID: "A", Loc: models.GeoPoint{Lat: 0, Lon: 0}, Rating: 4.0, Online: true, AvailableSeats: 3},
		{ID: "B", Loc: models.GeoPoint{Lat: 0, Lon: 0}, Rating: 5.0, Online: true, AvailableSeats: 3},
	}}
	s := &Service{Geo: g, DefaultSpeedMps: 10, TopN: 2}
	c, err := s.FindDriver(context.Background(), models.GeoPoint{Lat: 0, Lon: 0}, 1, "08:00")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.Driver.ID != "B" {
		t.Fatalf("expected B, got %s", c.Driver.ID)
	}
}

func TestSkipsDriversWithoutSeats(t *testing.T) {
	g := &fakeGeo{drivers: []models.Driver{
		{ID: "full", Loc: models.GeoPoint{Lat: 0, Lon: 0}, Rating: 5, Online: true, AvailableSeats: 1},
		{ID: "roomy", Loc: models.GeoPoint{Lat: 0.05, Lon: 0}, Rating: 3, Online: true, AvailableSeats: 4},
	}}
	s := &Service{Geo: g}
	c, err := s.FindDriver(context.Background(), models.GeoPoint{}, 2, "08:00")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.Driver.ID != "roomy" {
		t.Fatalf("expected roomy, got %s", c.Driver.ID)
	}
}

func TestNoDriver(t *testing.T) {
	s := &Service{Geo: &fakeGeo{}}
	if _, err := s.FindDriver(context.Background(), models.GeoPoint{}, 1, "08:00"); !errors.Is(err, ErrNoDriver) {
		t.Fatalf("expected ErrNoDriver, got %v", err)
	}
}

func TestFiltersByDepartureSlot(t *testing.T) {
	g := &fakeGeo{drivers: []models.Driver{
		{ID: "early", Loc: models.GeoPoint{}, Rating: 5, Online: true, AvailableSeats: 3, Departures: []string{"07:30"}},
		{ID: "eight", Loc: models.GeoPoint{Lat: 0.05}, Rating: 3, Online: true, AvailableSeats: 3, Departures: []string{"08:00", "09:00"}},
	}}
	s := &Service{Geo: g}
	c, err := s.FindDriver(context.Background(), models.GeoPoint{}, 1, "08:00")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.Driver.ID != "eight" {
		t.Fatalf("expected eight, got %s", c.Driver.ID)
	}
	if _, err := s.FindDriver(context.Background(), models.GeoPoint{}, 1, "10:00"); !errors.Is(err, ErrNoDriver) {
		t.Fatalf("expected ErrNoDriver for an unoffered slot, got %v", err)
	}
}
