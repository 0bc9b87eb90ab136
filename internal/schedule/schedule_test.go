package schedule

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/example/campus-carpool/internal/eta"
	"github.com/example/campus-carpool/internal/models"
)

func stops(n int) []models.Waypoint {
	ws := make([]models.Waypoint, n)
	for i := range ws {
		ws[i] = models.Waypoint{ID: string(rune('a' + i)), Point: models.GeoPoint{Lat: 43.74 + float64(i)*0.01, Lon: -79.45}}
	}
	return ws
}

func TestBuildScheduleFixedIncrements(t *testing.T) {
	start, err := ParseClock("08:00", time.Date(2026, 9, 14, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got, dest := BuildSchedule(stops(4), start)

	want := []string{"08:00", "08:08", "08:16", "08:24"}
	for i, w := range want {
		if got[i].Order != i {
			t.Errorf("stop %d has order %d", i, got[i].Order)
		}
		if FormatClock(got[i].ETA) != w {
			t.Errorf("stop %d: expected %s, got %s", i, w, FormatClock(got[i].ETA))
		}
	}
	if FormatClock(dest) != "08:49" {
		t.Fatalf("expected destination 08:49, got %s", FormatClock(dest))
	}
}

func TestBuildScheduleMonotonic(t *testing.T) {
	start := time.Date(2026, 9, 14, 23, 50, 0, 0, time.UTC)
	for n := 1; n <= 6; n++ {
		got, dest := BuildSchedule(stops(n), start)
		if !got[0].ETA.Equal(start) {
			t.Fatalf("n=%d: first stop must be the start time", n)
		}
		for i := 1; i < len(got); i++ {
			if got[i].ETA.Before(got[i-1].ETA) {
				t.Fatalf("n=%d: stop %d earlier than stop %d", n, i, i-1)
			}
		}
		if dest.Before(got[len(got)-1].ETA) {
			t.Fatalf("n=%d: destination before last stop", n)
		}
	}
}

func TestBuildScheduleKeepsRouteOrder(t *testing.T) {
	ws := stops(3)
	ws[0], ws[2] = ws[2], ws[0]
	got, _ := BuildSchedule(ws, time.Now())
	for i := range ws {
		if got[i].ID != ws[i].ID {
			t.Fatalf("stop %d: expected %s, got %s", i, ws[i].ID, got[i].ID)
		}
	}
}

func TestBuildScheduleNoStops(t *testing.T) {
	start := time.Date(2026, 9, 14, 8, 0, 0, 0, time.UTC)
	got, dest := BuildSchedule(nil, start)
	if len(got) != 0 {
		t.Fatalf("expected no stops, got %d", len(got))
	}
	if !dest.Equal(start.Add(DefaultFinalLeg)) {
		t.Fatalf("expected %v, got %v", start.Add(DefaultFinalLeg), dest)
	}
}

func TestBuilderCustomFixed(t *testing.T) {
	start := time.Date(2026, 9, 14, 8, 0, 0, 0, time.UTC)
	b := Builder{Estimator: Fixed{StopInterval: 5 * time.Minute, FinalLeg: 10 * time.Minute}}
	got, dest := b.Build(models.RouteResult{Order: stops(3)}, start)
	if FormatClock(got[2].ETA) != "08:10" || FormatClock(dest) != "08:20" {
		t.Fatalf("unexpected times %s / %s", FormatClock(got[2].ETA), FormatClock(dest))
	}
}

type fixedETA struct {
	secs float64
	err  error
}

func (f fixedETA) EstimateSeconds(_, _ models.GeoPoint) (float64, error) { return f.secs, f.err }

func TestDistanceEstimator(t *testing.T) {
	start := time.Date(2026, 9, 14, 8, 0, 0, 0, time.UTC)
	ws := stops(2)
	route := models.RouteResult{
		Order: ws,
		Path:  []models.GeoPoint{{Lat: 43.72, Lon: -79.45}, ws[0].Point, ws[1].Point, {Lat: 43.77, Lon: -79.50}},
	}
	b := Builder{Estimator: Distance{ETA: fixedETA{secs: 300}, Dwell: time.Minute}}
	got, dest := b.Build(route, start)
	if FormatClock(got[1].ETA) != "08:06" {
		t.Fatalf("expected 5 minute leg plus 1 minute dwell, got %s", FormatClock(got[1].ETA))
	}
	if FormatClock(dest) != "08:11" {
		t.Fatalf("expected destination 08:11, got %s", FormatClock(dest))
	}

	b = Builder{Estimator: Distance{ETA: fixedETA{err: errors.New("down")}}}
	got, dest = b.Build(route, start)
	if FormatClock(got[1].ETA) != "08:08" || FormatClock(dest) != "08:33" {
		t.Fatalf("expected fixed fallback, got %s / %s", FormatClock(got[1].ETA), FormatClock(dest))
	}
}

func TestDistanceFallsBackWhenRoutingEngineFails(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	start := time.Date(2026, 9, 14, 8, 0, 0, 0, time.UTC)
	ws := stops(2)
	route := models.RouteResult{
		Order: ws,
		Path:  []models.GeoPoint{{Lat: 43.72, Lon: -79.45}, ws[0].Point, ws[1].Point, {Lat: 43.77, Lon: -79.50}},
	}
	b := Builder{Estimator: Distance{ETA: eta.NewOSRMClient(srv.URL), Dwell: 2 * time.Minute}}
	got, dest := b.Build(route, start)
	if FormatClock(got[1].ETA) != "08:08" || FormatClock(dest) != "08:33" {
		t.Fatalf("expected fixed fallback, got %s / %s", FormatClock(got[1].ETA), FormatClock(dest))
	}
}

func TestParseClockRejectsGarbage(t *testing.T) {
	for _, s := range []string{"", "8am", "25:00", "08:61"} {
		if _, err := ParseClock(s, time.Now()); !errors.Is(err, ErrInvalidClock) {
			t.Errorf("%q: expected ErrInvalidClock, got %v", s, err)
		}
	}
}
