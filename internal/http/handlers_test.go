package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/example/campus-carpool/internal/geo"
	"github.com/example/campus-carpool/internal/geocode"
	"github.com/example/campus-carpool/internal/models"
	"github.com/example/campus-carpool/internal/planner"
	"github.com/example/campus-carpool/internal/roster"
	"github.com/example/campus-carpool/internal/storage"
)

type stubGeocoder struct {
	p   models.GeoPoint
	err error
}

func (s stubGeocoder) Geocode(_ context.Context, _ string) (models.GeoPoint, error) { return s.p, s.err }

func newTestServer(t *testing.T, gc geocode.Geocoder) (*Server, *geo.Index) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	clock := func() time.Time { return time.Date(2026, 9, 14, 7, 30, 0, 0, time.UTC) }
	svc := planner.New(planner.Deps{
		Geocoder:     gc,
		Roster:       roster.NewStatic(roster.DefaultCoRiders()),
		Store:        storage.NewMemoryStore(),
		Campus:       models.GeoPoint{Lat: 43.7735, Lon: -79.5019},
		DefaultStart: models.GeoPoint{Lat: 43.7280, Lon: -79.4500},
		Clock:        clock,
		NewID:        func() string { return "b1" },
		Logger:       logger,
	})
	idx := geo.NewIndex()
	return NewServer(Deps{Planner: svc, Geo: idx, Logger: logger, Clock: clock}), idx
}

func do(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(method, path, &buf))
	return rec
}

func TestOptimizeEndpoint(t *testing.T) {
	s, _ := newTestServer(t, stubGeocoder{})
	req := optimizeRequest{
		Start: models.GeoPoint{Lat: 43.7280, Lon: -79.4500},
		End:   models.GeoPoint{Lat: 43.7735, Lon: -79.5019},
		Waypoints: []models.Waypoint{
			{ID: "alex", Point: models.GeoPoint{Lat: 43.7624, Lon: -79.4381}},
			{ID: "rider", Point: models.GeoPoint{Lat: 43.7410, Lon: -79.4650}},
		},
		StartTime: "08:00",
	}
	rec := do(t, s, http.MethodPost, "/api/v1/routes/optimize", req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var it models.Itinerary
	if err := json.NewDecoder(rec.Body).Decode(&it); err != nil {
		t.Fatal(err)
	}
	if len(it.Stops) != 2 || it.Stops[0].ID != "rider" || it.Stops[1].ID != "alex" {
		t.Fatalf("unexpected stops %+v", it.Stops)
	}
	if got := it.Stops[1].ETA.Format("15:04"); got != "08:08" {
		t.Fatalf("expected second stop at 08:08, got %s", got)
	}
}

func TestOptimizeRejectsBadInput(t *testing.T) {
	s, _ := newTestServer(t, stubGeocoder{})
	if rec := do(t, s, http.MethodPost, "/api/v1/routes/optimize", map[string]any{"start_time": "late"}); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad clock, got %d", rec.Code)
	}
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/routes/optimize", bytes.NewBufferString("{")))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad json, got %d", rec.Code)
	}
}

func TestMatchEndpointErrors(t *testing.T) {
	tests := []struct {
		name string
		gc   geocode.Geocoder
		body models.MatchRequest
		want int
	}{
		{"missing address", stubGeocoder{}, models.MatchRequest{RiderID: "r", DepartureTime: "08:00"}, http.StatusBadRequest},
		{"address not found", stubGeocoder{err: geocode.ErrNotFound}, models.MatchRequest{RiderID: "r", Address: "nowhere", DepartureTime: "08:00"}, http.StatusUnprocessableEntity},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, _ := newTestServer(t, tt.gc)
			rec := do(t, s, http.MethodPost, "/api/v1/matches", tt.body)
			if rec.Code != tt.want {
				t.Fatalf("expected %d, got %d: %s", tt.want, rec.Code, rec.Body.String())
			}
		})
	}
}

func TestBookingLifecycle(t *testing.T) {
	s, _ := newTestServer(t, stubGeocoder{p: models.GeoPoint{Lat: 43.7410, Lon: -79.4650}})
	rec := do(t, s, http.MethodPost, "/api/v1/bookings", models.MatchRequest{RiderID: "rider", Address: "Lawrence Manor", DepartureTime: "08:00"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = do(t, s, http.MethodGet, "/api/v1/bookings/b1", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var b models.Booking
	if err := json.NewDecoder(rec.Body).Decode(&b); err != nil {
		t.Fatal(err)
	}
	if b.TotalCost != 2.29 || b.Status != models.BookingPending {
		t.Fatalf("unexpected booking %+v", b)
	}

	if rec = do(t, s, http.MethodPost, "/api/v1/bookings/b1/complete", nil); rec.Code != http.StatusConflict {
		t.Fatalf("complete before confirm: expected 409, got %d", rec.Code)
	}
	if rec = do(t, s, http.MethodPost, "/api/v1/bookings/b1/cancel", nil); rec.Code != http.StatusOK {
		t.Fatalf("cancel: expected 200, got %d", rec.Code)
	}
	if rec = do(t, s, http.MethodPost, "/api/v1/bookings/b1/cancel", nil); rec.Code != http.StatusConflict {
		t.Fatalf("second cancel: expected 409, got %d", rec.Code)
	}
	if rec = do(t, s, http.MethodGet, "/api/v1/bookings/missing", nil); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestDriverLocationUpdatesIndex(t *testing.T) {
	s, idx := newTestServer(t, stubGeocoder{})
	d := models.Driver{ID: "d1", Loc: models.GeoPoint{Lat: 43.73, Lon: -79.45}, Rating: 4.8, AvailableSeats: 3}
	if rec := do(t, s, http.MethodPost, "/internal/driver/locations", d); rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}
	got := idx.Nearby(context.Background(), d.Loc, 1)
	if len(got) != 1 || got[0].ID != "d1" || !got[0].Online {
		t.Fatalf("driver not indexed: %+v", got)
	}
	if rec := do(t, s, http.MethodPost, "/internal/driver/locations", models.Driver{}); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for empty ping, got %d", rec.Code)
	}
}

func TestRequestIDHeaderIsKept(t *testing.T) {
	s, _ := newTestServer(t, stubGeocoder{})
	var seen string
	s.mux.HandleFunc("/echo", func(w http.ResponseWriter, r *http.Request) { seen = requestIDFromContext(r.Context()) })
	req := httptest.NewRequest(http.MethodGet, "/echo", nil)
	req.Header.Set("X-Request-ID", "abc")
	s.ServeHTTP(httptest.NewRecorder(), req)
	if seen != "abc" {
		t.Fatalf("expected request id abc, got %q", seen)
	}
}
