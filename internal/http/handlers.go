package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/example/campus-carpool/internal/dispatch"
	"github.com/example/campus-carpool/internal/geo"
	"github.com/example/campus-carpool/internal/geocode"
	"github.com/example/campus-carpool/internal/ingest"
	"github.com/example/campus-carpool/internal/matcher"
	"github.com/example/campus-carpool/internal/models"
	"github.com/example/campus-carpool/internal/observability"
	"github.com/example/campus-carpool/internal/planner"
	"github.com/example/campus-carpool/internal/schedule"
	"github.com/example/campus-carpool/internal/storage"
)

type Deps struct {
	Planner *planner.Service
	Geo     geo.Geo
	Events  ingest.Publisher // optional
	WSReg   *dispatch.WSRegistry
	Logger  *slog.Logger
	Clock   func() time.Time
}

type Server struct {
	planner *planner.Service
	geo     geo.Geo
	events  ingest.Publisher
	wsreg   *dispatch.WSRegistry
	logger  *slog.Logger
	clock   func() time.Time
	mux     *mux.Router
}

func NewServer(d Deps) *Server {
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	if d.Clock == nil {
		d.Clock = time.Now
	}
	if d.WSReg == nil {
		d.WSReg = dispatch.NewWSRegistry()
	}
	s := &Server{
		planner: d.Planner,
		geo:     d.Geo,
		events:  d.Events,
		wsreg:   d.WSReg,
		logger:  d.Logger,
		clock:   d.Clock,
		mux:     mux.NewRouter(),
	}
	s.registerMiddleware()
	s.routes()
	return s
}

func (s *Server) routes() {
	s.mux.HandleFunc("/internal/driver/locations", s.handleDriverLocation).Methods(http.MethodPost)
	s.mux.HandleFunc("/api/v1/routes/optimize", s.handleOptimize).Methods(http.MethodPost)
	s.mux.HandleFunc("/api/v1/matches", s.handleMatch).Methods(http.MethodPost)
	s.mux.HandleFunc("/api/v1/bookings", s.handleBook).Methods(http.MethodPost)
	s.mux.HandleFunc("/api/v1/bookings/{id}", s.handleGetBooking).Methods(http.MethodGet)
	s.mux.HandleFunc("/api/v1/bookings/{id}/cancel", s.bookingAction(s.planner.Cancel)).Methods(http.MethodPost)
	s.mux.HandleFunc("/api/v1/bookings/{id}/confirm", s.bookingAction(s.planner.Confirm)).Methods(http.MethodPost)
	s.mux.HandleFunc("/api/v1/bookings/{id}/complete", s.bookingAction(s.planner.Complete)).Methods(http.MethodPost)
	s.mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200); w.Write([]byte("ok")) }).Methods(http.MethodGet)
	s.mux.Handle("/metrics", promhttp.Handler())
	s.mux.HandleFunc("/ws/{driver_id}", s.handleWS)
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { s.mux.ServeHTTP(w, r) }

func (s *Server) handleDriverLocation(w http.ResponseWriter, r *http.Request) {
	var d models.Driver
	if err := json.NewDecoder(r.Body).Decode(&d); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if d.ID == "" || !d.Loc.Valid() {
		writeError(w, http.StatusBadRequest, "driver id and a valid location are required")
		return
	}
	d.Online = true
	if s.events != nil {
		if err := s.events.PublishLocation(r.Context(), d); err != nil {
			s.logger.Warn("publish location failed", "driver_id", d.ID, "error", err)
		}
	}
	s.geo.Upsert(r.Context(), d)
	observability.LocationPings.Inc()
	w.WriteHeader(http.StatusNoContent)
}

type optimizeRequest struct {
	Start     models.GeoPoint   `json:"start"`
	End       models.GeoPoint   `json:"end"`
	Waypoints []models.Waypoint `json:"waypoints"`
	StartTime string            `json:"start_time,omitempty"` // HH:MM, defaults to now
}

func (s *Server) handleOptimize(w http.ResponseWriter, r *http.Request) {
	var req optimizeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	departure := s.clock()
	if req.StartTime != "" {
		t, err := schedule.ParseClock(req.StartTime, departure)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		departure = t
	}
	it, err := s.planner.Plan(req.Start, req.End, req.Waypoints, departure)
	if err != nil {
		s.writePlannerError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, it)
}

func (s *Server) handleMatch(w http.ResponseWriter, r *http.Request) {
	var req models.MatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	it, err := s.planner.Match(r.Context(), req)
	if err != nil {
		s.writePlannerError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, it)
}

func (s *Server) handleBook(w http.ResponseWriter, r *http.Request) {
	var req models.MatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	b, it, err := s.planner.Book(r.Context(), req)
	if err != nil {
		s.writePlannerError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"booking": b, "itinerary": it})
}

func (s *Server) handleGetBooking(w http.ResponseWriter, r *http.Request) {
	b, err := s.planner.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.writePlannerError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

// bookingAction adapts a booking status transition to a handler.
func (s *Server) bookingAction(fn func(context.Context, string) (*models.Booking, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		b, err := fn(r.Context(), mux.Vars(r)["id"])
		if err != nil {
			s.writePlannerError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, b)
	}
}

var upgrader = websocket.Upgrader{}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["driver_id"]
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the error response
		return
	}
	s.wsreg.Add(id, conn)
	s.logger.Info("driver connected", "driver_id", id)
	go func() {
		defer func() {
			s.wsreg.Remove(id, conn)
			_ = conn.Close()
			s.logger.Info("driver disconnected", "driver_id", id)
		}()
		// drain control frames until the driver goes away
		for {
			if _, _, err := conn.NextReader(); err != nil {
				return
			}
		}
	}()
}

// writePlannerError turns domain errors into the plain messages the rider sees.
func (s *Server) writePlannerError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, planner.ErrBadRequest):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, geocode.ErrNotFound):
		writeError(w, http.StatusUnprocessableEntity, "could not find your address, please try a more specific address")
	case errors.Is(err, matcher.ErrNoDriver):
		writeError(w, http.StatusServiceUnavailable, "no drivers found for your departure time and location")
	case errors.Is(err, storage.ErrNotFound):
		writeError(w, http.StatusNotFound, "booking not found")
	case errors.Is(err, planner.ErrInvalidState):
		writeError(w, http.StatusConflict, err.Error())
	default:
		s.logger.Error("request failed", "route", routeTemplate(r), "request_id", requestIDFromContext(r.Context()), "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}
