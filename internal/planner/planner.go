// Package planner answers carpool requests: it resolves the rider's address,
// gathers co-riders, orders the pickups, times them and prices the trip.
package planner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/example/campus-carpool/internal/dispatch"
	"github.com/example/campus-carpool/internal/fare"
	"github.com/example/campus-carpool/internal/geocode"
	"github.com/example/campus-carpool/internal/ids"
	"github.com/example/campus-carpool/internal/ingest"
	"github.com/example/campus-carpool/internal/matcher"
	"github.com/example/campus-carpool/internal/models"
	"github.com/example/campus-carpool/internal/observability"
	"github.com/example/campus-carpool/internal/payments"
	"github.com/example/campus-carpool/internal/roster"
	"github.com/example/campus-carpool/internal/route"
	"github.com/example/campus-carpool/internal/schedule"
	"github.com/example/campus-carpool/internal/storage"
)

var (
	ErrBadRequest   = errors.New("bad request")
	ErrInvalidState = errors.New("booking cannot change from its current status")
)

// Deps wires the planner. Geocoder, Roster and Store are required; the
// remaining collaborators are optional.
type Deps struct {
	Geocoder geocode.Geocoder
	Roster   roster.Roster
	Store    storage.BookingStore
	Drivers  matcher.DriverMatcher
	Payments payments.Holder
	Dispatch dispatch.Dispatcher
	Events   ingest.Publisher
	Fleet    Fleet // seat bookkeeping for matched drivers

	Optimizer  route.Optimizer
	Schedule   schedule.Builder
	Fare       *fare.Splitter // nil means fare.DefaultSplitter
	Passengers int
	Currency   string

	Campus       models.GeoPoint
	DefaultStart models.GeoPoint

	Clock  func() time.Time
	NewID  func() string
	Logger *slog.Logger
}

// Fleet reads and writes driver state; geo.Index and geo.RedisGeo satisfy it.
type Fleet interface {
	Get(ctx context.Context, id string) (models.Driver, bool)
	Upsert(ctx context.Context, d models.Driver)
}

type Service struct {
	d Deps
}

func New(d Deps) *Service {
	if d.Fare == nil {
		def := fare.DefaultSplitter()
		d.Fare = &def
	}
	if d.Passengers <= 0 {
		d.Passengers = fare.DefaultPassengers
	}
	if d.Currency == "" {
		d.Currency = "cad"
	}
	if d.Clock == nil {
		d.Clock = time.Now
	}
	if d.NewID == nil {
		d.NewID = ids.New
	}
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	return &Service{d: d}
}

// BruteForceWithMetrics is the default strategy, reporting how many orders it scored.
func BruteForceWithMetrics(maxWaypoints int) route.Strategy {
	return route.BruteForce{
		MaxWaypoints: maxWaypoints,
		Evaluated:    func(n int) { observability.RoutePermutations.Observe(float64(n)) },
	}
}

// Plan runs the pure pipeline: optimise, schedule, split the fare.
func (s *Service) Plan(start, end models.GeoPoint, waypoints []models.Waypoint, departure time.Time) (models.Itinerary, error) {
	res, err := s.d.Optimizer.Optimize(start, end, waypoints)
	switch {
	case errors.Is(err, route.ErrInvalidInput):
		observability.RoutesOptimized.WithLabelValues("invalid").Inc()
		return models.Itinerary{}, fmt.Errorf("%w: %v", ErrBadRequest, err)
	case errors.Is(err, route.ErrTooManyWaypoints):
		observability.RoutesOptimized.WithLabelValues("too_many").Inc()
		return models.Itinerary{}, fmt.Errorf("%w: %v", ErrBadRequest, err)
	case err != nil:
		observability.RoutesOptimized.WithLabelValues("error").Inc()
		return models.Itinerary{}, err
	}
	observability.RoutesOptimized.WithLabelValues("ok").Inc()
	observability.RouteDistanceKm.Observe(res.Distance)

	stops, destETA := s.d.Schedule.Build(res, departure)
	share, err := s.d.Fare.Split(res.Distance, s.d.Passengers)
	if err != nil {
		return models.Itinerary{}, err
	}
	return models.Itinerary{
		Route:          res,
		Stops:          stops,
		DestinationETA: destETA,
		FarePerRider:   share,
		Passengers:     s.d.Passengers,
	}, nil
}

// Match builds the itinerary for one rider joining the roster's co-riders.
func (s *Service) Match(ctx context.Context, req models.MatchRequest) (models.Itinerary, error) {
	if err := validate(&req); err != nil {
		return models.Itinerary{}, err
	}
	departure, err := schedule.ParseClock(req.DepartureTime, s.d.Clock())
	if err != nil {
		return models.Itinerary{}, fmt.Errorf("%w: %v", ErrBadRequest, err)
	}

	pickup, err := s.d.Geocoder.Geocode(ctx, req.Address)
	if err != nil {
		return models.Itinerary{}, fmt.Errorf("geocode rider %s: %w", req.RiderID, err)
	}
	coRiders, err := s.d.Roster.CoRiders(ctx, req)
	if err != nil {
		return models.Itinerary{}, fmt.Errorf("roster: %w", err)
	}
	waypoints := append(coRiders, models.Waypoint{ID: req.RiderID, Address: req.Address, Point: pickup})

	start := s.d.DefaultStart
	var driver *models.Driver
	if s.d.Drivers != nil {
		c, err := s.d.Drivers.FindDriver(ctx, pickup, req.Seats, req.DepartureTime)
		if err != nil {
			return models.Itinerary{}, err
		}
		driver = &c.Driver
		start = c.Driver.Loc
	}

	it, err := s.Plan(start, s.d.Campus, waypoints, departure)
	if err != nil {
		return models.Itinerary{}, err
	}
	it.RiderID = req.RiderID
	it.Driver = driver

	s.d.Logger.Info("itinerary planned",
		"rider_id", req.RiderID,
		"stops", len(it.Stops),
		"distance_km", it.Route.Distance,
		"fare_per_rider", it.FarePerRider,
		"destination_eta", schedule.FormatClock(it.DestinationETA),
	)
	if s.d.Events != nil {
		if err := s.d.Events.PublishItinerary(ctx, it); err != nil {
			s.d.Logger.Warn("publish itinerary failed", "rider_id", req.RiderID, "error", err)
		}
	}
	return it, nil
}

// Book matches the rider, records a pending booking, holds the rider's
// share and offers the itinerary to the driver.
func (s *Service) Book(ctx context.Context, req models.MatchRequest) (*models.Booking, models.Itinerary, error) {
	if err := validate(&req); err != nil {
		return nil, models.Itinerary{}, err
	}
	it, err := s.Match(ctx, req)
	if err != nil {
		return nil, models.Itinerary{}, err
	}
	now := s.d.Clock()
	b := &models.Booking{
		ID:            s.d.NewID(),
		RiderID:       req.RiderID,
		HomeAddress:   req.Address,
		Pickup:        riderPickup(it, req.RiderID),
		SeatsBooked:   req.Seats,
		TotalCost:     fare.Round2(it.FarePerRider * float64(req.Seats)),
		DepartureTime: req.DepartureTime,
		Status:        models.BookingPending,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if it.Driver != nil {
		b.DriverID = it.Driver.ID
	}

	if s.d.Payments != nil {
		piID, err := s.d.Payments.Hold(ctx, fare.Cents(b.TotalCost), s.d.Currency, b.ID)
		if err != nil {
			observability.BookingsTotal.WithLabelValues("payment_failed").Inc()
			return nil, models.Itinerary{}, fmt.Errorf("hold fare: %w", err)
		}
		b.PaymentIntentID = piID
	}
	if err := s.d.Store.SaveBooking(ctx, b); err != nil {
		s.releaseHold(ctx, b)
		return nil, models.Itinerary{}, fmt.Errorf("save booking: %w", err)
	}
	s.adjustSeats(ctx, b.DriverID, -b.SeatsBooked)

	if s.d.Dispatch != nil && b.DriverID != "" {
		offer := models.MatchOffer{RideID: b.ID, DriverID: b.DriverID, Cost: b.TotalCost, Itinerary: it}
		if err := s.d.Dispatch.Offer(ctx, offer); err != nil {
			s.d.Logger.Warn("offer dispatch failed", "booking_id", b.ID, "driver_id", b.DriverID, "error", err)
		}
	}
	observability.BookingsTotal.WithLabelValues(string(b.Status)).Inc()
	s.d.Logger.Info("booking created", "booking_id", b.ID, "rider_id", b.RiderID, "driver_id", b.DriverID, "total_cost", b.TotalCost)
	return b, it, nil
}

func (s *Service) Get(ctx context.Context, id string) (*models.Booking, error) {
	return s.d.Store.GetBooking(ctx, id)
}

// Cancel marks a pending or confirmed booking cancelled, then releases the
// payment hold and returns the seats to the driver.
func (s *Service) Cancel(ctx context.Context, id string) (*models.Booking, error) {
	return s.transition(ctx, id, models.BookingCancelled, func(b *models.Booking) error {
		s.adjustSeats(ctx, b.DriverID, b.SeatsBooked)
		if s.d.Payments == nil || b.PaymentIntentID == "" {
			return nil
		}
		return s.d.Payments.Cancel(ctx, b.PaymentIntentID)
	}, models.BookingPending, models.BookingConfirmed)
}

// Confirm records the driver's acceptance of a pending booking.
func (s *Service) Confirm(ctx context.Context, id string) (*models.Booking, error) {
	return s.transition(ctx, id, models.BookingConfirmed, nil, models.BookingPending)
}

// Complete marks the trip done and captures the held fare.
func (s *Service) Complete(ctx context.Context, id string) (*models.Booking, error) {
	return s.transition(ctx, id, models.BookingCompleted, func(b *models.Booking) error {
		if s.d.Payments == nil || b.PaymentIntentID == "" {
			return nil
		}
		return s.d.Payments.Capture(ctx, b.PaymentIntentID)
	}, models.BookingConfirmed)
}

// transition persists the new status before running payment side effects.
// A failed side effect leaves the status in place and flags the booking
// with PaymentPending for reconciliation.
func (s *Service) transition(ctx context.Context, id string, to models.BookingStatus, effect func(*models.Booking) error, from ...models.BookingStatus) (*models.Booking, error) {
	b, err := s.d.Store.GetBooking(ctx, id)
	if err != nil {
		return nil, err
	}
	if !slices.Contains(from, b.Status) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidState, b.Status, to)
	}
	b.Status = to
	b.UpdatedAt = s.d.Clock()
	if err := s.d.Store.UpdateBooking(ctx, b); err != nil {
		return nil, fmt.Errorf("update booking %s: %w", id, err)
	}
	observability.BookingsTotal.WithLabelValues(string(to)).Inc()
	s.d.Logger.Info("booking updated", "booking_id", b.ID, "status", string(to))

	if effect == nil {
		return b, nil
	}
	if err := effect(b); err != nil {
		s.d.Logger.Error("payment follow-up failed", "booking_id", b.ID, "status", string(to), "payment_intent", b.PaymentIntentID, "error", err)
		observability.BookingsTotal.WithLabelValues("payment_pending").Inc()
		b.PaymentPending = true
		if err := s.d.Store.UpdateBooking(ctx, b); err != nil {
			s.d.Logger.Error("flag payment pending failed", "booking_id", b.ID, "error", err)
		}
	}
	return b, nil
}

// adjustSeats moves delta seats to (positive) or from (negative) a driver's free count.
func (s *Service) adjustSeats(ctx context.Context, driverID string, delta int) {
	if s.d.Fleet == nil || driverID == "" || delta == 0 {
		return
	}
	d, ok := s.d.Fleet.Get(ctx, driverID)
	if !ok {
		s.d.Logger.Warn("driver missing from fleet, seats not adjusted", "driver_id", driverID, "delta", delta)
		return
	}
	d.AvailableSeats = max(d.AvailableSeats+delta, 0)
	s.d.Fleet.Upsert(ctx, d)
}

func (s *Service) releaseHold(ctx context.Context, b *models.Booking) {
	if s.d.Payments == nil || b.PaymentIntentID == "" {
		return
	}
	if err := s.d.Payments.Cancel(ctx, b.PaymentIntentID); err != nil {
		s.d.Logger.Error("release payment hold failed", "booking_id", b.ID, "payment_intent", b.PaymentIntentID, "error", err)
	}
}

func validate(req *models.MatchRequest) error {
	req.RiderID = strings.TrimSpace(req.RiderID)
	req.Address = strings.TrimSpace(req.Address)
	switch {
	case req.RiderID == "":
		return fmt.Errorf("%w: rider_id is required", ErrBadRequest)
	case req.Address == "":
		return fmt.Errorf("%w: please enter your home address", ErrBadRequest)
	case req.DepartureTime == "":
		return fmt.Errorf("%w: please select a departure time", ErrBadRequest)
	}
	if req.Seats == 0 {
		req.Seats = 1
	}
	if req.Seats < 0 {
		return fmt.Errorf("%w: seats must be positive", ErrBadRequest)
	}
	return nil
}

func riderPickup(it models.Itinerary, riderID string) models.GeoPoint {
	for _, w := range it.Route.Order {
		if w.ID == riderID {
			return w.Point
		}
	}
	return models.GeoPoint{}
}
