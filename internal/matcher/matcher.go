package matcher

import (
	"context"
	"errors"
	"slices"
	"sort"
	"time"

	"github.com/example/campus-carpool/internal/eta"
	"github.com/example/campus-carpool/internal/models"
	"github.com/example/campus-carpool/internal/observability"
)

var ErrNoDriver = errors.New("matcher: no driver available")

type Geo interface {
	Nearby(ctx context.Context, p models.GeoPoint, limit int) []models.Driver
}

// Candidate is a driver together with the score that selected them.
type Candidate struct {
	Driver models.Driver
	ETA    float64 // seconds to the pickup
	Cost   float64
}

// DriverMatcher picks the driver for a pickup. departure is the rider's
// "HH:MM" slot.
type DriverMatcher interface {
	FindDriver(ctx context.Context, pickup models.GeoPoint, seats int, departure string) (Candidate, error)
}

type Service struct {
	Geo             Geo
	DefaultSpeedMps float64
	TopN            int
	ETAClient       eta.Client // optional, e.g. a cached OSRM estimator
}

func (s *Service) FindDriver(ctx context.Context, pickup models.GeoPoint, seats int, departure string) (Candidate, error) {
	start := time.Now()
	defer func() { observability.MatchLatency.Observe(time.Since(start).Seconds()) }()

	topN := s.TopN
	if topN <= 0 {
		topN = 10
	}
	if seats <= 0 {
		seats = 1
	}
	cands := s.Geo.Nearby(ctx, pickup, topN)
	scored := make([]Candidate, 0, len(cands))
	for _, d := range cands {
		if !d.Online || d.AvailableSeats < seats || !offers(d, departure) {
			continue
		}
		etaSec := s.estimate(d.Loc, pickup)
		cost := etaSec + 30.0*(5.0-d.Rating) // cost = w1*eta + w2*(5 - rating)
		scored = append(scored, Candidate{Driver: d, ETA: etaSec, Cost: cost})
	}
	if len(scored) == 0 {
		return Candidate{}, ErrNoDriver
	}
	sort.SliceStable(scored, func(i, j int) bool { return scored[i].Cost < scored[j].Cost })
	observability.MatchesTotal.Inc()
	return scored[0], nil
}

// offers reports whether d drives at departure. Drivers without listed slots take any.
func offers(d models.Driver, departure string) bool {
	return len(d.Departures) == 0 || departure == "" || slices.Contains(d.Departures, departure)
}

func (s *Service) estimate(from, to models.GeoPoint) float64 {
	if s.ETAClient != nil {
		if v, err := s.ETAClient.EstimateSeconds(from, to); err == nil {
			return v
		}
	}
	return eta.EstimateSeconds(from, to, s.DefaultSpeedMps)
}
