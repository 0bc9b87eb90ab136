// Package schedule turns an ordered pickup list into per-stop arrival times.
package schedule

import (
	"errors"
	"fmt"
	"time"

	"github.com/example/campus-carpool/internal/eta"
	"github.com/example/campus-carpool/internal/models"
)

const (
	DefaultStopInterval = 8 * time.Minute
	DefaultFinalLeg     = 25 * time.Minute

	clockLayout = "15:04"
)

var ErrInvalidClock = errors.New("schedule: time must be HH:MM")

// Estimator produces the gap between consecutive stops. leg is the zero-based
// index of the stop being arrived at; leg == len(stops) is the destination.
type Estimator interface {
	Leg(from, to models.GeoPoint, leg, stops int) time.Duration
}

// Fixed spaces pickups evenly and adds a constant final leg, ignoring distance.
type Fixed struct {
	StopInterval time.Duration
	FinalLeg     time.Duration
}

func (f Fixed) Leg(_, _ models.GeoPoint, leg, stops int) time.Duration {
	if leg == stops {
		return orDefault(f.FinalLeg, DefaultFinalLeg)
	}
	return orDefault(f.StopInterval, DefaultStopInterval)
}

// Distance sizes each leg from an ETA source and pads pickups with a dwell.
type Distance struct {
	ETA      eta.Client
	SpeedMps float64
	Dwell    time.Duration
	Fallback Fixed
}

func (d Distance) Leg(from, to models.GeoPoint, leg, stops int) time.Duration {
	var secs float64
	if d.ETA != nil {
		v, err := d.ETA.EstimateSeconds(from, to)
		if err != nil {
			return d.Fallback.Leg(from, to, leg, stops)
		}
		secs = v
	} else {
		secs = eta.EstimateSeconds(from, to, d.SpeedMps)
	}
	dur := time.Duration(secs * float64(time.Second)).Round(time.Minute)
	if leg < stops {
		dur += d.Dwell
	}
	return dur
}

// Builder applies an Estimator over a route. The zero value uses Fixed defaults.
type Builder struct {
	Estimator Estimator
}

// Build assigns the first stop the start time and each later stop the
// previous stop's time plus the estimated leg. The first stop is where the
// trip begins, so it carries no leg of its own.
func (b Builder) Build(route models.RouteResult, start time.Time) ([]models.ScheduledWaypoint, time.Time) {
	est := b.Estimator
	if est == nil {
		est = Fixed{}
	}
	n := len(route.Order)
	out := make([]models.ScheduledWaypoint, n)
	cur := start
	for i, w := range route.Order {
		if i > 0 {
			cur = cur.Add(nonNegative(est.Leg(route.Order[i-1].Point, w.Point, i, n)))
		}
		out[i] = models.ScheduledWaypoint{Waypoint: w, Order: i, ETA: cur}
	}
	var last models.GeoPoint
	switch {
	case n > 0:
		last = route.Order[n-1].Point
	case len(route.Path) > 0:
		last = route.Path[0]
	}
	var dest models.GeoPoint
	if len(route.Path) > 0 {
		dest = route.Path[len(route.Path)-1]
	}
	return out, cur.Add(nonNegative(est.Leg(last, dest, n, n)))
}

// BuildSchedule schedules an ordered waypoint list with fixed increments.
func BuildSchedule(ordered []models.Waypoint, start time.Time) ([]models.ScheduledWaypoint, time.Time) {
	return Builder{}.Build(models.RouteResult{Order: ordered}, start)
}

// ParseClock reads a date-agnostic "HH:MM" time on the given day.
func ParseClock(s string, day time.Time) (time.Time, error) {
	t, err := time.Parse(clockLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidClock, s)
	}
	y, m, d := day.Date()
	return time.Date(y, m, d, t.Hour(), t.Minute(), 0, 0, day.Location()), nil
}

func FormatClock(t time.Time) string { return t.Format(clockLayout) }

func orDefault(v, def time.Duration) time.Duration {
	if v <= 0 {
		return def
	}
	return v
}

func nonNegative(d time.Duration) time.Duration {
	if d < 0 {
		return 0
	}
	return d
}
