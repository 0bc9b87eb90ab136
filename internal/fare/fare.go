// Package fare splits the cost of a shared trip evenly between riders.
package fare

import (
	"errors"
	"math"
)

const (
	DefaultRatePerKm  = 0.35
	DefaultBaseFee    = 5.00
	DefaultPassengers = 4
)

var (
	ErrInvalidDistance   = errors.New("fare: distance must be a non-negative number")
	ErrInvalidPassengers = errors.New("fare: passenger count must be positive")
)

// Splitter holds the pricing constants. Both are used as given, so a zero
// base fee or rate prices that component at nothing; use DefaultSplitter
// for the standard tariff.
type Splitter struct {
	RatePerKm float64
	BaseFee   float64
}

func DefaultSplitter() Splitter {
	return Splitter{RatePerKm: DefaultRatePerKm, BaseFee: DefaultBaseFee}
}

// Total is the whole trip's cost before splitting.
func (s Splitter) Total(distanceKm float64) (float64, error) {
	if math.IsNaN(distanceKm) || math.IsInf(distanceKm, 0) || distanceKm < 0 {
		return 0, ErrInvalidDistance
	}
	return distanceKm*s.RatePerKm + s.BaseFee, nil
}

// Split returns each passenger's share rounded to cents.
func (s Splitter) Split(distanceKm float64, passengers int) (float64, error) {
	if passengers <= 0 {
		return 0, ErrInvalidPassengers
	}
	total, err := s.Total(distanceKm)
	if err != nil {
		return 0, err
	}
	return Round2(total / float64(passengers)), nil
}

// SplitFare applies the default pricing.
func SplitFare(distanceKm float64, passengers int) (float64, error) {
	return DefaultSplitter().Split(distanceKm, passengers)
}

func Round2(v float64) float64 { return math.Round(v*100) / 100 }

// Cents converts an amount to minor currency units for payment providers.
func Cents(amount float64) int64 { return int64(math.Round(amount * 100)) }
