package models

import (
	"math"
	"time"
)

// GeoPoint is a latitude/longitude pair in decimal degrees.
type GeoPoint struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Valid reports whether both coordinates are finite numbers.
func (p GeoPoint) Valid() bool {
	return !math.IsNaN(p.Lat) && !math.IsNaN(p.Lon) && !math.IsInf(p.Lat, 0) && !math.IsInf(p.Lon, 0)
}

// Waypoint is a pickup location with a rider identity.
type Waypoint struct {
	ID      string   `json:"id"`
	Address string   `json:"address"`
	Point   GeoPoint `json:"point"`
}

type RouteResult struct {
	Order    []Waypoint `json:"order"`
	Path     []GeoPoint `json:"path"`
	Distance float64    `json:"distance_km"`
}

type ScheduledWaypoint struct {
	Waypoint
	Order int       `json:"order"`
	ETA   time.Time `json:"eta"`
}

type Driver struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	Loc            GeoPoint  `json:"loc"`
	Rating         float64   `json:"rating"` // 0..5
	Online         bool      `json:"online"`
	AvailableSeats int       `json:"available_seats"`
	Departures     []string  `json:"departures,omitempty"` // HH:MM slots offered; empty means any
	Updated        time.Time `json:"updated"`
}

type MatchRequest struct {
	RiderID       string `json:"rider_id"`
	Address       string `json:"address"`
	DepartureTime string `json:"departure_time"` // HH:MM
	Seats         int    `json:"seats"`
}

// Itinerary is the full answer to a match request: who drives, in which
// order riders are picked up, when, and what each rider pays.
type Itinerary struct {
	RiderID        string              `json:"rider_id"`
	Driver         *Driver             `json:"driver,omitempty"`
	Route          RouteResult         `json:"route"`
	Stops          []ScheduledWaypoint `json:"stops"`
	DestinationETA time.Time           `json:"destination_eta"`
	FarePerRider   float64             `json:"fare_per_rider"`
	Passengers     int                 `json:"passengers"`
}

type MatchOffer struct {
	RideID    string    `json:"ride_id"`
	DriverID  string    `json:"driver_id"`
	ETA       float64   `json:"eta_seconds"`
	Cost      float64   `json:"cost"`
	Itinerary Itinerary `json:"itinerary"`
}

type BookingStatus string

const (
	BookingPending   BookingStatus = "pending"
	BookingConfirmed BookingStatus = "confirmed"
	BookingCompleted BookingStatus = "completed"
	BookingCancelled BookingStatus = "cancelled"
)

type Booking struct {
	ID              string        `json:"id"`
	RiderID         string        `json:"rider_id"`
	DriverID        string        `json:"driver_id"`
	HomeAddress     string        `json:"home_address"`
	Pickup          GeoPoint      `json:"pickup"`
	SeatsBooked     int           `json:"seats_booked"`
	TotalCost       float64       `json:"total_cost"`
	DepartureTime   string        `json:"departure_time"`
	PaymentIntentID string        `json:"payment_intent_id,omitempty"`
	Status          BookingStatus `json:"status"`
	PaymentPending  bool          `json:"payment_pending,omitempty"` // capture or release still owed
	CreatedAt       time.Time     `json:"created_at"`
	UpdatedAt       time.Time     `json:"updated_at"`
}
