// Package roster supplies the co-riders sharing a trip with the requester.
package roster

import (
	"context"

	"github.com/example/campus-carpool/internal/models"
)

type Roster interface {
	CoRiders(ctx context.Context, req models.MatchRequest) ([]models.Waypoint, error)
}

// Static returns the same riders for every request, excluding the requester.
type Static struct {
	Riders []models.Waypoint
}

// DefaultCoRiders are the demo riders living between downtown and York University.
func DefaultCoRiders() []models.Waypoint {
	return []models.Waypoint{
		{ID: "student_alex", Address: "Bathurst St & Sheppard Ave W", Point: models.GeoPoint{Lat: 43.7624, Lon: -79.4381}},
		{ID: "student_jordan", Address: "Wilson Heights Blvd", Point: models.GeoPoint{Lat: 43.7520, Lon: -79.4578}},
		{ID: "student_sam", Address: "Yonge St & Sheppard Ave", Point: models.GeoPoint{Lat: 43.7525, Lon: -79.4315}},
	}
}

func NewStatic(riders []models.Waypoint) *Static {
	return &Static{Riders: riders}
}

func (s *Static) CoRiders(_ context.Context, req models.MatchRequest) ([]models.Waypoint, error) {
	out := make([]models.Waypoint, 0, len(s.Riders))
	for _, w := range s.Riders {
		if w.ID == req.RiderID {
			continue
		}
		out = append(out, w)
	}
	return out, nil
}
