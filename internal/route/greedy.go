package route

import (
	"github.com/example/campus-carpool/internal/geo"
	"github.com/example/campus-carpool/internal/models"
)

// Greedy is a nearest-neighbour heuristic for groups too large to search
// exhaustively. It is not guaranteed to find the shortest order.
type Greedy struct{}

func (Greedy) Order(start, _ models.GeoPoint, waypoints []models.Waypoint) ([]int, error) {
	visited := make([]bool, len(waypoints))
	out := make([]int, 0, len(waypoints))
	cur := start
	for len(out) < len(waypoints) {
		next := -1
		var nextDist float64
		for i, w := range waypoints {
			if visited[i] {
				continue
			}
			if d := geo.Distance(cur, w.Point); next < 0 || d < nextDist {
				next, nextDist = i, d
			}
		}
		visited[next] = true
		out = append(out, next)
		cur = waypoints[next].Point
	}
	return out, nil
}

// Auto runs BruteForce up to its bound and falls back to Greedy beyond it.
type Auto struct {
	BruteForce BruteForce
}

func (a Auto) Order(start, end models.GeoPoint, waypoints []models.Waypoint) ([]int, error) {
	limit := a.BruteForce.MaxWaypoints
	if limit <= 0 {
		limit = MaxBruteForceWaypoints
	}
	if len(waypoints) > limit {
		return Greedy{}.Order(start, end, waypoints)
	}
	return a.BruteForce.Order(start, end, waypoints)
}
