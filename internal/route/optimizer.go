// Package route orders pickup waypoints so that the path from a start point,
// through every waypoint, to a fixed destination is as short as possible.
package route

import (
	"errors"
	"fmt"

	"github.com/example/campus-carpool/internal/geo"
	"github.com/example/campus-carpool/internal/models"
)

// MaxBruteForceWaypoints bounds exhaustive search; 8! = 40320 candidate orders.
const MaxBruteForceWaypoints = 8

var (
	ErrInvalidInput     = errors.New("route: coordinate is not a finite number")
	ErrTooManyWaypoints = errors.New("route: too many waypoints for exhaustive search")
)

// Strategy decides a visitation order for waypoints between start and end.
// The returned slice holds indexes into waypoints.
type Strategy interface {
	Order(start, end models.GeoPoint, waypoints []models.Waypoint) ([]int, error)
}

// Optimizer validates input, delegates ordering to a Strategy and assembles
// the RouteResult. The zero value uses BruteForce with the default bound.
type Optimizer struct {
	Strategy Strategy
}

// Optimize is shorthand for the zero Optimizer.
func Optimize(start, end models.GeoPoint, waypoints []models.Waypoint) (models.RouteResult, error) {
	return Optimizer{}.Optimize(start, end, waypoints)
}

func (o Optimizer) Optimize(start, end models.GeoPoint, waypoints []models.Waypoint) (models.RouteResult, error) {
	if !start.Valid() || !end.Valid() {
		return models.RouteResult{}, ErrInvalidInput
	}
	for _, w := range waypoints {
		if !w.Point.Valid() {
			return models.RouteResult{}, fmt.Errorf("waypoint %q: %w", w.ID, ErrInvalidInput)
		}
	}

	s := o.Strategy
	if s == nil {
		s = BruteForce{}
	}
	idx, err := s.Order(start, end, waypoints)
	if err != nil {
		return models.RouteResult{}, err
	}
	if len(idx) != len(waypoints) {
		return models.RouteResult{}, fmt.Errorf("route: strategy returned %d of %d waypoints", len(idx), len(waypoints))
	}

	order := make([]models.Waypoint, len(idx))
	for i, j := range idx {
		order[i] = waypoints[j]
	}
	path := make([]models.GeoPoint, 0, len(order)+2)
	path = append(path, start)
	for _, w := range order {
		path = append(path, w.Point)
	}
	path = append(path, end)

	return models.RouteResult{Order: order, Path: path, Distance: PathLength(path)}, nil
}

// PathLength sums the great-circle legs of path in kilometres.
func PathLength(path []models.GeoPoint) float64 {
	var total float64
	for i := 1; i < len(path); i++ {
		total += geo.Distance(path[i-1], path[i])
	}
	return total
}

// BruteForce evaluates every permutation and keeps the shortest. Ties keep
// the permutation generated first.
type BruteForce struct {
	// MaxWaypoints overrides MaxBruteForceWaypoints when positive.
	MaxWaypoints int
	// Evaluated, when set, receives the number of permutations scored.
	Evaluated func(n int)
}

func (b BruteForce) Order(start, end models.GeoPoint, waypoints []models.Waypoint) ([]int, error) {
	limit := b.MaxWaypoints
	if limit <= 0 {
		limit = MaxBruteForceWaypoints
	}
	n := len(waypoints)
	if n > limit {
		return nil, fmt.Errorf("%w: %d > %d", ErrTooManyWaypoints, n, limit)
	}

	// leg distances are computed once; permutations only sum them
	fromStart := make([]float64, n)
	toEnd := make([]float64, n)
	between := make([][]float64, n)
	for i := range waypoints {
		fromStart[i] = geo.Distance(start, waypoints[i].Point)
		toEnd[i] = geo.Distance(waypoints[i].Point, end)
		between[i] = make([]float64, n)
		for j := range waypoints {
			between[i][j] = geo.Distance(waypoints[i].Point, waypoints[j].Point)
		}
	}

	cost := func(perm []int) float64 {
		if len(perm) == 0 {
			return geo.Distance(start, end)
		}
		total := fromStart[perm[0]]
		for i := 1; i < len(perm); i++ {
			total += between[perm[i-1]][perm[i]]
		}
		return total + toEnd[perm[len(perm)-1]]
	}

	best := identity(n)
	bestCost := cost(best)
	evaluated := 1
	perm := identity(n)
	for nextPermutation(perm) {
		evaluated++
		if c := cost(perm); c < bestCost {
			bestCost = c
			copy(best, perm)
		}
	}
	if b.Evaluated != nil {
		b.Evaluated(evaluated)
	}
	return best, nil
}

func identity(n int) []int {
	p := make([]int, n)
	for i := range p {
		p[i] = i
	}
	return p
}

// nextPermutation advances p to the next lexicographic permutation in place
// and reports false once p was the last one.
func nextPermutation(p []int) bool {
	i := len(p) - 2
	for i >= 0 && p[i] >= p[i+1] {
		i--
	}
	if i < 0 {
		return false
	}
	j := len(p) - 1
	for p[j] <= p[i] {
		j--
	}
	p[i], p[j] = p[j], p[i]
	for l, r := i+1, len(p)-1; l < r; l, r = l+1, r-1 {
		p[l], p[r] = p[r], p[l]
	}
	return true
}
