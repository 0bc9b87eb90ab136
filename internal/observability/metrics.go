package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "campus_carpool"

var (
	MatchesTotal  = promauto.NewCounter(prometheus.CounterOpts{Namespace: namespace, Name: "driver_matches_total", Help: "Total number of driver matches"})
	MatchLatency  = promauto.NewHistogram(prometheus.HistogramOpts{Namespace: namespace, Name: "driver_match_latency_seconds", Help: "Driver match latency seconds"})
	LocationPings = promauto.NewCounter(prometheus.CounterOpts{Namespace: namespace, Name: "driver_location_updates_total", Help: "Driver location updates received"})

	RoutesOptimized = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "routes_optimized_total", Help: "Route optimisations by outcome"},
		[]string{"outcome"},
	)
	RoutePermutations = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "route_permutations_evaluated",
		Help:      "Candidate stop orders scored per optimisation",
		Buckets:   []float64{1, 2, 6, 24, 120, 720, 5040, 40320},
	})
	RouteDistanceKm = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "route_distance_km",
		Help:      "Total distance of optimised routes",
		Buckets:   prometheus.LinearBuckets(2, 4, 10),
	})
	BookingsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "bookings_total", Help: "Bookings by resulting status"},
		[]string{"status"},
	)

	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "http_requests_total", Help: "Total HTTP requests handled"},
		[]string{"method", "path", "status"},
	)
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency distribution",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)
