package eta

import (
	"fmt"
	"sync"
	"time"

	"github.com/example/campus-carpool/internal/geo"
	"github.com/example/campus-carpool/internal/models"
)

// DefaultSpeedMps is roughly 28.8 km/h, a typical city driving speed.
const DefaultSpeedMps = 8.0

// Client is the interface used by the matcher and scheduler to get ETAs.
type Client interface {
	EstimateSeconds(from, to models.GeoPoint) (float64, error)
}

// Cache is a tiny in-memory cache for ETA lookups keyed by coords.
type Cache struct {
	mu    sync.RWMutex
	store map[string]cacheEntry
	ttl   time.Duration
}

type cacheEntry struct {
	v  float64
	ts time.Time
}

// NewCache creates a cache with the provided TTL.
func NewCache(ttl time.Duration) *Cache {
	return &Cache{store: make(map[string]cacheEntry), ttl: ttl}
}

func keyFor(a, b models.GeoPoint) string {
	return fmtCoord(a) + "->" + fmtCoord(b)
}

func fmtCoord(c models.GeoPoint) string {
	return fmt.Sprintf("%.6f,%.6f", c.Lat, c.Lon)
}

// Get returns cached value and true if present and not expired.
func (c *Cache) Get(a, b models.GeoPoint) (float64, bool) {
	k := keyFor(a, b)
	c.mu.RLock()
	e, ok := c.store[k]
	c.mu.RUnlock()
	if !ok {
		return 0, false
	}
	if time.Since(e.ts) > c.ttl {
		c.mu.Lock()
		delete(c.store, k)
		c.mu.Unlock()
		return 0, false
	}
	return e.v, true
}

// Set stores a value in the cache.
func (c *Cache) Set(a, b models.GeoPoint, v float64) {
	k := keyFor(a, b)
	c.mu.Lock()
	c.store[k] = cacheEntry{v: v, ts: time.Now()}
	c.mu.Unlock()
}

// Estimator resolves ETAs through an optional routing engine, an optional
// cache and finally the straight-line estimate.
type Estimator struct {
	Client   Client
	Cache    *Cache
	SpeedMps float64
}

func (e *Estimator) EstimateSeconds(from, to models.GeoPoint) (float64, error) {
	if e.Cache != nil {
		if v, ok := e.Cache.Get(from, to); ok {
			return v, nil
		}
	}
	if e.Client != nil {
		if v, err := e.Client.EstimateSeconds(from, to); err == nil {
			if e.Cache != nil {
				e.Cache.Set(from, to, v)
			}
			return v, nil
		}
	}
	return EstimateSeconds(from, to, e.SpeedMps), nil
}

// Naive ETA: great-circle distance / speed_mps.
func EstimateSeconds(from, to models.GeoPoint, speedMps float64) float64 {
	if speedMps <= 0 {
		speedMps = DefaultSpeedMps
	}
	return geo.Distance(from, to) * 1000 / speedMps
}
