package geo

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/example/campus-carpool/internal/models"
)

// RedisGeo implements Geo using Redis GEO commands.
type RedisGeo struct {
	client   *redis.Client
	key      string
	radiusKm float64
	logger   *slog.Logger
}

func NewRedisGeo(client *redis.Client, key string, radiusKm float64, logger *slog.Logger) *RedisGeo {
	if radiusKm <= 0 {
		radiusKm = 15
	}
	return &RedisGeo{client: client, key: key, radiusKm: radiusKm, logger: logger}
}

func (r *RedisGeo) Upsert(ctx context.Context, d models.Driver) {
	// GEOADD for position, HSET for metadata
	if err := r.client.GeoAdd(ctx, r.key, &redis.GeoLocation{Longitude: d.Loc.Lon, Latitude: d.Loc.Lat, Name: d.ID}).Err(); err != nil {
		r.logger.Warn("redis geoadd failed", "driver_id", d.ID, "error", err)
		return
	}
	if err := r.client.HSet(ctx, MetaKey(d.ID), MetaFields(d, time.Now())).Err(); err != nil {
		r.logger.Warn("redis hset failed", "driver_id", d.ID, "error", err)
	}
}

func (r *RedisGeo) Nearby(ctx context.Context, p models.GeoPoint, limit int) []models.Driver {
	res, err := r.client.GeoRadius(ctx, r.key, p.Lon, p.Lat, &redis.GeoRadiusQuery{Radius: r.radiusKm, Unit: "km", WithCoord: true, WithDist: true, Count: limit, Sort: "ASC"}).Result()
	if err != nil {
		r.logger.Warn("redis georadius failed", "error", err)
		return nil
	}
	out := make([]models.Driver, 0, len(res))
	for _, g := range res {
		d := models.Driver{ID: g.Name, Loc: models.GeoPoint{Lat: g.Latitude, Lon: g.Longitude}}
		if m, err := r.client.HGetAll(ctx, MetaKey(g.Name)).Result(); err == nil {
			applyMeta(&d, m)
		}
		if !d.Online {
			continue
		}
		out = append(out, d)
	}
	return out
}

// Get reads one driver's position and metadata.
func (r *RedisGeo) Get(ctx context.Context, id string) (models.Driver, bool) {
	pos, err := r.client.GeoPos(ctx, r.key, id).Result()
	if err != nil || len(pos) == 0 || pos[0] == nil {
		if err != nil {
			r.logger.Warn("redis geopos failed", "driver_id", id, "error", err)
		}
		return models.Driver{}, false
	}
	d := models.Driver{ID: id, Loc: models.GeoPoint{Lat: pos[0].Latitude, Lon: pos[0].Longitude}}
	m, err := r.client.HGetAll(ctx, MetaKey(id)).Result()
	if err != nil {
		r.logger.Warn("redis hgetall failed", "driver_id", id, "error", err)
		return models.Driver{}, false
	}
	applyMeta(&d, m)
	return d, true
}

func applyMeta(d *models.Driver, m map[string]string) {
	d.Name = m["name"]
	if v, ok := m["rating"]; ok {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			d.Rating = f
		}
	}
	if v, ok := m["online"]; ok {
		d.Online = v == "true"
	}
	if v, ok := m["seats"]; ok {
		if n, err := strconv.Atoi(v); err == nil {
			d.AvailableSeats = n
		}
	}
	if v := m["departures"]; v != "" {
		d.Departures = strings.Split(v, ",")
	}
	if v, ok := m["updated"]; ok {
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			d.Updated = t
		}
	}
}

// MetaFields encodes the hash read back by Nearby.
func MetaFields(d models.Driver, now time.Time) map[string]interface{} {
	return map[string]interface{}{
		"name":       d.Name,
		"rating":     fmt.Sprintf("%f", d.Rating),
		"online":     strconv.FormatBool(d.Online),
		"seats":      strconv.Itoa(d.AvailableSeats),
		"departures": strings.Join(d.Departures, ","),
		"updated":    now.Format(time.RFC3339),
	}
}

// MetaKey is the Redis hash holding a driver's non-positional fields.
func MetaKey(id string) string { return "driver:meta:" + id }
