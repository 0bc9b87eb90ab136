// Package geocode resolves free-text addresses to coordinates.
package geocode

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/example/campus-carpool/internal/models"
)

var ErrNotFound = errors.New("geocode: address not found")

type Geocoder interface {
	Geocode(ctx context.Context, address string) (models.GeoPoint, error)
}

// NominatimClient queries an OpenStreetMap Nominatim search endpoint.
type NominatimClient struct {
	Endpoint  string
	Suffix    string // appended to every query, e.g. ", Toronto, Ontario"
	UserAgent string
	Attempts  int
	Backoff   time.Duration
	Client    *http.Client
}

func NewNominatimClient(endpoint, suffix string) *NominatimClient {
	return &NominatimClient{
		Endpoint:  strings.TrimRight(endpoint, "/"),
		Suffix:    suffix,
		UserAgent: "campus-carpool/1.0",
		Attempts:  2,
		Backoff:   250 * time.Millisecond,
		Client:    &http.Client{Timeout: 5 * time.Second},
	}
}

func (n *NominatimClient) Geocode(ctx context.Context, address string) (models.GeoPoint, error) {
	address = strings.TrimSpace(address)
	if address == "" {
		return models.GeoPoint{}, ErrNotFound
	}
	q := url.Values{}
	q.Set("format", "json")
	q.Set("limit", "1")
	q.Set("q", address+n.Suffix)
	u := n.Endpoint + "/search?" + q.Encode()

	attempts := n.Attempts
	if attempts <= 0 {
		attempts = 1
	}
	delay := n.Backoff
	var lastErr error
	for i := 0; i < attempts; i++ {
		p, err := n.lookup(ctx, u)
		if err == nil || errors.Is(err, ErrNotFound) {
			return p, err
		}
		lastErr = err
		if i == attempts-1 {
			break
		}
		select {
		case <-ctx.Done():
			return models.GeoPoint{}, ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
	}
	return models.GeoPoint{}, fmt.Errorf("geocode %q: %w", address, lastErr)
}

func (n *NominatimClient) lookup(ctx context.Context, u string) (models.GeoPoint, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return models.GeoPoint{}, err
	}
	req.Header.Set("User-Agent", n.UserAgent)
	resp, err := n.Client.Do(req)
	if err != nil {
		return models.GeoPoint{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return models.GeoPoint{}, fmt.Errorf("nominatim status %d", resp.StatusCode)
	}
	// nominatim returns coordinates as strings
	var out []struct {
		Lat string `json:"lat"`
		Lon string `json:"lon"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return models.GeoPoint{}, err
	}
	if len(out) == 0 {
		return models.GeoPoint{}, ErrNotFound
	}
	lat, err := strconv.ParseFloat(out[0].Lat, 64)
	if err != nil {
		return models.GeoPoint{}, fmt.Errorf("nominatim lat: %w", err)
	}
	lon, err := strconv.ParseFloat(out[0].Lon, 64)
	if err != nil {
		return models.GeoPoint{}, fmt.Errorf("nominatim lon: %w", err)
	}
	p := models.GeoPoint{Lat: lat, Lon: lon}
	if !p.Valid() {
		return models.GeoPoint{}, ErrNotFound
	}
	return p, nil
}
