package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/example/campus-carpool/internal/models"
)

type recordingDispatcher struct{ offers []models.MatchOffer }

func (r *recordingDispatcher) Offer(_ context.Context, o models.MatchOffer) error {
	r.offers = append(r.offers, o)
	return nil
}

func TestFanoutFallsBackWithoutSession(t *testing.T) {
	fb := &recordingDispatcher{}
	f := &Fanout{WS: NewWSRegistry(), Fallback: fb}
	if err := f.Offer(context.Background(), models.MatchOffer{RideID: "r1", DriverID: "d1"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(fb.offers) != 1 || fb.offers[0].RideID != "r1" {
		t.Fatalf("expected fallback delivery, got %+v", fb.offers)
	}
}

func TestFanoutWithoutFallback(t *testing.T) {
	f := &Fanout{WS: NewWSRegistry()}
	if err := f.Offer(context.Background(), models.MatchOffer{DriverID: "d1"}); !errors.Is(err, ErrNoSession) {
		t.Fatalf("expected ErrNoSession, got %v", err)
	}
}

func TestWebhookDispatcher(t *testing.T) {
	var got models.MatchOffer
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	if err := NewWebhookDispatcher(srv.URL).Offer(context.Background(), models.MatchOffer{RideID: "r9", DriverID: "d9"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.RideID != "r9" {
		t.Fatalf("webhook got %+v", got)
	}
}

func TestWSRegistryDeliversOffer(t *testing.T) {
	reg := NewWSRegistry()
	upgrader := websocket.Upgrader{}
	ready := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		reg.Add("d1", conn)
		close(ready)
	}))
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	<-ready

	if err := reg.Offer(context.Background(), models.MatchOffer{RideID: "r1", DriverID: "d1"}); err != nil {
		t.Fatalf("offer: %v", err)
	}
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var got models.MatchOffer
	if err := conn.ReadJSON(&got); err != nil {
		t.Fatalf("read: %v", err)
	}
	if got.RideID != "r1" {
		t.Fatalf("unexpected offer %+v", got)
	}
}
