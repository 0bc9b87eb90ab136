package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/example/campus-carpool/internal/config"
	"github.com/example/campus-carpool/internal/dispatch"
	"github.com/example/campus-carpool/internal/eta"
	"github.com/example/campus-carpool/internal/fare"
	"github.com/example/campus-carpool/internal/geo"
	"github.com/example/campus-carpool/internal/geocode"
	httpapi "github.com/example/campus-carpool/internal/http"
	"github.com/example/campus-carpool/internal/ingest"
	"github.com/example/campus-carpool/internal/logging"
	"github.com/example/campus-carpool/internal/matcher"
	"github.com/example/campus-carpool/internal/models"
	"github.com/example/campus-carpool/internal/payments"
	"github.com/example/campus-carpool/internal/planner"
	"github.com/example/campus-carpool/internal/roster"
	"github.com/example/campus-carpool/internal/route"
	"github.com/example/campus-carpool/internal/schedule"
	"github.com/example/campus-carpool/internal/storage"
)

func main() {
	cfg, err := config.LoadServerConfig()
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	logger := logging.NewLogger(cfg.LogLevel)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var drivers geo.Geo = geo.NewIndex()
	if cfg.RedisAddr != "" {
		rc := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
		defer rc.Close()
		drivers = geo.NewRedisGeo(rc, cfg.RedisGeoKey, cfg.DriverRadiusKm, logger)
		logger.Info("using redis driver index", "addr", cfg.RedisAddr, "key", cfg.RedisGeoKey)
	}

	var store storage.BookingStore = storage.NewMemoryStore()
	if cfg.PGDSN != "" {
		pg, err := storage.NewPostgresStore(ctx, cfg.PGDSN)
		if err != nil {
			logger.Error("postgres unavailable", "error", err)
			os.Exit(1)
		}
		defer pg.Close()
		if cfg.RunMigrations {
			migrate(ctx, pg, logger)
		}
		store = pg
	}

	var events ingest.Publisher
	if len(cfg.KafkaBrokers) > 0 {
		kp := ingest.NewKafkaProducer(cfg.KafkaBrokers, cfg.KafkaTopic, cfg.KafkaItineraryTopic)
		defer kp.Close()
		events = kp
	}

	var holder payments.Holder
	if cfg.StripeAPIKey != "" {
		holder = payments.NewStripeClient(cfg.StripeAPIKey)
	}

	etaEst := &eta.Estimator{Cache: eta.NewCache(5 * time.Minute), SpeedMps: cfg.DefaultSpeedMps}
	var osrm eta.Client
	if cfg.OSRMURL != "" {
		c := eta.NewOSRMClient(cfg.OSRMURL)
		etaEst.Client = c
		osrm = c
	}

	fixed := schedule.Fixed{StopInterval: cfg.StopInterval, FinalLeg: cfg.FinalLeg}
	var legs schedule.Estimator = fixed
	if cfg.ScheduleMode == "distance" {
		// OSRM errors fall back to fixed increments; without OSRM legs use straight-line speed
		legs = schedule.Distance{ETA: osrm, SpeedMps: cfg.DefaultSpeedMps, Dwell: 2 * time.Minute, Fallback: fixed}
	}

	wsreg := dispatch.NewWSRegistry()
	fanout := &dispatch.Fanout{WS: wsreg, Logger: logger}
	if cfg.DispatchWebhookURL != "" {
		fanout.Fallback = dispatch.NewWebhookDispatcher(cfg.DispatchWebhookURL)
	}

	svc := planner.New(planner.Deps{
		Geocoder:     geocode.NewNominatimClient(cfg.GeocoderURL, cfg.GeocoderSuffix),
		Roster:       roster.NewStatic(roster.DefaultCoRiders()),
		Store:        store,
		Drivers:      &matcher.Service{Geo: drivers, DefaultSpeedMps: cfg.DefaultSpeedMps, TopN: cfg.MatcherTopN, ETAClient: etaEst},
		Payments:     holder,
		Dispatch:     fanout,
		Events:       events,
		Fleet:        drivers,
		Optimizer:    route.Optimizer{Strategy: planner.BruteForceWithMetrics(cfg.MaxWaypoints)},
		Schedule:     schedule.Builder{Estimator: legs},
		Fare:         &fare.Splitter{RatePerKm: cfg.FareRatePerKm, BaseFee: cfg.FareBaseFee},
		Passengers:   cfg.FarePassengers,
		Currency:     cfg.FareCurrency,
		Campus:       models.GeoPoint{Lat: cfg.CampusLat, Lon: cfg.CampusLon},
		DefaultStart: models.GeoPoint{Lat: cfg.DefaultStartLat, Lon: cfg.DefaultStartLon},
		Logger:       logger,
	})

	handler := httpapi.NewServer(httpapi.Deps{Planner: svc, Geo: drivers, Events: events, WSReg: wsreg, Logger: logger})
	srv := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      handler,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	go func() {
		logger.Info("campus-carpool listening", "addr", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server stopped", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", "error", err)
	}
	logger.Info("server stopped")
}

func migrate(ctx context.Context, pg *storage.PostgresStore, logger *slog.Logger) {
	name := "001_create_bookings.sql"
	b, err := os.ReadFile(filepath.Join("migrations", name))
	if err != nil {
		logger.Error("migration read error", "file", name, "error", err)
		return
	}
	if err := pg.Migrate(ctx, string(b)); err != nil {
		logger.Error("migration exec error", "file", name, "error", err)
		return
	}
	logger.Info("migration applied", "file", name)
}
