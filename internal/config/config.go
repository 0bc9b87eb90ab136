package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// ServerConfig captures all tunable parameters for the HTTP API process.
// Values are primarily loaded from environment variables with sane defaults
// so the binary can run locally without excessive setup.
type ServerConfig struct {
	HTTPAddr        string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	RedisAddr      string
	RedisPassword  string
	RedisGeoKey    string
	DriverRadiusKm float64

	KafkaBrokers        []string
	KafkaTopic          string
	KafkaItineraryTopic string

	PGDSN string

	DefaultSpeedMps float64
	MatcherTopN     int
	OSRMURL         string

	CampusLat       float64
	CampusLon       float64
	DefaultStartLat float64
	DefaultStartLon float64
	MaxWaypoints    int

	StopInterval time.Duration
	FinalLeg     time.Duration
	ScheduleMode string

	FareRatePerKm  float64
	FareBaseFee    float64
	FarePassengers int
	FareCurrency   string
	StripeAPIKey   string

	GeocoderURL    string
	GeocoderSuffix string

	DispatchWebhookURL string

	LogLevel      string
	RunMigrations bool
}

func defaultServerConfig() ServerConfig {
	return ServerConfig{
		HTTPAddr:            ":8080",
		ReadTimeout:         5 * time.Second,
		WriteTimeout:        10 * time.Second,
		IdleTimeout:         120 * time.Second,
		ShutdownTimeout:     15 * time.Second,
		RedisGeoKey:         "drivers_geo",
		DriverRadiusKm:      15,
		KafkaTopic:          "driver-locations",
		KafkaItineraryTopic: "carpool-itineraries",
		DefaultSpeedMps:     8,
		MatcherTopN:         8,
		CampusLat:           43.7735, // York University
		CampusLon:           -79.5019,
		DefaultStartLat:     43.7280,
		DefaultStartLon:     -79.4500,
		MaxWaypoints:        8,
		StopInterval:        8 * time.Minute,
		FinalLeg:            25 * time.Minute,
		ScheduleMode:        "fixed",
		FareRatePerKm:       0.35,
		FareBaseFee:         5.00,
		FarePassengers:      4,
		FareCurrency:        "cad",
		GeocoderURL:         "https://nominatim.openstreetmap.org",
		GeocoderSuffix:      ", Toronto, Ontario",
		LogLevel:            "info",
	}
}

func LoadServerConfig() (ServerConfig, error) {
	cfg := defaultServerConfig()
	var errs []error

	setStringFromEnv(&cfg.HTTPAddr, "HTTP_ADDR")
	setDurationFromEnv(&cfg.ReadTimeout, "HTTP_READ_TIMEOUT", &errs)
	setDurationFromEnv(&cfg.WriteTimeout, "HTTP_WRITE_TIMEOUT", &errs)
	setDurationFromEnv(&cfg.IdleTimeout, "HTTP_IDLE_TIMEOUT", &errs)
	setDurationFromEnv(&cfg.ShutdownTimeout, "HTTP_SHUTDOWN_TIMEOUT", &errs)

	cfg.RedisAddr = strings.TrimSpace(os.Getenv("REDIS_ADDR"))
	cfg.RedisPassword = os.Getenv("REDIS_PASSWORD")
	setStringFromEnv(&cfg.RedisGeoKey, "REDIS_GEO_KEY")
	setFloatFromEnv(&cfg.DriverRadiusKm, "DRIVER_RADIUS_KM", &errs)

	if brokers := os.Getenv("KAFKA_BROKERS"); brokers != "" {
		cfg.KafkaBrokers = splitAndTrim(brokers)
	}
	setStringFromEnv(&cfg.KafkaTopic, "KAFKA_TOPIC")
	setStringFromEnv(&cfg.KafkaItineraryTopic, "KAFKA_ITINERARY_TOPIC")

	cfg.PGDSN = os.Getenv("PG_DSN")

	setFloatFromEnv(&cfg.DefaultSpeedMps, "MATCHER_DEFAULT_SPEED_MPS", &errs)
	setIntFromEnv(&cfg.MatcherTopN, "MATCHER_TOP_N", &errs)
	setStringFromEnv(&cfg.OSRMURL, "OSRM_URL")

	setFloatFromEnv(&cfg.CampusLat, "CAMPUS_LAT", &errs)
	setFloatFromEnv(&cfg.CampusLon, "CAMPUS_LON", &errs)
	setFloatFromEnv(&cfg.DefaultStartLat, "ROUTE_START_LAT", &errs)
	setFloatFromEnv(&cfg.DefaultStartLon, "ROUTE_START_LON", &errs)
	setIntFromEnv(&cfg.MaxWaypoints, "ROUTE_MAX_WAYPOINTS", &errs)

	setDurationFromEnv(&cfg.StopInterval, "SCHEDULE_STOP_INTERVAL", &errs)
	setDurationFromEnv(&cfg.FinalLeg, "SCHEDULE_FINAL_LEG", &errs)
	setStringFromEnv(&cfg.ScheduleMode, "SCHEDULE_MODE")
	cfg.ScheduleMode = strings.ToLower(cfg.ScheduleMode)

	setFloatFromEnv(&cfg.FareRatePerKm, "FARE_RATE_PER_KM", &errs)
	setFloatFromEnv(&cfg.FareBaseFee, "FARE_BASE_FEE", &errs)
	setIntFromEnv(&cfg.FarePassengers, "FARE_PASSENGERS", &errs)
	setStringFromEnv(&cfg.FareCurrency, "FARE_CURRENCY")
	cfg.StripeAPIKey = os.Getenv("STRIPE_API_KEY")

	setStringFromEnv(&cfg.GeocoderURL, "GEOCODER_URL")
	if v, ok := os.LookupEnv("GEOCODER_SUFFIX"); ok {
		cfg.GeocoderSuffix = v
	}

	cfg.DispatchWebhookURL = strings.TrimSpace(os.Getenv("DISPATCH_WEBHOOK_URL"))

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.LogLevel = strings.ToLower(v)
	}

	cfg.RunMigrations = strings.EqualFold(os.Getenv("MIGRATE"), "true")

	if cfg.MatcherTopN <= 0 {
		errs = append(errs, fmt.Errorf("MATCHER_TOP_N must be > 0"))
	}
	if cfg.MaxWaypoints <= 0 {
		errs = append(errs, fmt.Errorf("ROUTE_MAX_WAYPOINTS must be > 0"))
	}
	if cfg.FarePassengers <= 0 {
		errs = append(errs, fmt.Errorf("FARE_PASSENGERS must be > 0"))
	}
	if cfg.FareRatePerKm < 0 || cfg.FareBaseFee < 0 {
		errs = append(errs, fmt.Errorf("fare rate and base fee must be >= 0"))
	}
	if cfg.ScheduleMode != "fixed" && cfg.ScheduleMode != "distance" {
		errs = append(errs, fmt.Errorf("SCHEDULE_MODE must be fixed or distance, got %q", cfg.ScheduleMode))
	}

	return cfg, errors.Join(errs...)
}

// ConsumerConfig drives the driver-location consumer process.
type ConsumerConfig struct {
	MetricsAddr  string
	KafkaBrokers []string
	KafkaTopic   string
	KafkaGroup   string
	RedisAddr    string
	RedisGeoKey  string
	Retries      int
	RetryDelay   time.Duration
	LogLevel     string
}

func LoadConsumerConfig() (ConsumerConfig, error) {
	cfg := ConsumerConfig{
		MetricsAddr:  ":2112",
		KafkaBrokers: []string{"localhost:9092"},
		KafkaTopic:   "driver-locations",
		KafkaGroup:   "campus-carpool-consumer",
		RedisAddr:    "localhost:6379",
		RedisGeoKey:  "drivers_geo",
		Retries:      3,
		RetryDelay:   200 * time.Millisecond,
		LogLevel:     "info",
	}
	var errs []error

	setStringFromEnv(&cfg.MetricsAddr, "METRICS_ADDR")
	brokers := os.Getenv("KAFKA_BROKERS")
	if brokers == "" {
		brokers = os.Getenv("KAFKA_BROKER")
	}
	if brokers != "" {
		cfg.KafkaBrokers = splitAndTrim(brokers)
	}
	setStringFromEnv(&cfg.KafkaTopic, "KAFKA_TOPIC")
	setStringFromEnv(&cfg.KafkaGroup, "KAFKA_GROUP")
	setStringFromEnv(&cfg.RedisAddr, "REDIS_ADDR")
	setStringFromEnv(&cfg.RedisGeoKey, "REDIS_GEO_KEY")
	setIntFromEnv(&cfg.Retries, "REDIS_RETRIES", &errs)
	setDurationFromEnv(&cfg.RetryDelay, "REDIS_RETRY_DELAY", &errs)
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.LogLevel = strings.ToLower(v)
	}

	if len(cfg.KafkaBrokers) == 0 {
		errs = append(errs, fmt.Errorf("KAFKA_BROKERS must list at least one broker"))
	}
	if cfg.Retries <= 0 {
		errs = append(errs, fmt.Errorf("REDIS_RETRIES must be > 0"))
	}
	return cfg, errors.Join(errs...)
}

func setDurationFromEnv(target *time.Duration, key string, errs *[]error) {
	if v := os.Getenv(key); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			*errs = append(*errs, fmt.Errorf("invalid %s: %w", key, err))
			return
		}
		*target = d
	}
}

func setFloatFromEnv(target *float64, key string, errs *[]error) {
	if v := os.Getenv(key); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			*errs = append(*errs, fmt.Errorf("invalid %s: %w", key, err))
			return
		}
		*target = f
	}
}

func setIntFromEnv(target *int, key string, errs *[]error) {
	if v := os.Getenv(key); v != "" {
		i, err := strconv.Atoi(v)
		if err != nil {
			*errs = append(*errs, fmt.Errorf("invalid %s: %w", key, err))
			return
		}
		*target = i
	}
}

func setStringFromEnv(target *string, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		*target = v
	}
}

func splitAndTrim(v string) []string {
	raw := strings.Split(v, ",")
	out := make([]string, 0, len(raw))
	for _, r := range raw {
		r = strings.TrimSpace(r)
		if r == "" {
			continue
		}
		out = append(out, r)
	}
	return out
}
