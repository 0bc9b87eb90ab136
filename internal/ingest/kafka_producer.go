package ingest

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/example/campus-carpool/internal/models"
)

const writeTimeout = 2 * time.Second

// Publisher is what the HTTP layer and planner need from the producer.
type Publisher interface {
	PublishLocation(ctx context.Context, d models.Driver) error
	PublishItinerary(ctx context.Context, it models.Itinerary) error
}

type KafkaProducer struct {
	locations   *kafka.Writer
	itineraries *kafka.Writer
}

func NewKafkaProducer(brokers []string, locationTopic, itineraryTopic string) *KafkaProducer {
	return &KafkaProducer{
		locations:   &kafka.Writer{Addr: kafka.TCP(brokers...), Topic: locationTopic, Balancer: &kafka.LeastBytes{}},
		itineraries: &kafka.Writer{Addr: kafka.TCP(brokers...), Topic: itineraryTopic, Balancer: &kafka.Hash{}},
	}
}

func (k *KafkaProducer) PublishLocation(ctx context.Context, d models.Driver) error {
	return write(ctx, k.locations, d.ID, d)
}

// PublishItinerary is keyed by rider so a rider's plans stay ordered.
func (k *KafkaProducer) PublishItinerary(ctx context.Context, it models.Itinerary) error {
	return write(ctx, k.itineraries, it.RiderID, it)
}

func write(ctx context.Context, w *kafka.Writer, key string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return w.WriteMessages(ctx, kafka.Message{Key: []byte(key), Value: b})
}

func (k *KafkaProducer) Close() error {
	var err error
	for _, w := range []*kafka.Writer{k.locations, k.itineraries} {
		if w == nil {
			continue
		}
		if cerr := w.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}
	return err
}
