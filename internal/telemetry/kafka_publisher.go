package telemetry

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/example/ride-tracker/internal/models"
)

// transitionRecord is the wire shape published per applied transition.
type transitionRecord struct {
	RideID string    `json:"ride_id"`
	From   string    `json:"from"`
	To     string    `json:"to"`
	Source string    `json:"source"`
	At     time.Time `json:"at"`
}

// Publisher ships applied ride transitions to Kafka for fleet analytics.
type Publisher struct {
	writer *kafka.Writer
}

func NewPublisher(brokers []string, topic string) *Publisher {
	w := kafka.NewWriter(kafka.WriterConfig{Brokers: brokers, Topic: topic, Balancer: &kafka.LeastBytes{}})
	return &Publisher{writer: w}
}

func (p *Publisher) PublishTransition(ctx context.Context, rideID string, from, to models.RideStatus, source string, at time.Time) error {
	wctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	b, err := json.Marshal(transitionRecord{
		RideID: rideID,
		From:   string(from),
		To:     string(to),
		Source: source,
		At:     at,
	})
	if err != nil {
		return err
	}
	return p.writer.WriteMessages(wctx, kafka.Message{Key: []byte(rideID), Value: b})
}

func (p *Publisher) Close() error {
	if p.writer == nil {
		return nil
	}
	return p.writer.Close()
}
