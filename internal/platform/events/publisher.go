// Package events publishes watch-progress events to NATS JetStream.
package events

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
)

const (
	// SubjectWatchCompleted is published once per session when it crosses the completion threshold.
	SubjectWatchCompleted = "watch.completed"
	streamName            = "WATCH"
)

// Event is the envelope published to NATS.
type Event struct {
	EventID   string          `json:"event_id"`
	EventType string          `json:"event_type"`
	Data      json.RawMessage `json:"data"`
}

// Publisher publishes events to NATS JetStream.
type Publisher struct {
	nc  *nats.Conn
	js  nats.JetStreamContext
	log *slog.Logger
}

// New connects to NATS and ensures the WATCH stream exists.
// If natsURL is empty, returns a no-op publisher.
func New(natsURL string, log *slog.Logger) (*Publisher, error) {
	if natsURL == "" {
		log.Warn("NATS_URL not set, watch events will not be published")
		return &Publisher{log: log}, nil
	}

	nc, err := nats.Connect(natsURL,
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(10),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, err
	}

	js, err := nc.JetStream()
	if err != nil {
		nc.Close()
		return nil, err
	}

	_, err = js.AddStream(&nats.StreamConfig{
		Name:     streamName,
		Subjects: []string{"watch.>"},
		Storage:  nats.FileStorage,
	})
	if err != nil {
		log.Warn("failed to create NATS stream (may already exist)", slog.String("error", err.Error()))
	}

	log.Info("NATS publisher initialised", slog.String("stream", streamName))
	return &Publisher{nc: nc, js: js, log: log}, nil
}

// Publish sends evt to subject. Without a NATS connection it logs and returns nil.
func (p *Publisher) Publish(ctx context.Context, subject string, evt Event) error {
	if p.js == nil {
		p.log.Debug("NATS stub: skipping publish", slog.String("subject", subject), slog.String("event_id", evt.EventID))
		return nil
	}

	data, err := json.Marshal(evt)
	if err != nil {
		return err
	}

	ack, err := p.js.Publish(subject, data, nats.Context(ctx))
	if err != nil {
		return err
	}

	p.log.Debug("NATS event published",
		slog.String("subject", subject),
		slog.String("event_id", evt.EventID),
		slog.Uint64("seq", ack.Sequence),
	)
	return nil
}

// Close drains the connection, if any.
func (p *Publisher) Close() {
	if p.nc != nil {
		_ = p.nc.Drain()
	}
}
