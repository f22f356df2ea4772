package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	"adsb_analytics/internal/storage"
)

// DefaultSubject is the NATS subject observation batches are published to.
const DefaultSubject = "adsb.observations"

// Publisher pushes an ingested batch to downstream consumers.
type Publisher interface {
	Publish(ctx context.Context, obs []storage.Observation) error
	Close()
}

// NATSPublisher publishes each ingested batch as a single JSON message.
type NATSPublisher struct {
	conn    *nats.Conn
	subject string
}

// NewNATSPublisher connects to the given NATS URL.
func NewNATSPublisher(url, subject string) (*NATSPublisher, error) {
	if subject == "" {
		subject = DefaultSubject
	}
	conn, err := nats.Connect(url,
		nats.Name("adsb-ingest"),
		nats.Timeout(5*time.Second),
		nats.MaxReconnects(-1),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to nats: %w", err)
	}
	return &NATSPublisher{conn: conn, subject: subject}, nil
}

// batchMessage is the wire format for a published batch.
type batchMessage struct {
	CapturedAt   time.Time             `json:"captured_at"`
	Count        int                   `json:"count"`
	Observations []storage.Observation `json:"observations"`
}

func (p *NATSPublisher) Publish(_ context.Context, obs []storage.Observation) error {
	if len(obs) == 0 {
		return nil
	}
	data, err := json.Marshal(batchMessage{
		CapturedAt:   obs[0].CapturedAt,
		Count:        len(obs),
		Observations: obs,
	})
	if err != nil {
		return fmt.Errorf("marshal batch: %w", err)
	}
	if err := p.conn.Publish(p.subject, data); err != nil {
		return fmt.Errorf("publish to %s: %w", p.subject, err)
	}
	return nil
}

func (p *NATSPublisher) Close() {
	if p.conn != nil {
		p.conn.Drain()
	}
}
