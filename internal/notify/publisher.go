package notify

import (
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go"
)

// Publisher pushes job status events onto NATS. The status plane is optional;
// a nil *Publisher is safe to publish to.
type Publisher struct {
	conn *nats.Conn
}

func NewPublisher(url string) (*Publisher, error) {
	if url == "" {
		url = nats.DefaultURL
	}

	conn, err := nats.Connect(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	return &Publisher{conn: conn}, nil
}

func (p *Publisher) Publish(event StatusEvent) error {
	if p == nil {
		return nil
	}

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal status event: %w", err)
	}

	if err := p.conn.Publish(StatusSubject, data); err != nil {
		return fmt.Errorf("failed to publish status event: %w", err)
	}
	return nil
}

func (p *Publisher) Close() {
	if p != nil && p.conn != nil {
		p.conn.Close()
	}
}
