package notify

import (
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go"
)

// Subscriber delivers job status events to a callback, typically the
// websocket hub on the gateway side.
type Subscriber struct {
	conn *nats.Conn
	sub  *nats.Subscription
}

func NewSubscriber(url string) (*Subscriber, error) {
	if url == "" {
		url = nats.DefaultURL
	}

	conn, err := nats.Connect(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	return &Subscriber{conn: conn}, nil
}

func (s *Subscriber) Subscribe(fn func(StatusEvent)) error {
	sub, err := s.conn.Subscribe(StatusSubject, func(msg *nats.Msg) {
		var event StatusEvent
		if err := json.Unmarshal(msg.Data, &event); err != nil {
			return
		}
		fn(event)
	})
	if err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", StatusSubject, err)
	}

	s.sub = sub
	return nil
}

func (s *Subscriber) Close() {
	if s.sub != nil {
		s.sub.Unsubscribe()
	}
	if s.conn != nil {
		s.conn.Close()
	}
}
