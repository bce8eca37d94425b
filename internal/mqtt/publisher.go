package mqtt

import (
	"encoding/json"
	"fmt"

	"github.com/AaronLay10/SolverEngine/internal/events"
)

type publishClient interface {
	Publish(topic string, payload []byte) error
}

// Publisher forwards audit events to the broker. It implements events.Sink.
type Publisher struct {
	client publishClient
	prefix string
}

// NewPublisher creates a publisher writing below the given topic prefix.
func NewPublisher(client publishClient, prefix string) *Publisher {
	return &Publisher{client: client, prefix: prefix}
}

// EventTopic returns the topic an event is published to.
func EventTopic(prefix, name string) string {
	return prefix + "/events/" + name
}

// Append publishes e as JSON.
func (p *Publisher) Append(e events.Event) error {
	payload, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	if err := p.client.Publish(EventTopic(p.prefix, e.Name), payload); err != nil {
		return fmt.Errorf("publish %s: %w", e.Name, err)
	}
	return nil
}
