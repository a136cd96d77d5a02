package publisher

import (
	"context"
	"fmt"

	"github.com/blockedby/tg-export/internal/collector"
	"github.com/blockedby/tg-export/internal/nats"
)

// JetStream is the part of nats.Client the publisher needs
type JetStream interface {
	Publish(ctx context.Context, subject string, data any) error
}

// NATSPublisher implements collector.EventPublisher
type NATSPublisher struct {
	js JetStream
}

// NewNATSPublisher creates a new publisher
func NewNATSPublisher(js JetStream) *NATSPublisher {
	return &NATSPublisher{js: js}
}

// PublishRunCompleted announces a finished export run
func (p *NATSPublisher) PublishRunCompleted(ctx context.Context, event collector.RunCompletedEvent) error {
	if err := p.js.Publish(ctx, nats.SubjectExportCompleted, event); err != nil {
		return fmt.Errorf("publish run completed: %w", err)
	}
	return nil
}
