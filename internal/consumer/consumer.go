// Package consumer starts export runs requested over NATS.
package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/blockedby/tg-export/internal/collector"
	"github.com/blockedby/tg-export/internal/logger"
	"github.com/blockedby/tg-export/internal/nats"
)

const (
	durableName = "tg_export_runner"

	// how long a request waits when another run is active
	busyDelay = 30 * time.Second
)

// Subscriber is the part of nats.Client the consumer needs
type Subscriber interface {
	Subscribe(ctx context.Context, stream, consumer, subject string, handler func([]byte) error) error
}

// Starter starts a run; implemented by collector.RunManager
type Starter interface {
	Start(ctx context.Context, refs, rejected []string, opts collector.ScrapeOptions) (*collector.Run, error)
}

// Consumer handles export requests published to exports.requests
type Consumer struct {
	client  Subscriber
	starter Starter
	log     *logger.Logger
}

// NewConsumer creates a new NATS consumer
func NewConsumer(client Subscriber, starter Starter, log *logger.Logger) *Consumer {
	return &Consumer{
		client:  client,
		starter: starter,
		log:     log,
	}
}

// Start subscribes to export requests
func (c *Consumer) Start(ctx context.Context) error {
	c.log.Info().Str("subject", nats.SubjectExportRequests).Msg("starting export request consumer")
	return c.client.Subscribe(ctx, nats.ExportsStream, durableName, nats.SubjectExportRequests, c.handleMessage)
}

// handleMessage starts one run per request
func (c *Consumer) handleMessage(data []byte) error {
	var req collector.ScrapeRequest
	if err := json.Unmarshal(data, &req); err != nil {
		c.log.Error().Err(err).Msg("invalid export request, skipping")
		return nil // ack poison messages
	}

	opts, refs, rejected, err := req.Options()
	if err != nil {
		c.log.Error().Err(err).Strs("rejected", rejected).Msg("export request rejected")
		return nil
	}

	run, err := c.starter.Start(context.Background(), refs, rejected, opts)
	if err != nil {
		if errors.Is(err, collector.ErrAlreadyRunning) {
			c.log.Debug().Msg("a run is active, requeueing export request")
			return &nats.RetryLaterError{Delay: busyDelay, Err: err}
		}
		c.log.Error().Err(err).Msg("failed to start requested run")
		return err
	}

	c.log.Info().Str("run_id", run.ID.String()).Int("channels", len(refs)).Msg("started requested run")
	return nil
}
