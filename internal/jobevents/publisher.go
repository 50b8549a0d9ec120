package jobevents

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/jonesrussell/healtharchive/internal/logger"
)

const asyncPublishTimeout = 5 * time.Second

// Publisher publishes Event values to a Redis stream. A nil *Publisher
// is a valid, silent no-op — callers never need to check whether event
// publishing is configured before calling PublishAsync.
type Publisher struct {
	client *redis.Client
	stream string
	log    logger.Logger
}

// NewPublisher builds a Publisher writing to stream. Returns nil if
// client is nil, so an unconfigured Redis connection degrades to a no-op
// rather than a nil-pointer panic at every call site.
func NewPublisher(client *redis.Client, stream string, log logger.Logger) *Publisher {
	if client == nil {
		return nil
	}
	return &Publisher{client: client, stream: stream, log: log}
}

// Publish synchronously writes event to the stream.
func (p *Publisher) Publish(ctx context.Context, event Event) error {
	if p == nil || p.client == nil {
		return nil
	}

	if event.EventID == uuid.Nil {
		event.EventID = uuid.New()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	result := p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: p.stream,
		Values: map[string]any{"event": string(payload)},
	})

	if err := result.Err(); err != nil {
		if p.log != nil {
			p.log.Error("failed to publish job event",
				logger.String("event_type", string(event.EventType)),
				logger.Int64("job_id", event.JobID),
				logger.Error(err),
			)
		}
		return fmt.Errorf("publish to stream: %w", err)
	}

	return nil
}

// PublishAsync publishes event in a detached goroutine; failures are
// logged, never returned, and never block the caller's loop iteration.
func (p *Publisher) PublishAsync(event Event) {
	if p == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), asyncPublishTimeout)
		defer cancel()

		if err := p.Publish(ctx, event); err != nil && p.log != nil {
			p.log.Error("async job event publish failed",
				logger.String("event_type", string(event.EventType)),
				logger.Int64("job_id", event.JobID),
				logger.Error(err),
			)
		}
	}()
}
