package cache

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/aman-zulfiqar/dex-ai-gateway/internal/models"
	"github.com/aman-zulfiqar/dex-ai-gateway/internal/storage"
)

// Event channels.
const (
	ChannelQuotes = "dexai:events:quotes"
	ChannelBuilds = "dexai:events:builds"
)

// EventPublisher is an AuditSink that publishes every event on Redis
// Pub/Sub for live consumers such as `dexctl watch`.
type EventPublisher struct {
	client *redis.Client
	logger *logrus.Logger
}

var _ storage.AuditSink = (*EventPublisher)(nil)

func NewEventPublisher(client *redis.Client, logger *logrus.Logger) *EventPublisher {
	if logger == nil {
		logger = logrus.New()
	}
	return &EventPublisher{client: client, logger: logger}
}

func (p *EventPublisher) RecordQuote(ctx context.Context, ev *models.QuoteEvent) error {
	return p.publish(ctx, ChannelQuotes, ev)
}

func (p *EventPublisher) RecordBuild(ctx context.Context, ev *models.BuildEvent) error {
	return p.publish(ctx, ChannelBuilds, ev)
}

func (p *EventPublisher) publish(ctx context.Context, channel string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	if err := p.client.Publish(ctx, channel, data).Err(); err != nil {
		return fmt.Errorf("publish %s: %w", channel, err)
	}
	return nil
}

func (p *EventPublisher) Ping(ctx context.Context) error {
	return p.client.Ping(ctx).Err()
}

// Close is a no-op; the Redis client is owned by the caller.
func (p *EventPublisher) Close() error {
	return nil
}

// EventHandlers receive decoded events. Either may be nil.
type EventHandlers struct {
	Quote func(*models.QuoteEvent)
	Build func(*models.BuildEvent)
}

// Subscribe blocks delivering events until ctx is cancelled.
func (p *EventPublisher) Subscribe(ctx context.Context, h EventHandlers) error {
	var channels []string
	if h.Quote != nil {
		channels = append(channels, ChannelQuotes)
	}
	if h.Build != nil {
		channels = append(channels, ChannelBuilds)
	}
	if len(channels) == 0 {
		return fmt.Errorf("no event handlers")
	}

	sub := p.client.Subscribe(ctx, channels...)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe: %w", err)
	}
	p.logger.WithField("channels", channels).Info("subscribed to events")

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			p.dispatch(msg, h)
		}
	}
}

func (p *EventPublisher) dispatch(msg *redis.Message, h EventHandlers) {
	var err error
	switch msg.Channel {
	case ChannelQuotes:
		var ev models.QuoteEvent
		if err = json.Unmarshal([]byte(msg.Payload), &ev); err == nil {
			h.Quote(&ev)
		}
	case ChannelBuilds:
		var ev models.BuildEvent
		if err = json.Unmarshal([]byte(msg.Payload), &ev); err == nil {
			h.Build(&ev)
		}
	}
	if err != nil {
		p.logger.WithError(err).WithField("channel", msg.Channel).Warn("dropping malformed event")
	}
}
