package pubsub

import (
	"context"
	"errors"
	"fmt"

	gcppubsub "cloud.google.com/go/pubsub/v2"

	"github.com/settleflow/settleflow-backend/pkg/channel"
	"github.com/settleflow/settleflow-backend/pkg/logger"
)

type publisher interface {
	Publish(context.Context, *gcppubsub.Message) publishResult
	ResumePublish(orderingKey string)
	Stop()
}

type publishResult interface {
	Get(context.Context) (string, error)
}

type receiver interface {
	Receive(ctx context.Context, f func(context.Context, *gcppubsub.Message)) error
}

// OrderedSender publishes with the message key as ordering key.
type OrderedSender struct {
	pub publisher
}

// NewOrderedSender wraps an ordering-enabled publisher.
func NewOrderedSender(p *gcppubsub.Publisher) (*OrderedSender, error) {
	if p == nil {
		return nil, errors.New("pubsub publisher is required")
	}
	p.EnableMessageOrdering = true
	return &OrderedSender{pub: &gcpPublisher{Publisher: p}}, nil
}

// Send implements channel.Sender and blocks until the server acknowledges the publish.
func (s *OrderedSender) Send(ctx context.Context, msg channel.Message) error {
	result := s.pub.Publish(ctx, &gcppubsub.Message{
		Data:        msg.Value,
		OrderingKey: msg.Key,
		Attributes:  msg.Attributes,
	})
	if result == nil {
		return errors.New("publisher returned nil result")
	}
	if _, err := result.Get(ctx); err != nil {
		// a failed publish pauses the ordering key until resumed
		s.pub.ResumePublish(msg.Key)
		return fmt.Errorf("publish key %s: %w", msg.Key, err)
	}
	return nil
}

// Stop flushes outstanding publishes and releases the publisher's goroutines.
func (s *OrderedSender) Stop() {
	s.pub.Stop()
}

// SubscriptionSource adapts a subscriber to channel.Source and acks every message.
type SubscriptionSource struct {
	sub  receiver
	logg *logger.Logger
}

// NewSubscriptionSource wraps the subscriber.
func NewSubscriptionSource(sub *gcppubsub.Subscriber, logg *logger.Logger) (*SubscriptionSource, error) {
	if sub == nil {
		return nil, errors.New("pubsub subscription is required")
	}
	if logg == nil {
		return nil, errors.New("logger is required")
	}
	return &SubscriptionSource{sub: sub, logg: logg}, nil
}

// Receive implements channel.Source.
func (s *SubscriptionSource) Receive(ctx context.Context, handler channel.Handler) error {
	if handler == nil {
		return errors.New("handler is required")
	}
	return s.sub.Receive(ctx, func(innerCtx context.Context, msg *gcppubsub.Message) {
		msgCtx := s.logg.WithFields(innerCtx, map[string]any{
			"message_id":   msg.ID,
			"ordering_key": msg.OrderingKey,
		})
		if err := handler(msgCtx, channel.Message{
			Key:        msg.OrderingKey,
			Value:      msg.Data,
			Attributes: msg.Attributes,
		}); err != nil {
			s.logg.Warn(s.logg.WithField(msgCtx, "error", err.Error()), "message handler reported failure; acking anyway")
		}
		msg.Ack()
	})
}

type gcpPublisher struct {
	*gcppubsub.Publisher
}

func (p *gcpPublisher) Publish(ctx context.Context, msg *gcppubsub.Message) publishResult {
	if p == nil || p.Publisher == nil {
		return nil
	}
	return &gcpPublishResult{PublishResult: p.Publisher.Publish(ctx, msg)}
}

type gcpPublishResult struct {
	*gcppubsub.PublishResult
}

func (r *gcpPublishResult) Get(ctx context.Context) (string, error) {
	if r == nil || r.PublishResult == nil {
		return "", errors.New("publish result is nil")
	}
	return r.PublishResult.Get(ctx)
}
