// Package eventbus selects the order event channel driver from configuration.
package eventbus

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/settleflow/settleflow-backend/pkg/channel"
	"github.com/settleflow/settleflow-backend/pkg/config"
	"github.com/settleflow/settleflow-backend/pkg/kafka"
	"github.com/settleflow/settleflow-backend/pkg/logger"
	"github.com/settleflow/settleflow-backend/pkg/pubsub"
)

// SenderCloser is a channel.Sender owning transport resources.
type SenderCloser interface {
	channel.Sender
	io.Closer
}

// SourceCloser is a channel.Source owning transport resources.
type SourceCloser interface {
	channel.Source
	io.Closer
}

// NewSender builds the producer side of the configured driver.
func NewSender(ctx context.Context, cfg *config.Config, logg *logger.Logger) (SenderCloser, error) {
	switch driver(cfg) {
	case config.ChannelDriverKafka:
		producer, err := kafka.NewProducer(cfg.Kafka)
		if err != nil {
			return nil, fmt.Errorf("kafka producer: %w", err)
		}
		logg.Info(logg.WithField(ctx, "topic", producer.Topic()), "kafka order event sender ready")
		return producer, nil
	case config.ChannelDriverPubSub:
		client, err := pubsub.NewClient(ctx, cfg.GCP, cfg.PubSub, pubsub.RolePublisher, logg)
		if err != nil {
			return nil, fmt.Errorf("pubsub client: %w", err)
		}
		sender, err := pubsub.NewOrderedSender(client.OrdersPublisher())
		if err != nil {
			_ = client.Close()
			return nil, err
		}
		return &pubsubSender{OrderedSender: sender, closer: client}, nil
	default:
		return nil, fmt.Errorf("unsupported channel driver %q", cfg.Channel.Driver)
	}
}

// NewSource builds the consumer side of the configured driver.
func NewSource(ctx context.Context, cfg *config.Config, logg *logger.Logger) (SourceCloser, error) {
	switch driver(cfg) {
	case config.ChannelDriverKafka:
		consumer, err := kafka.NewConsumer(cfg.Kafka, logg)
		if err != nil {
			return nil, fmt.Errorf("kafka consumer: %w", err)
		}
		return consumer, nil
	case config.ChannelDriverPubSub:
		client, err := pubsub.NewClient(ctx, cfg.GCP, cfg.PubSub, pubsub.RoleSubscriber, logg)
		if err != nil {
			return nil, fmt.Errorf("pubsub client: %w", err)
		}
		source, err := pubsub.NewSubscriptionSource(client.OrdersSubscription(), logg)
		if err != nil {
			_ = client.Close()
			return nil, err
		}
		return &pubsubSource{SubscriptionSource: source, closer: client}, nil
	default:
		return nil, fmt.Errorf("unsupported channel driver %q", cfg.Channel.Driver)
	}
}

func driver(cfg *config.Config) string {
	return strings.ToLower(strings.TrimSpace(cfg.Channel.Driver))
}

type pubsubSender struct {
	*pubsub.OrderedSender
	closer io.Closer
}

func (p *pubsubSender) Close() error {
	p.OrderedSender.Stop()
	return p.closer.Close()
}

type pubsubSource struct {
	*pubsub.SubscriptionSource
	closer io.Closer
}

func (p *pubsubSource) Close() error {
	return p.closer.Close()
}
