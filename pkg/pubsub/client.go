package pubsub

import (
	"context"
	"errors"
	"fmt"
	"strings"

	pubsub "cloud.google.com/go/pubsub/v2"
	"cloud.google.com/go/pubsub/v2/apiv1/pubsubpb"
	"google.golang.org/api/option"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"

	"github.com/settleflow/settleflow-backend/pkg/config"
	"github.com/settleflow/settleflow-backend/pkg/logger"
)

// Role selects which half of the orders channel a client verifies.
type Role int

const (
	RolePublisher Role = iota
	RoleSubscriber
)

var errProjectIDRequired = errors.New("gcp project id is required")

// Client is a Pub/Sub v2 client bound to the orders topic and subscription.
type Client struct {
	client    *pubsub.Client
	projectID string
	cfg       config.PubSubConfig
	role      Role
}

// NewClient dials Pub/Sub and checks that the resource the role depends on
// exists: the orders topic for publishers, the ordered orders subscription
// for subscribers.
func NewClient(ctx context.Context, gcp config.GCPConfig, cfg config.PubSubConfig, role Role, logg *logger.Logger) (*Client, error) {
	if strings.TrimSpace(gcp.ProjectID) == "" {
		return nil, errProjectIDRequired
	}

	psClient, err := pubsub.NewClient(ctx, gcp.ProjectID, clientOptions(gcp, cfg)...)
	if err != nil {
		return nil, fmt.Errorf("creating pubsub client: %w", err)
	}
	c := &Client{client: psClient, projectID: gcp.ProjectID, cfg: cfg, role: role}
	if err := c.Ping(ctx); err != nil {
		_ = psClient.Close()
		return nil, err
	}

	logg.Info(logg.WithFields(ctx, map[string]any{
		"topic":        c.topicName(),
		"subscription": c.subscriptionName(),
		"emulator":     cfg.EmulatorHost != "",
	}), "pubsub client initialized")
	return c, nil
}

func clientOptions(gcp config.GCPConfig, cfg config.PubSubConfig) []option.ClientOption {
	if host := strings.TrimSpace(cfg.EmulatorHost); host != "" {
		return []option.ClientOption{
			option.WithEndpoint(host),
			option.WithoutAuthentication(),
			option.WithGRPCDialOption(grpc.WithTransportCredentials(insecure.NewCredentials())),
		}
	}
	if creds := strings.TrimSpace(gcp.CredentialsJSON); creds != "" {
		return []option.ClientOption{option.WithCredentialsJSON([]byte(creds))}
	}
	return nil
}

// Ping re-checks the resource this client's role depends on.
func (c *Client) Ping(ctx context.Context) error {
	if c == nil || c.client == nil {
		return errors.New("pubsub client not initialized")
	}
	if c.role == RoleSubscriber {
		return c.checkSubscription(ctx)
	}
	return c.checkTopic(ctx)
}

func (c *Client) checkTopic(ctx context.Context) error {
	name := c.topicName()
	if name == "" {
		return errors.New("pubsub orders topic is required")
	}
	_, err := c.client.TopicAdminClient.GetTopic(ctx, &pubsubpb.GetTopicRequest{Topic: name})
	return adminError("topic", name, err)
}

func (c *Client) checkSubscription(ctx context.Context) error {
	name := c.subscriptionName()
	if name == "" {
		return errors.New("pubsub orders subscription is required")
	}
	sub, err := c.client.SubscriptionAdminClient.GetSubscription(ctx, &pubsubpb.GetSubscriptionRequest{Subscription: name})
	if err := adminError("subscription", name, err); err != nil {
		return err
	}
	// per-key ordering is what keeps one order's events in sequence
	if !sub.GetEnableMessageOrdering() {
		return fmt.Errorf("subscription %q must enable message ordering", name)
	}
	return nil
}

func adminError(kind, name string, err error) error {
	switch {
	case err == nil:
		return nil
	case status.Code(err) == codes.NotFound:
		return fmt.Errorf("%s %q does not exist", kind, name)
	default:
		return fmt.Errorf("checking %s %q: %w", kind, name, err)
	}
}

// OrdersSubscription returns the subscriber for the orders subscription.
func (c *Client) OrdersSubscription() *pubsub.Subscriber {
	return c.client.Subscriber(c.subscriptionName())
}

// OrdersPublisher returns an ordering-enabled publisher for the orders topic.
func (c *Client) OrdersPublisher() *pubsub.Publisher {
	p := c.client.Publisher(c.topicName())
	p.EnableMessageOrdering = true
	return p
}

func (c *Client) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Close()
}

func (c *Client) topicName() string {
	return resourceName(c.projectID, "topics", c.cfg.OrdersTopic)
}

func (c *Client) subscriptionName() string {
	return resourceName(c.projectID, "subscriptions", c.cfg.OrdersSubscription)
}

// resourceName expands a short id to projects/<p>/<kind>/<id>. Fully
// qualified names pass through unchanged.
func resourceName(projectID, kind, name string) string {
	n := strings.TrimSpace(name)
	switch {
	case n == "":
		return ""
	case strings.HasPrefix(n, "projects/") && strings.Contains(n, "/"+kind+"/"):
		return n
	case strings.TrimSpace(projectID) == "":
		return ""
	default:
		return "projects/" + strings.TrimSpace(projectID) + "/" + kind + "/" + n
	}
}
