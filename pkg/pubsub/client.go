// Package pubsub publishes lane sync events to Google Cloud Pub/Sub.
package pubsub

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	pubsub "cloud.google.com/go/pubsub/v2"
	"cloud.google.com/go/pubsub/v2/apiv1/pubsubpb"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/angelmondragon/lanecalc/pkg/config"
	"github.com/angelmondragon/lanecalc/pkg/logger"
)

// OrderingAttribute names the message attribute used as ordering key when
// lane ordering is enabled.
const OrderingAttribute = "lane_id"

var (
	errProjectIDRequired = errors.New("gcp project id is required")
	errNoTopic           = errors.New("pubsub sync topic is required")
	errNotInitialized    = errors.New("pubsub client not initialized")
)

// Client publishes to topics of one project. Publishers are created lazily
// and reused per topic.
type Client struct {
	ps          *pubsub.Client
	project     string
	syncTopic   string
	orderByLane bool

	mu         sync.Mutex
	publishers map[string]*pubsub.Publisher
}

// NewClient connects to Pub/Sub and fails when the sync topic is missing.
// PUBSUB_EMULATOR_HOST is honored by the underlying client.
func NewClient(ctx context.Context, gcp config.GCPConfig, cfg config.PubSubConfig, logg *logger.Logger) (*Client, error) {
	project := strings.TrimSpace(gcp.ProjectID)
	if project == "" {
		return nil, errProjectIDRequired
	}
	ps, err := pubsub.NewClient(ctx, project)
	if err != nil {
		return nil, fmt.Errorf("creating pubsub client: %w", err)
	}

	c := &Client{
		ps:          ps,
		project:     project,
		syncTopic:   cfg.SyncTopic,
		orderByLane: cfg.OrderByLane,
		publishers:  make(map[string]*pubsub.Publisher),
	}
	if err := c.Ping(ctx); err != nil {
		_ = ps.Close()
		return nil, err
	}
	if logg != nil {
		logg.Info(logg.WithFields(ctx, map[string]any{
			"topic":         cfg.SyncTopic,
			"order_by_lane": cfg.OrderByLane,
		}), "pubsub client initialized")
	}
	return c, nil
}

// Ping checks that the sync topic exists.
func (c *Client) Ping(ctx context.Context) error {
	if c == nil || c.ps == nil {
		return errNotInitialized
	}
	name := topicResourceName(c.project, c.syncTopic)
	if name == "" {
		return errNoTopic
	}
	_, err := c.ps.TopicAdminClient.GetTopic(ctx, &pubsubpb.GetTopicRequest{Topic: name})
	switch {
	case status.Code(err) == codes.NotFound:
		return fmt.Errorf("topic %q does not exist", c.syncTopic)
	case err != nil:
		return fmt.Errorf("checking topic %q: %w", c.syncTopic, err)
	}
	return nil
}

// Publish sends one message and waits for its server id. With lane ordering
// on, messages sharing a lane_id attribute are delivered in publish order; a
// failed publish resumes the key so the retry is not rejected.
func (c *Client) Publish(ctx context.Context, topic string, data []byte, attrs map[string]string) (string, error) {
	if c == nil || c.ps == nil {
		return "", errNotInitialized
	}
	pub, err := c.publisher(topic)
	if err != nil {
		return "", err
	}
	msg := &pubsub.Message{Data: data, Attributes: attrs}
	if c.orderByLane {
		msg.OrderingKey = attrs[OrderingAttribute]
	}
	id, err := pub.Publish(ctx, msg).Get(ctx)
	if err != nil && msg.OrderingKey != "" {
		pub.ResumePublish(msg.OrderingKey)
	}
	return id, err
}

func (c *Client) publisher(topic string) (*pubsub.Publisher, error) {
	name := topicResourceName(c.project, topic)
	if name == "" {
		return nil, fmt.Errorf("topic %q not configured", topic)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	pub, ok := c.publishers[name]
	if !ok {
		pub = c.ps.Publisher(name)
		pub.EnableMessageOrdering = c.orderByLane
		c.publishers[name] = pub
	}
	return pub, nil
}

// Close flushes pending messages and releases the client.
func (c *Client) Close() error {
	if c == nil || c.ps == nil {
		return nil
	}
	c.mu.Lock()
	for _, pub := range c.publishers {
		pub.Stop()
	}
	clear(c.publishers)
	c.mu.Unlock()
	return c.ps.Close()
}

// topicResourceName expands a short topic name to its resource path. Full
// paths pass through unchanged.
func topicResourceName(project, topic string) string {
	topic = strings.TrimSpace(topic)
	switch {
	case topic == "":
		return ""
	case strings.HasPrefix(topic, "projects/") && strings.Contains(topic, "/topics/"):
		return topic
	case strings.TrimSpace(project) == "":
		return ""
	}
	return "projects/" + strings.TrimSpace(project) + "/topics/" + topic
}
