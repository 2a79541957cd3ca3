package pubsub

import (
	"context"
	"errors"
	"fmt"
	"strings"

	pubsub "cloud.google.com/go/pubsub/v2"
	"cloud.google.com/go/pubsub/v2/apiv1/pubsubpb"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/angelmondragon/gearshare-backend/pkg/config"
	"github.com/angelmondragon/gearshare-backend/pkg/logger"
)

// Role decides which resources a process depends on. The outbox publisher
// only writes to topics; workers only read subscriptions.
type Role int

const (
	RolePublisher Role = iota
	RoleConsumer
)

func (r Role) String() string {
	if r == RolePublisher {
		return "publisher"
	}
	return "consumer"
}

type resourceKind string

const (
	kindTopic        resourceKind = "topics"
	kindSubscription resourceKind = "subscriptions"
)

type Client struct {
	client    *pubsub.Client
	projectID string
	cfg       config.PubSubConfig
	role      Role
}

var (
	errProjectIDRequired = errors.New("gcp project id is required")
	errNoResources       = errors.New("no pubsub resources configured")
	errNotInitialized    = errors.New("pubsub client not initialized")
)

// NewClient connects and verifies that every resource the role depends on
// exists. Missing topics or subscriptions fail startup.
func NewClient(ctx context.Context, gcp config.GCPConfig, cfg config.PubSubConfig, role Role, logg *logger.Logger) (*Client, error) {
	projectID := strings.TrimSpace(gcp.ProjectID)
	if projectID == "" {
		return nil, errProjectIDRequired
	}

	psClient, err := pubsub.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("creating pubsub client: %w", err)
	}

	c := &Client{client: psClient, projectID: projectID, cfg: cfg, role: role}
	if err := c.Ping(ctx); err != nil {
		_ = psClient.Close()
		return nil, err
	}

	if logg != nil {
		logg.Info(logg.WithField(ctx, "role", role.String()), "pubsub.client.ready")
	}
	return c, nil
}

// requiredResources lists the names checked by Ping. The analytics
// subscription only matters once an analytics topic is configured.
func requiredResources(cfg config.PubSubConfig, role Role) (resourceKind, []string) {
	var kind resourceKind
	var candidates []string
	switch role {
	case RolePublisher:
		kind = kindTopic
		candidates = []string{cfg.DomainTopic, cfg.AnalyticsTopic}
	default:
		kind = kindSubscription
		candidates = []string{cfg.NotificationSubscription}
		if strings.TrimSpace(cfg.AnalyticsTopic) != "" {
			candidates = append(candidates, cfg.AnalyticsSubscription)
		}
	}

	names := make([]string, 0, len(candidates))
	for _, name := range candidates {
		if trimmed := strings.TrimSpace(name); trimmed != "" {
			names = append(names, trimmed)
		}
	}
	return kind, names
}

func (c *Client) Ping(ctx context.Context) error {
	if c == nil || c.client == nil {
		return errNotInitialized
	}
	kind, names := requiredResources(c.cfg, c.role)
	if len(names) == 0 {
		return errNoResources
	}
	for _, name := range names {
		if err := c.checkExists(ctx, kind, name); err != nil {
			return err
		}
	}
	return nil
}

func (c *Client) checkExists(ctx context.Context, kind resourceKind, name string) error {
	fullName := resourceName(c.projectID, kind, name)
	var err error
	if kind == kindTopic {
		_, err = c.client.TopicAdminClient.GetTopic(ctx, &pubsubpb.GetTopicRequest{Topic: fullName})
	} else {
		_, err = c.client.SubscriptionAdminClient.GetSubscription(ctx, &pubsubpb.GetSubscriptionRequest{Subscription: fullName})
	}
	switch {
	case err == nil:
		return nil
	case status.Code(err) == codes.NotFound:
		return fmt.Errorf("%s %q does not exist", strings.TrimSuffix(string(kind), "s"), name)
	default:
		return fmt.Errorf("checking %q: %w", fullName, err)
	}
}

// Subscriber accepts a short ID or a full resource name.
func (c *Client) Subscriber(name string) *pubsub.Subscriber {
	if c == nil || c.client == nil {
		return nil
	}
	fullName := resourceName(c.projectID, kindSubscription, name)
	if fullName == "" {
		return nil
	}
	return c.client.Subscriber(fullName)
}

func (c *Client) NotificationSubscription() *pubsub.Subscriber {
	return c.Subscriber(c.cfg.NotificationSubscription)
}

func (c *Client) AnalyticsSubscription() *pubsub.Subscriber {
	return c.Subscriber(c.cfg.AnalyticsSubscription)
}

// Publisher accepts a short topic ID or a full resource name.
func (c *Client) Publisher(name string) *pubsub.Publisher {
	if c == nil || c.client == nil {
		return nil
	}
	fullName := resourceName(c.projectID, kindTopic, name)
	if fullName == "" {
		return nil
	}
	return c.client.Publisher(fullName)
}

func (c *Client) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Close()
}

// resourceName expands an ID to projects/<project>/<kind>/<id>; names already
// qualified for the same kind pass through.
func resourceName(projectID string, kind resourceKind, name string) string {
	n := strings.TrimSpace(name)
	if n == "" {
		return ""
	}
	if strings.HasPrefix(n, "projects/") && strings.Contains(n, "/"+string(kind)+"/") {
		return n
	}
	if projectID == "" {
		return ""
	}
	return "projects/" + projectID + "/" + string(kind) + "/" + n
}
