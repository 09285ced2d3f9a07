package pubsub

import (
	"context"
	"testing"

	"github.com/angelmondragon/florist-backend/pkg/config"
)

func TestResourceNames(t *testing.T) {
	if got := topicResourceName("shop", "florist-order-events"); got != "projects/shop/topics/florist-order-events" {
		t.Fatalf("unexpected topic name %q", got)
	}
	full := "projects/other/subscriptions/notify"
	if got := subscriptionResourceName("shop", full); got != full {
		t.Fatalf("full resource names must pass through, got %q", got)
	}
	if got := topicResourceName("", "orders"); got != "" {
		t.Fatalf("missing project should yield empty name, got %q", got)
	}
	if got := subscriptionResourceName("shop", "  "); got != "" {
		t.Fatalf("blank name should yield empty, got %q", got)
	}
}

func TestClientOptionsPrioritizesJSON(t *testing.T) {
	opts := clientOptions(config.GCPConfig{
		CredentialsJSON:        `{"dummy": "value"}`,
		ApplicationCredentials: "/tmp/creds",
	})
	if len(opts) != 1 {
		t.Fatalf("expected 1 option, got %d", len(opts))
	}
	if len(clientOptions(config.GCPConfig{})) != 0 {
		t.Fatal("expected no options without credentials")
	}
}

func TestNewClientRequiresProject(t *testing.T) {
	if _, err := NewClient(context.Background(), config.GCPConfig{}, config.PubSubConfig{}, Checks{}, nil); err != errProjectIDRequired {
		t.Fatalf("expected project id error, got %v", err)
	}
}

func TestNilClientIsSafe(t *testing.T) {
	var c *Client
	if c.Publisher("orders") != nil || c.NotificationsSubscription() != nil {
		t.Fatal("nil client must return nil handles")
	}
	if err := c.Ping(context.Background()); err == nil {
		t.Fatal("expected ping error on nil client")
	}
	if err := c.Close(); err != nil {
		t.Fatalf("close on nil client: %v", err)
	}
}
