package config

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"sync"
	"time"

	"cloud.google.com/go/pubsub"
	"github.com/joho/godotenv"
	"google.golang.org/api/option"
)

// RenderMessage asks the render worker to produce the report files for a
// persisted monthly report snapshot.
type RenderMessage struct {
	ReportId      int    `json:"report_id"`
	UserId        int    `json:"user_id"`
	Year          int    `json:"year"`
	Month         int    `json:"month"`
	CorrelationId string `json:"correlation_id"`
}

var (
	pubsubClient   *pubsub.Client
	pubsubClientMu sync.Mutex
)

func init() {
	// Load env from .env
	godotenv.Load()
}

// PubSubEnabled reports whether deferred rendering via Pub/Sub is turned on.
// When false, reports are rendered in-process right after generation.
func PubSubEnabled() bool {
	return strings.EqualFold(strings.TrimSpace(os.Getenv("PUBSUB_ENABLED")), "true")
}

func RenderTopicName() string {
	if v := strings.TrimSpace(os.Getenv("PUBSUB_RENDER_TOPIC")); v != "" {
		return v
	}
	return "report-render"
}

func getPubSubProjectID() string {
	// Prefer explicit override.
	if v := os.Getenv("PUBSUB_PROJECT_ID"); v != "" {
		return v
	}
	// Cloud Run/Cloud Functions often set this.
	if v := os.Getenv("GOOGLE_CLOUD_PROJECT"); v != "" {
		return v
	}
	if v := os.Getenv("GCP_PROJECT"); v != "" {
		return v
	}
	return ""
}

// GetPubSubClient returns a Pub/Sub client, initializing it on first use.
// It uses Application Default Credentials unless PUBSUB_CREDENTIALS_JSON is provided.
func GetPubSubClient(ctx context.Context) (*pubsub.Client, error) {
	pubsubClientMu.Lock()
	if pubsubClient != nil {
		c := pubsubClient
		pubsubClientMu.Unlock()
		return c, nil
	}
	pubsubClientMu.Unlock()

	projectID := getPubSubProjectID()
	if projectID == "" {
		return nil, errors.New("PUBSUB_PROJECT_ID/GOOGLE_CLOUD_PROJECT not set")
	}

	credJSON := os.Getenv("PUBSUB_CREDENTIALS_JSON")

	var (
		c   *pubsub.Client
		err error
	)
	if credJSON != "" {
		c, err = pubsub.NewClient(ctx, projectID, option.WithCredentialsJSON([]byte(credJSON)))
	} else {
		// Uses Application Default Credentials (Cloud Run service account or GOOGLE_APPLICATION_CREDENTIALS).
		c, err = pubsub.NewClient(ctx, projectID)
	}
	if err != nil {
		return nil, err
	}

	pubsubClientMu.Lock()
	if pubsubClient == nil {
		pubsubClient = c
	} else {
		// Another goroutine won the race; close ours.
		_ = c.Close()
	}
	c2 := pubsubClient
	pubsubClientMu.Unlock()

	log.Printf("pubsub client ready (project_id=%s)", projectID)
	return c2, nil
}

// PublishRenderMessage publishes a render request and waits for the server ack.
func PublishRenderMessage(ctx context.Context, data []byte) error {
	client, err := GetPubSubClient(ctx)
	if err != nil {
		return err
	}

	topic, err := CreateTopicIfNotExists(client, RenderTopicName())
	if err != nil {
		return err
	}

	publishCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	result := topic.Publish(publishCtx, &pubsub.Message{Data: data})
	if _, err := result.Get(publishCtx); err != nil {
		return fmt.Errorf("publish render message: %w", err)
	}
	return nil
}

func CreateTopicIfNotExists(c *pubsub.Client, topic string) (*pubsub.Topic, error) {
	if c == nil {
		return nil, errors.New("pubsub client is nil")
	}
	if topic == "" {
		return nil, errors.New("topic is required")
	}

	ctx := context.Background()
	t := c.Topic(topic)
	ok, err := t.Exists(ctx)
	if err != nil {
		return nil, err
	}
	if ok {
		return t, nil
	}
	t, err = c.CreateTopic(ctx, topic)
	if err != nil {
		return nil, fmt.Errorf("create topic %q: %w", topic, err)
	}
	return t, nil
}
