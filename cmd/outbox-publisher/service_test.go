package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"gorm.io/gorm"

	"github.com/angelmondragon/florist-backend/pkg/config"
	"github.com/angelmondragon/florist-backend/pkg/db/models"
	"github.com/angelmondragon/florist-backend/pkg/enums"
	"github.com/angelmondragon/florist-backend/pkg/logger"
	"github.com/angelmondragon/florist-backend/pkg/metrics"
	"github.com/angelmondragon/florist-backend/pkg/outbox"
	"github.com/angelmondragon/florist-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/florist-backend/pkg/outbox/registry"
)

func TestProcessBatchContinuesAfterFailure(t *testing.T) {
	repo := &fakeRepo{events: []models.OutboxEvent{
		orderCreatedRow(t, 0),
		orderCreatedRow(t, 0),
	}}
	pub := &fakePublisher{results: []error{errors.New("unavailable"), nil}}
	service := newTestService(t, repo, pub, nil)

	processed, err := service.processBatch(context.Background())
	if err != nil {
		t.Fatalf("process batch returned error: %v", err)
	}
	if !processed {
		t.Fatal("expected batch to report processed")
	}
	if len(repo.failed) != 1 || repo.failed[0] != repo.events[0].ID {
		t.Fatalf("expected first row marked failed, got %v", repo.failed)
	}
	if len(repo.published) != 1 || repo.published[0] != repo.events[1].ID {
		t.Fatalf("expected second row marked published, got %v", repo.published)
	}
	if len(repo.terminal) != 0 {
		t.Fatalf("no row should be terminal, got %v", repo.terminal)
	}
}

func TestPublishCarriesRoutingAttributes(t *testing.T) {
	row := orderCreatedRow(t, 0)
	repo := &fakeRepo{events: []models.OutboxEvent{row}}
	pub := &fakePublisher{results: []error{nil}}
	service := newTestService(t, repo, pub, nil)

	if _, err := service.processBatch(context.Background()); err != nil {
		t.Fatalf("process batch: %v", err)
	}
	if len(pub.messages) != 1 {
		t.Fatalf("expected one message, got %d", len(pub.messages))
	}
	attrs := pub.messages[0].Attributes
	if attrs["event_type"] != string(enums.EventOrderCreated) {
		t.Fatalf("unexpected event_type %q", attrs["event_type"])
	}
	if attrs["aggregate_id"] != row.AggregateID.String() || attrs["event_version"] != "1" {
		t.Fatalf("unexpected attributes %v", attrs)
	}
	if attrs["event_id"] == "" {
		t.Fatal("event_id attribute missing")
	}
	if string(pub.messages[0].Data) != string(row.Payload) {
		t.Fatal("message body should be the stored envelope")
	}
	if pub.topics[0] != "orders-topic" {
		t.Fatalf("unexpected topic %q", pub.topics[0])
	}
}

func TestUndecodableRowIsTerminal(t *testing.T) {
	row := orderCreatedRow(t, 0)
	row.Payload = json.RawMessage(`{"version":1,"eventId":"x","data":null}`)
	repo := &fakeRepo{events: []models.OutboxEvent{row}}
	pub := &fakePublisher{}
	service := newTestService(t, repo, pub, nil)

	if _, err := service.processBatch(context.Background()); err != nil {
		t.Fatalf("process batch: %v", err)
	}
	if len(repo.terminal) != 1 || repo.terminal[0] != row.ID {
		t.Fatalf("expected row parked as terminal, got %v", repo.terminal)
	}
	if len(pub.messages) != 0 {
		t.Fatal("undecodable rows must not be published")
	}
}

func TestMaxAttemptsIsTerminal(t *testing.T) {
	row := orderCreatedRow(t, 2)
	repo := &fakeRepo{events: []models.OutboxEvent{row}}
	pub := &fakePublisher{results: []error{errors.New("deadline exceeded")}}
	reg := prometheus.NewRegistry()
	service := newTestService(t, repo, pub, &config.OutboxConfig{MaxAttempts: 3})
	service.metrics = metrics.NewOutboxMetrics(reg)

	if _, err := service.processBatch(context.Background()); err != nil {
		t.Fatalf("process batch: %v", err)
	}
	if len(repo.terminal) != 1 || len(repo.failed) != 0 {
		t.Fatalf("expected terminal row, got terminal=%v failed=%v", repo.terminal, repo.failed)
	}
	if repo.maxAttemptsSeen != 3 {
		t.Fatalf("fetch should honor max attempts, got %d", repo.maxAttemptsSeen)
	}
	if got := publishCount(t, reg, string(outcomeTerminal)); got != 1 {
		t.Fatalf("expected terminal publish counted once, got %v", got)
	}
}

func TestMarkFailureRollsBackBatch(t *testing.T) {
	repo := &fakeRepo{
		events:     []models.OutboxEvent{orderCreatedRow(t, 0)},
		publishErr: errors.New("connection reset"),
	}
	pub := &fakePublisher{results: []error{nil}}
	service := newTestService(t, repo, pub, nil)

	if _, err := service.processBatch(context.Background()); err == nil {
		t.Fatal("expected mark failure to surface")
	}
}

func TestPublishersAreReusedAndStopped(t *testing.T) {
	repo := &fakeRepo{events: []models.OutboxEvent{orderCreatedRow(t, 0), orderCreatedRow(t, 0)}}
	pub := &fakePublisher{results: []error{nil, nil}}
	service := newTestService(t, repo, pub, nil)

	if _, err := service.processBatch(context.Background()); err != nil {
		t.Fatalf("process batch: %v", err)
	}
	if pub.created != 1 {
		t.Fatalf("expected one publisher per topic, got %d", pub.created)
	}
	service.Close()
	if !pub.stopped {
		t.Fatal("expected publisher stopped on close")
	}
}

func TestNextBackoff(t *testing.T) {
	base := 500 * time.Millisecond
	if got := nextBackoff(0, base, maxBackoff); got != time.Second {
		t.Fatalf("unexpected first backoff %v", got)
	}
	if got := nextBackoff(8*time.Second, base, maxBackoff); got != maxBackoff {
		t.Fatalf("backoff should cap at %v, got %v", maxBackoff, got)
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	service := newTestService(t, &fakeRepo{}, &fakePublisher{}, &config.OutboxConfig{PollIntervalMS: 5})
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	if err := service.Run(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline error, got %v", err)
	}
}

func publishCount(t *testing.T, reg *prometheus.Registry, result string) float64 {
	t.Helper()
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	for _, family := range families {
		if family.GetName() != "outbox_publish_total" {
			continue
		}
		for _, metric := range family.GetMetric() {
			for _, label := range metric.GetLabel() {
				if label.GetName() == "result" && label.GetValue() == result {
					return metric.GetCounter().GetValue()
				}
			}
		}
	}
	return 0
}

func newTestService(t *testing.T, repo *fakeRepo, pub *fakePublisher, override *config.OutboxConfig) *Service {
	t.Helper()
	cfg := config.OutboxConfig{BatchSize: 10, PollIntervalMS: 10, MaxAttempts: 5}
	if override != nil {
		cfg = *override
	}
	eventRegistry, err := registry.NewEventRegistry(config.PubSubConfig{OrdersTopic: "orders-topic"})
	if err != nil {
		t.Fatalf("registry: %v", err)
	}
	service, err := NewService(ServiceParams{
		Config:     cfg,
		Logger:     logger.New(logger.Options{ServiceName: "outbox-test", Output: io.Discard}),
		DB:         fakeDB{},
		PubSub:     fakePubSubClient{},
		Repository: repo,
		Registry:   eventRegistry,
		PublisherFactory: func(topic string) publisher {
			pub.created++
			pub.topic = topic
			return pub
		},
	})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return service
}

func orderCreatedRow(t *testing.T, attempts int) models.OutboxEvent {
	t.Helper()
	orderID := uuid.New()
	data, err := json.Marshal(payloads.OrderCreatedEvent{OrderID: orderID, SubmissionKey: "s-1"})
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	envelope, err := json.Marshal(outbox.PayloadEnvelope{
		Version:    1,
		EventID:    uuid.NewString(),
		OccurredAt: time.Now().UTC(),
		Data:       data,
	})
	if err != nil {
		t.Fatalf("marshal envelope: %v", err)
	}
	return models.OutboxEvent{
		ID:            uuid.New(),
		EventType:     enums.EventOrderCreated,
		AggregateType: enums.AggregateOrder,
		AggregateID:   orderID,
		Payload:       envelope,
		AttemptCount:  attempts,
		CreatedAt:     time.Now().UTC(),
	}
}

type fakeRepo struct {
	events          []models.OutboxEvent
	published       []uuid.UUID
	failed          []uuid.UUID
	terminal        []uuid.UUID
	publishErr      error
	maxAttemptsSeen int
	fetched         bool
}

func (f *fakeRepo) FetchUnpublishedForPublish(_ *gorm.DB, _ int, maxAttempts int) ([]models.OutboxEvent, error) {
	f.maxAttemptsSeen = maxAttempts
	if f.fetched {
		return nil, nil
	}
	f.fetched = true
	return f.events, nil
}

func (f *fakeRepo) MarkPublishedTx(_ *gorm.DB, id uuid.UUID) error {
	if f.publishErr != nil {
		return f.publishErr
	}
	f.published = append(f.published, id)
	return nil
}

func (f *fakeRepo) MarkFailedTx(_ *gorm.DB, id uuid.UUID, _ error) error {
	f.failed = append(f.failed, id)
	return nil
}

func (f *fakeRepo) MarkTerminalTx(_ *gorm.DB, id uuid.UUID, _ error) error {
	f.terminal = append(f.terminal, id)
	return nil
}

type fakeDB struct{}

func (fakeDB) Ping(context.Context) error { return nil }

func (fakeDB) WithTx(_ context.Context, fn func(*gorm.DB) error) error {
	return fn(nil)
}

type fakePubSubClient struct{}

func (fakePubSubClient) Ping(context.Context) error { return nil }

func (fakePubSubClient) Publisher(string) *gcppubsub.Publisher { return nil }

type fakePublisher struct {
	results  []error
	messages []*gcppubsub.Message
	topics   []string
	topic    string
	created  int
	stopped  bool
}

func (f *fakePublisher) Publish(_ context.Context, msg *gcppubsub.Message) publishResult {
	f.messages = append(f.messages, msg)
	f.topics = append(f.topics, f.topic)
	var err error
	if len(f.results) > 0 {
		err = f.results[0]
		f.results = f.results[1:]
	}
	return fakePublishResult{err: err}
}

func (f *fakePublisher) Stop() { f.stopped = true }

type fakePublishResult struct {
	err error
}

func (f fakePublishResult) Get(context.Context) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return "server-id", nil
}
