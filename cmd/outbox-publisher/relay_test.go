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
	"gorm.io/gorm"

	"github.com/angelmondragon/pos-backend/pkg/config"
	"github.com/angelmondragon/pos-backend/pkg/db/models"
	"github.com/angelmondragon/pos-backend/pkg/enums"
	"github.com/angelmondragon/pos-backend/pkg/logger"
	"github.com/angelmondragon/pos-backend/pkg/outbox"
	"github.com/angelmondragon/pos-backend/pkg/outbox/registry"
)

func TestDrainSettlesEveryRow(t *testing.T) {
	store := &fakeStore{events: []models.OutboxEvent{saleEvent(t, 0), saleEvent(t, 0)}}
	topic := &fakeTopic{errs: []error{errors.New("unavailable"), nil}}
	relay, metrics := newTestRelay(t, store, topic, nil)

	handled, err := relay.drain(context.Background())
	if err != nil {
		t.Fatalf("drain: %v", err)
	}
	if handled != 2 {
		t.Fatalf("expected 2 rows handled, got %d", handled)
	}
	if len(store.failed) != 1 || store.failed[0] != store.events[0].ID {
		t.Fatalf("expected first row retried, got %v", store.failed)
	}
	if len(store.published) != 1 || store.published[0] != store.events[1].ID {
		t.Fatalf("expected second row published, got %v", store.published)
	}
	if metrics.deliveries["sale_completed/retry"] != 1 || metrics.deliveries["sale_completed/published"] != 1 {
		t.Fatalf("unexpected delivery metrics %v", metrics.deliveries)
	}
}

func TestMessageCarriesRegisterAttributes(t *testing.T) {
	event := saleEvent(t, 0)
	store := &fakeStore{events: []models.OutboxEvent{event}}
	topic := &fakeTopic{}
	relay, _ := newTestRelay(t, store, topic, nil)

	if _, err := relay.drain(context.Background()); err != nil {
		t.Fatalf("drain: %v", err)
	}
	if len(topic.messages) != 1 {
		t.Fatalf("expected one message, got %d", len(topic.messages))
	}
	attrs := topic.messages[0].Attributes
	want := map[string]string{
		"event_type":     string(enums.EventSaleCompleted),
		"aggregate_id":   event.AggregateID,
		"store_code":     "12",
		"staff_code":     "7",
		"schema_version": "1",
	}
	for k, v := range want {
		if attrs[k] != v {
			t.Fatalf("attribute %s: want %q got %q", k, v, attrs[k])
		}
	}
	if string(topic.messages[0].Data) != string(event.Payload) {
		t.Fatal("payload must be forwarded unchanged")
	}
}

func TestUnknownEventIsTerminal(t *testing.T) {
	event := saleEvent(t, 0)
	event.EventType = "stock_counted"
	store := &fakeStore{events: []models.OutboxEvent{event}}
	topic := &fakeTopic{}
	relay, _ := newTestRelay(t, store, topic, nil)

	if _, err := relay.drain(context.Background()); err != nil {
		t.Fatalf("drain: %v", err)
	}
	if len(store.terminal) != 1 {
		t.Fatalf("expected terminal row, got %v", store.terminal)
	}
	if len(topic.messages) != 0 {
		t.Fatal("unresolvable rows must not be published")
	}
}

func TestLastAttemptIsTerminal(t *testing.T) {
	store := &fakeStore{events: []models.OutboxEvent{saleEvent(t, 2)}}
	topic := &fakeTopic{errs: []error{errors.New("deadline exceeded")}}
	relay, _ := newTestRelay(t, store, topic, &config.OutboxConfig{MaxAttempts: 3})

	if _, err := relay.drain(context.Background()); err != nil {
		t.Fatalf("drain: %v", err)
	}
	if len(store.terminal) != 1 || len(store.failed) != 0 {
		t.Fatalf("expected terminal only, got terminal=%v failed=%v", store.terminal, store.failed)
	}
}

func TestMissingPublisherIsTerminal(t *testing.T) {
	store := &fakeStore{events: []models.OutboxEvent{saleEvent(t, 0)}}
	relay, _ := newTestRelay(t, store, nil, nil)

	if _, err := relay.drain(context.Background()); err != nil {
		t.Fatalf("drain: %v", err)
	}
	if len(store.terminal) != 1 {
		t.Fatalf("expected terminal row, got %v", store.terminal)
	}
}

func TestDrainEmpty(t *testing.T) {
	relay, _ := newTestRelay(t, &fakeStore{}, &fakeTopic{}, nil)
	handled, err := relay.drain(context.Background())
	if err != nil || handled != 0 {
		t.Fatalf("expected empty drain, got %d %v", handled, err)
	}
}

func TestBackoffDoublesUpToCap(t *testing.T) {
	b := backoff{base: time.Second, max: 5 * time.Second}
	first := b.next()
	if first < 2*time.Second || first >= 2*time.Second+jitterWindow {
		t.Fatalf("unexpected first backoff %s", first)
	}
	b.next()
	if got := b.next(); got < 5*time.Second || got >= 5*time.Second+jitterWindow {
		t.Fatalf("expected capped backoff, got %s", got)
	}
	b.reset()
	if b.current != 0 {
		t.Fatal("reset must clear the current delay")
	}
}

func TestNewRelayRequiresDependencies(t *testing.T) {
	if _, err := NewRelay(RelayParams{}); err == nil {
		t.Fatal("expected error for missing dependencies")
	}
}

func newTestRelay(t *testing.T, store *fakeStore, tp *fakeTopic, override *config.OutboxConfig) (*Relay, *fakeMetrics) {
	t.Helper()
	cfg := config.OutboxConfig{BatchSize: 10, PollIntervalMS: 100, MaxAttempts: 5}
	if override != nil {
		cfg = *override
	}
	reg, err := registry.NewEventRegistry(config.PubSubConfig{SalesTopic: "pos-sales"})
	if err != nil {
		t.Fatalf("registry: %v", err)
	}
	metrics := &fakeMetrics{deliveries: map[string]int{}}
	relay, err := NewRelay(RelayParams{
		Outbox:   cfg,
		Logger:   logger.New(logger.Options{ServiceName: "outbox-relay-test", Output: io.Discard}),
		DB:       fakeDB{},
		PubSub:   fakePubSub{},
		Store:    store,
		Registry: reg,
		Metrics:  metrics,
		Topic: func(string) topic {
			if tp == nil {
				return nil
			}
			return tp
		},
	})
	if err != nil {
		t.Fatalf("NewRelay: %v", err)
	}
	return relay, metrics
}

func saleEvent(tb testing.TB, attempts int) models.OutboxEvent {
	tb.Helper()
	data, err := json.Marshal(map[string]any{"sale_id": "K3JX9QZ2LA", "store_code": "12", "staff_code": 7})
	if err != nil {
		tb.Fatalf("marshal data: %v", err)
	}
	payload, err := json.Marshal(outbox.PayloadEnvelope{
		Version:    1,
		EventID:    uuid.NewString(),
		OccurredAt: time.Date(2026, 4, 1, 10, 0, 0, 0, time.UTC),
		Actor:      &outbox.ActorRef{Name: "register-1", StoreCode: "12", StaffCode: 7},
		Data:       data,
	})
	if err != nil {
		tb.Fatalf("marshal envelope: %v", err)
	}
	return models.OutboxEvent{
		ID:            uuid.New(),
		EventType:     enums.EventSaleCompleted,
		AggregateType: enums.AggregateTransaction,
		AggregateID:   "K3JX9QZ2LA",
		Payload:       payload,
		AttemptCount:  attempts,
	}
}

type fakeStore struct {
	events    []models.OutboxEvent
	published []uuid.UUID
	failed    []uuid.UUID
	terminal  []uuid.UUID
}

func (f *fakeStore) FetchUnpublishedForPublish(*gorm.DB, int, int) ([]models.OutboxEvent, error) {
	return f.events, nil
}

func (f *fakeStore) MarkPublishedTx(_ *gorm.DB, id uuid.UUID) error {
	f.published = append(f.published, id)
	return nil
}

func (f *fakeStore) MarkFailedTx(_ *gorm.DB, id uuid.UUID, _ error) error {
	f.failed = append(f.failed, id)
	return nil
}

func (f *fakeStore) MarkTerminalTx(_ *gorm.DB, id uuid.UUID, _ error) error {
	f.terminal = append(f.terminal, id)
	return nil
}

func (f *fakeStore) CountPending(context.Context) (int64, error) {
	return int64(len(f.events) - len(f.published) - len(f.terminal)), nil
}

type fakeDB struct{}

func (fakeDB) Ping(context.Context) error                              { return nil }
func (fakeDB) WithTx(_ context.Context, fn func(*gorm.DB) error) error { return fn(nil) }

type fakePubSub struct{}

func (fakePubSub) Ping(context.Context) error            { return nil }
func (fakePubSub) Publisher(string) *gcppubsub.Publisher { return nil }

type fakeTopic struct {
	errs     []error
	messages []*gcppubsub.Message
}

func (f *fakeTopic) Publish(_ context.Context, msg *gcppubsub.Message) (string, error) {
	f.messages = append(f.messages, msg)
	if len(f.errs) == 0 {
		return "server-id", nil
	}
	err := f.errs[0]
	f.errs = f.errs[1:]
	return "", err
}

type fakeMetrics struct {
	deliveries map[string]int
	pending    int64
}

func (f *fakeMetrics) ObserveDelivery(eventType, result string) {
	f.deliveries[eventType+"/"+result]++
}

func (f *fakeMetrics) SetPending(count int64) { f.pending = count }
