package main

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"strconv"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/pos-backend/pkg/config"
	"github.com/angelmondragon/pos-backend/pkg/db/models"
	"github.com/angelmondragon/pos-backend/pkg/logger"
	"github.com/angelmondragon/pos-backend/pkg/outbox/registry"
)

const (
	defaultBatchSize      = 50
	defaultPollInterval   = 500 * time.Millisecond
	defaultMaxAttempts    = 10
	defaultPublishTimeout = 15 * time.Second
	maxBackoff            = 10 * time.Second
	jitterWindow          = 250 * time.Millisecond
)

type result string

const (
	resultPublished result = "published"
	resultRetry     result = "retry"
	resultTerminal  result = "terminal"
)

type txRunner interface {
	Ping(context.Context) error
	WithTx(context.Context, func(tx *gorm.DB) error) error
}

type topicSource interface {
	Ping(context.Context) error
	Publisher(name string) *gcppubsub.Publisher
}

// topic publishes one message and waits for the server id.
type topic interface {
	Publish(ctx context.Context, msg *gcppubsub.Message) (string, error)
}

type outboxStore interface {
	FetchUnpublishedForPublish(tx *gorm.DB, limit, maxAttempts int) ([]models.OutboxEvent, error)
	MarkPublishedTx(tx *gorm.DB, id uuid.UUID) error
	MarkFailedTx(tx *gorm.DB, id uuid.UUID, err error) error
	MarkTerminalTx(tx *gorm.DB, id uuid.UUID, err error) error
	CountPending(ctx context.Context) (int64, error)
}

type eventResolver interface {
	Resolve(models.OutboxEvent) (*registry.ResolvedEvent, error)
}

type deliveryMetrics interface {
	ObserveDelivery(eventType, result string)
	SetPending(count int64)
}

type RelayParams struct {
	Outbox   config.OutboxConfig
	Logger   *logger.Logger
	DB       txRunner
	PubSub   topicSource
	Store    outboxStore
	Registry eventResolver
	Metrics  deliveryMetrics
	// Topic overrides how topic handles are opened. Tests only.
	Topic func(name string) topic
}

// Relay moves committed outbox rows to Pub/Sub. Every row ends a batch
// either published, scheduled for retry, or terminal.
type Relay struct {
	logg        *logger.Logger
	db          txRunner
	pubsub      topicSource
	store       outboxStore
	registry    eventResolver
	metrics     deliveryMetrics
	openTopic   func(name string) topic
	topics      map[string]topic
	batchSize   int
	maxAttempts int
	interval    time.Duration
}

func NewRelay(params RelayParams) (*Relay, error) {
	switch {
	case params.Logger == nil:
		return nil, errors.New("logger is required")
	case params.DB == nil:
		return nil, errors.New("database client is required")
	case params.PubSub == nil:
		return nil, errors.New("pubsub client is required")
	case params.Store == nil:
		return nil, errors.New("outbox repository is required")
	case params.Registry == nil:
		return nil, errors.New("event registry is required")
	}

	r := &Relay{
		logg:        params.Logger,
		db:          params.DB,
		pubsub:      params.PubSub,
		store:       params.Store,
		registry:    params.Registry,
		metrics:     params.Metrics,
		openTopic:   params.Topic,
		topics:      map[string]topic{},
		batchSize:   positiveOr(params.Outbox.BatchSize, defaultBatchSize),
		maxAttempts: positiveOr(params.Outbox.MaxAttempts, defaultMaxAttempts),
		interval:    defaultPollInterval,
	}
	if params.Outbox.PollIntervalMS > 0 {
		r.interval = time.Duration(params.Outbox.PollIntervalMS) * time.Millisecond
	}
	if r.openTopic == nil {
		r.openTopic = r.gcpTopic
	}
	return r, nil
}

func (r *Relay) Run(ctx context.Context) error {
	for name, ping := range map[string]func(context.Context) error{"database": r.db.Ping, "pubsub": r.pubsub.Ping} {
		if err := ping(ctx); err != nil {
			return fmt.Errorf("%s ping failed: %w", name, err)
		}
	}

	wait := backoff{base: r.interval, max: maxBackoff}
	for {
		if err := ctx.Err(); err != nil {
			r.logg.Info(ctx, "outbox relay context canceled")
			return err
		}

		handled, err := r.drain(ctx)
		switch {
		case err != nil:
			r.logg.Error(ctx, "outbox batch failed", err)
			if err := sleep(ctx, wait.next()); err != nil {
				return err
			}
		case handled >= r.batchSize:
			wait.reset()
		default:
			wait.reset()
			r.reportPending(ctx)
			if err := sleep(ctx, withJitter(r.interval)); err != nil {
				return err
			}
		}
	}
}

// drain claims one batch and settles every row in it.
func (r *Relay) drain(ctx context.Context) (int, error) {
	handled := 0
	err := r.db.WithTx(ctx, func(tx *gorm.DB) error {
		events, err := r.store.FetchUnpublishedForPublish(tx, r.batchSize, r.maxAttempts)
		if err != nil {
			return fmt.Errorf("claim batch: %w", err)
		}
		for _, event := range events {
			outcome, topicName, cause := r.deliver(ctx, event)
			if err := r.settle(ctx, tx, event, outcome, topicName, cause); err != nil {
				return err
			}
			handled++
		}
		return nil
	})
	return handled, err
}

func (r *Relay) deliver(ctx context.Context, event models.OutboxEvent) (result, string, error) {
	resolved, err := r.registry.Resolve(event)
	if err != nil {
		return resultTerminal, "", err
	}
	name := resolved.Descriptor.Topic
	t := r.topic(name)
	if t == nil {
		return resultTerminal, name, fmt.Errorf("no publisher for topic %s", name)
	}

	publishCtx, cancel := context.WithTimeout(ctx, defaultPublishTimeout)
	defer cancel()
	if _, err := t.Publish(publishCtx, message(event, resolved)); err != nil {
		if errors.Is(err, registry.ErrUndeliverable) {
			return resultTerminal, name, err
		}
		if event.AttemptCount+1 >= r.maxAttempts {
			return resultTerminal, name, fmt.Errorf("gave up after %d attempts: %w", event.AttemptCount+1, err)
		}
		return resultRetry, name, err
	}
	return resultPublished, name, nil
}

func (r *Relay) settle(ctx context.Context, tx *gorm.DB, event models.OutboxEvent, outcome result, topicName string, cause error) error {
	logCtx := r.logg.WithFields(ctx, map[string]any{
		"outbox_id":     event.ID.String(),
		"event_type":    event.EventType,
		"aggregate_id":  event.AggregateID,
		"attempt_count": event.AttemptCount,
		"topic":         topicName,
		"result":        string(outcome),
	})

	var err error
	switch outcome {
	case resultPublished:
		err = r.store.MarkPublishedTx(tx, event.ID)
		r.logg.Info(logCtx, "outbox event published")
	case resultRetry:
		err = r.store.MarkFailedTx(tx, event.ID, cause)
		r.logg.Warn(r.logg.WithField(logCtx, "error", cause.Error()), "outbox publish failed, will retry")
	default:
		err = r.store.MarkTerminalTx(tx, event.ID, cause)
		r.logg.Warn(r.logg.WithField(logCtx, "error", cause.Error()), "outbox event will not be retried")
	}
	if err != nil {
		return fmt.Errorf("mark %s %s: %w", outcome, event.ID, err)
	}
	if r.metrics != nil {
		r.metrics.ObserveDelivery(string(event.EventType), string(outcome))
	}
	return nil
}

func (r *Relay) reportPending(ctx context.Context) {
	if r.metrics == nil {
		return
	}
	count, err := r.store.CountPending(ctx)
	if err != nil {
		r.logg.Warn(r.logg.WithField(ctx, "error", err.Error()), "count pending outbox rows")
		return
	}
	r.metrics.SetPending(count)
}

func (r *Relay) topic(name string) topic {
	if t, ok := r.topics[name]; ok {
		return t
	}
	t := r.openTopic(name)
	if t != nil {
		r.topics[name] = t
	}
	return t
}

func (r *Relay) gcpTopic(name string) topic {
	p := r.pubsub.Publisher(name)
	if p == nil {
		return nil
	}
	return gcpTopic{p}
}

// message carries the stored envelope as-is. Store and staff codes from the
// envelope actor become attributes so subscribers can filter per register.
func message(event models.OutboxEvent, resolved *registry.ResolvedEvent) *gcppubsub.Message {
	attrs := map[string]string{
		"event_id":       resolved.Envelope.EventID,
		"event_type":     string(event.EventType),
		"aggregate_type": string(event.AggregateType),
		"aggregate_id":   event.AggregateID,
		"schema_version": strconv.Itoa(resolved.Envelope.Version),
		"occurred_at":    resolved.Envelope.OccurredAt.UTC().Format(time.RFC3339Nano),
	}
	if actor := resolved.Envelope.Actor; actor != nil {
		if actor.StoreCode != "" {
			attrs["store_code"] = actor.StoreCode
		}
		if actor.StaffCode != 0 {
			attrs["staff_code"] = strconv.FormatUint(actor.StaffCode, 10)
		}
	}
	return &gcppubsub.Message{Data: event.Payload, Attributes: attrs}
}

type gcpTopic struct {
	p *gcppubsub.Publisher
}

func (t gcpTopic) Publish(ctx context.Context, msg *gcppubsub.Message) (string, error) {
	return t.p.Publish(ctx, msg).Get(ctx)
}

type backoff struct {
	base, max, current time.Duration
}

func (b *backoff) next() time.Duration {
	if b.current < b.base {
		b.current = b.base
	}
	b.current *= 2
	if b.current > b.max {
		b.current = b.max
	}
	return withJitter(b.current)
}

func (b *backoff) reset() { b.current = 0 }

func withJitter(d time.Duration) time.Duration {
	if d <= 0 {
		return 0
	}
	return d + rand.N(jitterWindow)
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func positiveOr(v, fallback int) int {
	if v > 0 {
		return v
	}
	return fallback
}
