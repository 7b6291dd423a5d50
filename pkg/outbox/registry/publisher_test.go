package registry

import (
	"encoding/json"
	"errors"
	"sort"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/pos-backend/pkg/config"
	"github.com/angelmondragon/pos-backend/pkg/db/models"
	"github.com/angelmondragon/pos-backend/pkg/enums"
	"github.com/angelmondragon/pos-backend/pkg/outbox"
	"github.com/angelmondragon/pos-backend/pkg/outbox/payloads"
)

func TestEventRegistryResolveSuccess(t *testing.T) {
	reg := newTestEventRegistry(t)

	payloadBytes := mustMarshal(t, payloads.SaleCompletedEvent{
		SaleID:      "K3T9QX0A2B",
		StoreCode:   "1",
		StaffCode:   42,
		TotalAmount: decimal.NewFromInt(2308),
		Lines: []payloads.LineItem{
			{JAN: "4901234567894", Name: "Tea", Price: decimal.NewFromInt(108), TaxRate: 8, Quantity: 1},
		},
	})

	event := models.OutboxEvent{
		EventType:     enums.EventSaleCompleted,
		AggregateType: enums.AggregateTransaction,
		AggregateID:   uuid.NewString(),
		Payload:       mustEnvelope(t, payloadBytes),
	}

	resolved, err := reg.Resolve(event)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resolved.Descriptor.Topic != "sales-topic" {
		t.Fatalf("unexpected topic %q", resolved.Descriptor.Topic)
	}
	payload, ok := resolved.Payload.(*payloads.SaleCompletedEvent)
	if !ok {
		t.Fatalf("unexpected payload type %T", resolved.Payload)
	}
	if payload.SaleID != "K3T9QX0A2B" || len(payload.Lines) != 1 {
		t.Fatalf("payload mismatch %+v", payload)
	}
	if !payload.TotalAmount.Equal(decimal.NewFromInt(2308)) {
		t.Fatalf("unexpected total %s", payload.TotalAmount)
	}
	if resolved.Envelope.EventID == "" {
		t.Fatalf("envelope missing event id")
	}
}

func TestEventRegistryRoutesPurgesToMaintenanceTopic(t *testing.T) {
	reg := newTestEventRegistry(t)

	event := models.OutboxEvent{
		EventType:     enums.EventCouponsPurged,
		AggregateType: enums.AggregateCoupon,
		AggregateID:   "expired",
		Payload:       mustEnvelope(t, []byte(`{"codes":["2805123456780"]}`)),
	}
	resolved, err := reg.Resolve(event)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resolved.Descriptor.Topic != "maintenance-topic" {
		t.Fatalf("unexpected topic %q", resolved.Descriptor.Topic)
	}

	topics := reg.Topics()
	sort.Strings(topics)
	if len(topics) != 2 || topics[0] != "maintenance-topic" || topics[1] != "sales-topic" {
		t.Fatalf("unexpected topics %v", topics)
	}
}

func TestEventRegistryResolveRejectsBadRows(t *testing.T) {
	reg := newTestEventRegistry(t)

	cases := map[string]models.OutboxEvent{
		"unknown event": {
			EventType:     enums.OutboxEventType("stock_counted"),
			AggregateType: enums.AggregateTransaction,
			AggregateID:   uuid.NewString(),
			Payload:       mustEnvelope(t, []byte(`{}`)),
		},
		"aggregate mismatch": {
			EventType:     enums.EventSaleCompleted,
			AggregateType: enums.AggregateReturnTransaction,
			AggregateID:   uuid.NewString(),
			Payload:       mustEnvelope(t, []byte(`{"sale_id":"X"}`)),
		},
		"missing aggregate id": {
			EventType:     enums.EventSaleCompleted,
			AggregateType: enums.AggregateTransaction,
			Payload:       mustEnvelope(t, []byte(`{}`)),
		},
		"null payload": {
			EventType:     enums.EventReturnCompleted,
			AggregateType: enums.AggregateReturnTransaction,
			AggregateID:   uuid.NewString(),
			Payload:       mustEnvelope(t, []byte("null")),
		},
		"broken envelope": {
			EventType:     enums.EventReturnCompleted,
			AggregateType: enums.AggregateReturnTransaction,
			AggregateID:   uuid.NewString(),
			Payload:       json.RawMessage(`{"data":`),
		},
	}

	for name, event := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := reg.Resolve(event)
			if err == nil {
				t.Fatalf("expected error")
			}
			if !errors.Is(err, ErrUndeliverable) {
				t.Fatalf("expected undeliverable error, got %v", err)
			}
		})
	}
}

func TestNewEventRegistryRequiresSalesTopic(t *testing.T) {
	if _, err := NewEventRegistry(config.PubSubConfig{}); err == nil {
		t.Fatalf("expected error")
	}
}

func newTestEventRegistry(t *testing.T) *EventRegistry {
	t.Helper()
	cfg := config.PubSubConfig{
		SalesTopic:       "sales-topic",
		MaintenanceTopic: "maintenance-topic",
	}
	reg, err := NewEventRegistry(cfg)
	if err != nil {
		t.Fatalf("build registry: %v", err)
	}
	return reg
}

func mustMarshal(t *testing.T, v interface{}) []byte {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	return data
}

func mustEnvelope(t *testing.T, payload []byte) json.RawMessage {
	t.Helper()
	envelope := outbox.PayloadEnvelope{
		Version:    1,
		EventID:    uuid.NewString(),
		OccurredAt: time.Now().UTC(),
		Data:       payload,
	}
	data, err := json.Marshal(envelope)
	if err != nil {
		t.Fatalf("marshal envelope: %v", err)
	}
	return data
}
