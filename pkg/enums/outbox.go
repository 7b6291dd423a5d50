package enums

import "fmt"

// OutboxAggregateType maps to the aggregate_type column of outbox_events.
type OutboxAggregateType string

const (
	AggregateTransaction       OutboxAggregateType = "transaction"
	AggregateReturnTransaction OutboxAggregateType = "return_transaction"
	AggregateCoupon            OutboxAggregateType = "coupon"
)

var validAggregateTypes = []OutboxAggregateType{
	AggregateTransaction,
	AggregateReturnTransaction,
	AggregateCoupon,
}

// IsValid reports whether the value matches a known aggregate type.
func (a OutboxAggregateType) IsValid() bool {
	for _, candidate := range validAggregateTypes {
		if candidate == a {
			return true
		}
	}
	return false
}

// OutboxEventType maps to the event_type column of outbox_events.
type OutboxEventType string

const (
	EventSaleCompleted   OutboxEventType = "sale_completed"
	EventReturnCompleted OutboxEventType = "return_completed"
	EventCouponsPurged   OutboxEventType = "coupons_purged"
)

var validOutboxEventTypes = []OutboxEventType{
	EventSaleCompleted,
	EventReturnCompleted,
	EventCouponsPurged,
}

// IsValid reports whether the value matches a known event type.
func (e OutboxEventType) IsValid() bool {
	for _, candidate := range validOutboxEventTypes {
		if candidate == e {
			return true
		}
	}
	return false
}

// ParseOutboxEventType converts raw input into OutboxEventType.
func ParseOutboxEventType(value string) (OutboxEventType, error) {
	for _, candidate := range validOutboxEventTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid event type %q", value)
}
