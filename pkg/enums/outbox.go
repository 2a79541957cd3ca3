package enums

import "fmt"

// OutboxAggregateType maps to the aggregate_type enum in Postgres.
type OutboxAggregateType string

const (
	AggregateBooking     OutboxAggregateType = "booking"
	AggregateLedgerEntry OutboxAggregateType = "ledger_entry"
)

func (a OutboxAggregateType) IsValid() bool {
	return a == AggregateBooking || a == AggregateLedgerEntry
}

func ParseOutboxAggregateType(value string) (OutboxAggregateType, error) {
	agg := OutboxAggregateType(value)
	if !agg.IsValid() {
		return "", fmt.Errorf("invalid aggregate type %q", value)
	}
	return agg, nil
}

// OutboxEventType maps to the event_type enum in Postgres.
type OutboxEventType string

const (
	EventBookingCreated        OutboxEventType = "booking_created"
	EventBookingStatusChanged  OutboxEventType = "booking_status_changed"
	EventWalletPaymentRecorded OutboxEventType = "wallet_payment_recorded"
)

var validOutboxEventTypes = []OutboxEventType{
	EventBookingCreated,
	EventBookingStatusChanged,
	EventWalletPaymentRecorded,
}

func (e OutboxEventType) IsValid() bool {
	for _, candidate := range validOutboxEventTypes {
		if candidate == e {
			return true
		}
	}
	return false
}

func ParseOutboxEventType(value string) (OutboxEventType, error) {
	for _, candidate := range validOutboxEventTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid event type %q", value)
}
