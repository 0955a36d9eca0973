package models

import "time"

// ERP activity event types that can move a client's credit position.
const (
	ActivityOrderCreated    = "order.created"
	ActivityPaymentReceived = "payment.received"
	ActivityInvoiceUpdated  = "invoice.updated"
)

// ActivityEvent is published by the ERP whenever client-level financial activity happens.
type ActivityEvent struct {
	Type       string    `json:"type"`
	ClientID   int64     `json:"clientId"`
	OccurredAt time.Time `json:"occurredAt"`
}

// Triggers reports whether the event should cause a recalculation.
func (e ActivityEvent) Triggers() bool {
	switch e.Type {
	case ActivityOrderCreated, ActivityPaymentReceived, ActivityInvoiceUpdated:
		return e.ClientID > 0
	default:
		return false
	}
}

// RecalcJob is the queue payload for one client recalculation.
type RecalcJob struct {
	ClientID int64  `json:"clientId"`
	Reason   string `json:"reason"`
}

// RecalcReport summarises a batch recalculation.
type RecalcReport struct {
	Requested int       `json:"requested"`
	Succeeded []int64   `json:"succeeded"`
	Failed    []int64   `json:"failed"`
	Skipped   []int64   `json:"skipped,omitempty"`
	Queued    bool      `json:"queued"`
	StartedAt time.Time `json:"startedAt"`
	Duration  string    `json:"duration"`
}
