package notification

import "time"

// Notification is one gateway callback exactly as received. Rows are never
// updated except for the processed flag.
type Notification struct {
	ID            string
	TransactionID string
	EventType     string
	CurrentStatus string
	OldStatus     *string
	RawData       []byte
	Processed     bool
	CreatedAt     time.Time
	ProcessedAt   *time.Time
}

type Kind string

const (
	KindOrder        Kind = "order"
	KindCharge       Kind = "charge"
	KindUnrecognized Kind = "unrecognized"
	KindMalformed    Kind = "malformed"
)

// Event is the parsed view of a notification payload.
type Event struct {
	Kind Kind
	ID   string
	Type string
	// Reference is the gateway transaction id the order was charged with.
	Reference   string
	OrderID     string
	OrderNumber string
	Status      string
	OldStatus   string
}

// Actionable reports whether the event carries enough to look up an order.
func (e Event) Actionable() bool {
	if e.Kind != KindOrder && e.Kind != KindCharge {
		return false
	}
	return e.Reference != "" || e.OrderID != "" || e.OrderNumber != ""
}
