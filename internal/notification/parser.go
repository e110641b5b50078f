package notification

import (
	"encoding/json"
	"strings"
)

type envelope struct {
	ID        string          `json:"id"`
	Type      string          `json:"type"`
	OldStatus string          `json:"old_status"`
	Data      json.RawMessage `json:"data"`
}

type metadata struct {
	OrderID string `json:"order_id"`
}

type orderData struct {
	ID       string   `json:"id"`
	Code     string   `json:"code"`
	Status   string   `json:"status"`
	Metadata metadata `json:"metadata"`
}

type chargeData struct {
	ID       string     `json:"id"`
	Status   string     `json:"status"`
	Metadata metadata   `json:"metadata"`
	Order    *orderData `json:"order"`
}

// ParseEvent classifies a raw webhook body. It never fails: bodies that are
// not JSON come back as KindMalformed, unknown event types as
// KindUnrecognized. Derived fields never contain NUL, which Postgres text
// columns reject; the raw body keeps them.
func ParseEvent(raw []byte) Event {
	return stripNUL(parseEvent(raw))
}

func parseEvent(raw []byte) Event {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return Event{Kind: KindMalformed}
	}

	ev := Event{
		Kind:      KindUnrecognized,
		ID:        env.ID,
		Type:      strings.ToLower(strings.TrimSpace(env.Type)),
		OldStatus: env.OldStatus,
	}

	prefix, suffix, _ := strings.Cut(ev.Type, ".")
	switch prefix {
	case "order":
		var d orderData
		if len(env.Data) > 0 && json.Unmarshal(env.Data, &d) != nil {
			ev.Kind = KindMalformed
			return ev
		}
		ev.Kind = KindOrder
		ev.Reference = firstNonEmpty(d.ID, env.ID)
		ev.OrderID = d.Metadata.OrderID
		ev.OrderNumber = d.Code
		ev.Status = d.Status

	case "charge":
		var d chargeData
		if len(env.Data) > 0 && json.Unmarshal(env.Data, &d) != nil {
			ev.Kind = KindMalformed
			return ev
		}
		ev.Kind = KindCharge
		ev.Status = d.Status
		ev.OrderID = d.Metadata.OrderID
		if d.Order != nil {
			ev.Reference = d.Order.ID
			ev.OrderNumber = d.Order.Code
			ev.OrderID = firstNonEmpty(ev.OrderID, d.Order.Metadata.OrderID)
		}
		ev.Reference = firstNonEmpty(ev.Reference, d.ID)

	default:
		return ev
	}

	// order.paid without data.status still says "paid"
	if ev.Status == "" {
		ev.Status = suffix
	}
	return ev
}

func stripNUL(ev Event) Event {
	clean := func(s string) string {
		return strings.ReplaceAll(s, "\x00", "")
	}
	ev.ID = clean(ev.ID)
	ev.Type = clean(ev.Type)
	ev.OldStatus = clean(ev.OldStatus)
	ev.Status = clean(ev.Status)
	ev.Reference = clean(ev.Reference)
	ev.OrderID = clean(ev.OrderID)
	ev.OrderNumber = clean(ev.OrderNumber)
	return ev
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
