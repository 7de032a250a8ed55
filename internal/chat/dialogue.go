package chat

import (
	"strings"

	"shopdesk-backend/internal/intent"
	"shopdesk-backend/internal/store"
)

// State is the follow-up a session is waiting for.
type State string

const (
	Idle                  State = "idle"
	AwaitingOrderID       State = "awaiting_order_id"
	AwaitingRefundOrderID State = "awaiting_refund_order_id"
)

// RefundInitiated is written to the refund record when a refund starts.
const RefundInitiated = "Initiated"

// IsSlotValue reports whether s looks like an order id: ASCII digits only, at least three of them.
func IsSlotValue(s string) bool {
	if len(s) < 3 {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// Dialogue is the per-session slot-filling state machine.
type Dialogue struct {
	states *store.MemoryStore
	orders *store.OrderBook
}

func NewDialogue(states *store.MemoryStore, orders *store.OrderBook) *Dialogue {
	return &Dialogue{states: states, orders: orders}
}

func (d *Dialogue) State(sessionID string) State {
	typ, ok := d.states.GetPendingIntent(sessionID)
	if !ok {
		return Idle
	}
	switch s := State(typ); s {
	case AwaitingOrderID, AwaitingRefundOrderID:
		return s
	}
	return Idle
}

func (d *Dialogue) set(sessionID string, s State) {
	if s == Idle {
		d.states.ClearPendingIntent(sessionID)
		return
	}
	d.states.SetPendingIntent(sessionID, string(s))
}

// Fill resolves message against the pending follow-up. It reports false when the
// session is idle or the message is not an order id, leaving state untouched.
func (d *Dialogue) Fill(sessionID, message string) (string, bool) {
	st := d.State(sessionID)
	if st == Idle {
		return "", false
	}
	id := strings.TrimSpace(message)
	if !IsSlotValue(id) {
		return "", false
	}

	order, found := d.orders.Order(id)
	switch st {
	case AwaitingOrderID:
		if !found {
			// stays pending so the customer can retry
			return orderNotFoundReply(id), true
		}
		d.set(sessionID, Idle)
		return orderStatusReply(order), true
	case AwaitingRefundOrderID:
		// unlike order status, an unknown id ends the refund flow
		d.set(sessionID, Idle)
		if !found {
			return refundNotFoundReply(id), true
		}
		d.states.SetRefundStatus(order.ID, RefundInitiated)
		return refundStartedReply(order.ID), true
	}
	return "", false
}

// Apply moves the session to the state implied by a freshly classified intent.
// OrderStatus and Refund open a follow-up, everything else clears it.
func (d *Dialogue) Apply(sessionID string, in intent.Intent) {
	switch in {
	case intent.OrderStatus:
		d.set(sessionID, AwaitingOrderID)
	case intent.Refund:
		d.set(sessionID, AwaitingRefundOrderID)
	default:
		d.set(sessionID, Idle)
	}
}
