// Package queue defines the lot events exchanged over the message broker and
// the consumer that records them.
package queue

import "time"

// EventsQueue is the durable queue every lot event is published to.
const EventsQueue = "auction.events"

// EventType names what happened to a lot.
type EventType string

const (
	LotCreated EventType = "lot.created"
	LotDeleted EventType = "lot.deleted"
	LotSaved   EventType = "lot.saved"
)

// LotEvent is published after a lot is created, deleted or bookmarked.  It
// carries enough detail for the audit log without a database lookup.
type LotEvent struct {
	Type       EventType `json:"type"`
	LotID      uint64    `json:"lot_id"`
	UserID     uint64    `json:"user_id"`
	Title      string    `json:"title"`
	Price      float64   `json:"price,omitempty"`
	Category   string    `json:"category,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// NewLotEvent stamps an event with the current UTC time.
func NewLotEvent(t EventType, lotID, userID uint64, title string) LotEvent {
	return LotEvent{Type: t, LotID: lotID, UserID: userID, Title: title, OccurredAt: time.Now().UTC()}
}
