// Package events publishes record change notifications after the store has
// confirmed a mutation.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/vinayKumarReddy-mangalampenta/project-cost-estimater/internal/models"
)

// Type is the kind of change.
type Type string

const (
	RecordCreated Type = "created"
	RecordUpdated Type = "updated"
	RecordDeleted Type = "deleted"
)

// RecordEvent describes one confirmed change to a record.
type RecordEvent struct {
	Type       Type      `json:"type"`
	OwnerID    string    `json:"ownerId"`
	Collection string    `json:"collection"`
	RecordID   string    `json:"recordId"`
	Label      string    `json:"label,omitempty"`
	Amount     string    `json:"amount,omitempty"`
	OccurredAt time.Time `json:"occurredAt"`
}

// NewRecordEvent builds an event for a record change. For deletes only the
// id of r is used.
func NewRecordEvent(t Type, ownerID string, coll models.Collection, r models.Record) RecordEvent {
	ev := RecordEvent{
		Type:       t,
		OwnerID:    ownerID,
		Collection: string(coll),
		RecordID:   r.ID,
		OccurredAt: time.Now().UTC(),
	}
	if t != RecordDeleted {
		ev.Label = r.Label
		ev.Amount = r.Amount.StringFixed(2)
	}
	return ev
}

// RoutingKey is "<collection>.<type>", e.g. "items.created".
func (e RecordEvent) RoutingKey() string {
	return fmt.Sprintf("%s.%s", e.Collection, e.Type)
}

// ToJSON encodes the event as the message body.
func (e RecordEvent) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// Publisher delivers record events.
type Publisher interface {
	Publish(ctx context.Context, ev RecordEvent) error
	Close() error
}

// NoopPublisher drops every event. Used when no broker is configured.
type NoopPublisher struct{}

func (NoopPublisher) Publish(context.Context, RecordEvent) error { return nil }

func (NoopPublisher) Close() error { return nil }
