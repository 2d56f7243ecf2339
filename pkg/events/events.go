// Package events publishes domain events to RabbitMQ. Publishing is best-effort: events are
// handed to a background queue and failures never reach the request that produced them.
package events

import (
	"context"
	"time"

	"github.com/google/uuid"
)

const (
	TypePlannerItemAdded     = "planner.item_added"
	TypeRefreshReuseDetected = "auth.refresh_reuse_detected"
)

// Event is the envelope written to the broker.
type Event struct {
	ID         string      `json:"id"`
	Type       string      `json:"type"`
	OccurredAt time.Time   `json:"occurredAt"`
	Payload    interface{} `json:"payload"`
}

// New wraps payload in an envelope with a fresh id.
func New(eventType string, payload interface{}) Event {
	return Event{ID: uuid.NewString(), Type: eventType, OccurredAt: time.Now().UTC(), Payload: payload}
}

// PlannerItemAdded is emitted after a plan item is committed.
type PlannerItemAdded struct {
	ItemID    string    `json:"itemId"`
	UserID    string    `json:"userId"`
	CourseID  string    `json:"courseId"`
	SectionID *string   `json:"sectionId"`
	CreatedAt time.Time `json:"createdAt"`
}

// RefreshReuseDetected is emitted after a replayed refresh token triggered mass revocation.
type RefreshReuseDetected struct {
	UserID       string    `json:"userId"`
	TokenID      string    `json:"tokenId"`
	RevokedCount int64     `json:"revokedCount"`
	DetectedAt   time.Time `json:"detectedAt"`
}

// Publisher accepts events for delivery.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

// Nop discards every event.
type Nop struct{}

// Publish implements Publisher.
func (Nop) Publish(context.Context, Event) error { return nil }
