package deposit

import (
	"context"

	"cashdesk-bot/internal/models"
)

type EventKind string

const (
	EventCreated          EventKind = "created"
	EventInstructions     EventKind = "instructions"
	EventRejected         EventKind = "rejected"
	EventCancelled        EventKind = "cancelled"
	EventReceipt          EventKind = "receipt"
	EventExpired          EventKind = "expired"
	EventCompleted        EventKind = "completed"
	EventCompletionFailed EventKind = "completion_failed"
)

// Event describes a committed transition. Reason is set for completion failures.
type Event struct {
	Kind    EventKind
	Deposit models.Deposit
	ActorID int64
	Reason  string
}

// Notifier delivers events to the affected parties. Implementations must
// not fail the caller; delivery problems are theirs to log.
type Notifier interface {
	Notify(ctx context.Context, ev Event)
}
