package entities

import (
	"time"

	"github.com/google/uuid"
)

// ActionStatus is the outcome of one logged phase transition
type ActionStatus string

const (
	ActionStatusPending ActionStatus = "pending"
	ActionStatusSuccess ActionStatus = "success"
	ActionStatusError   ActionStatus = "error"
)

// ActionLogEvent is one entry of a transfer attempt's append-only action log.
// Events are observability only; they never drive control flow.
type ActionLogEvent struct {
	ID        int64        `json:"id" db:"id"`
	AttemptID uuid.UUID    `json:"attempt_id" db:"attempt_id"`
	Message   string       `json:"message" db:"message"`
	Status    ActionStatus `json:"status" db:"status"`
	Link      string       `json:"link,omitempty" db:"link"`
	Timestamp time.Time    `json:"timestamp" db:"timestamp"`
}
