package models

import (
	"time"

	"github.com/google/uuid"
)

// DispatchStatus is the terminal state of one notification attempt.
type DispatchStatus string

const (
	DispatchSent    DispatchStatus = "sent"
	DispatchSkipped DispatchStatus = "skipped"
	DispatchFailed  DispatchStatus = "failed"
)

// DispatchResult reports what happened to the notification for one match
// event. A failed dispatch never fails the match itself.
type DispatchResult struct {
	Status DispatchStatus `json:"status"`
	Reason string         `json:"reason,omitempty"`
	Err    error          `json:"-"`
}

func (r DispatchResult) Sent() bool { return r.Status == DispatchSent }

// MatchOutcome is the result of one match-and-notify invocation.
//
// Matched with a nil Record is the orphaned-match case: the recognizer
// matched a descriptor that has no linked identity record.
type MatchOutcome struct {
	Matched      bool            `json:"matched"`
	FaceID       uuid.UUID       `json:"face_id,omitempty"`
	Similarity   float64         `json:"similarity,omitempty"`
	Record       *IdentityRecord `json:"record,omitempty"`
	Orphaned     bool            `json:"orphaned,omitempty"`
	Notification DispatchResult  `json:"notification"`
}

// NotificationSent reports whether the downstream notification went out.
func (o *MatchOutcome) NotificationSent() bool {
	return o != nil && o.Notification.Sent()
}

// MatchEvent is the fanout payload published after every Matched outcome.
// It is ephemeral: consumed for operator dashboards, not a system of record.
type MatchEvent struct {
	CollectionID     string    `json:"collection_id"`
	FaceID           uuid.UUID `json:"face_id"`
	Similarity       float64   `json:"similarity"`
	Name             string    `json:"name,omitempty"`
	Orphaned         bool      `json:"orphaned"`
	NotificationSent bool      `json:"notification_sent"`
	Timestamp        time.Time `json:"timestamp"`
}
