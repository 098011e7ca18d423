package service

import (
	"context"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/your-org/facegate/internal/models"
	"github.com/your-org/facegate/internal/notify"
	"github.com/your-org/facegate/internal/observability"
)

// Dispatcher renders and sends the welcome notification for resolved matches.
type Dispatcher struct {
	notifier notify.Notifier
	template string
}

func NewDispatcher(notifier notify.Notifier, template string) *Dispatcher {
	return &Dispatcher{notifier: notifier, template: template}
}

// Begin opens the dispatch scope for one match event. The scope guarantees
// at most one send per face ID, no matter how many times the recognizer
// surfaces the same descriptor within the event.
func (d *Dispatcher) Begin() *Dispatch {
	return &Dispatch{d: d, seen: make(map[uuid.UUID]struct{})}
}

// Dispatch is the per-event notification scope.
type Dispatch struct {
	d    *Dispatcher
	seen map[uuid.UUID]struct{}
}

// Notify sends the welcome message to the record's contact address. The face
// ID is marked seen before the send, so a timed-out attempt is never retried
// within the same event (at-most-once).
func (p *Dispatch) Notify(ctx context.Context, rec *models.IdentityRecord) models.DispatchResult {
	if rec == nil {
		return skipped("no identity record to notify")
	}
	if _, dup := p.seen[rec.FaceID]; dup {
		return skipped("already dispatched for this face in this event")
	}
	p.seen[rec.FaceID] = struct{}{}

	if !rec.Contactable() {
		return skipped("record has no contact address")
	}
	if err := ctx.Err(); err != nil {
		observability.Notifications.WithLabelValues("skipped").Inc()
		return models.DispatchResult{Status: models.DispatchSkipped, Reason: "canceled before dispatch", Err: err}
	}

	message := p.d.render(rec)
	if err := p.d.notifier.Send(ctx, rec.ContactNumber, message); err != nil {
		observability.Notifications.WithLabelValues("failed").Inc()
		slog.Error("notification dispatch failed", "face_id", rec.FaceID, "error", err)
		return models.DispatchResult{Status: models.DispatchFailed, Reason: err.Error(), Err: err}
	}

	observability.Notifications.WithLabelValues("sent").Inc()
	slog.Info("notification sent", "face_id", rec.FaceID, "name", rec.Name)
	return models.DispatchResult{Status: models.DispatchSent}
}

func (d *Dispatcher) render(rec *models.IdentityRecord) string {
	return strings.ReplaceAll(d.template, "{name}", rec.Name)
}

func skipped(reason string) models.DispatchResult {
	observability.Notifications.WithLabelValues("skipped").Inc()
	return models.DispatchResult{Status: models.DispatchSkipped, Reason: reason}
}
