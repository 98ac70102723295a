package realtime

import (
	"context"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/tbourn/alumni-portal/internal/domain"
)

var tracer = otel.Tracer("realtime")

// Outcome is the result of one dispatch attempt.
type Outcome string

const (
	OutcomeDelivered Outcome = "delivered"
	OutcomeAbsent    Outcome = "absent"
	OutcomeFailed    Outcome = "failed"
)

// Dispatcher pushes committed notifications to connected recipients.
type Dispatcher struct {
	Registry *Registry
	Log      zerolog.Logger
}

// NewDispatcher returns a Dispatcher over reg.
func NewDispatcher(reg *Registry, log zerolog.Logger) *Dispatcher {
	return &Dispatcher{Registry: reg, Log: log}
}

// Dispatch looks up the recipient of n and enqueues one notification frame
// on its connection. It never blocks on the network and never returns an
// error: an offline recipient is OutcomeAbsent, an enqueue failure is logged
// and reported as OutcomeFailed. There is no retry.
func (d *Dispatcher) Dispatch(ctx context.Context, n domain.Notification, actorID string) Outcome {
	_, span := tracer.Start(ctx, "realtime.Dispatch")
	defer span.End()

	out := d.dispatch(n, actorID)
	span.SetAttributes(
		attribute.String("notification.type", string(n.Type)),
		attribute.String("dispatch.outcome", string(out)),
	)
	dispatches.WithLabelValues(string(n.Type), string(out)).Inc()
	return out
}

func (d *Dispatcher) dispatch(n domain.Notification, actorID string) Outcome {
	h, ok := d.Registry.Lookup(n.UserID)
	if !ok {
		d.Log.Debug().Str("user_id", n.UserID).Str("type", string(n.Type)).Msg("dispatch: recipient offline")
		return OutcomeAbsent
	}
	if err := h.Send(NewNotificationEvent(n, actorID)); err != nil {
		d.Log.Warn().Err(err).
			Str("user_id", n.UserID).
			Str("conn_id", h.ID()).
			Str("notification_id", n.ID).
			Msg("dispatch: push failed")
		return OutcomeFailed
	}
	return OutcomeDelivered
}
