package service

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"github.com/laundrypro/portal/internal/core/domain"
	"github.com/laundrypro/portal/internal/core/ports"
)

// LogRecorder writes auth events to the structured log.
type LogRecorder struct {
	log zerolog.Logger
}

func NewLogRecorder(log zerolog.Logger) *LogRecorder {
	return &LogRecorder{log: log.With().Str("component", "auth_audit").Logger()}
}

func (r *LogRecorder) Record(_ context.Context, ev domain.AuthEvent) error {
	e := r.log.Info().Str("event", string(ev.Kind)).Time("at", ev.At)
	if ev.UserID != "" {
		e = e.Str("user_id", ev.UserID)
	}
	if ev.Role != domain.RoleUnknown {
		e = e.Str("role", string(ev.Role))
	}
	if ev.Reason != "" {
		e = e.Str("reason", ev.Reason)
	}
	e.Msg("auth event")
	return nil
}

// Recorders fans an event out to several recorders and joins their errors.
type Recorders []ports.AuthEventRecorder

func (rs Recorders) Record(ctx context.Context, ev domain.AuthEvent) error {
	var errs []error
	for _, r := range rs {
		if err := r.Record(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
