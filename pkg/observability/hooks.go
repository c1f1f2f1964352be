package observability

import (
	"context"
	"log/slog"

	"github.com/aretw0/golem/pkg/domain"
)

// LoggingHooks logs transitions at info level and contained action failures at error level.
func LoggingHooks(logger *slog.Logger) domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnStateChange: func(ctx context.Context, e *domain.TransitionEvent) {
			logger.InfoContext(ctx, "state_change", "session_id", e.SessionID, "from", e.From, "to", e.To)
		},
		OnActionError: func(ctx context.Context, e *domain.ActionError) {
			logger.ErrorContext(ctx, "action_error", "session_id", e.SessionID, "state", e.State, "err", e.Err)
		},
	}
}

// Combine calls every non-nil callback of each hook set, in order.
func Combine(sets ...domain.LifecycleHooks) domain.LifecycleHooks {
	var out domain.LifecycleHooks
	for _, h := range sets {
		out.OnTurnStart = chain(out.OnTurnStart, h.OnTurnStart)
		out.OnTurnEnd = chain(out.OnTurnEnd, h.OnTurnEnd)
		out.OnStateChange = chain(out.OnStateChange, h.OnStateChange)
		out.OnActionError = chain(out.OnActionError, h.OnActionError)
	}
	return out
}

func chain[E any](a, b func(context.Context, E)) func(context.Context, E) {
	switch {
	case a == nil:
		return b
	case b == nil:
		return a
	}
	return func(ctx context.Context, e E) {
		a(ctx, e)
		b(ctx, e)
	}
}
