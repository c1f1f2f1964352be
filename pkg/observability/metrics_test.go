package observability_test

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/aretw0/golem/pkg/domain"
	"github.com/aretw0/golem/pkg/observability"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Hooks(t *testing.T) {
	reg := prometheus.NewRegistry()
	hooks := observability.NewMetrics(reg).Hooks()
	ctx := context.Background()

	start := &domain.TurnEvent{SessionID: "tg_1", Type: domain.EventMessage}
	hooks.OnTurnStart(ctx, start)
	hooks.OnStateChange(ctx, &domain.TransitionEvent{SessionID: "tg_1", To: "default.root"})
	hooks.OnActionError(ctx, &domain.ActionError{SessionID: "tg_1", State: "default.root", Err: errors.New("boom")})
	start.Duration = 20 * time.Millisecond
	hooks.OnTurnEnd(ctx, start)
	hooks.OnTurnEnd(ctx, &domain.TurnEvent{SessionID: "tg_1", Type: domain.EventSchedule, Err: errors.New("disk full")})

	expected := `
# HELP golem_turns_total Total number of processed turns by event type and outcome
# TYPE golem_turns_total counter
golem_turns_total{status="error",type="schedule"} 1
golem_turns_total{status="ok",type="message"} 1
`
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "golem_turns_total"))

	count, err := testutil.GatherAndCount(reg, "golem_state_visits_total", "golem_action_errors_total")
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	count, err = testutil.GatherAndCount(reg, "golem_turn_duration_seconds")
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestCombine(t *testing.T) {
	var calls []string
	a := domain.LifecycleHooks{
		OnStateChange: func(ctx context.Context, e *domain.TransitionEvent) { calls = append(calls, "a:"+e.To) },
	}
	b := domain.LifecycleHooks{
		OnStateChange: func(ctx context.Context, e *domain.TransitionEvent) { calls = append(calls, "b:"+e.To) },
		OnTurnEnd:     func(ctx context.Context, e *domain.TurnEvent) { calls = append(calls, "b:end") },
	}

	hooks := observability.Combine(a, domain.LifecycleHooks{}, b)
	hooks.OnStateChange(context.Background(), &domain.TransitionEvent{To: "x.root"})
	hooks.OnTurnEnd(context.Background(), &domain.TurnEvent{})

	assert.Equal(t, []string{"a:x.root", "b:x.root", "b:end"}, calls)
	assert.Nil(t, hooks.OnTurnStart)
}

func TestLoggingHooks(t *testing.T) {
	var buf bytes.Buffer
	hooks := observability.LoggingHooks(slog.New(slog.NewTextHandler(&buf, nil)))

	hooks.OnStateChange(context.Background(), &domain.TransitionEvent{SessionID: "tg_1", From: "a.root", To: "b.root"})

	assert.Contains(t, buf.String(), "state_change")
	assert.Contains(t, buf.String(), "to=b.root")
}
