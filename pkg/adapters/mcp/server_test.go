package mcp

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/aretw0/golem/internal/runtime"
	"github.com/aretw0/golem/pkg/adapters/memory"
	"github.com/aretw0/golem/pkg/channel"
	"github.com/aretw0/golem/pkg/dsl"
	"github.com/aretw0/golem/pkg/session"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	reg, err := dsl.New().
		Flow("default").
		State("root").Say("Hello!").
		Flow("billing").Intents("billing").
		State("root").Say("Billing here").
		State("pay").Say("Paid").Requires("amount", dsl.Say("How much?")).
		Build()
	require.NoError(t, err)

	channels, err := channel.NewRegistry(channel.NewSilent("mcp", "mcp"))
	require.NoError(t, err)
	engine := runtime.NewEngine(reg, session.NewManager(memory.NewStore()), runtime.WithChannels(channels))
	return NewServer(engine, "test\n")
}

func call(args map[string]any) mcp.CallToolRequest {
	var req mcp.CallToolRequest
	req.Params.Arguments = args
	return req
}

func text(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	require.NotEmpty(t, res.Content)
	tc, ok := res.Content[0].(mcp.TextContent)
	require.True(t, ok)
	return tc.Text
}

func TestSendMessage(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()

	resp, err := s.handleSendMessage(ctx, call(nil), map[string]any{"session_id": "42", "text": "hi"})
	require.NoError(t, err)
	assert.Equal(t, "mcp_42", resp.SessionID)
	assert.Equal(t, "default.root", resp.State)
	assert.True(t, resp.Transitioned)
	require.Len(t, resp.Messages, 1)
	assert.Equal(t, "Hello!", resp.Messages[0].Text)

	resp, err = s.handleSendMessage(ctx, call(nil), map[string]any{
		"session_id": "mcp_42",
		"entities":   `{"intent":"billing"}`,
	})
	require.NoError(t, err)
	assert.Equal(t, "billing.root", resp.State)

	_, err = s.handleSendMessage(ctx, call(nil), map[string]any{"session_id": "mcp_42", "entities": "{"})
	assert.Error(t, err)

	_, err = s.handleSendMessage(ctx, call(nil), map[string]any{})
	assert.Error(t, err)

	_, err = s.handleSendMessage(ctx, call(nil), map[string]any{"session_id": "sms_1", "text": "hi"})
	assert.Error(t, err, "sessions of unregistered channels are rejected")
}

func TestSessionTools(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()

	res, err := s.handleGetSession(ctx, call(map[string]any{"session_id": "mcp_1"}))
	require.NoError(t, err)
	assert.True(t, res.IsError)

	_, err = s.handleSendMessage(ctx, call(nil), map[string]any{"session_id": "1", "text": "hi"})
	require.NoError(t, err)

	res, err = s.handleGetSession(ctx, call(map[string]any{"session_id": "mcp_1"}))
	require.NoError(t, err)
	require.False(t, res.IsError)
	var snap runtime.Snapshot
	require.NoError(t, json.Unmarshal([]byte(text(t, res)), &snap))
	assert.Equal(t, "default.root", snap.State)

	res, err = s.handleListSessions(ctx, call(nil))
	require.NoError(t, err)
	assert.JSONEq(t, `["mcp_1"]`, text(t, res))

	res, err = s.handleClearSession(ctx, call(map[string]any{"session_id": "mcp_1"}))
	require.NoError(t, err)
	assert.False(t, res.IsError)

	res, err = s.handleGetSession(ctx, call(map[string]any{"session_id": "mcp_1"}))
	require.NoError(t, err)
	assert.True(t, res.IsError)
}

func TestSummarize(t *testing.T) {
	s := newTestServer(t)
	flows := summarize(s.engine.Flows())
	require.Len(t, flows, 2)
	assert.Equal(t, "default", flows[0].Name)
	assert.Equal(t, []string{"billing"}, flows[1].Intents)
	require.Len(t, flows[1].States, 2)
	assert.Equal(t, "pay", flows[1].States[1].Name)
	assert.Equal(t, []string{"amount"}, flows[1].States[1].Requirements)
}
