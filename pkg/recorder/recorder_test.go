package recorder_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/aretw0/golem/pkg/domain"
	"github.com/aretw0/golem/pkg/recorder"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorder_Transcript(t *testing.T) {
	dir := t.TempDir()
	r := recorder.New(recorder.WithDir(dir))
	ctx := context.Background()

	r.Start(ctx, "test_1")
	assert.True(t, r.Recording("test_1"))

	r.RecordUserMessage(ctx, "test_1", domain.EventMessage, map[string]any{
		"intent":                "greeting",
		domain.EntityTestRecord: "start",
	})
	r.RecordStateChange(ctx, "test_1", "default.root")
	r.RecordBotMessage(ctx, "test_1", domain.TextMessage("Hello!"))
	r.RecordBotMessage(ctx, "test_2", domain.TextMessage("not recorded"))

	reply := r.Stop(ctx, "test_1")
	assert.False(t, r.Recording("test_1"))

	tr, err := recorder.Parse([]byte(reply.Text))
	require.NoError(t, err)
	assert.Equal(t, "test_1", tr.Session)
	require.Len(t, tr.Steps, 3)
	require.NotNil(t, tr.Steps[0].User)
	assert.Equal(t, domain.EventMessage, tr.Steps[0].User.Type)
	assert.Equal(t, map[string]any{"intent": "greeting"}, tr.Steps[0].User.Entities)
	assert.Equal(t, "default.root", tr.Steps[1].State)
	assert.Equal(t, "Hello!", tr.Steps[2].Bot)

	files, err := filepath.Glob(filepath.Join(dir, "test_1-*.yaml"))
	require.NoError(t, err)
	require.Len(t, files, 1)
	data, err := os.ReadFile(files[0])
	require.NoError(t, err)
	assert.Equal(t, reply.Text, string(data))
}

func TestRecorder_StopWithoutStart(t *testing.T) {
	r := recorder.New()
	reply := r.Stop(context.Background(), "test_1")
	assert.Contains(t, reply.Text, "Nothing")
}
