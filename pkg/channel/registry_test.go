package channel_test

import (
	"context"
	"errors"
	"testing"

	"github.com/aretw0/golem/pkg/channel"
	"github.com/aretw0/golem/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_ForSession(t *testing.T) {
	tg := channel.NewRecording("telegram", "tg")
	api := channel.NewSilent("api", "api")
	reg, err := channel.NewRegistry(tg, api)
	require.NoError(t, err)

	ch, err := reg.ForSession(domain.Session{ID: "tg_1"})
	require.NoError(t, err)
	assert.Equal(t, "telegram", ch.Name())

	ch, err = reg.ForSession(domain.Session{ID: "whatever", Channel: "api"})
	require.NoError(t, err)
	assert.Equal(t, "api", ch.Name())

	_, err = reg.ForSession(domain.Session{ID: "fb_1"})
	assert.ErrorIs(t, err, domain.ErrUnknownChannel)
}

func TestRegistry_RejectsDuplicates(t *testing.T) {
	_, err := channel.NewRegistry(channel.NewSilent("a", "x"), channel.NewSilent("b", "x"))
	assert.ErrorContains(t, err, "prefix")
}

func TestRegistry_FromSessionID(t *testing.T) {
	reg, err := channel.NewRegistry(channel.NewSilent("api", "api"))
	require.NoError(t, err)

	s, err := reg.FromSessionID("api_user_7")
	require.NoError(t, err)
	assert.Equal(t, domain.Session{ID: "api_user_7", Channel: "api", ChatID: "user_7"}, s)

	_, err = reg.FromSessionID("nope")
	assert.Error(t, err)
}

func TestRecording_FailDeliveriesStillRecords(t *testing.T) {
	rec := channel.NewRecording("test", "test")
	boom := errors.New("network down")
	rec.FailDeliveries(boom)

	s := domain.NewSession("test", "test", "1")
	err := rec.PostMessage(context.Background(), s, domain.TextMessage("hi"))
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, []string{"hi"}, rec.Texts(s.ID))
}
