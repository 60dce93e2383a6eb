package browser

import (
	"context"
	"testing"
	"time"

	"productivityguard/internal/core/bus"
	"productivityguard/internal/core/gate"
	"productivityguard/internal/core/model"
	"productivityguard/internal/core/scheduler"
	"productivityguard/internal/sites"
	"productivityguard/internal/storage"
	"productivityguard/internal/ui/overlay"

	"github.com/benbjohnson/clock"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	fynetest "fyne.io/fyne/v2/test"
)

const waitFor = 2 * time.Second

type harness struct {
	clock   *clock.Mock
	store   *storage.TimerStore
	hub     *bus.Hub
	manager *Manager
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	app := fynetest.NewTempApp(t)
	logger, _ := test.NewNullLogger()
	local, err := storage.OpenLocal(afero.NewMemMapFs(), "/state/state.json", logger)
	require.NoError(t, err)

	mock := clock.NewMock()
	mock.Set(time.UnixMilli(1_700_000_000_000))
	store := storage.NewTimerStore(local, logger)
	hub := bus.NewHub()

	ctx, cancel := context.WithCancel(context.Background())
	background := scheduler.New(hub, store, hub.Background(), scheduler.Config{}, mock, logger)
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = background.Run(ctx)
	}()

	manager := New(ctx, app, hub, store, Options{
		Classifier: sites.NewClassifier(sites.SocialMediaSites),
		Config:     model.GateConfig{AllowedMinutes: model.DefaultAllowedMinutes, DefaultMinutes: 5},
		Clock:      mock,
		Logger:     logger,
	})
	t.Cleanup(func() {
		manager.CloseAll()
		cancel()
		<-done
	})
	return &harness{clock: mock, store: store, hub: hub, manager: manager}
}

func waitState(t *testing.T, tab *Tab, state gate.State) {
	t.Helper()
	require.Eventually(t, func() bool { return tab.Controller.State() == state }, waitFor, time.Millisecond,
		"want %s, have %s", state, tab.Controller.State())
}

func TestNormalizeURL(t *testing.T) {
	address, err := NormalizeURL(" reddit.com/r/golang ")
	require.NoError(t, err)
	assert.Equal(t, "https://reddit.com/r/golang", address)

	address, err = NormalizeURL("http://example.com")
	require.NoError(t, err)
	assert.Equal(t, "http://example.com", address)

	_, err = NormalizeURL("")
	assert.ErrorIs(t, err, ErrInvalidURL)
	_, err = NormalizeURL("file:///tmp/x")
	assert.ErrorIs(t, err, ErrInvalidURL)
}

func TestOpenOnlyGatesRestrictedSites(t *testing.T) {
	h := newHarness(t)

	reddit, err := h.manager.Open("https://www.reddit.com")
	require.NoError(t, err)
	docs, err := h.manager.Open("go.dev/doc")
	require.NoError(t, err)

	assert.True(t, reddit.Restricted)
	require.NotNil(t, reddit.Controller)
	waitState(t, reddit, gate.StateUncommitted)

	assert.False(t, docs.Restricted)
	assert.Nil(t, docs.Controller)
	assert.Equal(t, overlay.ModeBrowsing, docs.Window.Mode())

	tabs, err := h.hub.Query(context.Background())
	require.NoError(t, err)
	assert.Len(t, tabs, 2)
}

func TestCommitmentLifecycleAcrossTabs(t *testing.T) {
	h := newHarness(t)

	reddit, err := h.manager.Open("https://reddit.com")
	require.NoError(t, err)
	docs, err := h.manager.Open("https://go.dev")
	require.NoError(t, err)
	waitState(t, reddit, gate.StateUncommitted)

	require.NoError(t, reddit.Controller.Confirm(1, "test"))
	waitState(t, reddit, gate.StateActive)
	require.Eventually(t, func() bool { return reddit.Window.Mode() == overlay.ModeBrowsing }, waitFor, time.Millisecond)

	twitter, err := h.manager.Open("https://twitter.com")
	require.NoError(t, err)
	waitState(t, twitter, gate.StateActive)
	require.Eventually(t, func() bool { return twitter.Window.Mode() == overlay.ModeActive }, waitFor, time.Millisecond)
	assert.True(t, twitter.Controller.Record().Equal(reddit.Controller.Record()))

	h.clock.Add(time.Minute)
	waitState(t, reddit, gate.StateExpired)
	waitState(t, twitter, gate.StateExpired)

	require.NoError(t, reddit.Controller.Acknowledge())
	require.Eventually(t, func() bool {
		_, open := h.manager.Tab(reddit.ID)
		return !open
	}, waitFor, time.Millisecond)

	waitState(t, twitter, gate.StateUncommitted)
	assert.True(t, h.store.Read().Empty())

	_, open := h.manager.Tab(docs.ID)
	assert.True(t, open)
}

func TestDeclineClosesTab(t *testing.T) {
	h := newHarness(t)

	tab, err := h.manager.Open("https://youtube.com")
	require.NoError(t, err)
	waitState(t, tab, gate.StateUncommitted)

	require.NoError(t, tab.Controller.Decline())

	require.Eventually(t, func() bool {
		_, open := h.manager.Tab(tab.ID)
		return !open
	}, waitFor, time.Millisecond)
	tabs, err := h.hub.Query(context.Background())
	require.NoError(t, err)
	assert.Empty(t, tabs)
}

func TestUserClosingWindowRemovesTab(t *testing.T) {
	h := newHarness(t)

	tab, err := h.manager.Open("https://go.dev")
	require.NoError(t, err)

	require.NoError(t, h.manager.Close(tab.ID))

	_, open := h.manager.Tab(tab.ID)
	assert.False(t, open)
	assert.ErrorIs(t, h.manager.Close(tab.ID), bus.ErrUnknownTab)
}
