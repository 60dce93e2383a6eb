package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"productivityguard/internal/core/bus"
	"productivityguard/internal/storage"

	"github.com/benbjohnson/clock"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errGone = errors.New("tab navigated away")

type fakeTabs struct {
	mu        sync.Mutex
	tabs      []bus.Tab
	failing   map[bus.TabID]bool
	delivered map[bus.TabID][]bus.MessageType
	removed   []bus.TabID
	removeErr error
}

func newFakeTabs(ids ...bus.TabID) *fakeTabs {
	tabs := &fakeTabs{
		failing:   map[bus.TabID]bool{},
		delivered: map[bus.TabID][]bus.MessageType{},
	}
	for _, id := range ids {
		tabs.tabs = append(tabs.tabs, bus.Tab{ID: id, URL: "https://reddit.com"})
	}
	return tabs
}

func (tabs *fakeTabs) Query(ctx context.Context) ([]bus.Tab, error) {
	tabs.mu.Lock()
	defer tabs.mu.Unlock()
	return append([]bus.Tab(nil), tabs.tabs...), nil
}

func (tabs *fakeTabs) SendMessage(ctx context.Context, id bus.TabID, msg bus.Message) error {
	tabs.mu.Lock()
	defer tabs.mu.Unlock()
	if tabs.failing[id] {
		return errGone
	}
	tabs.delivered[id] = append(tabs.delivered[id], msg.Type)
	return nil
}

func (tabs *fakeTabs) Remove(ctx context.Context, id bus.TabID) error {
	tabs.mu.Lock()
	defer tabs.mu.Unlock()
	tabs.removed = append(tabs.removed, id)
	return tabs.removeErr
}

func (tabs *fakeTabs) deliveredTo(id bus.TabID) []bus.MessageType {
	tabs.mu.Lock()
	defer tabs.mu.Unlock()
	return append([]bus.MessageType(nil), tabs.delivered[id]...)
}

func (tabs *fakeTabs) removedTabs() []bus.TabID {
	tabs.mu.Lock()
	defer tabs.mu.Unlock()
	return append([]bus.TabID(nil), tabs.removed...)
}

type harness struct {
	clock     *clock.Mock
	tabs      *fakeTabs
	store     *storage.TimerStore
	inbox     chan bus.Envelope
	scheduler *Scheduler
}

func newHarness(t *testing.T, config Config, ids ...bus.TabID) *harness {
	t.Helper()
	logger, _ := test.NewNullLogger()
	local, err := storage.OpenLocal(afero.NewMemMapFs(), "/state/state.json", logger)
	require.NoError(t, err)

	mock := clock.NewMock()
	mock.Set(time.UnixMilli(1_700_000_000_000))

	h := &harness{
		clock: mock,
		tabs:  newFakeTabs(ids...),
		store: storage.NewTimerStore(local, logger),
		inbox: make(chan bus.Envelope, 4),
	}
	h.scheduler = New(h.tabs, h.store, h.inbox, config, mock, logger)
	return h
}

func (h *harness) run(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = h.scheduler.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
}

func (h *harness) armedAt() time.Time {
	at, _ := h.scheduler.ArmedAt()
	return at
}

func TestArmReplacesPendingAlarm(t *testing.T) {
	h := newHarness(t, Config{}, "a")
	now := h.clock.Now()

	h.scheduler.Arm(now.Add(5 * time.Minute))
	h.scheduler.Arm(now.Add(10 * time.Minute))

	at, armed := h.scheduler.ArmedAt()
	require.True(t, armed)
	assert.True(t, at.Equal(now.Add(10*time.Minute)))

	h.scheduler.Disarm()
	_, armed = h.scheduler.ArmedAt()
	assert.False(t, armed)
}

func TestAlarmBroadcastsToEveryTab(t *testing.T) {
	h := newHarness(t, Config{}, "a", "gone", "b")
	h.tabs.failing["gone"] = true
	h.run(t)

	end := h.clock.Now().Add(5 * time.Minute)
	require.NoError(t, h.store.Write(end, "test"))
	h.inbox <- bus.Envelope{Sender: bus.Tab{ID: "a"}, Message: bus.TimerStartedMessage(5, end)}
	require.Eventually(t, func() bool { return h.armedAt().Equal(end) }, time.Second, 5*time.Millisecond)

	h.clock.Add(4 * time.Minute)
	assert.Empty(t, h.tabs.deliveredTo("a"))

	h.clock.Add(time.Minute)
	require.Eventually(t, func() bool {
		return len(h.tabs.deliveredTo("a")) == 1 && len(h.tabs.deliveredTo("b")) == 1
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, []bus.MessageType{bus.MessageTimerComplete}, h.tabs.deliveredTo("b"))
	assert.Empty(t, h.tabs.deliveredTo("gone"))
}

func TestClearingRecordCancelsAlarm(t *testing.T) {
	h := newHarness(t, Config{}, "a")
	h.run(t)

	end := h.clock.Now().Add(time.Minute)
	require.NoError(t, h.store.Write(end, "test"))
	require.Eventually(t, func() bool { return h.armedAt().Equal(end) }, time.Second, 5*time.Millisecond)

	require.NoError(t, h.store.Clear())
	require.Eventually(t, func() bool {
		_, armed := h.scheduler.ArmedAt()
		return !armed
	}, time.Second, 5*time.Millisecond)

	h.clock.Add(2 * time.Minute)
	time.Sleep(20 * time.Millisecond)
	assert.Empty(t, h.tabs.deliveredTo("a"))
}

func TestNewCommitmentSupersedesAlarm(t *testing.T) {
	h := newHarness(t, Config{}, "a")
	h.run(t)

	first := h.clock.Now().Add(time.Minute)
	second := h.clock.Now().Add(10 * time.Minute)
	require.NoError(t, h.store.Write(first, "first"))
	require.NoError(t, h.store.Write(second, "second"))
	require.Eventually(t, func() bool { return h.armedAt().Equal(second) }, time.Second, 5*time.Millisecond)

	h.clock.Add(2 * time.Minute)
	time.Sleep(20 * time.Millisecond)
	assert.Empty(t, h.tabs.deliveredTo("a"))

	h.clock.Add(8 * time.Minute)
	require.Eventually(t, func() bool { return len(h.tabs.deliveredTo("a")) == 1 }, time.Second, 5*time.Millisecond)
}

func TestEarlyAlarmRearmsForStoredEndTime(t *testing.T) {
	h := newHarness(t, Config{}, "a")
	stored := h.clock.Now().Add(6 * time.Minute)
	require.NoError(t, h.store.Write(stored, "test"))
	h.run(t)
	require.Eventually(t, func() bool { return h.armedAt().Equal(stored) }, time.Second, 5*time.Millisecond)

	// An alarm armed ahead of the stored end time, as after a wall clock step back.
	early := h.clock.Now().Add(5 * time.Minute)
	h.scheduler.Arm(early)

	h.clock.Add(5 * time.Minute)
	require.Eventually(t, func() bool { return h.armedAt().Equal(stored) }, time.Second, 5*time.Millisecond)
	assert.Empty(t, h.tabs.deliveredTo("a"))

	h.clock.Add(time.Minute)
	require.Eventually(t, func() bool { return len(h.tabs.deliveredTo("a")) == 1 }, time.Second, 5*time.Millisecond)
}

func TestCloseStopsObservingStore(t *testing.T) {
	h := newHarness(t, Config{})

	h.scheduler.Close()
	h.scheduler.Close()

	_, open := <-h.scheduler.changes
	assert.False(t, open)
	require.NoError(t, h.store.Write(h.clock.Now().Add(time.Minute), "test"))
	assert.NoError(t, h.scheduler.Run(context.Background()))
}

func TestCloseTabRemovesSender(t *testing.T) {
	h := newHarness(t, Config{}, "a")
	h.tabs.removeErr = errGone

	handled := h.scheduler.HandleMessage(context.Background(), bus.Envelope{Sender: bus.Tab{ID: "a"}, Message: bus.CloseTab()})

	assert.True(t, handled)
	assert.Equal(t, []bus.TabID{"a"}, h.tabs.removedTabs())
}

func TestHandleMessageRejectsMalformed(t *testing.T) {
	h := newHarness(t, Config{})
	ctx := context.Background()

	assert.False(t, h.scheduler.HandleMessage(ctx, bus.Envelope{Message: bus.Message{Type: bus.MessageTimerStarted}}))
	assert.False(t, h.scheduler.HandleMessage(ctx, bus.Envelope{Message: bus.CloseTab()}))
	assert.False(t, h.scheduler.HandleMessage(ctx, bus.Envelope{Sender: bus.Tab{ID: "a"}, Message: bus.Message{Type: "PING"}}))
	_, armed := h.scheduler.ArmedAt()
	assert.False(t, armed)
}

func TestInstallClearsTimer(t *testing.T) {
	h := newHarness(t, Config{})
	end := h.clock.Now().Add(time.Hour)
	require.NoError(t, h.store.Write(end, "test"))
	h.scheduler.Arm(end)

	h.scheduler.Install()

	assert.True(t, h.store.Read().Empty())
	_, armed := h.scheduler.ArmedAt()
	assert.False(t, armed)
}

func TestStartupResumesOrClears(t *testing.T) {
	t.Run("resume", func(t *testing.T) {
		h := newHarness(t, Config{ClearOnStartup: false})
		end := h.clock.Now().Add(time.Hour)
		require.NoError(t, h.store.Write(end, "test"))

		h.scheduler.Startup()

		assert.Equal(t, "test", h.store.Read().Commitment)
		assert.True(t, h.armedAt().Equal(end))
	})

	t.Run("clear", func(t *testing.T) {
		h := newHarness(t, Config{ClearOnStartup: true})
		require.NoError(t, h.store.Write(h.clock.Now().Add(time.Hour), "test"))

		h.scheduler.Startup()

		assert.True(t, h.store.Read().Empty())
		_, armed := h.scheduler.ArmedAt()
		assert.False(t, armed)
	})

	t.Run("expired record fires immediately", func(t *testing.T) {
		h := newHarness(t, Config{}, "a")
		require.NoError(t, h.store.Write(h.clock.Now().Add(-time.Minute), "test"))
		h.run(t)

		h.scheduler.Startup()
		h.clock.Add(time.Millisecond)

		require.Eventually(t, func() bool { return len(h.tabs.deliveredTo("a")) == 1 }, time.Second, 5*time.Millisecond)
	})
}
