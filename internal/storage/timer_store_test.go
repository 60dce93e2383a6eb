package storage

import (
	"sync"
	"testing"
	"time"

	"productivityguard/internal/core/model"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestTimerStore(t *testing.T, fs afero.Fs) (*TimerStore, *Local) {
	t.Helper()
	logger, _ := test.NewNullLogger()
	local, err := OpenLocal(fs, testStatePath, logger)
	require.NoError(t, err)
	return NewTimerStore(local, logger), local
}

func TestTimerStoreWriteReadClear(t *testing.T) {
	store, _ := newTestTimerStore(t, afero.NewMemMapFs())
	assert.True(t, store.Read().Empty())

	end := time.UnixMilli(1_700_000_300_123)
	require.NoError(t, store.Write(end, "test"))

	record := store.Read()
	assert.True(t, record.EndTime.Equal(end))
	assert.Equal(t, "test", record.Commitment)

	require.NoError(t, store.Clear())
	assert.True(t, store.Read().Empty())
}

func TestTimerStoreRejectsZeroEndTime(t *testing.T) {
	store, _ := newTestTimerStore(t, afero.NewMemMapFs())

	assert.ErrorIs(t, store.Write(time.Time{}, "x"), ErrInvalidRecord)
}

func TestTimerStorePartialRecordIsAbsent(t *testing.T) {
	store, local := newTestTimerStore(t, afero.NewMemMapFs())

	require.NoError(t, local.Set(map[string]any{KeyTimerEndTime: int64(1_700_000_000_000)}))
	assert.True(t, store.Read().Empty())

	require.NoError(t, local.Set(map[string]any{KeyTimerEndTime: "garbage", KeyCommitment: "x"}))
	assert.True(t, store.Read().Empty())
}

func TestTimerStoreReadNeverMixesRecords(t *testing.T) {
	fs := afero.NewMemMapFs()
	reader, readerLocal := newTestTimerStore(t, fs)
	writer, _ := newTestTimerStore(t, fs)

	records := []struct {
		end        time.Time
		commitment string
	}{
		{time.UnixMilli(1_000_000), "A"},
		{time.UnixMilli(2_000_000), "B"},
	}

	done := make(chan struct{})
	stop := sync.OnceFunc(func() { close(done) })
	defer stop()
	writerErr := make(chan error, 1)
	go func() {
		defer close(writerErr)
		for n := 0; ; n++ {
			select {
			case <-done:
				return
			default:
			}
			record := records[n%len(records)]
			if err := writer.Write(record.end, record.commitment); err != nil {
				writerErr <- err
				return
			}
			if err := readerLocal.Reload(); err != nil {
				writerErr <- err
				return
			}
		}
	}()

	deadline := time.Now().Add(500 * time.Millisecond)
	for time.Now().Before(deadline) {
		record := reader.Read()
		if record.Empty() {
			continue
		}
		switch record.Commitment {
		case "A":
			require.Equal(t, int64(1_000_000), record.EndTime.UnixMilli())
		case "B":
			require.Equal(t, int64(2_000_000), record.EndTime.UnixMilli())
		default:
			require.Failf(t, "unexpected commitment", "%q", record.Commitment)
		}
	}
	stop()
	require.NoError(t, <-writerErr)
}

func TestTimerStoreSubscribeSeesWritesAndClears(t *testing.T) {
	store, _ := newTestTimerStore(t, afero.NewMemMapFs())
	changes, stop := store.Subscribe(4)
	defer stop()

	end := time.UnixMilli(1_700_000_000_000)
	require.NoError(t, store.Write(end, "test"))
	require.NoError(t, store.Clear())

	first := <-changes
	assert.True(t, first.Old.Empty())
	assert.Equal(t, "test", first.New.Commitment)

	second := <-changes
	assert.True(t, second.Cleared())
}

func TestTimerStoreSubscribeIgnoresPosition(t *testing.T) {
	store, _ := newTestTimerStore(t, afero.NewMemMapFs())
	changes, stop := store.Subscribe(1)
	defer stop()

	require.NoError(t, store.SetPosition(model.PositionTopLeft))

	select {
	case change := <-changes:
		t.Fatalf("unexpected change %+v", change)
	default:
	}
}

func TestTimerStoreSubscribeKeepsLatestWhenBehind(t *testing.T) {
	store, _ := newTestTimerStore(t, afero.NewMemMapFs())
	changes, stop := store.Subscribe(1)

	base := time.UnixMilli(1_700_000_000_000)
	for i := 1; i <= 5; i++ {
		require.NoError(t, store.Write(base.Add(time.Duration(i)*time.Minute), "test"))
	}

	change := <-changes
	assert.True(t, change.Old.Empty())
	assert.True(t, change.New.EndTime.Equal(base.Add(5*time.Minute)))

	stop()
	_, open := <-changes
	assert.False(t, open)
	require.NoError(t, store.Clear())
}

func TestTimerStoreSubscribeSeesOtherProcess(t *testing.T) {
	fs := afero.NewMemMapFs()
	store, local := newTestTimerStore(t, fs)
	other, _ := newTestTimerStore(t, fs)
	require.NoError(t, store.Write(time.UnixMilli(1_700_000_000_000), "test"))

	changes, stop := store.Subscribe(1)
	defer stop()

	require.NoError(t, other.Clear())
	require.NoError(t, local.Reload())

	change := <-changes
	assert.True(t, change.Cleared())
}

func TestTimerStorePosition(t *testing.T) {
	store, local := newTestTimerStore(t, afero.NewMemMapFs())
	assert.Equal(t, model.PositionBottomRight, store.Position())

	require.NoError(t, store.SetPosition(model.PositionTopRight))
	assert.Equal(t, model.PositionTopRight, store.Position())

	require.Error(t, store.SetPosition(model.Position("middle")))

	require.NoError(t, local.Set(map[string]any{KeyTimerPosition: "sideways"}))
	assert.Equal(t, model.DefaultPosition, store.Position())
}
