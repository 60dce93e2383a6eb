package storage

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"productivityguard/internal/core/model"

	"github.com/goccy/go-json"
	"github.com/sirupsen/logrus"
)

// Keys of the persisted state document.
const (
	KeyTimerEndTime  = "timerEndTime"
	KeyCommitment    = "commitment"
	KeyTimerPosition = "timerPosition"
)

// ErrInvalidRecord is returned when a write would produce a record without an end time.
var ErrInvalidRecord = errors.New("timer record requires an end time")

// TimerStore is the single source of truth for the commitment timer.
type TimerStore struct {
	local  *Local
	logger logrus.FieldLogger
}

// NewTimerStore wraps a Local store.
func NewTimerStore(local *Local, logger logrus.FieldLogger) *TimerStore {
	return &TimerStore{
		local:  local,
		logger: logger.WithField("component", "timer_store"),
	}
}

// Read returns the stored record. Storage failures and partial records are
// logged and reported as no record. Expiry is left to the caller.
func (store *TimerStore) Read() model.TimerRecord {
	snapshot := store.local.GetAll(KeyTimerEndTime, KeyCommitment)

	var endMillis int64
	rawEnd, hasEnd := snapshot[KeyTimerEndTime]
	if hasEnd {
		if err := json.Unmarshal(rawEnd, &endMillis); err != nil {
			store.logger.WithError(err).Warn("Treating unreadable timer end time as absent")
			return model.TimerRecord{}
		}
	}

	var commitment string
	rawCommitment, hasCommitment := snapshot[KeyCommitment]
	if hasCommitment {
		if err := json.Unmarshal(rawCommitment, &commitment); err != nil {
			store.logger.WithError(err).Warn("Treating unreadable commitment as absent")
			return model.TimerRecord{}
		}
	}

	if !hasEnd && !hasCommitment {
		return model.TimerRecord{}
	}
	if !hasEnd || !hasCommitment || endMillis <= 0 {
		store.logger.WithFields(logrus.Fields{
			"has_end_time":   hasEnd,
			"has_commitment": hasCommitment,
		}).Warn("Ignoring partial timer record")
		return model.TimerRecord{}
	}

	return model.TimerRecord{
		EndTime:    time.UnixMilli(endMillis),
		Commitment: commitment,
	}
}

// Write replaces the record with both fields in one document write.
func (store *TimerStore) Write(endTime time.Time, commitment string) error {
	if endTime.IsZero() {
		return ErrInvalidRecord
	}
	if err := store.local.Set(map[string]any{
		KeyTimerEndTime: endTime.UnixMilli(),
		KeyCommitment:   commitment,
	}); err != nil {
		return fmt.Errorf("write timer record: %w", err)
	}
	return nil
}

// Clear removes both fields in one document write.
func (store *TimerStore) Clear() error {
	if err := store.local.Remove(KeyTimerEndTime, KeyCommitment); err != nil {
		return fmt.Errorf("clear timer record: %w", err)
	}
	return nil
}

// Subscribe streams record changes made by any context, including this one.
// When the buffer is full the oldest pending change is folded into the newest,
// so the last value received always matches the store. The returned func stops
// the stream and closes the channel.
func (store *TimerStore) Subscribe(buffer int) (<-chan model.RecordChange, func()) {
	if buffer <= 0 {
		buffer = 1
	}
	ch := make(chan model.RecordChange, buffer)

	var mu sync.Mutex
	last := store.Read()
	closed := false

	unsubscribe := store.local.Subscribe(func(changes Changes) {
		if !changes.Has(KeyTimerEndTime, KeyCommitment) {
			return
		}
		mu.Lock()
		defer mu.Unlock()
		if closed {
			return
		}
		next := store.Read()
		change := model.RecordChange{Old: last, New: next}
		last = next
		deliverLatest(ch, change)
	})

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			unsubscribe()
			mu.Lock()
			closed = true
			close(ch)
			mu.Unlock()
		})
	}
}

// Position returns the stored corner of the floating countdown.
func (store *TimerStore) Position() model.Position {
	var value string
	ok, err := store.local.Get(KeyTimerPosition, &value)
	if err != nil || !ok {
		return model.DefaultPosition
	}
	position, err := model.ParsePosition(value)
	if err != nil {
		store.logger.WithError(err).Debug("Falling back to default timer position")
	}
	return position
}

// SetPosition persists the corner of the floating countdown.
func (store *TimerStore) SetPosition(position model.Position) error {
	if _, err := model.ParsePosition(string(position)); err != nil {
		return err
	}
	if err := store.local.Set(map[string]any{KeyTimerPosition: string(position)}); err != nil {
		return fmt.Errorf("save timer position: %w", err)
	}
	return nil
}

func deliverLatest(ch chan model.RecordChange, change model.RecordChange) {
	select {
	case ch <- change:
		return
	default:
	}
	// Full: fold the oldest pending change into this one.
	select {
	case pending := <-ch:
		change.Old = pending.Old
	default:
	}
	select {
	case ch <- change:
	default:
	}
}
