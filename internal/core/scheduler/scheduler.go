// Package scheduler is the background context: it outlives pages, arms the
// completion alarm and relays page requests.
package scheduler

import (
	"context"
	"sync"
	"time"

	"productivityguard/internal/core/bus"
	"productivityguard/internal/core/model"

	"github.com/benbjohnson/clock"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

const (
	alarmName          = "timerComplete"
	broadcastLimit     = 8
	storeChangesBuffer = 4
)

// Tabs is the tab API the background drives.
type Tabs interface {
	Query(ctx context.Context) ([]bus.Tab, error)
	SendMessage(ctx context.Context, id bus.TabID, msg bus.Message) error
	Remove(ctx context.Context, id bus.TabID) error
}

// Store is the part of the Timer Store the background needs.
type Store interface {
	Read() model.TimerRecord
	Clear() error
	Subscribe(buffer int) (<-chan model.RecordChange, func())
}

// Config contains runtime options for the Scheduler.
type Config struct {
	ClearOnStartup bool
}

// Scheduler owns the single completion alarm.
type Scheduler struct {
	clock   clock.Clock
	tabs    Tabs
	store   Store
	inbox   <-chan bus.Envelope
	config  Config
	logger  logrus.FieldLogger
	mu      sync.Mutex
	timer   *clock.Timer
	armedAt time.Time
	fired   chan time.Time
	stopped chan struct{}
	once    sync.Once

	changes     <-chan model.RecordChange
	unsubscribe func()
	closeOnce   sync.Once
}

// New creates a Scheduler reading page messages from inbox. It starts
// observing the store right away so no change made before Run is missed.
func New(tabs Tabs, store Store, inbox <-chan bus.Envelope, config Config, clk clock.Clock, logger logrus.FieldLogger) *Scheduler {
	if clk == nil {
		clk = clock.New()
	}
	changes, unsubscribe := store.Subscribe(storeChangesBuffer)
	return &Scheduler{
		clock:       clk,
		tabs:        tabs,
		store:       store,
		inbox:       inbox,
		config:      config,
		logger:      logger.WithField("component", "scheduler"),
		fired:       make(chan time.Time, 4),
		stopped:     make(chan struct{}),
		changes:     changes,
		unsubscribe: unsubscribe,
	}
}

// Close stops observing the store. It is safe to call more than once and is
// called by Run on return; a Scheduler that never runs must be closed by its owner.
func (scheduler *Scheduler) Close() {
	scheduler.closeOnce.Do(scheduler.unsubscribe)
}

// Install runs when the program is installed: it always starts clean.
func (scheduler *Scheduler) Install() {
	scheduler.logger.Info("Installed, clearing timer data")
	scheduler.Disarm()
	if err := scheduler.store.Clear(); err != nil {
		scheduler.logger.WithError(err).Warn("Failed to clear timer data on install")
	}
}

// Startup runs when the background starts. Depending on configuration it
// either discards the stored timer or re-arms the alarm for it.
func (scheduler *Scheduler) Startup() {
	if scheduler.config.ClearOnStartup {
		scheduler.logger.Info("Clearing timer data on startup")
		if err := scheduler.store.Clear(); err != nil {
			scheduler.logger.WithError(err).Warn("Failed to clear timer data on startup")
		}
		return
	}

	record := scheduler.store.Read()
	if record.Empty() {
		return
	}
	scheduler.logger.WithField("end_time", record.EndTime).Info("Resuming stored timer")
	scheduler.Arm(record.EndTime)
}

// Run serves page messages, store changes and the alarm until ctx is done.
func (scheduler *Scheduler) Run(ctx context.Context) error {
	changes := scheduler.changes
	defer scheduler.Close()
	defer scheduler.Disarm()
	defer scheduler.once.Do(func() { close(scheduler.stopped) })

	for {
		select {
		case <-ctx.Done():
			return nil
		case envelope, ok := <-scheduler.inbox:
			if !ok {
				return nil
			}
			scheduler.HandleMessage(ctx, envelope)
		case change, ok := <-changes:
			if !ok {
				return nil
			}
			scheduler.handleRecordChange(change)
		case firedAt := <-scheduler.fired:
			scheduler.fire(ctx, firedAt)
		}
	}
}

// HandleMessage acts on a single page message and reports whether it was understood.
func (scheduler *Scheduler) HandleMessage(ctx context.Context, envelope bus.Envelope) bool {
	logger := scheduler.logger.WithFields(logrus.Fields{
		"tab":     envelope.Sender.ID,
		"message": envelope.Message.Type,
	})

	switch envelope.Message.Type {
	case bus.MessageCloseTab:
		if envelope.Sender.ID == "" {
			return false
		}
		if err := scheduler.tabs.Remove(ctx, envelope.Sender.ID); err != nil {
			logger.WithError(err).Warn("Failed to close tab")
		}
		return true
	case bus.MessageTimerStarted:
		if envelope.Message.Data == nil || envelope.Message.Data.EndTime <= 0 {
			logger.Warn("Ignoring timer start without end time")
			return false
		}
		scheduler.Arm(envelope.Message.Data.End())
		return true
	default:
		logger.Debug("Ignoring unknown message")
		return false
	}
}

// Arm schedules the completion alarm for endTime, replacing any pending one.
func (scheduler *Scheduler) Arm(endTime time.Time) {
	scheduler.mu.Lock()
	defer scheduler.mu.Unlock()

	if scheduler.timer != nil && scheduler.armedAt.Equal(endTime) {
		return
	}
	scheduler.stopLocked()

	delay := endTime.Sub(scheduler.clock.Now())
	if delay < 0 {
		delay = 0
	}
	fired, stopped := scheduler.fired, scheduler.stopped
	scheduler.timer = scheduler.clock.AfterFunc(delay, func() {
		select {
		case fired <- endTime:
		case <-stopped:
		}
	})
	scheduler.armedAt = endTime

	scheduler.logger.WithFields(logrus.Fields{
		"alarm":    alarmName,
		"end_time": endTime,
		"delay":    delay,
	}).Debug("Alarm armed")
}

// Disarm cancels the pending alarm, if any.
func (scheduler *Scheduler) Disarm() {
	scheduler.mu.Lock()
	defer scheduler.mu.Unlock()
	scheduler.stopLocked()
}

// ArmedAt returns the end time the pending alarm fires for.
func (scheduler *Scheduler) ArmedAt() (time.Time, bool) {
	scheduler.mu.Lock()
	defer scheduler.mu.Unlock()
	if scheduler.timer == nil {
		return time.Time{}, false
	}
	return scheduler.armedAt, true
}

func (scheduler *Scheduler) stopLocked() {
	if scheduler.timer != nil {
		scheduler.timer.Stop()
		scheduler.timer = nil
	}
	scheduler.armedAt = time.Time{}
}

func (scheduler *Scheduler) handleRecordChange(change model.RecordChange) {
	if change.New.Empty() {
		scheduler.Disarm()
		return
	}
	scheduler.Arm(change.New.EndTime)
}

func (scheduler *Scheduler) fire(ctx context.Context, endTime time.Time) {
	scheduler.mu.Lock()
	current := scheduler.timer != nil && scheduler.armedAt.Equal(endTime)
	if current {
		scheduler.timer = nil
		scheduler.armedAt = time.Time{}
	}
	scheduler.mu.Unlock()
	if !current {
		return
	}

	now := scheduler.clock.Now()
	record := scheduler.store.Read()
	if record.Active(now) {
		// The alarm ran ahead of the wall clock; wait for the stored end time.
		scheduler.logger.WithFields(logrus.Fields{
			"alarm_end_time":  endTime,
			"stored_end_time": record.EndTime,
		}).Debug("Alarm fired before the timer ended, re-arming")
		scheduler.Arm(record.EndTime)
		return
	}
	if !record.Expired(now) {
		scheduler.logger.WithField("end_time", endTime).Debug("Alarm is stale, skipping broadcast")
		return
	}

	scheduler.Broadcast(ctx, bus.TimerComplete())
}

// Broadcast delivers msg to every open tab. A failed delivery is logged and
// does not affect the other tabs.
func (scheduler *Scheduler) Broadcast(ctx context.Context, msg bus.Message) int {
	tabs, err := scheduler.tabs.Query(ctx)
	if err != nil {
		scheduler.logger.WithError(err).Warn("Failed to list tabs")
		return 0
	}

	var mu sync.Mutex
	delivered := 0

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(broadcastLimit)
	for _, tab := range tabs {
		tab := tab
		group.Go(func() error {
			if err := scheduler.tabs.SendMessage(groupCtx, tab.ID, msg); err != nil {
				scheduler.logger.WithError(err).WithField("tab", tab.ID).Debug("Error sending message to tab")
				return nil
			}
			mu.Lock()
			delivered++
			mu.Unlock()
			return nil
		})
	}
	_ = group.Wait()

	scheduler.logger.WithFields(logrus.Fields{
		"message":   msg.Type,
		"tabs":      len(tabs),
		"delivered": delivered,
	}).Info("Broadcast sent")
	return delivered
}
