// Package gate runs the per-page commitment state machine.
//
// A page reads the shared timer record once on load, then only reacts to
// events: store changes, the background's completion broadcast, its own
// countdown tick and user actions. All of them are handled on one goroutine.
package gate

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"productivityguard/internal/core/bus"
	"productivityguard/internal/core/countdown"
	"productivityguard/internal/core/model"

	"github.com/benbjohnson/clock"
	"github.com/sirupsen/logrus"
)

// Common errors.
var (
	ErrInvalidDuration = errors.New("duration is not one of the allowed values")
	ErrEmptyCommitment = errors.New("commitment text is empty")
	ErrClosed          = errors.New("page controller is not running")
)

// Store is the Timer Store as seen by a page.
type Store interface {
	Read() model.TimerRecord
	Write(endTime time.Time, commitment string) error
	Clear() error
	Subscribe(buffer int) (<-chan model.RecordChange, func())
}

// Port connects the page to the background.
type Port interface {
	Listen() <-chan bus.Message
	Send(ctx context.Context, msg bus.Message) error
}

// Prompt is what the commitment prompt offers.
type Prompt struct {
	Minutes         []int
	SelectedMinutes int
	Commitment      string
}

// Session is the committed timer a page displays.
type Session struct {
	EndTime    time.Time
	Commitment string
	Remaining  string
	// Confirmed is set when the commitment was just made on this page.
	Confirmed bool
}

// View renders page modes. Calls come from the controller goroutine.
type View interface {
	ShowPrompt(prompt Prompt)
	ShowActive(session Session)
	SetRemaining(label string)
	ShowExpired(label string)
}

// Options contains runtime collaborators for a Controller.
type Options struct {
	Config model.GateConfig
	Clock  clock.Clock
	Logger logrus.FieldLogger
}

// DefaultCommitment is the pre-filled commitment text for a duration.
func DefaultCommitment(minutes int) string {
	return fmt.Sprintf("I want to lose %d minutes of my life instead of being productive", minutes)
}

type action func(ctx context.Context)

// Controller is the state machine behind a single restricted page.
type Controller struct {
	config model.GateConfig
	clock  clock.Clock
	logger logrus.FieldLogger
	store  Store
	port   Port
	view   View

	mu     sync.Mutex
	state  State
	record model.TimerRecord
	events []chan Event

	ticker  *clock.Ticker
	actions chan action
	done    chan struct{}
	running bool
}

// New creates a Controller in StateIdle. Run starts it.
func New(store Store, port Port, view View, options Options) *Controller {
	if options.Clock == nil {
		options.Clock = clock.New()
	}
	if options.Logger == nil {
		logger := logrus.New()
		logger.SetLevel(logrus.PanicLevel)
		options.Logger = logger
	}
	config := options.Config
	if len(config.AllowedMinutes) == 0 {
		config.AllowedMinutes = append([]int(nil), model.DefaultAllowedMinutes...)
	}
	if !config.Allows(config.DefaultMinutes) {
		config.DefaultMinutes = config.AllowedMinutes[0]
	}
	if config.TickInterval <= 0 {
		config.TickInterval = countdown.DefaultInterval
	}

	return &Controller{
		config:  config,
		clock:   options.Clock,
		logger:  options.Logger.WithField("component", "gate"),
		store:   store,
		port:    port,
		view:    view,
		state:   StateIdle,
		actions: make(chan action, 8),
		done:    make(chan struct{}),
	}
}

// State returns the current page mode.
func (controller *Controller) State() State {
	controller.mu.Lock()
	defer controller.mu.Unlock()
	return controller.state
}

// Record returns the page's last view of the shared record.
func (controller *Controller) Record() model.TimerRecord {
	controller.mu.Lock()
	defer controller.mu.Unlock()
	return controller.record
}

// Subscribe registers a new observer channel.
func (controller *Controller) Subscribe(buffer int) <-chan Event {
	if buffer <= 0 {
		buffer = 1
	}
	ch := make(chan Event, buffer)
	controller.mu.Lock()
	controller.events = append(controller.events, ch)
	controller.mu.Unlock()
	return ch
}

// Run loads the page and processes events until ctx is done or the page closes.
func (controller *Controller) Run(ctx context.Context) error {
	controller.mu.Lock()
	if controller.running {
		controller.mu.Unlock()
		return errors.New("page controller already running")
	}
	controller.running = true
	controller.mu.Unlock()

	changes, unsubscribe := controller.store.Subscribe(4)
	inbox := controller.port.Listen()
	defer func() {
		unsubscribe()
		controller.stopTicker()
		close(controller.done)
		controller.closeObservers()
	}()

	controller.load()

	for {
		var tick <-chan time.Time
		if controller.ticker != nil {
			tick = controller.ticker.C
		}

		select {
		case <-ctx.Done():
			return nil
		case change, ok := <-changes:
			if !ok {
				changes = nil
				continue
			}
			controller.applyRecord(change.New)
		case msg := <-inbox:
			if msg.Type == bus.MessageTimerComplete {
				controller.expire(CauseBroadcast)
			}
		case <-tick:
			controller.tick()
		case act := <-controller.actions:
			act(ctx)
		}

		if controller.State() == StateClosed {
			return nil
		}
	}
}

// Confirm commits to minutes of browsing with the given text.
func (controller *Controller) Confirm(minutes int, commitment string) error {
	if !controller.config.Allows(minutes) {
		return fmt.Errorf("%w: %d", ErrInvalidDuration, minutes)
	}
	if strings.TrimSpace(commitment) == "" {
		return ErrEmptyCommitment
	}
	return controller.post(func(ctx context.Context) {
		controller.confirm(ctx, minutes, commitment)
	})
}

// Decline leaves the site without committing.
func (controller *Controller) Decline() error {
	return controller.post(func(ctx context.Context) {
		controller.close(ctx, CauseDecline)
	})
}

// Acknowledge accepts the expired commitment, clears it and closes the page.
func (controller *Controller) Acknowledge() error {
	return controller.post(func(ctx context.Context) {
		if controller.State() != StateExpired {
			return
		}
		if err := controller.store.Clear(); err != nil {
			controller.logger.WithError(err).Warn("Failed to clear timer record")
			controller.emit(Event{Type: EventError, State: StateExpired, Message: err.Error(), At: controller.clock.Now()})
		}
		controller.close(ctx, CauseAck)
	})
}

func (controller *Controller) post(act action) error {
	select {
	case <-controller.done:
		return ErrClosed
	default:
	}
	select {
	case controller.actions <- act:
		return nil
	case <-controller.done:
		return ErrClosed
	}
}

func (controller *Controller) load() {
	record := controller.store.Read()
	if record.Active(controller.clock.Now()) {
		controller.enterActive(record, CauseLoad, false)
		return
	}
	controller.enterUncommitted(CauseLoad)
}

// applyRecord re-derives the page mode from a new store value.
func (controller *Controller) applyRecord(record model.TimerRecord) {
	state := controller.State()
	if state == StateClosed || state == StateIdle {
		return
	}
	now := controller.clock.Now()

	switch {
	case record.Empty():
		if state != StateUncommitted {
			controller.enterUncommitted(CauseStorage)
		}
	case record.Active(now):
		if state == StateActive && controller.Record().Equal(record) {
			return
		}
		controller.enterActive(record, CauseStorage, false)
	default:
		if state == StateActive {
			controller.setRecord(record)
			controller.expire(CauseStorage)
		}
	}
}

func (controller *Controller) confirm(ctx context.Context, minutes int, commitment string) {
	if controller.State() != StateUncommitted {
		controller.logger.WithField("state", controller.State()).Debug("Ignoring confirm outside the prompt")
		return
	}

	endTime := controller.clock.Now().Add(time.Duration(minutes) * time.Minute)
	if err := controller.store.Write(endTime, commitment); err != nil {
		controller.logger.WithError(err).Warn("Failed to save commitment")
		controller.emit(Event{Type: EventError, State: StateUncommitted, Message: err.Error(), At: controller.clock.Now()})
		controller.view.ShowPrompt(controller.prompt())
		return
	}

	controller.enterActive(model.TimerRecord{EndTime: endTime, Commitment: commitment}, CauseConfirm, true)

	if err := controller.port.Send(ctx, bus.TimerStartedMessage(minutes, endTime)); err != nil {
		controller.logger.WithError(err).Warn("Failed to notify background of timer start")
	}
}

func (controller *Controller) tick() {
	if controller.State() != StateActive {
		controller.stopTicker()
		return
	}
	record := controller.Record()
	now := controller.clock.Now()
	label, expired := countdown.Format(countdown.StyleClock, record.EndTime, now)
	if expired {
		controller.expire(CauseCountdown)
		return
	}

	controller.view.SetRemaining(label)
	controller.emit(Event{
		Type:      EventProgress,
		State:     StateActive,
		Cause:     CauseCountdown,
		Record:    record,
		Remaining: countdown.Remaining(record.EndTime, now),
		Label:     label,
		At:        now,
	})
}

// expire moves an active page to StateExpired. Any other state ignores it,
// so the broadcast and the local countdown may both arrive.
func (controller *Controller) expire(cause Cause) {
	if !controller.setState(StateExpired) {
		return
	}
	controller.stopTicker()

	controller.view.ShowExpired(countdown.ExpiredLabel)
	controller.emitState(StateExpired, cause, countdown.ExpiredLabel)
}

func (controller *Controller) enterActive(record model.TimerRecord, cause Cause, confirmed bool) {
	if !controller.setState(StateActive) {
		return
	}
	controller.setRecord(record)
	controller.startTicker()

	label, _ := countdown.Format(countdown.StyleClock, record.EndTime, controller.clock.Now())
	controller.view.ShowActive(Session{
		EndTime:    record.EndTime,
		Commitment: record.Commitment,
		Remaining:  label,
		Confirmed:  confirmed,
	})
	controller.emitState(StateActive, cause, label)
}

func (controller *Controller) enterUncommitted(cause Cause) {
	if !controller.setState(StateUncommitted) {
		return
	}
	controller.stopTicker()
	controller.setRecord(model.TimerRecord{})
	controller.view.ShowPrompt(controller.prompt())
	controller.emitState(StateUncommitted, cause, "")
}

func (controller *Controller) close(ctx context.Context, cause Cause) {
	if !controller.setState(StateClosed) {
		return
	}
	controller.stopTicker()
	controller.emitState(StateClosed, cause, "")

	if err := controller.port.Send(ctx, bus.CloseTab()); err != nil {
		controller.logger.WithError(err).Warn("Failed to request tab close")
	}
}

func (controller *Controller) prompt() Prompt {
	return Prompt{
		Minutes:         append([]int(nil), controller.config.AllowedMinutes...),
		SelectedMinutes: controller.config.DefaultMinutes,
		Commitment:      DefaultCommitment(controller.config.DefaultMinutes),
	}
}

func (controller *Controller) startTicker() {
	if controller.ticker != nil {
		controller.ticker.Stop()
	}
	controller.ticker = controller.clock.Ticker(controller.config.TickInterval)
}

func (controller *Controller) stopTicker() {
	if controller.ticker != nil {
		controller.ticker.Stop()
		controller.ticker = nil
	}
}

// setState moves to state when the transition table allows it.
func (controller *Controller) setState(state State) bool {
	controller.mu.Lock()
	from := controller.state
	allowed := CanTransition(from, state)
	if allowed {
		controller.state = state
	}
	controller.mu.Unlock()

	if !allowed {
		controller.logger.WithFields(logrus.Fields{"from": from, "to": state}).Debug("Ignoring disallowed transition")
	}
	return allowed
}

func (controller *Controller) setRecord(record model.TimerRecord) {
	controller.mu.Lock()
	controller.record = record
	controller.mu.Unlock()
}

func (controller *Controller) emitState(state State, cause Cause, label string) {
	controller.emit(Event{
		Type:   EventStateChange,
		State:  state,
		Cause:  cause,
		Record: controller.Record(),
		Label:  label,
		At:     controller.clock.Now(),
	})
}

func (controller *Controller) emit(event Event) {
	controller.mu.Lock()
	defer controller.mu.Unlock()
	for _, ch := range controller.events {
		select {
		case ch <- event:
		default:
		}
	}
}

func (controller *Controller) closeObservers() {
	controller.mu.Lock()
	events := controller.events
	controller.events = nil
	controller.mu.Unlock()

	for _, ch := range events {
		close(ch)
	}
}
