// Package countdown renders remaining time from an absolute end time.
//
// Every value is recomputed from the difference between the end time and the
// clock, so a page that sleeps through ticks shows the right value on the next one.
package countdown

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
)

// Style selects how remaining time is rendered.
type Style int

const (
	// StyleClock renders "MM:SS" and "00:00" once expired.
	StyleClock Style = iota
	// StyleCompact renders "4m 59s" and ExpiredLabel once expired.
	StyleCompact
)

// ExpiredLabel is shown by the compact style once the commitment has run out.
const ExpiredLabel = "Time's up!"

// DefaultInterval is the display refresh rate.
const DefaultInterval = time.Second

// Remaining returns the time left until end, never negative.
func Remaining(end, now time.Time) time.Duration {
	remaining := end.Sub(now)
	if remaining < 0 {
		return 0
	}
	return remaining
}

// Format renders the time left until end and reports whether it has run out.
func Format(style Style, end, now time.Time) (string, bool) {
	remaining := Remaining(end, now)
	if remaining <= 0 {
		return expiredText(style), true
	}
	return FormatDuration(style, remaining), false
}

// FormatDuration renders a positive duration, truncating to whole seconds.
func FormatDuration(style Style, remaining time.Duration) string {
	if remaining <= 0 {
		return expiredText(style)
	}
	seconds := int64(remaining / time.Second)
	minutes := seconds / 60
	seconds = seconds % 60
	if style == StyleCompact {
		return fmt.Sprintf("%dm %ds", minutes, seconds)
	}
	return fmt.Sprintf("%02d:%02d", minutes, seconds)
}

func expiredText(style Style) string {
	if style == StyleCompact {
		return ExpiredLabel
	}
	return "00:00"
}

// Countdown drives a display from an end time until it expires.
type Countdown struct {
	mu       sync.Mutex
	clock    clock.Clock
	style    Style
	interval time.Duration
	end      time.Time
	onUpdate func(label string, expired bool)
	cancel   context.CancelFunc
	done     chan struct{}
}

// New creates a stopped countdown. onUpdate receives every rendered label;
// the last call carries expired=true.
func New(clk clock.Clock, style Style, onUpdate func(label string, expired bool)) *Countdown {
	if clk == nil {
		clk = clock.New()
	}
	if onUpdate == nil {
		onUpdate = func(string, bool) {}
	}
	return &Countdown{
		clock:    clk,
		style:    style,
		interval: DefaultInterval,
		onUpdate: onUpdate,
	}
}

// Start renders immediately and keeps ticking until end is reached, Stop is
// called or ctx is done. Starting again replaces the previous end time.
func (countdown *Countdown) Start(ctx context.Context, end time.Time) {
	countdown.Stop()

	countdown.mu.Lock()
	runCtx, cancel := context.WithCancel(ctx)
	countdown.end = end
	countdown.cancel = cancel
	done := make(chan struct{})
	countdown.done = done
	ticker := countdown.clock.Ticker(countdown.interval)
	countdown.mu.Unlock()

	if countdown.render(end) {
		ticker.Stop()
		cancel()
		close(done)
		return
	}

	go func() {
		defer close(done)
		defer ticker.Stop()
		for {
			select {
			case <-runCtx.Done():
				return
			case <-ticker.C:
				if countdown.render(end) {
					return
				}
			}
		}
	}()
}

// Stop halts ticking and waits for the loop to exit.
func (countdown *Countdown) Stop() {
	countdown.mu.Lock()
	cancel := countdown.cancel
	done := countdown.done
	countdown.cancel = nil
	countdown.done = nil
	countdown.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}
}

// End returns the end time of the last Start.
func (countdown *Countdown) End() time.Time {
	countdown.mu.Lock()
	defer countdown.mu.Unlock()
	return countdown.end
}

func (countdown *Countdown) render(end time.Time) bool {
	label, expired := Format(countdown.style, end, countdown.clock.Now())
	countdown.onUpdate(label, expired)
	return expired
}
