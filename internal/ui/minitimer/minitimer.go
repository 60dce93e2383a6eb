// Package minitimer is the floating countdown shown while browsing a
// restricted site.
package minitimer

import (
	"context"
	"image/color"
	"sync"
	"time"

	"productivityguard/internal/core/countdown"
	"productivityguard/internal/core/model"

	"github.com/benbjohnson/clock"
	"github.com/sirupsen/logrus"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/theme"
	"fyne.io/fyne/v2/widget"
)

// PositionStore persists the corner preference.
type PositionStore interface {
	Position() model.Position
	SetPosition(position model.Position) error
}

// Timer is a corner-pinned countdown card.
type Timer struct {
	store     PositionStore
	logger    logrus.FieldLogger
	countdown *countdown.Countdown

	mu        sync.Mutex
	position  model.Position
	minimized bool
	label     string
	expired   bool

	display        *canvas.Text
	expandButton   *widget.Button
	minimizeButton *widget.Button
	configButton   *widget.Button
	positionSelect *widget.Select
	configBox      *fyne.Container
	expandedCard   *fyne.Container
	root           *fyne.Container
}

// New builds a stopped timer using the stored corner.
func New(store PositionStore, clk clock.Clock, logger logrus.FieldLogger) *Timer {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	timer := &Timer{
		store:    store,
		logger:   logger.WithField("component", "minitimer"),
		position: store.Position(),
		label:    "--:--",
	}
	timer.countdown = countdown.New(clk, countdown.StyleClock, timer.update)
	timer.build()
	return timer
}

func (timer *Timer) build() {
	timer.display = canvas.NewText(timer.label, color.NRGBA{R: 232, G: 190, B: 66, A: 255})
	timer.display.TextStyle = fyne.TextStyle{Bold: true, Monospace: true}
	timer.display.TextSize = 22
	timer.display.Alignment = fyne.TextAlignCenter

	title := widget.NewLabelWithStyle("Time Remaining", fyne.TextAlignLeading, fyne.TextStyle{Bold: true})

	labels := make([]string, 0, len(model.Positions))
	for _, position := range model.Positions {
		labels = append(labels, position.Label())
	}
	timer.positionSelect = widget.NewSelect(labels, func(label string) {
		for _, position := range model.Positions {
			if position.Label() == label && position != timer.Position() {
				if err := timer.SetPosition(position); err != nil {
					timer.logger.WithError(err).Warn("Failed to save timer position")
				}
			}
		}
	})
	timer.positionSelect.SetSelected(timer.position.Label())
	timer.configBox = container.NewHBox(widget.NewLabel("Position:"), timer.positionSelect)
	timer.configBox.Hide()

	timer.configButton = widget.NewButtonWithIcon("", theme.SettingsIcon(), func() {
		if timer.configBox.Visible() {
			timer.configBox.Hide()
		} else {
			timer.configBox.Show()
		}
		timer.root.Refresh()
	})
	timer.minimizeButton = widget.NewButtonWithIcon("", theme.ContentRemoveIcon(), timer.ToggleMinimized)
	timer.expandButton = widget.NewButton(timer.label, timer.ToggleMinimized)
	timer.expandButton.Hide()

	header := container.NewBorder(nil, nil, title, container.NewHBox(timer.configButton, timer.minimizeButton))
	background := canvas.NewRectangle(color.NRGBA{R: 24, G: 24, B: 24, A: 230})
	background.CornerRadius = 8
	timer.expandedCard = container.NewStack(background, container.NewPadded(container.NewVBox(header, timer.display, timer.configBox)))

	card := container.NewStack(timer.expandedCard, timer.expandButton)
	timer.root = container.New(&cornerLayout{position: timer.Position}, card)
}

// CanvasObject returns a full-size transparent layer holding the card.
func (timer *Timer) CanvasObject() fyne.CanvasObject {
	return timer.root
}

// Start counts down to end.
func (timer *Timer) Start(ctx context.Context, end time.Time) {
	timer.countdown.Start(ctx, end)
}

// Stop halts the countdown.
func (timer *Timer) Stop() {
	timer.countdown.Stop()
}

// Label returns the last rendered remaining time.
func (timer *Timer) Label() string {
	timer.mu.Lock()
	defer timer.mu.Unlock()
	return timer.label
}

// Expired reports whether the countdown reached zero.
func (timer *Timer) Expired() bool {
	timer.mu.Lock()
	defer timer.mu.Unlock()
	return timer.expired
}

// Position returns the current corner.
func (timer *Timer) Position() model.Position {
	timer.mu.Lock()
	defer timer.mu.Unlock()
	return timer.position
}

// SetPosition moves the card and saves the preference.
func (timer *Timer) SetPosition(position model.Position) error {
	if _, err := model.ParsePosition(string(position)); err != nil {
		return err
	}
	if err := timer.store.SetPosition(position); err != nil {
		return err
	}
	timer.mu.Lock()
	timer.position = position
	timer.mu.Unlock()

	fyne.Do(func() {
		timer.configBox.Hide()
		timer.root.Refresh()
	})
	return nil
}

// Minimized reports whether only the compact button is shown.
func (timer *Timer) Minimized() bool {
	timer.mu.Lock()
	defer timer.mu.Unlock()
	return timer.minimized
}

// ToggleMinimized switches between the full card and the compact button.
func (timer *Timer) ToggleMinimized() {
	timer.mu.Lock()
	timer.minimized = !timer.minimized
	minimized := timer.minimized
	timer.mu.Unlock()

	if minimized {
		timer.expandedCard.Hide()
		timer.expandButton.Show()
	} else {
		timer.expandButton.Hide()
		timer.expandedCard.Show()
	}
	timer.root.Refresh()
}

func (timer *Timer) update(label string, expired bool) {
	timer.mu.Lock()
	timer.label = label
	timer.expired = expired
	timer.mu.Unlock()

	fyne.Do(func() {
		timer.display.Text = label
		timer.display.Refresh()
		timer.expandButton.SetText(label)
	})
}
