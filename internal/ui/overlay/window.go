// Package overlay renders a tab window: the site placeholder and, on
// restricted sites, the commitment overlay drawn over it.
package overlay

import (
	"context"
	"errors"
	"fmt"
	"image/color"
	"sync"

	"productivityguard/internal/core/bus"
	"productivityguard/internal/core/gate"
	"productivityguard/internal/sites"
	"productivityguard/internal/ui/minitimer"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/layout"
	"fyne.io/fyne/v2/widget"
)

// Mode is what the tab window currently shows.
type Mode string

const (
	ModeLoading  Mode = "loading"
	ModePrompt   Mode = "prompt"
	ModeActive   Mode = "active"
	ModeExpired  Mode = "expired"
	ModeBrowsing Mode = "browsing"
)

// Actions are the user intents the overlay forwards to the page controller.
type Actions struct {
	Confirm     func(minutes int, commitment string) error
	Decline     func()
	Acknowledge func()
}

// Config defines overlay visuals.
type Config struct {
	Opacity uint8
}

// Window is the fyne view of one tab.
type Window struct {
	window  fyne.Window
	tab     bus.Tab
	config  Config
	mini    *minitimer.Timer
	actions Actions
	ctx     context.Context
	cancel  context.CancelFunc

	mu      sync.Mutex
	mode    Mode
	session gate.Session

	page      fyne.CanvasObject
	dimmer    *canvas.Rectangle
	modal     *fyne.Container
	layer     *fyne.Container
	remaining *canvas.Text
	errorText *widget.Label
}

type splashWindowDriver interface {
	CreateSplashWindow() fyne.Window
}

// New creates a hidden tab window for tab. mini is nil on unrestricted sites.
func New(app fyne.App, tab bus.Tab, config Config, mini *minitimer.Timer) *Window {
	window := app.NewWindow(windowTitle(tab.URL))
	if app.Icon() != nil {
		window.SetIcon(app.Icon())
	}

	ctx, cancel := context.WithCancel(context.Background())
	overlay := &Window{
		window: window,
		tab:    tab,
		config: config,
		mini:   mini,
		ctx:    ctx,
		cancel: cancel,
		mode:   ModeLoading,
	}

	overlay.page = pageContent(tab.URL)
	overlay.dimmer = canvas.NewRectangle(color.NRGBA{R: 0, G: 0, B: 0, A: config.Opacity})
	overlay.modal = container.NewCenter(widget.NewLabel("Loading..."))
	overlay.layer = container.NewStack(overlay.dimmer, overlay.modal)
	overlay.remaining = canvas.NewText("--:--", color.NRGBA{R: 232, G: 190, B: 66, A: 255})
	overlay.remaining.TextStyle = fyne.TextStyle{Bold: true, Monospace: true}
	overlay.remaining.TextSize = 28
	overlay.remaining.Alignment = fyne.TextAlignCenter
	overlay.errorText = widget.NewLabel("")
	overlay.errorText.Importance = widget.DangerImportance
	overlay.errorText.Hide()

	objects := []fyne.CanvasObject{overlay.page, overlay.layer}
	if mini != nil {
		mini.CanvasObject().Hide()
		objects = append(objects, mini.CanvasObject())
	} else {
		overlay.layer.Hide()
		overlay.mode = ModeBrowsing
	}
	window.SetContent(container.NewStack(objects...))
	window.Resize(fyne.NewSize(960, 640))
	return overlay
}

// SetActions wires the overlay buttons.
func (overlay *Window) SetActions(actions Actions) {
	overlay.actions = actions
}

// SetOnClosed runs handler when the user closes the window.
func (overlay *Window) SetOnClosed(handler func()) {
	overlay.window.SetCloseIntercept(func() {
		if handler != nil {
			handler()
			return
		}
		overlay.Close()
	})
}

// Tab returns the tab this window shows.
func (overlay *Window) Tab() bus.Tab {
	return overlay.tab
}

// Mode returns what the window currently shows.
func (overlay *Window) Mode() Mode {
	overlay.mu.Lock()
	defer overlay.mu.Unlock()
	return overlay.mode
}

// Show displays and focuses the window.
func (overlay *Window) Show() {
	overlay.window.Show()
	overlay.window.RequestFocus()
}

// Close stops the mini-timer and closes the window.
func (overlay *Window) Close() {
	overlay.cancel()
	if overlay.mini != nil {
		overlay.mini.Stop()
	}
	fyne.Do(overlay.window.Close)
}

// ShowPrompt renders the commitment prompt.
func (overlay *Window) ShowPrompt(prompt gate.Prompt) {
	overlay.setMode(ModePrompt)
	overlay.stopMini()
	fyne.Do(func() {
		overlay.setModal(overlay.promptCard(prompt))
	})
}

// ShowActive renders a running commitment. A commitment just made on this
// page goes straight to browsing.
func (overlay *Window) ShowActive(session gate.Session) {
	overlay.mu.Lock()
	overlay.session = session
	overlay.mu.Unlock()

	if session.Confirmed {
		overlay.browse()
		return
	}
	overlay.setMode(ModeActive)
	overlay.stopMini()
	fyne.Do(func() {
		overlay.remaining.Text = session.Remaining
		overlay.remaining.Refresh()
		overlay.setModal(overlay.activeCard(session))
	})
}

// SetRemaining updates the remaining time on the active card.
func (overlay *Window) SetRemaining(label string) {
	fyne.Do(func() {
		overlay.remaining.Text = label
		overlay.remaining.Refresh()
	})
}

// ShowExpired renders the expiry card.
func (overlay *Window) ShowExpired(label string) {
	overlay.setMode(ModeExpired)
	overlay.stopMini()
	overlay.mu.Lock()
	commitment := overlay.session.Commitment
	overlay.mu.Unlock()
	fyne.Do(func() {
		overlay.setModal(overlay.expiredCard(label, commitment))
	})
}

func (overlay *Window) browse() {
	overlay.setMode(ModeBrowsing)
	overlay.mu.Lock()
	end := overlay.session.EndTime
	overlay.mu.Unlock()

	if overlay.mini != nil {
		overlay.mini.Start(overlay.ctx, end)
	}
	fyne.Do(func() {
		overlay.layer.Hide()
		if overlay.mini != nil {
			overlay.mini.CanvasObject().Show()
		}
	})
}

func (overlay *Window) stopMini() {
	if overlay.mini == nil {
		return
	}
	overlay.mini.Stop()
	fyne.Do(overlay.mini.CanvasObject().Hide)
}

func (overlay *Window) setMode(mode Mode) {
	overlay.mu.Lock()
	overlay.mode = mode
	overlay.mu.Unlock()
}

func (overlay *Window) setModal(card fyne.CanvasObject) {
	overlay.errorText.Hide()
	overlay.modal.Objects = []fyne.CanvasObject{card}
	overlay.modal.Refresh()
	overlay.layer.Show()
	overlay.window.RequestFocus()
}

func (overlay *Window) promptCard(prompt gate.Prompt) fyne.CanvasObject {
	commitment := widget.NewEntry()
	commitment.SetPlaceHolder("Type your commitment here")
	commitment.SetText(prompt.Commitment)

	options := make([]string, 0, len(prompt.Minutes))
	for _, minutes := range prompt.Minutes {
		options = append(options, MinutesLabel(minutes))
	}
	selected := prompt.SelectedMinutes
	duration := widget.NewSelect(options, func(label string) {
		minutes, ok := ParseMinutesLabel(label, prompt.Minutes)
		if !ok {
			return
		}
		selected = minutes
		commitment.SetText(gate.DefaultCommitment(minutes))
	})
	duration.SetSelected(MinutesLabel(prompt.SelectedMinutes))

	start := func() {
		overlay.confirm(selected, commitment.Text)
	}
	commitment.OnSubmitted = func(string) { start() }

	startButton := widget.NewButton("Start Timer", start)
	startButton.Importance = widget.HighImportance
	exitButton := widget.NewButton("Exit Site", overlay.decline)

	return card(
		"Hey! How much time do you want to lose?",
		widget.NewLabel("Select time (minutes):"),
		duration,
		widget.NewLabel("Type your commitment:"),
		commitment,
		overlay.errorText,
		container.NewHBox(exitButton, layout.NewSpacer(), startButton),
	)
}

func (overlay *Window) activeCard(session gate.Session) fyne.CanvasObject {
	commitment := widget.NewLabel(session.Commitment)
	commitment.Wrapping = fyne.TextWrapWord

	continueButton := widget.NewButton("Continue", overlay.browse)
	continueButton.Importance = widget.HighImportance
	exitButton := widget.NewButton("Exit Site", overlay.decline)

	return card(
		"You already have an active timer",
		widget.NewLabel("Your commitment:"),
		commitment,
		overlay.remaining,
		container.NewHBox(exitButton, layout.NewSpacer(), continueButton),
	)
}

func (overlay *Window) expiredCard(label, commitment string) fyne.CanvasObject {
	text := widget.NewLabel(commitment)
	text.Wrapping = fyne.TextWrapWord

	acceptButton := widget.NewButton("Accept & Close", func() {
		if overlay.actions.Acknowledge != nil {
			overlay.actions.Acknowledge()
		}
	})
	acceptButton.Importance = widget.HighImportance

	return card(label, widget.NewLabel("Your commitment:"), text, container.NewHBox(layout.NewSpacer(), acceptButton))
}

func (overlay *Window) confirm(minutes int, commitment string) {
	if overlay.actions.Confirm == nil {
		return
	}
	if err := overlay.actions.Confirm(minutes, commitment); err != nil {
		overlay.errorText.SetText(confirmError(err))
		overlay.errorText.Show()
	}
}

func (overlay *Window) decline() {
	if overlay.actions.Decline != nil {
		overlay.actions.Decline()
	}
}

func confirmError(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, gate.ErrEmptyCommitment):
		return "Please type your commitment."
	case errors.Is(err, gate.ErrInvalidDuration):
		return "Please pick one of the listed durations."
	default:
		return fmt.Sprintf("Could not start the timer: %v", err)
	}
}

func card(title string, body ...fyne.CanvasObject) fyne.CanvasObject {
	heading := widget.NewLabelWithStyle(title, fyne.TextAlignCenter, fyne.TextStyle{Bold: true})
	background := canvas.NewRectangle(color.NRGBA{R: 255, G: 255, B: 255, A: 245})
	background.CornerRadius = 12
	content := container.NewVBox(append([]fyne.CanvasObject{heading}, body...)...)
	sized := container.NewGridWrap(fyne.NewSize(440, content.MinSize().Height+24), container.NewPadded(content))
	return container.NewStack(background, sized)
}

func pageContent(rawURL string) fyne.CanvasObject {
	host := sites.Hostname(rawURL)
	if host == "" {
		host = rawURL
	}
	title := widget.NewLabelWithStyle(host, fyne.TextAlignCenter, fyne.TextStyle{Bold: true})
	address := widget.NewLabel(rawURL)
	address.Alignment = fyne.TextAlignCenter
	return container.NewCenter(container.NewVBox(title, address))
}

func windowTitle(rawURL string) string {
	if host := sites.Hostname(rawURL); host != "" {
		return host
	}
	return rawURL
}
