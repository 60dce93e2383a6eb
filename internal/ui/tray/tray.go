// Package tray is the popup surface: timer status, commitment, reset and
// quick access to sites and preferences.
package tray

import (
	"context"
	"sync"

	"productivityguard/internal/core/countdown"
	"productivityguard/internal/core/model"

	"github.com/benbjohnson/clock"

	"fyne.io/fyne/v2"
)

// MenuApp is the part of desktop.App the tray needs.
type MenuApp interface {
	SetSystemTrayMenu(menu *fyne.Menu)
}

// Store is the Timer Store as seen by the popup.
type Store interface {
	Read() model.TimerRecord
	Subscribe(buffer int) (<-chan model.RecordChange, func())
}

// Callbacks defines tray action handlers.
type Callbacks struct {
	OnReset       func()
	OnOpen        func(url string)
	OnPreferences func()
	OnQuit        func()

	// OnActiveChange reports whether a timer record exists.
	OnActiveChange func(active bool)
}

// Manager handles system tray state.
type Manager struct {
	app       MenuApp
	store     Store
	sites     []string
	callbacks Callbacks
	countdown *countdown.Countdown

	mu         sync.Mutex
	status     string
	commitment string
	active     bool
}

// New creates a tray manager and installs its menu.
func New(app MenuApp, store Store, sites []string, clk clock.Clock, callbacks Callbacks) *Manager {
	manager := &Manager{
		app:       app,
		store:     store,
		sites:     append([]string(nil), sites...),
		callbacks: callbacks,
		status:    "No active timer",
	}
	manager.countdown = countdown.New(clk, countdown.StyleCompact, func(label string, _ bool) {
		manager.mu.Lock()
		manager.status = "Time remaining: " + label
		manager.mu.Unlock()
		manager.refreshMenu()
	})
	manager.refreshMenu()
	return manager
}

// Run keeps the status line in step with the Timer Store until ctx is done.
func (manager *Manager) Run(ctx context.Context) {
	changes, stop := manager.store.Subscribe(4)
	defer stop()
	defer manager.countdown.Stop()

	manager.follow(ctx, manager.store.Read())
	for {
		select {
		case <-ctx.Done():
			return
		case change, ok := <-changes:
			if !ok {
				return
			}
			manager.follow(ctx, change.New)
		}
	}
}

// SetSites replaces the hosts listed under "Open site".
func (manager *Manager) SetSites(sites []string) {
	manager.mu.Lock()
	manager.sites = append([]string(nil), sites...)
	manager.mu.Unlock()
	manager.refreshMenu()
}

// Status returns the current status line.
func (manager *Manager) Status() string {
	manager.mu.Lock()
	defer manager.mu.Unlock()
	return manager.status
}

// Commitment returns the commitment shown under the status line.
func (manager *Manager) Commitment() string {
	manager.mu.Lock()
	defer manager.mu.Unlock()
	return manager.commitment
}

func (manager *Manager) follow(ctx context.Context, record model.TimerRecord) {
	manager.countdown.Stop()

	manager.mu.Lock()
	changed := manager.active == record.Empty()
	manager.active = !record.Empty()
	manager.commitment = record.Commitment
	if record.Empty() {
		manager.status = "No active timer"
	}
	manager.mu.Unlock()

	if changed && manager.callbacks.OnActiveChange != nil {
		manager.callbacks.OnActiveChange(!record.Empty())
	}

	if record.Empty() {
		manager.refreshMenu()
		return
	}
	manager.countdown.Start(ctx, record.EndTime)
}

func (manager *Manager) refreshMenu() {
	if manager.app == nil {
		return
	}
	menu := manager.menu()
	fyne.Do(func() {
		manager.app.SetSystemTrayMenu(menu)
	})
}

func (manager *Manager) menu() *fyne.Menu {
	manager.mu.Lock()
	status, commitment, active := manager.status, manager.commitment, manager.active
	hosts := append([]string(nil), manager.sites...)
	manager.mu.Unlock()

	statusItem := fyne.NewMenuItem(status, nil)
	statusItem.Disabled = true
	items := []*fyne.MenuItem{statusItem}

	if commitment != "" {
		commitmentItem := fyne.NewMenuItem(commitment, nil)
		commitmentItem.Disabled = true
		items = append(items, commitmentItem)
	}

	reset := fyne.NewMenuItem("Reset Timer", func() {
		if manager.callbacks.OnReset != nil {
			manager.callbacks.OnReset()
		}
	})
	reset.Disabled = !active
	items = append(items, reset, fyne.NewMenuItemSeparator())

	if len(hosts) > 0 {
		open := fyne.NewMenuItem("Open site", nil)
		children := make([]*fyne.MenuItem, 0, len(hosts))
		for _, host := range hosts {
			url := "https://" + host
			children = append(children, fyne.NewMenuItem(host, func() {
				if manager.callbacks.OnOpen != nil {
					manager.callbacks.OnOpen(url)
				}
			}))
		}
		open.ChildMenu = fyne.NewMenu("", children...)
		items = append(items, open)
	}

	items = append(items, fyne.NewMenuItem("Preferences", func() {
		if manager.callbacks.OnPreferences != nil {
			manager.callbacks.OnPreferences()
		}
	}))
	items = append(items, fyne.NewMenuItem("Quit", func() {
		if manager.callbacks.OnQuit != nil {
			manager.callbacks.OnQuit()
		}
	}))

	return fyne.NewMenu("Productivity Guard", items...)
}
