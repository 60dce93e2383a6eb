// Package browser opens tab windows and gives each restricted one a page
// controller connected to the background through the hub.
package browser

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"

	"productivityguard/internal/core/bus"
	"productivityguard/internal/core/gate"
	"productivityguard/internal/core/model"
	"productivityguard/internal/sites"
	"productivityguard/internal/ui/minitimer"
	"productivityguard/internal/ui/overlay"

	"github.com/benbjohnson/clock"
	"github.com/sirupsen/logrus"

	"fyne.io/fyne/v2"
)

// ErrInvalidURL is returned for addresses without a host.
var ErrInvalidURL = errors.New("invalid url")

// Store is what a tab needs from the Timer Store.
type Store interface {
	gate.Store
	minitimer.PositionStore
}

// Options contains runtime collaborators for a Manager.
type Options struct {
	Classifier *sites.Classifier
	Config     model.GateConfig
	Clock      clock.Clock
	Logger     logrus.FieldLogger
	Opacity    uint8
}

// Tab is an open tab window.
type Tab struct {
	bus.Tab
	Restricted bool
	Window     *overlay.Window
	Controller *gate.Controller

	cancel context.CancelFunc
}

// Manager owns the open tab windows.
type Manager struct {
	ctx     context.Context
	app     fyne.App
	hub     *bus.Hub
	store   Store
	options Options
	logger  logrus.FieldLogger

	mu   sync.Mutex
	tabs map[bus.TabID]*Tab
}

// SetOptions changes the classifier and page rules for tabs opened from now on.
func (manager *Manager) SetOptions(classifier *sites.Classifier, config model.GateConfig) {
	manager.mu.Lock()
	defer manager.mu.Unlock()
	if classifier != nil {
		manager.options.Classifier = classifier
	}
	manager.options.Config = config
}

// New creates a Manager. Tabs live until closed or ctx is done.
func New(ctx context.Context, app fyne.App, hub *bus.Hub, store Store, options Options) *Manager {
	if options.Classifier == nil {
		options.Classifier = sites.NewClassifier(sites.SocialMediaSites)
	}
	if options.Clock == nil {
		options.Clock = clock.New()
	}
	if options.Logger == nil {
		options.Logger = logrus.StandardLogger()
	}
	return &Manager{
		ctx:     ctx,
		app:     app,
		hub:     hub,
		store:   store,
		options: options,
		logger:  options.Logger.WithField("component", "browser"),
		tabs:    make(map[bus.TabID]*Tab),
	}
}

// NormalizeURL adds a missing scheme and rejects addresses without a host.
func NormalizeURL(rawURL string) (string, error) {
	trimmed := strings.TrimSpace(rawURL)
	if trimmed == "" {
		return "", fmt.Errorf("%w: empty", ErrInvalidURL)
	}
	if !strings.Contains(trimmed, "://") {
		trimmed = "https://" + trimmed
	}
	parsed, err := url.Parse(trimmed)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	if parsed.Hostname() == "" {
		return "", fmt.Errorf("%w: %q has no host", ErrInvalidURL, rawURL)
	}
	return parsed.String(), nil
}

// Open shows rawURL in a new tab window.
func (manager *Manager) Open(rawURL string) (*Tab, error) {
	address, err := NormalizeURL(rawURL)
	if err != nil {
		return nil, err
	}

	manager.mu.Lock()
	options := manager.options
	manager.mu.Unlock()

	tab := &Tab{
		Tab:        bus.Tab{ID: bus.NewTabID(), URL: address},
		Restricted: options.Classifier.IsRestricted(address),
	}
	ctx, cancel := context.WithCancel(manager.ctx)
	tab.cancel = cancel

	var mini *minitimer.Timer
	if tab.Restricted {
		mini = minitimer.New(manager.store, options.Clock, manager.logger)
	}
	tab.Window = overlay.New(manager.app, tab.Tab, overlay.Config{Opacity: options.Opacity}, mini)
	tab.Window.SetOnClosed(func() {
		if err := manager.Close(tab.ID); err != nil {
			manager.logger.WithError(err).WithField("tab", tab.ID).Debug("Closing tab window")
		}
	})

	port := manager.hub.Connect(tab.Tab, func() { manager.forget(tab) })

	manager.mu.Lock()
	manager.tabs[tab.ID] = tab
	manager.mu.Unlock()

	logger := manager.logger.WithFields(logrus.Fields{"tab": tab.ID, "url": address})
	if tab.Restricted {
		tab.Controller = gate.New(manager.store, port, tab.Window, gate.Options{
			Config: options.Config,
			Clock:  options.Clock,
			Logger: logger,
		})
		tab.Window.SetActions(overlay.Actions{
			Confirm: tab.Controller.Confirm,
			Decline: func() {
				if err := tab.Controller.Decline(); err != nil {
					logger.WithError(err).Debug("Decline ignored")
				}
			},
			Acknowledge: func() {
				if err := tab.Controller.Acknowledge(); err != nil {
					logger.WithError(err).Debug("Acknowledge ignored")
				}
			},
		})
		go func() {
			if err := tab.Controller.Run(ctx); err != nil {
				logger.WithError(err).Warn("Page controller stopped")
			}
		}()
	}

	logger.WithField("restricted", tab.Restricted).Info("Opened tab")
	tab.Window.Show()
	return tab, nil
}

// Close closes a tab window through the hub, as if the tab was closed.
func (manager *Manager) Close(id bus.TabID) error {
	return manager.hub.Remove(manager.ctx, id)
}

// CloseAll closes every open tab.
func (manager *Manager) CloseAll() {
	for _, tab := range manager.Tabs() {
		if err := manager.hub.Remove(context.Background(), tab.ID); err != nil {
			manager.forget(tab)
		}
	}
}

// Tab returns an open tab by id.
func (manager *Manager) Tab(id bus.TabID) (*Tab, bool) {
	manager.mu.Lock()
	defer manager.mu.Unlock()
	tab, ok := manager.tabs[id]
	return tab, ok
}

// Tabs returns the open tabs.
func (manager *Manager) Tabs() []*Tab {
	manager.mu.Lock()
	defer manager.mu.Unlock()
	tabs := make([]*Tab, 0, len(manager.tabs))
	for _, tab := range manager.tabs {
		tabs = append(tabs, tab)
	}
	return tabs
}

func (manager *Manager) forget(tab *Tab) {
	manager.mu.Lock()
	_, open := manager.tabs[tab.ID]
	delete(manager.tabs, tab.ID)
	manager.mu.Unlock()
	if !open {
		return
	}

	tab.cancel()
	tab.Window.Close()
	manager.logger.WithField("tab", tab.ID).Info("Closed tab")
}
