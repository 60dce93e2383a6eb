package main

import (
	"context"
	"errors"
	"fmt"

	"productivityguard/internal/core/bus"
	"productivityguard/internal/core/model"
	"productivityguard/internal/core/scheduler"
	"productivityguard/internal/platform"
	"productivityguard/internal/storage"
	"productivityguard/internal/ui/browser"
	"productivityguard/internal/ui/preferences"
	"productivityguard/internal/ui/tray"
	"productivityguard/resources"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/app"
	"fyne.io/fyne/v2/driver/desktop"
)

const overlayOpacity = 217

func getCmdRun(gs *globalState) *cobra.Command {
	return &cobra.Command{
		Use:   "run [url...]",
		Short: "Start the guard, opening any given URLs as tabs",
		Long: `Start the guard in the system tray and open the given URLs as tabs.

If the guard is already running, the URLs are handed to it instead.`,
		Args: cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGuard(cmd.Context(), gs, args)
		},
	}
}

func runGuard(parent context.Context, gs *globalState, urls []string) error {
	if parent == nil {
		parent = context.Background()
	}
	logger := gs.logger

	guard, err := platform.AcquireSingleInstance(appName, logger)
	if errors.Is(err, platform.ErrAlreadyRunning) {
		return forwardToRunning(parent, gs, urls)
	}
	if err != nil {
		return err
	}
	defer func() {
		_ = guard.Release()
	}()

	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	fyneApp := app.NewWithID(appID)
	idleIcon := resources.MustLogo(resources.LogoIdle)
	activeIcon := resources.MustLogo(resources.LogoActive)
	fyneApp.SetIcon(idleIcon)
	desktopApp, ok := fyneApp.(desktop.App)
	if !ok {
		return fmt.Errorf("system tray unsupported on this platform")
	}

	settings := gs.settings
	hub := bus.NewHub()
	background := scheduler.New(hub, gs.store, hub.Background(), scheduler.Config{ClearOnStartup: settings.ClearOnStartup}, gs.clock, logger)
	background.Startup()

	manager := browser.New(ctx, fyneApp, hub, gs.store, browser.Options{
		Classifier: settings.Classifier(),
		Config:     settings.GateConfig(),
		Clock:      gs.clock,
		Logger:     logger,
		Opacity:    overlayOpacity,
	})
	open := func(url string) {
		if _, err := manager.Open(url); err != nil {
			logger.WithError(err).WithField("url", url).Warn("Failed to open tab")
		}
	}

	var trayManager *tray.Manager
	prefsWindow := preferences.New(fyneApp, settings, gs.store.Position(), func(updated preferences.Settings, position model.Position) {
		if err := storage.SaveSettings(gs.fs, gs.settingsPath, updated); err != nil {
			logger.WithError(err).Warn("Failed to save settings")
		}
		if err := gs.store.SetPosition(position); err != nil {
			logger.WithError(err).Warn("Failed to save timer position")
		}
		manager.SetOptions(updated.Classifier(), updated.GateConfig())
		trayManager.SetSites(updated.Classifier().Hosts())
		gs.settings = updated
	})

	trayManager = tray.New(desktopApp, gs.store, settings.Classifier().Hosts(), gs.clock, tray.Callbacks{
		OnReset: func() {
			if err := gs.store.Clear(); err != nil {
				logger.WithError(err).Warn("Failed to reset timer")
			}
		},
		OnOpen:        open,
		OnPreferences: prefsWindow.Show,
		OnQuit:        fyneApp.Quit,
		OnActiveChange: func(active bool) {
			icon := idleIcon
			if active {
				icon = activeIcon
			}
			fyne.Do(func() {
				desktopApp.SetSystemTrayIcon(icon)
			})
		},
	})
	desktopApp.SetSystemTrayIcon(idleIcon)

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		return background.Run(groupCtx)
	})
	group.Go(func() error {
		if err := gs.local.Watch(groupCtx); err != nil {
			logger.WithError(err).Warn("Changes from other processes will not be seen")
		}
		return nil
	})
	group.Go(func() error {
		trayManager.Run(groupCtx)
		return nil
	})
	group.Go(func() error {
		return guard.Serve(groupCtx, func(request platform.Request) {
			handleInstanceRequest(logger, request, open, prefsWindow.Show)
		})
	})

	for _, url := range urls {
		open(url)
	}

	logger.WithField("address", guard.Address()).Info("Guard running")
	fyneApp.Run()

	cancel()
	manager.CloseAll()
	hub.Shutdown()
	return group.Wait()
}

func handleInstanceRequest(logger logrus.FieldLogger, request platform.Request, open func(string), show func()) {
	switch request.Action {
	case platform.ActionOpen:
		fyne.Do(func() { open(request.URL) })
	case platform.ActionShow:
		fyne.Do(show)
	default:
		logger.WithField("action", request.Action).Warn("Ignoring unknown instance request")
	}
}

func forwardToRunning(ctx context.Context, gs *globalState, urls []string) error {
	requests := make([]platform.Request, 0, len(urls))
	for _, url := range urls {
		requests = append(requests, platform.Request{Action: platform.ActionOpen, URL: url})
	}
	if len(requests) == 0 {
		requests = append(requests, platform.Request{Action: platform.ActionShow})
	}
	if err := platform.Forward(ctx, platform.AddressFor(appName), requests...); err != nil {
		return err
	}
	gs.logger.WithField("requests", len(requests)).Info("Guard already running, handed over")
	return nil
}
