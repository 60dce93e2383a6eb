package main

import (
	"fmt"
	"os"

	"productivityguard/internal/core/bus"
	"productivityguard/internal/core/scheduler"
	"productivityguard/internal/storage"
	"productivityguard/internal/ui/tray"

	"github.com/goccy/go-json"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
)

func getCmdStatus(gs *globalState) *cobra.Command {
	var (
		url    string
		asJSON bool
	)
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the active timer and whether a site is blocked",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			summary := tray.Summarize(gs.settings.Classifier(), url, gs.store.Read(), gs.clock.Now())
			if asJSON {
				encoder := json.NewEncoder(cmd.OutOrStdout())
				encoder.SetIndent("", "  ")
				return encoder.Encode(summary)
			}
			for _, line := range summary.Lines() {
				fmt.Fprintln(cmd.OutOrStdout(), line)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&url, "url", "", "also report whether this URL is blocked")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	return cmd
}

func getCmdReset(gs *globalState) *cobra.Command {
	return &cobra.Command{
		Use:   "reset",
		Short: "Clear the active timer; open tabs ask for a new commitment",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := gs.store.Clear(); err != nil {
				return fmt.Errorf("reset timer: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Timer reset")
			return nil
		},
	}
}

func getCmdCheck(gs *globalState) *cobra.Command {
	return &cobra.Command{
		Use:   "check url...",
		Short: "Report which URLs are on the blocked list",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			classifier := gs.settings.Classifier()
			for _, url := range args {
				verdict := "allowed"
				if classifier.IsRestricted(url) {
					verdict = "blocked"
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", verdict, url)
			}
			return nil
		},
	}
}

func getCmdInstall(gs *globalState) *cobra.Command {
	var autostart bool
	cmd := &cobra.Command{
		Use:   "install",
		Short: "Start clean, write default settings and start the guard at login",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			background := scheduler.New(bus.NewHub(), gs.store, nil, scheduler.Config{}, gs.clock, gs.logger)
			background.Install()
			background.Close()

			exists, err := afero.Exists(gs.fs, gs.settingsPath)
			if err != nil {
				return fmt.Errorf("check settings file: %w", err)
			}
			if !exists {
				if err := storage.SaveSettings(gs.fs, gs.settingsPath, gs.settings); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", gs.settingsPath)
			}

			if !autostart {
				return nil
			}
			execPath, err := os.Executable()
			if err != nil {
				return fmt.Errorf("resolve executable: %w", err)
			}
			if err := gs.platform.EnableAutostart(appName, execPath); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Autostart enabled")
			return nil
		},
	}
	cmd.Flags().BoolVar(&autostart, "autostart", true, "start the guard at login")
	return cmd
}

func getCmdUninstall(gs *globalState) *cobra.Command {
	return &cobra.Command{
		Use:   "uninstall",
		Short: "Stop starting the guard at login",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := gs.platform.DisableAutostart(appName); err != nil {
				return err
			}
			enabled, err := gs.platform.AutostartEnabled(appName)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Autostart "+onOff(enabled))
			return nil
		},
	}
}

func onOff(enabled bool) string {
	if enabled {
		return "enabled"
	}
	return "disabled"
}
