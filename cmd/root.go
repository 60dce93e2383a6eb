package main

import (
	"fmt"
	"io"
	"os"

	"productivityguard/internal/logging"
	"productivityguard/internal/platform"
	"productivityguard/internal/storage"
	"productivityguard/internal/ui/preferences"

	"github.com/benbjohnson/clock"
	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
)

const (
	appName = "ProductivityGuard"
	appID   = "com.productivityguard.app"
)

type globalFlags struct {
	configPath string
	statePath  string
	logLevel   string
	logFile    string
	logJSON    bool
}

// globalState is shared by every command.
type globalState struct {
	fs       afero.Fs
	stdout   io.Writer
	stderr   io.Writer
	clock    clock.Clock
	platform platform.Service

	flags        globalFlags
	settingsPath string
	settings     preferences.Settings
	logger       *logrus.Logger
	closeLog     func() error
	local        *storage.Local
	store        *storage.TimerStore
}

func newGlobalState() *globalState {
	return &globalState{
		fs:       afero.NewOsFs(),
		stdout:   os.Stdout,
		stderr:   os.Stderr,
		clock:    clock.New(),
		platform: platform.NewService(),
		closeLog: func() error { return nil },
	}
}

func newRootCommand(gs *globalState) *cobra.Command {
	root := &cobra.Command{
		Use:           "guard [url...]",
		Short:         "Make every visit to a distracting site a deliberate, timed choice",
		Args:          cobra.ArbitraryArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return gs.load()
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			_ = gs.closeLog()
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&gs.flags.configPath, "config", "", "settings file (default is settings.yaml in the user config dir)")
	flags.StringVar(&gs.flags.statePath, "state", "", "timer state file")
	flags.StringVar(&gs.flags.logLevel, "log-level", "", "log level: debug, info, warn, error")
	flags.StringVar(&gs.flags.logFile, "log-file", "", "also append logs to this file")
	flags.BoolVar(&gs.flags.logJSON, "log-json", false, "log as JSON")

	run := getCmdRun(gs)
	root.RunE = run.RunE

	root.AddCommand(
		run,
		getCmdStatus(gs),
		getCmdReset(gs),
		getCmdCheck(gs),
		getCmdInstall(gs),
		getCmdUninstall(gs),
	)
	root.SetOut(gs.stdout)
	root.SetErr(gs.stderr)
	return root
}

// execute runs root and reports a failure through the logger, or on stderr
// when the failure came before the logger was built.
func (gs *globalState) execute(root *cobra.Command) error {
	err := root.Execute()
	if err == nil {
		return nil
	}
	if gs.logger != nil {
		gs.logger.WithError(err).Error("Command failed")
		_ = gs.closeLog()
	} else {
		fmt.Fprintf(gs.stderr, "Error: %v\n", err)
	}
	return err
}

// load reads settings, then applies flags, then opens the logger and the state file.
func (gs *globalState) load() error {
	settingsPath := gs.flags.configPath
	if settingsPath == "" {
		path, err := storage.SettingsPath(appName)
		if err != nil {
			return err
		}
		settingsPath = path
	}
	settings, err := storage.LoadSettings(gs.fs, settingsPath)
	if err != nil {
		return err
	}
	if gs.flags.statePath != "" {
		settings.StatePath = gs.flags.statePath
	}
	if gs.flags.logLevel != "" {
		settings.LogLevel = gs.flags.logLevel
	}
	if gs.flags.logFile != "" {
		settings.LogFile = gs.flags.logFile
	}
	gs.settingsPath = settingsPath
	gs.settings = settings

	logger, closeLog, err := logging.New(logging.Options{
		Level:  settings.LogLevel,
		File:   settings.LogFile,
		Stderr: gs.stderr,
		JSON:   gs.flags.logJSON,
		Fs:     gs.fs,
	})
	if err != nil {
		return err
	}
	gs.logger = logger
	gs.closeLog = closeLog

	statePath := settings.StatePath
	if statePath == "" {
		path, err := storage.DefaultStatePath(appName)
		if err != nil {
			return err
		}
		statePath = path
	}
	local, err := storage.OpenLocal(gs.fs, statePath, logger)
	if err != nil {
		return fmt.Errorf("open state: %w", err)
	}
	gs.local = local
	gs.store = storage.NewTimerStore(local, logger)

	logger.WithFields(logrus.Fields{"settings": settingsPath, "state": statePath}).Debug("Loaded configuration")
	return nil
}
