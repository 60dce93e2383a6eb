package platform

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
)

// ErrAutostartUnsupported is returned where no login item format is known.
var ErrAutostartUnsupported = errors.New("autostart is not supported on this platform")

// Service defines OS-specific helpers needed by the application.
type Service interface {
	GetConfigDir() (string, error)
	EnableAutostart(appName, execPath string) error
	DisableAutostart(appName string) error
	AutostartEnabled(appName string) (bool, error)
}

type platformService struct {
	fs      afero.Fs
	homeDir func() (string, error)
}

// NewService returns the implementation for the running OS.
func NewService() Service {
	return NewServiceWithFs(afero.NewOsFs(), os.UserHomeDir)
}

// NewServiceWithFs returns a Service writing login items to fs under homeDir.
func NewServiceWithFs(fs afero.Fs, homeDir func() (string, error)) Service {
	return &platformService{fs: fs, homeDir: homeDir}
}

// GetConfigDir returns the OS-standard configuration directory.
func (service *platformService) GetConfigDir() (string, error) {
	configDir, err := os.UserConfigDir()
	if err == nil && configDir != "" {
		return configDir, nil
	}

	homeDir, homeErr := service.homeDir()
	if homeErr != nil {
		if err != nil {
			return "", fmt.Errorf("get config dir: %w", err)
		}
		return "", fmt.Errorf("get config dir: %w", homeErr)
	}

	return fallbackConfigDir(homeDir), nil
}

func (service *platformService) EnableAutostart(appName, execPath string) error {
	if strings.TrimSpace(appName) == "" {
		return fmt.Errorf("enable autostart: app name is empty")
	}
	if execPath == "" {
		return fmt.Errorf("enable autostart: exec path is empty")
	}

	entryPath, err := service.entryPath(appName)
	if err != nil {
		return fmt.Errorf("enable autostart: %w", err)
	}
	if err := service.fs.MkdirAll(filepath.Dir(entryPath), 0o755); err != nil {
		return fmt.Errorf("enable autostart: create dir: %w", err)
	}
	if err := afero.WriteFile(service.fs, entryPath, []byte(buildAutostartEntry(appName, execPath)), 0o644); err != nil {
		return fmt.Errorf("enable autostart: write entry: %w", err)
	}
	return nil
}

func (service *platformService) DisableAutostart(appName string) error {
	if strings.TrimSpace(appName) == "" {
		return fmt.Errorf("disable autostart: app name is empty")
	}

	entryPath, err := service.entryPath(appName)
	if err != nil {
		return fmt.Errorf("disable autostart: %w", err)
	}
	if err := service.fs.Remove(entryPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("disable autostart: remove entry: %w", err)
	}
	return nil
}

func (service *platformService) AutostartEnabled(appName string) (bool, error) {
	entryPath, err := service.entryPath(appName)
	if err != nil {
		return false, err
	}
	return afero.Exists(service.fs, entryPath)
}

func (service *platformService) entryPath(appName string) (string, error) {
	homeDir, err := service.homeDir()
	if err != nil {
		return "", fmt.Errorf("get home dir: %w", err)
	}
	return autostartEntryPath(homeDir, appName)
}

func slug(appName string) string {
	name := strings.TrimSpace(appName)
	if name == "" {
		name = "productivityguard"
	}
	name = strings.ToLower(name)
	return strings.ReplaceAll(name, " ", "-")
}
