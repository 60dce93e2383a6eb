package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"productivityguard/internal/ui/preferences"

	"github.com/kelseyhightower/envconfig"
	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"
)

const settingsFileName = "settings.yaml"

// EnvPrefix prefixes every environment override, e.g. GUARD_CLEAR_ON_STARTUP.
const EnvPrefix = "guard"

type yamlSettings struct {
	Sites               []string `yaml:"sites,omitempty"`
	AllowedMinutes      []int    `yaml:"allowed_minutes,omitempty"`
	DefaultMinutes      int      `yaml:"default_minutes,omitempty"`
	ClearOnStartup      *bool    `yaml:"clear_on_startup,omitempty"`
	StatePath           string   `yaml:"state_path,omitempty"`
	LogLevel            string   `yaml:"log_level,omitempty"`
	LogFile             string   `yaml:"log_file,omitempty"`
	TickIntervalSeconds int      `yaml:"tick_interval_seconds,omitempty"`
}

type envSettings struct {
	Sites          []string `split_words:"true"`
	DefaultMinutes int      `split_words:"true"`
	ClearOnStartup *bool    `split_words:"true"`
	StatePath      string   `split_words:"true"`
	LogLevel       string   `split_words:"true"`
	LogFile        string   `split_words:"true"`
}

// SettingsPath returns the settings file location inside the user config dir.
func SettingsPath(appName string) (string, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("resolve user config dir: %w", err)
	}
	return filepath.Join(configDir, appName, settingsFileName), nil
}

// LoadSettings reads user preferences from YAML and applies environment overrides.
// If the config file does not exist, default settings are returned.
func LoadSettings(fs afero.Fs, configPath string) (preferences.Settings, error) {
	settings, err := LoadSettingsFile(fs, configPath)
	if err != nil {
		return settings, err
	}
	if err := ApplyEnv(&settings); err != nil {
		return settings, err
	}
	return settings, nil
}

// LoadSettingsFile reads user preferences from YAML only.
func LoadSettingsFile(fs afero.Fs, configPath string) (preferences.Settings, error) {
	settings := preferences.DefaultSettings()

	rawData, err := afero.ReadFile(fs, configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return settings, nil
		}
		return settings, fmt.Errorf("read settings file: %w", err)
	}

	var fileData yamlSettings
	if err := yaml.Unmarshal(rawData, &fileData); err != nil {
		return settings, fmt.Errorf("parse settings yaml: %w", err)
	}

	applyYamlSettings(&settings, fileData)
	return settings, nil
}

// SaveSettings writes user preferences to YAML.
func SaveSettings(fs afero.Fs, configPath string, settings preferences.Settings) error {
	if err := fs.MkdirAll(filepath.Dir(configPath), 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}

	clearOnStartup := settings.ClearOnStartup
	fileData := yamlSettings{
		Sites:               settings.Sites,
		AllowedMinutes:      settings.AllowedMinutes,
		DefaultMinutes:      settings.DefaultMinutes,
		ClearOnStartup:      &clearOnStartup,
		StatePath:           settings.StatePath,
		LogLevel:            settings.LogLevel,
		LogFile:             settings.LogFile,
		TickIntervalSeconds: int(settings.TickInterval / time.Second),
	}

	serialized, err := yaml.Marshal(fileData)
	if err != nil {
		return fmt.Errorf("marshal settings yaml: %w", err)
	}

	if err := afero.WriteFile(fs, configPath, serialized, 0o644); err != nil {
		return fmt.Errorf("write settings file: %w", err)
	}

	return nil
}

// ApplyEnv overrides settings from GUARD_* environment variables.
func ApplyEnv(settings *preferences.Settings) error {
	var env envSettings
	if err := envconfig.Process(EnvPrefix, &env); err != nil {
		return fmt.Errorf("read environment overrides: %w", err)
	}

	if len(env.Sites) > 0 {
		settings.Sites = env.Sites
	}
	if env.DefaultMinutes > 0 {
		settings.DefaultMinutes = env.DefaultMinutes
	}
	if env.ClearOnStartup != nil {
		settings.ClearOnStartup = *env.ClearOnStartup
	}
	if env.StatePath != "" {
		settings.StatePath = env.StatePath
	}
	if env.LogLevel != "" {
		settings.LogLevel = env.LogLevel
	}
	if env.LogFile != "" {
		settings.LogFile = env.LogFile
	}
	return nil
}

func applyYamlSettings(settings *preferences.Settings, fileData yamlSettings) {
	if len(fileData.Sites) > 0 {
		settings.Sites = fileData.Sites
	}

	var allowed []int
	for _, minutes := range fileData.AllowedMinutes {
		if minutes > 0 {
			allowed = append(allowed, minutes)
		}
	}
	if len(allowed) > 0 {
		settings.AllowedMinutes = allowed
	}

	if fileData.DefaultMinutes > 0 {
		settings.DefaultMinutes = fileData.DefaultMinutes
	}
	if fileData.ClearOnStartup != nil {
		settings.ClearOnStartup = *fileData.ClearOnStartup
	}
	if fileData.StatePath != "" {
		settings.StatePath = fileData.StatePath
	}
	if fileData.LogLevel != "" {
		settings.LogLevel = fileData.LogLevel
	}
	if fileData.LogFile != "" {
		settings.LogFile = fileData.LogFile
	}
	if fileData.TickIntervalSeconds > 0 {
		settings.TickInterval = time.Duration(fileData.TickIntervalSeconds) * time.Second
	}
}
