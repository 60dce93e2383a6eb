package preferences

import (
	"time"

	"productivityguard/internal/core/model"
	"productivityguard/internal/sites"
)

// Settings defines editable user preferences.
type Settings struct {
	Sites          []string
	AllowedMinutes []int
	DefaultMinutes int
	ClearOnStartup bool

	StatePath    string
	LogLevel     string
	LogFile      string
	TickInterval time.Duration
}

// DefaultSettings returns default settings for the guard.
func DefaultSettings() Settings {
	return Settings{
		Sites:          append([]string(nil), sites.SocialMediaSites...),
		AllowedMinutes: append([]int(nil), model.DefaultAllowedMinutes...),
		DefaultMinutes: 5,
		ClearOnStartup: false,
		LogLevel:       "info",
		TickInterval:   time.Second,
	}
}

// GateConfig converts settings to the rules every page applies.
func (settings Settings) GateConfig() model.GateConfig {
	config := model.GateConfig{
		AllowedMinutes: append([]int(nil), settings.AllowedMinutes...),
		DefaultMinutes: settings.DefaultMinutes,
		TickInterval:   settings.TickInterval,
	}
	if len(config.AllowedMinutes) == 0 {
		config.AllowedMinutes = append([]int(nil), model.DefaultAllowedMinutes...)
	}
	if !config.Allows(config.DefaultMinutes) {
		config.DefaultMinutes = config.AllowedMinutes[0]
	}
	if config.TickInterval <= 0 {
		config.TickInterval = time.Second
	}
	return config
}

// Classifier builds the site classifier for the configured hosts.
func (settings Settings) Classifier() *sites.Classifier {
	if len(settings.Sites) == 0 {
		return sites.NewClassifier(sites.SocialMediaSites)
	}
	return sites.NewClassifier(settings.Sites)
}
