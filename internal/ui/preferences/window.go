package preferences

import (
	"strings"

	"productivityguard/internal/core/model"
	"productivityguard/internal/ui/overlay"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/layout"
	"fyne.io/fyne/v2/widget"
)

// Window handles the preferences UI.
type Window struct {
	window   fyne.Window
	settings Settings
	position model.Position
	onSave   func(Settings, model.Position)

	clearOnStartup *widget.Check
	defaultMinutes *widget.Select
	positionSelect *widget.Select
	sites          *widget.Entry
}

// New creates a preferences window.
func New(app fyne.App, settings Settings, position model.Position, onSave func(Settings, model.Position)) *Window {
	window := app.NewWindow("Productivity Guard Settings")

	clearOnStartup := widget.NewCheck("Clear the timer when the app starts", nil)

	defaultMinutes := widget.NewSelect(nil, nil)

	positionLabels := make([]string, 0, len(model.Positions))
	for _, corner := range model.Positions {
		positionLabels = append(positionLabels, corner.Label())
	}
	positionSelect := widget.NewSelect(positionLabels, nil)

	sitesEntry := widget.NewMultiLineEntry()
	sitesEntry.SetMinRowsVisible(6)

	form := container.NewVBox(
		widget.NewLabelWithStyle("General", fyne.TextAlignLeading, fyne.TextStyle{Bold: true}),
		clearOnStartup,
		container.NewHBox(widget.NewLabel("Default duration"), defaultMinutes),
		container.NewHBox(widget.NewLabel("Timer position"), positionSelect),
		widget.NewLabel("Blocked sites (one per line)"),
		sitesEntry,
	)

	saveButton := widget.NewButton("Save", nil)
	cancelButton := widget.NewButton("Cancel", nil)
	buttons := container.NewHBox(saveButton, layout.NewSpacer(), cancelButton)

	window.SetContent(container.NewBorder(nil, buttons, nil, nil, form))
	window.Resize(fyne.NewSize(420, 460))
	window.SetCloseIntercept(window.Hide)

	prefs := &Window{
		window:         window,
		onSave:         onSave,
		clearOnStartup: clearOnStartup,
		defaultMinutes: defaultMinutes,
		positionSelect: positionSelect,
		sites:          sitesEntry,
	}
	prefs.UpdateSettings(settings, position)

	saveButton.OnTapped = prefs.handleSave
	cancelButton.OnTapped = window.Hide

	return prefs
}

// Show displays the preferences window.
func (prefs *Window) Show() {
	prefs.window.Show()
	prefs.window.RequestFocus()
}

// UpdateSettings replaces window values.
func (prefs *Window) UpdateSettings(settings Settings, position model.Position) {
	prefs.settings = settings
	prefs.position = position

	config := settings.GateConfig()
	options := make([]string, 0, len(config.AllowedMinutes))
	for _, minutes := range config.AllowedMinutes {
		options = append(options, overlay.MinutesLabel(minutes))
	}
	prefs.defaultMinutes.Options = options
	prefs.defaultMinutes.SetSelected(overlay.MinutesLabel(config.DefaultMinutes))

	prefs.clearOnStartup.SetChecked(settings.ClearOnStartup)
	prefs.positionSelect.SetSelected(position.Label())
	prefs.sites.SetText(strings.Join(settings.Sites, "\n"))
}

func (prefs *Window) handleSave() {
	settings, position := prefs.collect()
	prefs.settings = settings
	prefs.position = position
	if prefs.onSave != nil {
		prefs.onSave(settings, position)
	}
	prefs.window.Hide()
}

func (prefs *Window) collect() (Settings, model.Position) {
	settings := prefs.settings
	settings.ClearOnStartup = prefs.clearOnStartup.Checked

	for _, minutes := range settings.GateConfig().AllowedMinutes {
		if overlay.MinutesLabel(minutes) == prefs.defaultMinutes.Selected {
			settings.DefaultMinutes = minutes
		}
	}

	if hosts := ParseSites(prefs.sites.Text); len(hosts) > 0 {
		settings.Sites = hosts
	}

	position := prefs.position
	for _, corner := range model.Positions {
		if corner.Label() == prefs.positionSelect.Selected {
			position = corner
		}
	}
	return settings, position
}

// ParseSites splits user input into hosts, one per line or comma separated.
func ParseSites(text string) []string {
	fields := strings.FieldsFunc(text, func(r rune) bool {
		return r == '\n' || r == ',' || r == ' ' || r == '\t' || r == '\r'
	})
	hosts := make([]string, 0, len(fields))
	seen := make(map[string]bool, len(fields))
	for _, field := range fields {
		host := strings.ToLower(strings.TrimSpace(field))
		if host == "" || seen[host] {
			continue
		}
		seen[host] = true
		hosts = append(hosts, host)
	}
	return hosts
}
