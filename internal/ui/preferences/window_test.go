package preferences

import (
	"testing"

	"productivityguard/internal/core/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	fynetest "fyne.io/fyne/v2/test"
)

func TestParseSites(t *testing.T) {
	assert.Equal(t, []string{"reddit.com", "news.example", "x.com"}, ParseSites(" Reddit.com\nnews.example, x.com\n\nreddit.com "))
	assert.Empty(t, ParseSites("  \n "))
}

func TestWindowSavesEditedValues(t *testing.T) {
	app := fynetest.NewTempApp(t)

	var (
		saved         Settings
		savedPosition model.Position
		calls         int
	)
	prefs := New(app, DefaultSettings(), model.PositionBottomRight, func(settings Settings, position model.Position) {
		saved, savedPosition = settings, position
		calls++
	})

	assert.Equal(t, "5 minutes", prefs.defaultMinutes.Selected)
	assert.Equal(t, "Bottom Right", prefs.positionSelect.Selected)

	prefs.clearOnStartup.SetChecked(true)
	prefs.defaultMinutes.SetSelected("15 minutes")
	prefs.positionSelect.SetSelected("Top Left")
	prefs.sites.SetText("reddit.com\nnews.example")
	prefs.handleSave()

	require.Equal(t, 1, calls)
	assert.True(t, saved.ClearOnStartup)
	assert.Equal(t, 15, saved.DefaultMinutes)
	assert.Equal(t, []string{"reddit.com", "news.example"}, saved.Sites)
	assert.Equal(t, model.PositionTopLeft, savedPosition)
}

func TestWindowKeepsSitesWhenInputIsBlank(t *testing.T) {
	app := fynetest.NewTempApp(t)
	prefs := New(app, DefaultSettings(), model.DefaultPosition, nil)

	prefs.sites.SetText("")
	settings, _ := prefs.collect()

	assert.Equal(t, DefaultSettings().Sites, settings.Sites)
}
