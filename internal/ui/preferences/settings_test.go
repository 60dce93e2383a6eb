package preferences

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestGateConfigDefaults(t *testing.T) {
	config := DefaultSettings().GateConfig()

	assert.Equal(t, []int{1, 5, 10, 15, 30, 45, 60}, config.AllowedMinutes)
	assert.Equal(t, 5, config.DefaultMinutes)
	assert.Equal(t, time.Second, config.TickInterval)
}

func TestGateConfigRepairsInvalidValues(t *testing.T) {
	settings := Settings{AllowedMinutes: []int{10, 20}, DefaultMinutes: 7}

	config := settings.GateConfig()

	assert.Equal(t, 10, config.DefaultMinutes)
	assert.Equal(t, time.Second, config.TickInterval)
	assert.True(t, Settings{}.GateConfig().Allows(60))
}

func TestClassifierFallsBackToBuiltInList(t *testing.T) {
	assert.True(t, Settings{}.Classifier().IsRestricted("https://www.reddit.com"))

	custom := Settings{Sites: []string{"news.example"}}.Classifier()
	assert.True(t, custom.IsRestricted("https://news.example/a"))
	assert.False(t, custom.IsRestricted("https://www.reddit.com"))
}
