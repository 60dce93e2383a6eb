//go:build linux

package platform

import (
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAutostartRoundTrip(t *testing.T) {
	fs := afero.NewMemMapFs()
	service := NewServiceWithFs(fs, func() (string, error) { return "/home/ada", nil })

	enabled, err := service.AutostartEnabled("Productivity Guard")
	require.NoError(t, err)
	assert.False(t, enabled)

	require.NoError(t, service.EnableAutostart("Productivity Guard", "/opt/guard bin/guard"))

	data, err := afero.ReadFile(fs, "/home/ada/.config/autostart/productivity-guard.desktop")
	require.NoError(t, err)
	assert.Contains(t, string(data), "Name=Productivity Guard\n")
	assert.Contains(t, string(data), `Exec="/opt/guard bin/guard" run`)

	enabled, err = service.AutostartEnabled("Productivity Guard")
	require.NoError(t, err)
	assert.True(t, enabled)

	require.NoError(t, service.DisableAutostart("Productivity Guard"))
	require.NoError(t, service.DisableAutostart("Productivity Guard"))
	enabled, err = service.AutostartEnabled("Productivity Guard")
	require.NoError(t, err)
	assert.False(t, enabled)
}

func TestEnableAutostartValidates(t *testing.T) {
	service := NewServiceWithFs(afero.NewMemMapFs(), func() (string, error) { return "/home/ada", nil })

	assert.Error(t, service.EnableAutostart(" ", "/bin/guard"))
	assert.Error(t, service.EnableAutostart("Guard", ""))
	assert.Error(t, service.DisableAutostart(""))
}
