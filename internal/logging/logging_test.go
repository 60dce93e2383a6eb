package logging

import (
	"bytes"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDefaultsToInfo(t *testing.T) {
	var out bytes.Buffer
	logger, closeLog, err := New(Options{Stderr: &out})
	require.NoError(t, err)
	defer closeLog()

	assert.Equal(t, logrus.InfoLevel, logger.GetLevel())
	logger.Debug("hidden")
	logger.Info("shown")
	assert.NotContains(t, out.String(), "hidden")
	assert.Contains(t, out.String(), "shown")
}

func TestNewRejectsUnknownLevel(t *testing.T) {
	_, _, err := New(Options{Level: "loud"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "loud")
}

func TestNewWritesToFile(t *testing.T) {
	fs := afero.NewMemMapFs()
	var out bytes.Buffer
	logger, closeLog, err := New(Options{Level: "debug", File: "/logs/guard.log", Stderr: &out, JSON: true, Fs: fs})
	require.NoError(t, err)

	logger.WithField("tab", "1").Debug("closing tab")
	require.NoError(t, closeLog())

	data, err := afero.ReadFile(fs, "/logs/guard.log")
	require.NoError(t, err)
	assert.Contains(t, string(data), `"msg":"closing tab"`)
	assert.Contains(t, string(data), `"tab":"1"`)
	assert.Equal(t, string(data), out.String())
}
