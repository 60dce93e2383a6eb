//go:build !linux && !darwin

package platform

import "path/filepath"

func fallbackConfigDir(homeDir string) string {
	return filepath.Join(homeDir, "AppData", "Roaming")
}

func autostartEntryPath(string, string) (string, error) {
	return "", ErrAutostartUnsupported
}

func buildAutostartEntry(string, string) string {
	return ""
}
