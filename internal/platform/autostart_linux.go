//go:build linux

package platform

import (
	"fmt"
	"path/filepath"
	"strings"
)

func fallbackConfigDir(homeDir string) string {
	return filepath.Join(homeDir, ".config")
}

// XDG autostart entry under the home config dir.
func autostartEntryPath(homeDir, appName string) (string, error) {
	return filepath.Join(fallbackConfigDir(homeDir), "autostart", slug(appName)+".desktop"), nil
}

func buildAutostartEntry(appName, execPath string) string {
	execLine := execPath
	if strings.Contains(execLine, " ") && !strings.HasPrefix(execLine, `"`) {
		execLine = `"` + execLine + `"`
	}

	return fmt.Sprintf(
		`[Desktop Entry]
Type=Application
Name=%s
Exec=%s run
X-GNOME-Autostart-enabled=true
Terminal=false
`,
		appName,
		execLine,
	)
}
