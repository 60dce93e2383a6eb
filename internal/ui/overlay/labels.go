package overlay

import "fmt"

// MinutesLabel renders a duration option, "1 minute" or "N minutes".
func MinutesLabel(minutes int) string {
	if minutes == 1 {
		return "1 minute"
	}
	return fmt.Sprintf("%d minutes", minutes)
}

// ParseMinutesLabel maps an option label back to one of allowed.
func ParseMinutesLabel(label string, allowed []int) (int, bool) {
	for _, minutes := range allowed {
		if MinutesLabel(minutes) == label {
			return minutes, true
		}
	}
	return 0, false
}
