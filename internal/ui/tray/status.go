package tray

import (
	"time"

	"productivityguard/internal/core/countdown"
	"productivityguard/internal/core/model"
	"productivityguard/internal/sites"
)

// Summary is what the popup reports about a site and the shared timer.
type Summary struct {
	URL        string `json:"url,omitempty"`
	Host       string `json:"host,omitempty"`
	Blocked    bool   `json:"blocked"`
	HasTimer   bool   `json:"hasTimer"`
	Remaining  string `json:"remaining,omitempty"`
	Commitment string `json:"commitment,omitempty"`
}

// Summarize describes rawURL and record as of now. rawURL may be empty.
func Summarize(classifier *sites.Classifier, rawURL string, record model.TimerRecord, now time.Time) Summary {
	summary := Summary{URL: rawURL}
	if rawURL != "" {
		summary.Host = sites.Hostname(rawURL)
		if summary.Host == "" {
			summary.Host = rawURL
		}
		summary.Blocked = classifier.IsRestricted(rawURL)
	}
	if !record.Empty() {
		summary.HasTimer = true
		summary.Remaining, _ = countdown.Format(countdown.StyleCompact, record.EndTime, now)
		summary.Commitment = record.Commitment
	}
	return summary
}

// Lines renders the summary as popup text.
func (summary Summary) Lines() []string {
	var lines []string
	if summary.URL != "" {
		status := "Allowed Site"
		if summary.Blocked {
			status = "Blocked Site"
		}
		lines = append(lines, "Current site: "+summary.Host, status)
	}

	switch {
	case summary.HasTimer:
		lines = append(lines, "Active timer: "+summary.Remaining)
		if summary.Commitment != "" {
			lines = append(lines, summary.Commitment)
		}
	case summary.Blocked:
		lines = append(lines,
			"This site is on your blocked list.",
			"Open the site to set your usage timer.")
	case summary.URL != "":
		lines = append(lines,
			"You're browsing a productive site!",
			"Productivity Guard helps limit your time on distracting sites.")
	default:
		lines = append(lines, "No active timer")
	}
	return lines
}
