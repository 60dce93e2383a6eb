package tray

import (
	"testing"
	"time"

	"productivityguard/internal/core/model"
	"productivityguard/internal/sites"

	"github.com/stretchr/testify/assert"
)

func TestSummarize(t *testing.T) {
	classifier := sites.NewClassifier(sites.SocialMediaSites)
	now := time.UnixMilli(1_700_000_000_000)
	record := model.TimerRecord{EndTime: now.Add(4*time.Minute + 59*time.Second + 500*time.Millisecond), Commitment: "test"}

	cases := []struct {
		name   string
		url    string
		record model.TimerRecord
		want   []string
	}{
		{
			name:   "blocked with timer",
			url:    "https://www.reddit.com/r/golang",
			record: record,
			want:   []string{"Current site: www.reddit.com", "Blocked Site", "Active timer: 4m 59s", "test"},
		},
		{
			name: "blocked without timer",
			url:  "https://twitter.com",
			want: []string{"Current site: twitter.com", "Blocked Site", "This site is on your blocked list.", "Open the site to set your usage timer."},
		},
		{
			name: "allowed",
			url:  "https://go.dev",
			want: []string{"Current site: go.dev", "Allowed Site", "You're browsing a productive site!", "Productivity Guard helps limit your time on distracting sites."},
		},
		{
			name:   "expired timer",
			record: model.TimerRecord{EndTime: now.Add(-time.Second), Commitment: "test"},
			want:   []string{"Active timer: Time's up!", "test"},
		},
		{
			name: "nothing",
			want: []string{"No active timer"},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Summarize(classifier, tc.url, tc.record, now).Lines())
		})
	}
}
