package sites

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsSocialMediaSite(t *testing.T) {
	tests := []struct {
		url  string
		want bool
	}{
		{"https://www.facebook.com/x", true},
		{"https://example.com", false},
		{"https://sub.reddit.com", true},
		{"https://reddit.com", true},
		{"https://notreddit.com", false},
		{"https://reddit.com.evil.example", false},
		{"https://WWW.YouTube.com/watch?v=1", true},
		{"http://twitch.tv:8080/stream", true},
		{"not a url", false},
		{"", false},
		{"://broken", false},
	}

	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			assert.Equal(t, tt.want, IsSocialMediaSite(tt.url))
		})
	}
}

func TestClassifierCustomHosts(t *testing.T) {
	classifier := NewClassifier([]string{" News.Example.org. ", "", "bücher.example"})

	assert.Equal(t, []string{"news.example.org", "xn--bcher-kva.example"}, classifier.Hosts())
	assert.True(t, classifier.IsRestricted("https://news.example.org/today"))
	assert.True(t, classifier.IsRestricted("https://m.news.example.org"))
	assert.True(t, classifier.IsRestricted("https://bücher.example/"))
	assert.False(t, classifier.IsRestricted("https://example.org"))
	assert.False(t, classifier.IsRestricted("https://www.facebook.com"))
}

func TestHostname(t *testing.T) {
	assert.Equal(t, "www.reddit.com", Hostname("https://www.Reddit.com/r/golang"))
	assert.Equal(t, "", Hostname("mailto:someone"))
}
