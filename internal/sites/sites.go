// Package sites decides which URLs are subject to the commitment gate.
package sites

import (
	"net/url"
	"strings"

	"golang.org/x/net/idna"
)

// SocialMediaSites is the built-in list of restricted hosts.
var SocialMediaSites = []string{
	"facebook.com",
	"twitter.com",
	"instagram.com",
	"tiktok.com",
	"reddit.com",
	"linkedin.com",
	"youtube.com",
	"pinterest.com",
	"snapchat.com",
	"tumblr.com",
	"discord.com",
	"whatsapp.com",
	"telegram.org",
	"messenger.com",
	"twitch.tv",
}

// Classifier matches URLs against a fixed host list.
// A URL matches when its hostname equals a listed host or is a subdomain of one.
type Classifier struct {
	hosts []string
}

var defaultClassifier = NewClassifier(SocialMediaSites)

// NewClassifier builds a classifier, normalising every host.
// Blank entries are dropped.
func NewClassifier(hosts []string) *Classifier {
	normalized := make([]string, 0, len(hosts))
	for _, host := range hosts {
		if value := normalizeHost(host); value != "" {
			normalized = append(normalized, value)
		}
	}
	return &Classifier{hosts: normalized}
}

// IsSocialMediaSite reports whether rawURL belongs to the built-in list.
func IsSocialMediaSite(rawURL string) bool {
	return defaultClassifier.IsRestricted(rawURL)
}

// IsRestricted reports whether rawURL belongs to the classifier's host list.
// URLs that cannot be parsed or carry no host are never restricted.
func (classifier *Classifier) IsRestricted(rawURL string) bool {
	hostname := Hostname(rawURL)
	if hostname == "" {
		return false
	}
	for _, host := range classifier.hosts {
		if hostname == host || strings.HasSuffix(hostname, "."+host) {
			return true
		}
	}
	return false
}

// Hosts returns a copy of the normalised host list.
func (classifier *Classifier) Hosts() []string {
	return append([]string(nil), classifier.hosts...)
}

// Hostname extracts the normalised hostname of rawURL, or "" when there is none.
func Hostname(rawURL string) string {
	parsed, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return ""
	}
	return normalizeHost(parsed.Hostname())
}

func normalizeHost(host string) string {
	host = strings.Trim(strings.ToLower(strings.TrimSpace(host)), ".")
	if host == "" {
		return ""
	}
	ascii, err := idna.Lookup.ToASCII(host)
	if err != nil {
		return host
	}
	return ascii
}
