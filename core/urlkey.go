package core

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"pkt.systems/tabtidy/schema"
)

var privilegedPrefixes = []string{
	"chrome://",
	"chrome-extension://",
	"edge://",
	"about:",
	"devtools://",
	"view-source:",
}

var errNoHost = errors.New("address has no host")

// URLNormalizer derives duplicate-detection keys from tab addresses.
type URLNormalizer struct {
	coalesce map[string]string
}

// NewURLNormalizer builds a normalizer with the given host to canonical origin table.
func NewURLNormalizer(coalesce map[string]string) *URLNormalizer {
	if coalesce == nil {
		coalesce = schema.DefaultCoalesceHosts()
	}
	return &URLNormalizer{coalesce: coalesce}
}

var defaultNormalizer = NewURLNormalizer(nil)

// NormalizeURL returns the key of raw using the built-in coalesced hosts.
func NormalizeURL(raw string) string {
	return defaultNormalizer.Key(raw)
}

// Key returns the normalized key of raw. It never fails; addresses that
// cannot be parsed are returned unchanged.
func (n *URLNormalizer) Key(raw string) string {
	for _, prefix := range privilegedPrefixes {
		if strings.HasPrefix(raw, prefix) {
			return raw
		}
	}
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return raw
	}
	host := strings.ToLower(u.Hostname())
	if origin, ok := n.coalesce[host]; ok {
		return origin
	}
	origin := originOf(u)
	for _, segment := range strings.Split(u.Path, "/") {
		if segment != "" {
			return origin + "/" + segment
		}
	}
	return origin
}

func originOf(u *url.URL) string {
	scheme := strings.ToLower(u.Scheme)
	host := strings.ToLower(u.Hostname())
	if strings.Contains(host, ":") {
		host = "[" + host + "]"
	}
	port := u.Port()
	if port != "" && !(scheme == "http" && port == "80") && !(scheme == "https" && port == "443") {
		host += ":" + port
	}
	return scheme + "://" + host
}

// Hostname returns the lower-cased host of raw, or an error when raw has none.
func Hostname(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", err
	}
	host := strings.ToLower(u.Hostname())
	if host == "" {
		return "", fmt.Errorf("%w: %q", errNoHost, raw)
	}
	return host, nil
}
