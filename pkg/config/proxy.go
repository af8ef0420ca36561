package config

import (
	"fmt"
	"net/url"
	"strings"

	errs "actionpacer/pkg/errors"
)

// ProxyConfig holds the proxy endpoint handed to the browser layer
type ProxyConfig struct {
	// URL is scheme://[user:pass@]host:port
	URL string `yaml:"url" json:"url"`
}

var proxySchemes = map[string]bool{
	"http":   true,
	"https":  true,
	"socks5": true,
}

// ParseProxyURL validates a proxy endpoint
func ParseProxyURL(raw string) (*url.URL, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return nil, errs.InvalidConfiguration("malformed proxy URL", err)
	}
	if !proxySchemes[strings.ToLower(u.Scheme)] {
		return nil, errs.InvalidConfiguration(fmt.Sprintf("unsupported proxy scheme %q", u.Scheme), nil)
	}
	if u.Hostname() == "" {
		return nil, errs.InvalidConfiguration("proxy URL has no host", nil)
	}
	if u.Path != "" && u.Path != "/" {
		return nil, errs.InvalidConfiguration("proxy URL must not carry a path", nil)
	}
	return u, nil
}

// RedactProxyURL masks the password of a proxy URL for display
func RedactProxyURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.User == nil {
		return raw
	}
	return u.Redacted()
}
