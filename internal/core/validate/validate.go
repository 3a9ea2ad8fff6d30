// Package validate provides shared validation functions.
package validate

import (
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

var topicPattern = regexp.MustCompile(`^[-_A-Za-z0-9]{1,64}$`)

// Topic validates an ntfy topic name: 1 to 64 letters, digits, '-' or '_'.
func Topic(topic string) error {
	if !topicPattern.MatchString(topic) {
		return fmt.Errorf("invalid topic %q: must be 1-64 characters of letters, digits, '-' or '_'", topic)
	}
	return nil
}

// Host parses a server base URL. Surrounding whitespace and trailing slashes
// are ignored.
func Host(host string) (*url.URL, error) {
	host = NormalizeHost(host)
	if host == "" {
		return nil, errors.New("host is empty")
	}

	u, err := url.Parse(host)
	if err != nil {
		return nil, fmt.Errorf("host %q: %w", host, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("host %q must use http or https", host)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("host %q has no hostname", host)
	}
	return u, nil
}

// NormalizeHost trims whitespace and trailing slashes from a base URL.
func NormalizeHost(host string) string {
	return strings.TrimRight(strings.TrimSpace(host), "/")
}
