package validator

import (
	"errors"
	"net"
	"net/url"
)

// ValidateDestination checks a relay target URL. The relay fetches this URL
// server-side on behalf of a user, so anything that could reach internal
// infrastructure is rejected up front.
func ValidateDestination(rawURL string) error {
	if rawURL == "" {
		return errors.New("destination url is required")
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return errors.New("invalid destination url format")
	}

	if u.Scheme != "http" && u.Scheme != "https" {
		return errors.New("destination url must start with http:// or https://")
	}

	host := u.Hostname()
	if host == "" {
		return errors.New("destination url must have a host")
	}

	if ip := net.ParseIP(host); ip != nil {
		if ip.IsLoopback() || ip.IsPrivate() || ip.IsLinkLocalUnicast() || ip.IsUnspecified() {
			return errors.New("destination url must not target a private address")
		}
	}
	if host == "localhost" {
		return errors.New("destination url must not target a private address")
	}

	return nil
}
