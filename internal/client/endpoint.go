package client

import (
	"errors"
	"fmt"
	"net/url"
)

var ErrBadOrigin = errors.New("unsupported page origin")

// Endpoint derives the websocket URL from the origin the UI was served from:
// https pages talk wss, everything else ws, always on path /ws.
func Endpoint(origin string) (string, error) {
	u, err := url.Parse(origin)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrBadOrigin, err)
	}
	if u.Host == "" {
		return "", fmt.Errorf("%w: %q has no host", ErrBadOrigin, origin)
	}

	var scheme string
	switch u.Scheme {
	case "https", "wss":
		scheme = "wss"
	case "http", "ws":
		scheme = "ws"
	default:
		return "", fmt.Errorf("%w: scheme %q", ErrBadOrigin, u.Scheme)
	}
	return (&url.URL{Scheme: scheme, Host: u.Host, Path: "/ws"}).String(), nil
}
