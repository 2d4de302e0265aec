// Package urlx normalizes user-submitted URLs into the canonical form
// stored on the server and compared for duplicates.
package urlx

import (
	"fmt"
	"net/url"
	"strings"
)

// Normalize parses raw and returns its canonical form:
// scheme and host lowercased, a bare "/" path dropped entirely when there
// is no query or fragment, and a single trailing slash stripped from any
// other path. Returns an error for anything that does not parse as an
// absolute URL.
func Normalize(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", fmt.Errorf("empty url")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("parse url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("not an absolute url: %q", raw)
	}

	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)

	switch {
	case u.Path == "/":
		// A bare "/" is dropped only when nothing follows it; with a
		// query or fragment present it stays as written.
		if u.RawQuery == "" && u.Fragment == "" {
			u.Path = ""
		}
	case strings.HasSuffix(u.Path, "/"):
		u.Path = strings.TrimSuffix(u.Path, "/")
	}

	return u.String(), nil
}
