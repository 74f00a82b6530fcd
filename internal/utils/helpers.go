// Package utils provides utility functions used throughout the application.
package utils

import (
	"net"
	"net/http"
	"strconv"
	"strings"

	"github.com/samber/lo"
)

// GetRequestIP gets the client IP address from the request. Forwarding
// headers are ignored here; the router rewrites RemoteAddr from them only
// when the server runs behind a trusted proxy.
func GetRequestIP(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

// SplitAndTrim splits s on sep, trims every part and drops empty ones.
func SplitAndTrim(s, sep string) []string {
	return lo.Compact(lo.Map(strings.Split(s, sep), func(part string, _ int) string {
		return strings.TrimSpace(part)
	}))
}

// ParseIntParam parses an optional integer query parameter. An absent value
// yields defaultValue; a malformed one yields an error.
func ParseIntParam(r *http.Request, name string, defaultValue int) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return defaultValue, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, BadRequestError(name+" must be an integer", err)
	}
	return v, nil
}
