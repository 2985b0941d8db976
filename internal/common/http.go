package common

import (
	"net"
	"net/http"
	"strings"
)

// ClientIP returns the remote address with the port stripped. Forwarded headers are not
// read here; chi's RealIP middleware rewrites RemoteAddr upstream.
func ClientIP(r *http.Request) string {
	if r == nil {
		return ""
	}
	addr := strings.TrimSpace(r.RemoteAddr)
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return addr
	}
	return host
}
