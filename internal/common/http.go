package common

import (
	"net/http"
	"net/netip"
	"strings"
)

// ClientIP returns the address a request is attributed to in rate limits and
// audit entries: the left-most valid X-Forwarded-For entry, then X-Real-IP,
// then the peer address. Entries that are not IP addresses are skipped so an
// arbitrary header value never becomes a limiter key.
func ClientIP(r *http.Request) string {
	if r == nil {
		return ""
	}
	for _, part := range strings.Split(r.Header.Get("X-Forwarded-For"), ",") {
		if ip, ok := parseIP(part); ok {
			return ip
		}
	}
	if ip, ok := parseIP(r.Header.Get("X-Real-IP")); ok {
		return ip
	}
	addr := strings.TrimSpace(r.RemoteAddr)
	if ap, err := netip.ParseAddrPort(addr); err == nil {
		return ap.Addr().Unmap().String()
	}
	if ip, ok := parseIP(addr); ok {
		return ip
	}
	return addr
}

func parseIP(raw string) (string, bool) {
	addr, err := netip.ParseAddr(strings.TrimSpace(raw))
	if err != nil {
		return "", false
	}
	return addr.Unmap().String(), true
}
