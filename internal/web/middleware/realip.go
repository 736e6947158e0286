package middleware

import (
	"log/slog"
	"net"
	"net/http"
	"strings"
)

// TrustedRealIP rewrites r.RemoteAddr from X-Real-IP or X-Forwarded-For,
// but only when the direct peer is inside one of the trusted CIDRs. Headers
// from untrusted peers are ignored so clients cannot spoof their address in
// logs or in the rate limiter.
//
// Entries may be CIDRs ("10.0.0.0/8") or single addresses ("127.0.0.1").
func TrustedRealIP(trustedCIDRs []string) func(http.Handler) http.Handler {
	var trusted []*net.IPNet
	for _, cidr := range trustedCIDRs {
		cidr = strings.TrimSpace(cidr)
		if cidr == "" {
			continue
		}
		_, network, err := net.ParseCIDR(cidr)
		if err != nil {
			// Accept a bare IP as a single-host network.
			ip := net.ParseIP(cidr)
			if ip == nil {
				slog.Warn("ignoring invalid trusted proxy entry", "entry", cidr)
				continue
			}
			bits := 32
			if ip.To4() == nil {
				bits = 128
			}
			network = &net.IPNet{IP: ip, Mask: net.CIDRMask(bits, bits)}
		}
		trusted = append(trusted, network)
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			peer := extractIP(r.RemoteAddr)
			if peer != nil && isTrusted(peer, trusted) {
				if realIP := extractIP(strings.TrimSpace(r.Header.Get("X-Real-IP"))); realIP != nil {
					r.RemoteAddr = realIP.String()
				} else if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
					// Only the first hop; later entries are proxy-appended.
					first := strings.TrimSpace(strings.SplitN(fwd, ",", 2)[0])
					if ip := net.ParseIP(first); ip != nil {
						r.RemoteAddr = ip.String()
					}
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

// extractIP parses an address that may or may not carry a port.
func extractIP(addr string) net.IP {
	if addr == "" {
		return nil
	}
	if host, _, err := net.SplitHostPort(addr); err == nil {
		addr = host
	}
	return net.ParseIP(addr)
}

func isTrusted(ip net.IP, trusted []*net.IPNet) bool {
	for _, network := range trusted {
		if network.Contains(ip) {
			return true
		}
	}
	return false
}
