package server

import (
	"fmt"
	"net"
	"net/http"
)

// AllowList admits requests whose remote address falls in one of its networks.
type AllowList struct {
	networks []*net.IPNet
}

func NewAllowList(cidrs []string) (*AllowList, error) {
	list := &AllowList{}
	for _, cidr := range cidrs {
		_, network, err := net.ParseCIDR(cidr)
		if err != nil {
			return nil, fmt.Errorf("invalid CIDR %q: %w", cidr, err)
		}
		list.networks = append(list.networks, network)
	}
	return list, nil
}

// Allows reports whether ip (with or without a port) is inside the list.
func (l *AllowList) Allows(ip string) bool {
	if host, _, err := net.SplitHostPort(ip); err == nil {
		ip = host
	}
	parsed := net.ParseIP(ip)
	if parsed == nil {
		return false
	}
	for _, network := range l.networks {
		if network.Contains(parsed) {
			return true
		}
	}
	return false
}

func (l *AllowList) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !l.Allows(r.RemoteAddr) {
			http.Error(w, "Forbidden", http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}
