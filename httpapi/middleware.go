package httpapi

import (
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
)

// Allowlist matches client addresses exactly. Loopback callers pass when any
// loopback address is listed.
type Allowlist struct {
	ips      []net.IP
	loopback bool
}

func NewAllowlist(entries []string) *Allowlist {
	list := &Allowlist{}
	for _, entry := range entries {
		ip := net.ParseIP(strings.TrimSpace(entry))
		if ip == nil {
			continue
		}
		list.ips = append(list.ips, ip)
		if ip.IsLoopback() {
			list.loopback = true
		}
	}
	return list
}

func (l *Allowlist) Allows(remote string) bool {
	if l == nil || len(l.ips) == 0 {
		return true
	}
	ip := parseClientIP(remote)
	if ip == nil {
		return false
	}
	if ip.IsLoopback() {
		return l.loopback
	}
	for _, allowed := range l.ips {
		if allowed.Equal(ip) {
			return true
		}
	}
	return false
}

func parseClientIP(remote string) net.IP {
	remote = strings.TrimSpace(remote)
	if host, _, err := net.SplitHostPort(remote); err == nil {
		remote = host
	}
	return net.ParseIP(strings.Trim(remote, "[]"))
}

func (a *API) allowlistMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !a.allowlist.Allows(r.RemoteAddr) {
			client := r.RemoteAddr
			if ip := parseClientIP(r.RemoteAddr); ip != nil {
				client = ip.String()
			}
			a.logger.Warn("caller rejected by allowlist", "client_ip", client, "path", r.URL.Path)
			a.writeEnvelope(w, http.StatusForbidden, Envelope{
				Code:    CodeForbidden,
				Message: "Access denied for IP: " + client,
			})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (a *API) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		startedAt := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		fields := []any{
			"method", r.Method,
			"path", r.URL.Path,
			"http_status", status,
			"duration_ms", time.Since(startedAt).Milliseconds(),
			"client_ip", r.RemoteAddr,
			"request_id", middleware.GetReqID(r.Context()),
		}
		if status >= http.StatusInternalServerError {
			a.logger.Error("http request", fields...)
			return
		}
		a.logger.Info("http request", fields...)
	})
}
