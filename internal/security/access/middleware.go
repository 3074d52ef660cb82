package access

import (
	"log/slog"
	"net"
	"net/http"

	"github.com/modelgate/modelgate/internal/config"
	"github.com/modelgate/modelgate/internal/proxy"
)

// Filter is the gateway's Access Filter: a source-address check followed
// by a shared-secret check, applied in that fixed order on every request.
// A request that fails either gate never reaches the wrapped handler.
type Filter struct {
	allowlist            *Allowlist
	sharedSecret         string
	requireAuthForHealth bool
}

// NewFilter builds an Access Filter from the gateway's security
// configuration.
func NewFilter(cfg *config.SecurityConfig) *Filter {
	return &Filter{
		allowlist:            NewAllowlist(cfg.Allowlist),
		sharedSecret:         cfg.SharedSecret,
		requireAuthForHealth: cfg.RequireAuthForHealth,
	}
}

// Handle wraps an HTTP handler with the Access Filter.
func (f *Filter) Handle(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		peer, err := peerAddr(r)
		if err != nil {
			slog.Warn("access filter: unparsable remote address", "remote_addr", r.RemoteAddr, "path", r.URL.Path)
			writeError(w, http.StatusForbidden, "Forbidden")
			return
		}

		if !f.allowlist.Allows(peer) {
			slog.Warn("access filter: source address rejected", "remote_addr", peer.String(), "path", r.URL.Path)
			writeError(w, http.StatusForbidden, "Forbidden")
			return
		}

		if f.secretRequired(r.URL.Path) {
			submitted := r.Header.Get("X-API-Key")
			if !CheckSecret(f.sharedSecret, submitted) {
				slog.Warn("access filter: shared secret check failed", "remote_addr", peer.String(), "path", r.URL.Path)
				writeError(w, http.StatusUnauthorized, "Unauthorized")
				return
			}
		}

		next.ServeHTTP(w, r)
	})
}

// errorBody is the gateway's plain {"error": "..."} envelope, used for
// gate rejections that precede any OpenAI-shaped request handling.
type errorBody struct {
	Error string `json:"error"`
}

func writeError(w http.ResponseWriter, status int, message string) {
	_ = proxy.WriteJSONResponse(w, status, errorBody{Error: message})
}

// secretRequired reports whether the shared-secret gate applies to the
// given request path.
func (f *Filter) secretRequired(path string) bool {
	if f.sharedSecret == "" {
		return false
	}
	if path == "/health" && !f.requireAuthForHealth {
		return false
	}
	return true
}

// peerAddr extracts the effective peer IP from the request's RemoteAddr.
func peerAddr(r *http.Request) (net.IP, error) {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		// RemoteAddr without a port (e.g. in tests).
		host = r.RemoteAddr
	}
	ip := net.ParseIP(host)
	if ip == nil {
		return nil, &net.AddrError{Err: "invalid IP address", Addr: r.RemoteAddr}
	}
	return ip, nil
}
