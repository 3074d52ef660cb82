package access

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/modelgate/modelgate/internal/config"
)

func newTestFilter(secret string, allowlist []string, requireAuthForHealth bool) *Filter {
	return NewFilter(&config.SecurityConfig{
		SharedSecret:         secret,
		Allowlist:            allowlist,
		RequireAuthForHealth: requireAuthForHealth,
	})
}

func TestFilter_Handle_AllowlistRejects(t *testing.T) {
	filter := newTestFilter("", []string{"10.0.0.0/24"}, false)

	handler := filter.Handle(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest("GET", "/v1/chat/completions", nil)
	req.RemoteAddr = "192.168.1.5:54321"
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusForbidden {
		t.Errorf("expected 403, got %d", rr.Code)
	}
	if got := rr.Body.String(); got != `{"error":"Forbidden"}`+"\n" {
		t.Errorf("expected JSON Forbidden body, got %q", got)
	}
	if ct := rr.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("expected application/json content type, got %q", ct)
	}
}

func TestFilter_Handle_AllowlistAccepts(t *testing.T) {
	filter := newTestFilter("", []string{"10.0.0.0/24"}, false)

	handler := filter.Handle(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest("GET", "/v1/chat/completions", nil)
	req.RemoteAddr = "10.0.0.5:54321"
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rr.Code)
	}
}

func TestFilter_Handle_SharedSecretRequired(t *testing.T) {
	filter := newTestFilter("s3cr3t", []string{"*"}, false)

	handler := filter.Handle(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	tests := []struct {
		name       string
		headerVal  string
		wantStatus int
	}{
		{"correct secret", "s3cr3t", http.StatusOK},
		{"wrong secret", "wrong", http.StatusUnauthorized},
		{"missing secret", "", http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/v1/chat/completions", nil)
			req.RemoteAddr = "10.0.0.5:54321"
			if tt.headerVal != "" {
				req.Header.Set("X-API-Key", tt.headerVal)
			}
			rr := httptest.NewRecorder()
			handler.ServeHTTP(rr, req)

			if rr.Code != tt.wantStatus {
				t.Errorf("expected %d, got %d", tt.wantStatus, rr.Code)
			}
			if tt.wantStatus == http.StatusUnauthorized {
				if got := rr.Body.String(); got != `{"error":"Unauthorized"}`+"\n" {
					t.Errorf("expected JSON Unauthorized body, got %q", got)
				}
			}
		})
	}
}

func TestFilter_Handle_EmptySecretSkipsCheck(t *testing.T) {
	filter := newTestFilter("", []string{"*"}, false)

	handler := filter.Handle(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest("GET", "/v1/chat/completions", nil)
	req.RemoteAddr = "10.0.0.5:54321"
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Errorf("expected 200 with empty configured secret, got %d", rr.Code)
	}
}

func TestFilter_Handle_HealthExemptByDefault(t *testing.T) {
	filter := newTestFilter("s3cr3t", []string{"*"}, false)

	handler := filter.Handle(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest("GET", "/health", nil)
	req.RemoteAddr = "10.0.0.5:54321"
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Errorf("expected /health to skip the secret check, got %d", rr.Code)
	}
}

func TestFilter_Handle_HealthRequiresAuthWhenConfigured(t *testing.T) {
	filter := newTestFilter("s3cr3t", []string{"*"}, true)

	handler := filter.Handle(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest("GET", "/health", nil)
	req.RemoteAddr = "10.0.0.5:54321"
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Errorf("expected /health to require auth when configured, got %d", rr.Code)
	}
}

func TestFilter_Handle_GateOrder(t *testing.T) {
	// Source-address gate runs first: a rejected address never reaches
	// the shared-secret check, even with no secret header set.
	filter := newTestFilter("s3cr3t", []string{"10.0.0.0/24"}, false)

	handler := filter.Handle(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest("GET", "/v1/chat/completions", nil)
	req.RemoteAddr = "192.168.1.5:54321"
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusForbidden {
		t.Errorf("expected 403 from the address gate before the secret gate, got %d", rr.Code)
	}
}

func TestFilter_Handle_AuthRejectBodyIsJSONEnvelope(t *testing.T) {
	filter := newTestFilter("s3cret", []string{"*"}, false)

	handler := filter.Handle(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest("GET", "/admin/models", nil)
	req.RemoteAddr = "10.0.0.5:54321"
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rr.Code)
	}
	if got := rr.Body.String(); got != `{"error":"Unauthorized"}`+"\n" {
		t.Errorf(`expected body {"error":"Unauthorized"}, got %q`, got)
	}
}

func TestPeerAddr(t *testing.T) {
	req := httptest.NewRequest("GET", "/", nil)
	req.RemoteAddr = "203.0.113.7:9000"

	ip, err := peerAddr(req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ip.String() != "203.0.113.7" {
		t.Errorf("expected 203.0.113.7, got %s", ip.String())
	}
}
