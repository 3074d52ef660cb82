package proxy

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	// MaxRequestBodySize bounds how much of a proxied request body the
	// gateway will buffer in memory to augment it before forwarding.
	MaxRequestBodySize = 10 * 1024 * 1024
)

// shorthandRoutes maps bare OpenAI-shorthand paths to their canonical
// /v1/... form.
var shorthandRoutes = map[string]string{
	"/chat/completions":     "/v1/chat/completions",
	"/completions":          "/v1/completions",
	"/models":               "/v1/models",
	"/embeddings":           "/v1/embeddings",
	"/images/generations":   "/v1/images/generations",
	"/audio/transcriptions": "/v1/audio/transcriptions",
	"/audio/translations":   "/v1/audio/translations",
}

// NormalizePath reports whether path is eligible for the proxy path and, if
// so, returns its canonical /v1/... form. Paths under /admin, /debug, and
// /health are never proxy-eligible; the admin surface owns them.
func NormalizePath(path string) (string, bool) {
	if path == "/health" || strings.HasPrefix(path, "/admin") || strings.HasPrefix(path, "/debug") {
		return "", false
	}
	if strings.HasPrefix(path, "/v1/") {
		return path, true
	}
	if v1, ok := shorthandRoutes[path]; ok {
		return v1, true
	}
	return "", false
}

// IsChatOrCompletions reports whether the given canonical /v1/... path is
// one of the two request shapes eligible for sampling-default and model
// injection.
func IsChatOrCompletions(path string) bool {
	return path == "/v1/chat/completions" || path == "/v1/completions"
}

// GenerateRequestID produces a request identifier of the form
// req_<ms-since-epoch>_<rand6>, used to correlate an inference across
// lifecycle events and its RequestRecord.
func GenerateRequestID() string {
	b := make([]byte, 3)
	if _, err := rand.Read(b); err != nil {
		return fmt.Sprintf("req_%d_000000", time.Now().UnixMilli())
	}
	return fmt.Sprintf("req_%d_%s", time.Now().UnixMilli(), hex.EncodeToString(b))
}

// excludedForwardHeaders are stripped when copying the client's request
// headers onto the forwarded backend request.
var excludedForwardHeaders = map[string]struct{}{
	"Host":              {},
	"Connection":        {},
	"Transfer-Encoding": {},
	"Content-Length":    {},
	"X-Api-Key":         {},
}

// CopyForwardHeaders copies headers from the inbound request onto the
// outbound one, excluding hop-by-hop headers and the gateway's own
// shared-secret header.
func CopyForwardHeaders(dst http.Header, src http.Header) {
	for name, values := range src {
		if _, excluded := excludedForwardHeaders[http.CanonicalHeaderKey(name)]; excluded {
			continue
		}
		for _, v := range values {
			dst.Add(name, v)
		}
	}
}

// readLimitedBody reads r's body up to MaxRequestBodySize+1, returning a
// RequestError if the limit was exceeded.
func readLimitedBody(r *http.Request) ([]byte, error) {
	limited := io.LimitReader(r.Body, MaxRequestBodySize+1)
	body, err := io.ReadAll(limited)
	if err != nil {
		return nil, &RequestError{
			Message: fmt.Sprintf("failed to read request body: %v", err),
			Code:    "invalid_json",
			Param:   "body",
		}
	}
	if len(body) > MaxRequestBodySize {
		return nil, &RequestError{
			Message: fmt.Sprintf("request body exceeds maximum size of %d bytes", MaxRequestBodySize),
			Code:    "request_too_large",
			Param:   "body",
		}
	}
	return body, nil
}
