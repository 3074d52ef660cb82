/*
Package access implements the gateway's Access Filter: two independent
gates applied in fixed order on every request before it reaches any
other component.

# Gates

 1. Source-address check. The effective peer address (with any
    v4-mapped-v6 prefix stripped) must match the configured allowlist:
    the wildcard "*", a literal IP, or a CIDR range. Rejection returns
    403 with no detail beyond "Forbidden", logged at warn.

 2. Shared-secret check. Skipped entirely when the configured secret is
    empty, and skipped for path "/health" when require_auth_for_health
    is false. Otherwise the X-API-Key header must equal the configured
    secret under constant-time comparison. Rejection returns 401,
    logged at warn with the peer address and path but never the
    submitted value.

Failure at either gate is terminal: downstream handlers are never
invoked.

# Usage

	filter := access.NewFilter(&cfg.Security)
	http.Handle("/", filter.Handle(mux))

# Configuration

	security:
	  shared_secret: ""
	  allowlist: ["*"]
	  require_auth_for_health: false
*/
package access
