package access

import "crypto/subtle"

// CheckSecret compares the given header value against the configured
// shared secret using a constant-time comparison, so a wrong guess can't
// be distinguished from a right one by timing.
func CheckSecret(configured, submitted string) bool {
	if len(configured) != len(submitted) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(configured), []byte(submitted)) == 1
}
