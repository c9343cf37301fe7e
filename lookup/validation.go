// Package lookup implements the cache -> database -> live pipeline of
// spec.md §4.5: the single lookup entry point, bulk lookup, CIDR lookup,
// and (in stream.go) the streaming variant - a thin public API layered
// over coalesced, cancellable concurrent work.
package lookup

import (
	"fmt"
	"net"
	"strings"
)

// ValidationError is a domain error, not an exception, per spec.md §7/§9.
type ValidationError struct {
	Code       string
	Message    string
	Suggestion string
	Details    []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func newValidationError(code, message, suggestion string) *ValidationError {
	return &ValidationError{Code: code, Message: message, Suggestion: suggestion}
}

func newValidationErrorWithDetails(code, message, suggestion string, details []string) *ValidationError {
	return &ValidationError{Code: code, Message: message, Suggestion: suggestion, Details: details}
}

// normalizeIP canonicalizes and validates ip per spec.md §3's "IP key"
// invariant: trimmed, lowercased IPv6, rejected if private/reserved/
// loopback/multicast or syntactically invalid.
func normalizeIP(input string) (string, error) {
	trimmed := strings.ToLower(strings.TrimSpace(input))
	parsed := net.ParseIP(trimmed)
	if parsed == nil {
		return "", newValidationError("INVALID_FORMAT", "input is not a valid IP address", "provide a dotted-decimal IPv4 or colon-separated IPv6 address")
	}
	if parsed.IsLoopback() || parsed.IsMulticast() || parsed.IsLinkLocalUnicast() || parsed.IsLinkLocalMulticast() || parsed.IsUnspecified() {
		return "", newValidationError("RESERVED_IP", "address is a reserved/loopback/link-local/multicast address", "use a public, routable IP address")
	}
	if parsed.IsPrivate() {
		return "", newValidationError("PRIVATE_IP", "address is in a private address range", "use a public, routable IP address")
	}
	return parsed.String(), nil
}

// looksLikeIP is a cheap syntactic pre-check used to decide whether input
// should be treated as a hostname requiring DNS resolution, per spec.md
// §4.5 point 1.
func looksLikeIP(input string) bool {
	return net.ParseIP(strings.TrimSpace(input)) != nil
}
