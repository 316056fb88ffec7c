package ai

import "strings"

// Embedding services surface rate limits and token limits as opaque HTTP
// errors; providers and gateways phrase them differently, so failures are
// classified by message text.

// IsRateLimit reports whether err looks like an HTTP 429 rate-limit
// response from the embedding service.
func IsRateLimit(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "429") ||
		strings.Contains(msg, "rate limit") ||
		strings.Contains(msg, "rate_limit") ||
		strings.Contains(msg, "too many requests")
}

// IsTokenLimit reports whether err indicates an input exceeded the
// embedding model's hard token limit.
func IsTokenLimit(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	if !strings.Contains(msg, "token") {
		return false
	}
	return strings.Contains(msg, "limit") || strings.Contains(msg, "maximum")
}
