package upstream

import (
	"net/http"
	"regexp"
)

// Credential material must never reach logs or tool results. Redaction is
// pattern based so it also catches secrets echoed back inside transport
// error strings.
var secretPatterns = []*regexp.Regexp{
	// Bearer / Basic tokens.
	regexp.MustCompile(`(?i)(bearer|basic)\s+[A-Za-z0-9._~+/=-]+`),
	// Key-style query or header fragments: api_key=..., token: ...
	regexp.MustCompile(`(?i)(api[_-]?key|access[_-]?token|token|secret|password|authorization)(["']?\s*[:=]\s*["']?)[^\s"'&,:}]+`),
	// Provider-prefixed keys that show up bare in URLs and error text.
	regexp.MustCompile(`\bsk-[A-Za-z0-9_-]{8,}\b`),
}

// Redact replaces credential material in s with a placeholder.
func Redact(s string) string {
	out := s
	out = secretPatterns[0].ReplaceAllString(out, "$1 [REDACTED]")
	out = secretPatterns[1].ReplaceAllString(out, "$1$2[REDACTED]")
	out = secretPatterns[2].ReplaceAllString(out, "[REDACTED]")
	return out
}

// SensitiveHeaders lists header names whose values are always redacted when
// requests are logged or serialized.
var SensitiveHeaders = map[string]struct{}{
	"Authorization":       {},
	"Proxy-Authorization": {},
	"X-Api-Key":           {},
	"X-Auth-Token":        {},
	"Cookie":              {},
}

// RedactHeaderValue returns the value to log for the given header.
func RedactHeaderValue(name, value string) string {
	if _, sensitive := SensitiveHeaders[http.CanonicalHeaderKey(name)]; sensitive {
		return "[REDACTED]"
	}
	return Redact(value)
}
