// Package redact implements the three pure redaction functions the capture
// pipeline runs over every persisted response: header maps, URLs, and
// parsed JSON bodies, plus a fourth for sanitizing error strings before
// they are logged or persisted. Redaction never raises; on any internal
// failure it returns the input unchanged, the same fail-open posture the
// teacher's header masking takes in proxy.go.
package redact

import (
	"net/url"
	"regexp"
	"strings"
)

const redactedValue = "[REDACTED]"

// maxCycleDepth bounds redactValue's recursion. There is no visitation set;
// this cap is the only guard against cyclic or very deep input, and values
// nested at or below it are returned unredacted.
const maxCycleDepth = 64

// sensitiveHeaders is the fixed, case-insensitive set of header names whose
// values are replaced wholesale rather than partially masked.
var sensitiveHeaders = map[string]struct{}{
	"authorization": {},
	"cookie":        {},
	"set-cookie":    {},
	"x-api-key":     {},
	"x-auth-token":  {},
	"api-key":       {},
}

// sensitiveQueryParams is the fixed, case-insensitive set of URL query
// parameter names redacted by redactUrl.
var sensitiveQueryParams = map[string]struct{}{
	"token":     {},
	"key":       {},
	"auth":      {},
	"session":   {},
	"sig":       {},
	"signature": {},
	"apikey":    {},
	"api_key":   {},
}

// sensitiveJSONKeys is the fixed, case-sensitive set of object keys whose
// values are replaced during redactJson. Case-sensitive per spec.md 4.1.
var sensitiveJSONKeys = map[string]struct{}{
	"password":         {},
	"token":            {},
	"secret":           {},
	"email":            {},
	"apiKey":           {},
	"api_key":          {},
	"accessToken":      {},
	"access_token":     {},
	"refreshToken":     {},
	"refresh_token":    {},
}

// Headers replaces the value of every sensitive header (matched
// case-insensitively) with the literal "[REDACTED]". Keys are preserved in
// their original case; non-matching entries pass through unchanged.
func Headers(headers map[string]string) map[string]string {
	if headers == nil {
		return nil
	}
	out := make(map[string]string, len(headers))
	for k, v := range headers {
		if _, sensitive := sensitiveHeaders[strings.ToLower(k)]; sensitive {
			out[k] = redactedValue
		} else {
			out[k] = v
		}
	}
	return out
}

// URL parses rawURL and replaces the value of every sensitive query
// parameter (matched case-insensitively) with "[REDACTED]", URL-encoded on
// re-serialization. Path, host, port, and non-matching params are left
// intact. On parse failure the input is returned unchanged.
func URL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}

	q := u.Query()
	changed := false
	for name := range q {
		if _, sensitive := sensitiveQueryParams[strings.ToLower(name)]; sensitive {
			values := q[name]
			for i := range values {
				values[i] = redactedValue
			}
			q[name] = values
			changed = true
		}
	}
	if changed {
		u.RawQuery = q.Encode()
	}
	return u.String()
}

// JSON recursively walks value, replacing the value of any object key in
// the fixed sensitive-key set with "[REDACTED]". Arrays and nested objects
// are descended into; primitives pass through unchanged. Cyclic structures
// (possible when callers pass pre-decoded Go values containing pointers
// back to themselves) are guarded against with a hard depth cap, matching
// spec.md 4.1's "visitation set or a hard depth cap of 64".
func JSON(value any) any {
	return redactValue(value, 0)
}

func redactValue(value any, depth int) any {
	if depth >= maxCycleDepth {
		return value
	}

	switch v := value.(type) {
	case map[string]any:
		out := make(map[string]any, len(v))
		for k, val := range v {
			if _, sensitive := sensitiveJSONKeys[k]; sensitive {
				out[k] = redactedValue
				continue
			}
			out[k] = redactValue(val, depth+1)
		}
		return out
	case []any:
		out := make([]any, len(v))
		for i, val := range v {
			out[i] = redactValue(val, depth+1)
		}
		return out
	default:
		return value
	}
}

var absPathPattern = regexp.MustCompile(`(?:[A-Za-z]:\\[^\s]+|/(?:home|Users)/[^\s]+)`)

// Error truncates err's message to 200 characters and replaces any absolute
// filesystem path (Windows "X:\..." or POSIX "/home/..."/"/Users/...", up
// to the next whitespace) with the literal "[PATH]".
func Error(err error) string {
	if err == nil {
		return ""
	}
	msg := err.Error()
	if len(msg) > 200 {
		msg = msg[:200]
	}
	return absPathPattern.ReplaceAllString(msg, "[PATH]")
}
