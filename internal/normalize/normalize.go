// Package normalize canonicalizes request URLs into a stable normalizedUrl
// and normalizedPath, and derives the endpointKey that collapses distinct
// URLs differing only in IDs, query order, or fragment into one logical
// endpoint. It generalizes proxy.go's parseEndpoint/singleJoiningSlash path
// splitting from "peel off the routing segment" to "classify every
// ID-shaped segment".
package normalize

import (
	"net/url"
	"regexp"
	"sort"
	"strings"
)

// Result is the output of Normalize.
type Result struct {
	NormalizedURL  string
	NormalizedPath string
}

// preserveSegments is the fixed set of path segments that are never
// replaced with ":id", matched case-insensitively.
var preserveSegments = map[string]struct{}{
	"api": {}, "v1": {}, "v2": {}, "v3": {}, "v4": {},
	"search": {}, "query": {}, "list": {}, "create": {}, "update": {}, "delete": {},
	"users": {}, "posts": {}, "items": {}, "products": {}, "orders": {}, "comments": {},
	"auth": {}, "login": {}, "logout": {}, "register": {},
	"admin": {}, "public": {}, "private": {},
}

var (
	digitsPattern = regexp.MustCompile(`^[0-9]+$`)
	uuidPattern   = regexp.MustCompile(`^[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}$`)
	hexPattern    = regexp.MustCompile(`^[0-9a-f]{32,}$`)
	longIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{20,}$`)
)

// Normalize parses rawURL and produces its canonical form. On parse
// failure, both fields of the result equal rawURL unchanged, per spec.md
// 4.2 step 1.
func Normalize(rawURL string) Result {
	u, err := url.Parse(rawURL)
	if err != nil {
		return Result{NormalizedURL: rawURL, NormalizedPath: rawURL}
	}

	u.Fragment = ""

	normalizedPath := normalizePath(u.Path)
	u.Path = normalizedPath
	u.RawQuery = sortedQuery(u.Query())

	return Result{
		NormalizedURL:  u.String(),
		NormalizedPath: normalizedPath,
	}
}

func normalizePath(path string) string {
	segments := strings.Split(path, "/")
	for i, seg := range segments {
		if seg == "" {
			continue
		}
		if isIDSegment(seg) {
			segments[i] = ":id"
		}
	}
	return strings.Join(segments, "/")
}

func isIDSegment(seg string) bool {
	if _, preserved := preserveSegments[strings.ToLower(seg)]; preserved {
		return false
	}
	return digitsPattern.MatchString(seg) ||
		uuidPattern.MatchString(seg) ||
		hexPattern.MatchString(strings.ToLower(seg)) ||
		longIDPattern.MatchString(seg)
}

// sortedQuery re-serializes query parameters sorted by name (stable for
// repeated keys), then by value for ties.
func sortedQuery(q url.Values) string {
	if len(q) == 0 {
		return ""
	}

	names := make([]string, 0, len(q))
	for name := range q {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	first := true
	for _, name := range names {
		values := append([]string(nil), q[name]...)
		sort.Strings(values)
		for _, v := range values {
			if !first {
				b.WriteByte('&')
			}
			first = false
			b.WriteString(url.QueryEscape(name))
			b.WriteByte('=')
			b.WriteString(url.QueryEscape(v))
		}
	}
	return b.String()
}

// EndpointKey returns "METHOD normalizedPath", with method uppercased.
func EndpointKey(method, normalizedPath string) string {
	return strings.ToUpper(method) + " " + normalizedPath
}
