// Package classify implements the JSON-gating ladder that decides whether
// a browser response is kept for capture and which body-read path to take.
// It generalizes proxy.go's ad hoc "is this an SSE response" content-type
// sniff into the full ordered gate list from spec.md 4.4.
package classify

import (
	"regexp"
	"strings"

	"github.com/jnd-labs/webcapture/internal/models"
)

// Decision is the outcome of running the gate ladder over one response
// observation.
type Decision struct {
	// Keep is false iff the response should produce no record at all
	// (the "filtered" gate).
	Keep bool

	// ReadBody is true when the worker should attempt to read and parse
	// the response body; false when the record is metadata-only from the
	// start (e.g. 204/304, or an over-budget Content-Length).
	ReadBody bool

	// OmittedReason is pre-set when ReadBody is false and Keep is true.
	OmittedReason models.OmittedReason
}

var jsonContentTypes = []string{
	"application/json",
	"application/ld+json",
	"application/hal+json",
	"application/vnd.api+json",
}

var xhrFetchTypes = map[string]struct{}{
	"xhr":   {},
	"fetch": {},
}

// Options configures one Classifier. A zero MaxCaptures means unlimited.
type Options struct {
	MaxCaptures     int
	IncludeRegex    *regexp.Regexp
	ExcludeRegex    *regexp.Regexp
	MaxBodyBytes    int64
	CaptureAllJSON  bool
}

// Classifier holds the configuration for the gate ladder. It is stateless
// with respect to any particular response; the caller supplies the current
// persisted count so the MaxCaptures gate can be enforced without the
// classifier itself owning shared mutable state (see spec.md §9's Open
// Question on maxCaptures slack under concurrency).
type Classifier struct {
	opts Options
}

// New returns a Classifier for the given options.
func New(opts Options) *Classifier {
	return &Classifier{opts: opts}
}

// Decide runs the gate ladder (spec.md 4.4, steps 1-7) over a response
// observation and the current in-window persisted count. Steps 6-7 (204/304
// and an over-budget Content-Length) come back as ReadBody=false with an
// OmittedReason; step 8 (reading and parsing the body) is executed by the
// caller and classified by BodyOutcome.
func (c *Classifier) Decide(ev models.ResponseEvent, persistedCount int, contentType string) Decision {
	if c.opts.MaxCaptures > 0 && persistedCount >= c.opts.MaxCaptures {
		return Decision{Keep: false}
	}

	if c.opts.IncludeRegex != nil && !c.opts.IncludeRegex.MatchString(ev.URL) {
		return Decision{Keep: false}
	}
	if c.opts.ExcludeRegex != nil && c.opts.ExcludeRegex.MatchString(ev.URL) {
		return Decision{Keep: false}
	}

	if !c.passesResourceOrContentTypeGate(ev.ResourceType, contentType) {
		return Decision{Keep: false}
	}

	if ev.Status < 200 || ev.Status >= 400 {
		return Decision{Keep: false}
	}

	if ev.Status == 204 || ev.Status == 304 {
		return Decision{Keep: true, ReadBody: false, OmittedReason: models.OmittedEmptyBody}
	}

	if c.opts.MaxBodyBytes > 0 && ev.ContentLength > c.opts.MaxBodyBytes {
		return Decision{Keep: true, ReadBody: false, OmittedReason: models.OmittedMaxBodyBytes}
	}

	return Decision{Keep: true, ReadBody: true}
}

func (c *Classifier) passesResourceOrContentTypeGate(resourceType, contentType string) bool {
	if c.opts.CaptureAllJSON {
		return IsJSONContentType(contentType)
	}
	if IsJSONContentType(contentType) {
		return true
	}
	_, isXHRFetch := xhrFetchTypes[strings.ToLower(resourceType)]
	return isXHRFetch
}

// IsJSONContentType reports whether contentType contains one of the fixed
// JSON media types as a case-insensitive substring.
func IsJSONContentType(contentType string) bool {
	lower := strings.ToLower(contentType)
	for _, ct := range jsonContentTypes {
		if strings.Contains(lower, ct) {
			return true
		}
	}
	return false
}

// BodyOutcome classifies what happened after a ReadBody=true decision was
// acted on: the body was read (or failed to be), then parsed (or failed
// to be). It decides the final OmittedReason per spec.md 4.4 step 8.
func BodyOutcome(readErr error, body []byte, maxBodyBytes int64, parseErr error, contentTypeIsJSON, captureAllJSON bool) (truncated bool, omitted models.OmittedReason, keepBytes bool) {
	if readErr != nil {
		return false, models.OmittedUnavailable, false
	}
	if maxBodyBytes > 0 && int64(len(body)) > maxBodyBytes {
		return true, models.OmittedMaxBodyBytes, false
	}
	if parseErr != nil {
		if contentTypeIsJSON || captureAllJSON {
			return false, models.OmittedParseError, false
		}
		return false, models.OmittedNonJSON, false
	}
	return false, "", true
}
