// Package models defines the data types shared across the capture pipeline:
// the per-response CaptureRecord, its shallow structural Features, the
// per-endpoint rollups produced by aggregation, and the run-level metadata
// written at the start and end of a run.
package models

import "time"

// OmittedReason names why a CaptureRecord's body was not persisted.
// At most one reason is ever set on a given record (spec invariant (f)).
type OmittedReason string

const (
	OmittedMaxBodyBytes OmittedReason = "maxBodyBytes"
	OmittedUnavailable  OmittedReason = "unavailable"
	OmittedNonJSON      OmittedReason = "nonJson"
	OmittedParseError   OmittedReason = "parseError"
	OmittedFiltered     OmittedReason = "filtered"
	OmittedEmptyBody    OmittedReason = "emptyBody"
)

// Features is the shallow structural fingerprint of one parsed JSON body.
// Exactly one of IsArray/IsObject/IsPrimitive is true unless parsing failed,
// in which case Features is absent entirely (see CaptureRecord.Features).
type Features struct {
	IsArray     bool `json:"isArray"`
	IsObject    bool `json:"isObject"`
	IsPrimitive bool `json:"isPrimitive"`

	ArrayLength int      `json:"arrayLength,omitempty"`
	NumKeys     int      `json:"numKeys,omitempty"`
	TopLevelKeys []string `json:"topLevelKeys,omitempty"`

	DepthEstimate int `json:"depthEstimate"`

	HasID      bool `json:"hasId"`
	HasItems   bool `json:"hasItems"`
	HasResults bool `json:"hasResults"`
	HasData    bool `json:"hasData"`

	SamplePaths []string `json:"samplePaths,omitempty"`
	SchemaHash  string   `json:"schemaHash,omitempty"`
}

// CaptureRecord is one observation of one response, frozen at append time
// and never mutated afterward.
type CaptureRecord struct {
	Timestamp time.Time `json:"timestamp"`
	Method    string    `json:"method"`
	URL       string    `json:"url"`

	Status      int    `json:"status"`
	ContentType string `json:"contentType,omitempty"`

	RequestHeaders  map[string]string `json:"requestHeaders,omitempty"`
	ResponseHeaders map[string]string `json:"responseHeaders,omitempty"`

	PayloadSize   int64 `json:"payloadSize"`
	BodyAvailable bool  `json:"bodyAvailable"`
	Truncated     bool  `json:"truncated"`

	OmittedReason OmittedReason `json:"omittedReason,omitempty"`

	JSONParseSuccess bool   `json:"jsonParseSuccess"`
	ParseError       string `json:"parseError,omitempty"`

	BodyHash string `json:"bodyHash,omitempty"`
	BodyPath string `json:"bodyPath,omitempty"`
	// InlineBody holds the parsed+redacted JSON value when it was small
	// enough to keep in the journal line. Mutually exclusive with BodyPath.
	InlineBody any `json:"inlineBody,omitempty"`

	NormalizedURL  string `json:"normalizedUrl,omitempty"`
	NormalizedPath string `json:"normalizedPath,omitempty"`
	EndpointKey    string `json:"endpointKey"`

	Features *Features `json:"features,omitempty"`
}

// RunMetadata is the frozen snapshot written once to run.json at the start
// of a run.
type RunMetadata struct {
	RunID     string         `json:"runId"`
	StartedAt time.Time      `json:"startedAt"`
	URL       string         `json:"url"`
	Options   map[string]any `json:"options"`
}
