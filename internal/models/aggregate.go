package models

import "time"

// ScoringWeights are the fixed, published weights behind EndpointAggregate
// scoring. They are emitted verbatim into summary.json for reproducibility.
type ScoringWeights struct {
	Frequency float64 `json:"frequency"`
	Payload   float64 `json:"payloadSize"`
	Structure float64 `json:"structure"`
	Stability float64 `json:"stability"`
}

// DefaultScoringWeights are the fixed published weights; they must sum to 1.0.
var DefaultScoringWeights = ScoringWeights{
	Frequency: 0.30,
	Payload:   0.30,
	Structure: 0.20,
	Stability: 0.20,
}

// BodyEvidence describes the multiplicative gate applied to a raw score to
// suppress endpoints that rarely yield a parseable JSON body.
type BodyEvidence struct {
	Scale     float64 `json:"scale"`
	MinFactor float64 `json:"minFactor"`
}

// DefaultBodyEvidence is the fixed published scale/floor.
var DefaultBodyEvidence = BodyEvidence{Scale: 1.5, MinFactor: 0.05}

// EndpointAggregate is the streaming rollup of every CaptureRecord sharing an
// EndpointKey within a single run.
type EndpointAggregate struct {
	EndpointKey string `json:"endpointKey"`
	Count       int    `json:"count"`

	StatusCounts map[int]int `json:"statusCounts"`
	Hosts        []string    `json:"hosts"`
	PayloadSizes []int64     `json:"-"`

	SchemaHashes []string `json:"schemaHashes"`
	SamplePaths  []string `json:"samplePaths"`

	FirstSeen time.Time `json:"firstSeen"`
	LastSeen  time.Time `json:"lastSeen"`

	BodyAvailableCount     int `json:"bodyAvailableCount"`
	JSONParseSuccessCount  int `json:"jsonParseSuccessCount"`
	NoBodyCount            int `json:"noBodyCount"`

	HasArrayStructure bool `json:"hasArrayStructure"`
	HasDataFlags      bool `json:"hasDataFlags"`

	// avgDepth bookkeeping: running mean over records with depthEstimate>0.
	depthSum   int
	depthCount int
	AvgDepth   float64 `json:"avgDepth"`

	hostSet   map[string]struct{}
	schemaSet map[string]struct{}
	pathSet   map[string]struct{}
}

// NewEndpointAggregate returns a zero-value aggregate ready for Add.
func NewEndpointAggregate(endpointKey string) *EndpointAggregate {
	return &EndpointAggregate{
		EndpointKey:  endpointKey,
		StatusCounts: make(map[int]int),
		hostSet:      make(map[string]struct{}),
		schemaSet:    make(map[string]struct{}),
		pathSet:      make(map[string]struct{}),
	}
}

// Add folds one CaptureRecord into the aggregate. Safe to call repeatedly
// from a single streaming pass; not safe for concurrent use.
func (a *EndpointAggregate) Add(rec *CaptureRecord) {
	a.Count++
	a.StatusCounts[rec.Status]++

	if host := hostOf(rec.URL); host != "" {
		if _, ok := a.hostSet[host]; !ok {
			a.hostSet[host] = struct{}{}
			a.Hosts = append(a.Hosts, host)
		}
	}

	if rec.BodyAvailable {
		a.BodyAvailableCount++
		if rec.PayloadSize > 0 || rec.BodyHash != "" {
			a.PayloadSizes = append(a.PayloadSizes, rec.PayloadSize)
		}
	} else {
		a.NoBodyCount++
	}

	if rec.JSONParseSuccess {
		a.JSONParseSuccessCount++
	}

	if rec.Timestamp.After(a.LastSeen) || a.LastSeen.IsZero() {
		a.LastSeen = rec.Timestamp
	}
	if a.FirstSeen.IsZero() || rec.Timestamp.Before(a.FirstSeen) {
		a.FirstSeen = rec.Timestamp
	}

	if f := rec.Features; f != nil {
		if f.IsArray {
			a.HasArrayStructure = true
		}
		if f.HasItems || f.HasResults || f.HasData || f.HasID {
			a.HasDataFlags = true
		}
		if f.SchemaHash != "" {
			if _, ok := a.schemaSet[f.SchemaHash]; !ok {
				a.schemaSet[f.SchemaHash] = struct{}{}
				a.SchemaHashes = append(a.SchemaHashes, f.SchemaHash)
			}
		}
		for _, p := range f.SamplePaths {
			if _, ok := a.pathSet[p]; !ok {
				a.pathSet[p] = struct{}{}
				a.SamplePaths = append(a.SamplePaths, p)
			}
		}
		if f.DepthEstimate > 0 {
			a.depthSum += f.DepthEstimate
			a.depthCount++
			a.AvgDepth = float64(a.depthSum) / float64(a.depthCount)
		}
	}
}

func hostOf(rawURL string) string {
	// Avoid importing net/url here to keep this file dependency-light;
	// callers normally pass the already-redacted URL which is still a
	// valid absolute URL string.
	for i := 0; i < len(rawURL); i++ {
		if rawURL[i] == '/' && i+1 < len(rawURL) && rawURL[i+1] == '/' {
			rest := rawURL[i+2:]
			for j := 0; j < len(rest); j++ {
				if rest[j] == '/' || rest[j] == '?' || rest[j] == '#' {
					return rest[:j]
				}
			}
			return rest
		}
	}
	return ""
}

// ScoredEndpoint augments an EndpointAggregate with its score, the textual
// reasons behind it, and derived averages.
type ScoredEndpoint struct {
	EndpointAggregate

	Score   float64  `json:"score"`
	Reasons []string `json:"reasons"`

	AvgPayloadSize   float64 `json:"avgPayloadSize"`
	MaxPayloadSize   int64   `json:"maxPayloadSize"`
	DistinctSchemas  int     `json:"distinctSchemas"`
	BodyAvailableRate float64 `json:"bodyAvailableRate"`
	BodyRate         float64 `json:"bodyRate"`
	BodyEvidenceFactor float64 `json:"bodyEvidenceFactor"`
}

// Summary is the top-level artifact written to summary.json.
type Summary struct {
	RunID             string           `json:"runId"`
	URL               string           `json:"url"`
	StartedAt         time.Time        `json:"startedAt"`
	CompletedAt       time.Time        `json:"completedAt"`
	CaptureDir        string           `json:"captureDir"`
	TotalResponses    int              `json:"totalResponses"`
	JSONCaptures      int              `json:"jsonCaptures"`
	DuplicatesSkipped int              `json:"duplicatesSkipped"`
	TotalEndpoints    int              `json:"totalEndpoints"`
	ScoringWeights    ScoringWeights   `json:"scoringWeights"`
	BodyEvidence      BodyEvidence     `json:"bodyEvidence"`
	Endpoints         []ScoredEndpoint `json:"endpoints"`
}
