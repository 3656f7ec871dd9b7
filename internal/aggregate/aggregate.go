// Package aggregate builds the endpoint rollup and score written to
// summary.json and endpoints.jsonl. It generalizes audit/file_storage.go's
// single streaming pass over an append-only file to a keyed rollup: one
// EndpointAggregate per endpointKey, folded one journal record at a time.
package aggregate

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/jnd-labs/webcapture/internal/journal"
	"github.com/jnd-labs/webcapture/internal/models"
)

// Builder accumulates CaptureRecords into per-endpoint aggregates across a
// single streaming pass, then scores and sorts them.
type Builder struct {
	weights  models.ScoringWeights
	evidence models.BodyEvidence

	totalResponses int
	jsonCaptures   int
	order          []string
	byKey          map[string]*models.EndpointAggregate
}

// New returns a Builder using the fixed, published scoring weights.
func New() *Builder {
	return &Builder{
		weights:  models.DefaultScoringWeights,
		evidence: models.DefaultBodyEvidence,
		byKey:    make(map[string]*models.EndpointAggregate),
	}
}

// Add folds one CaptureRecord in. Records with no EndpointKey fall back to
// the (already redacted) URL as their grouping key, per spec.md 4.8.
func (b *Builder) Add(rec *models.CaptureRecord) {
	b.totalResponses++
	if rec.JSONParseSuccess {
		b.jsonCaptures++
	}

	key := rec.EndpointKey
	if key == "" {
		key = rec.URL
	}

	agg, ok := b.byKey[key]
	if !ok {
		agg = models.NewEndpointAggregate(key)
		b.byKey[key] = agg
		b.order = append(b.order, key)
	}
	agg.Add(rec)
}

// BuildFromJournal streams every record in the run's index.jsonl through Add.
func (b *Builder) BuildFromJournal(indexPath string) error {
	return journal.ReadRecords(indexPath, func(rec *models.CaptureRecord) error {
		b.Add(rec)
		return nil
	})
}

// Score computes every endpoint's ScoredEndpoint and returns them sorted by
// score descending, ties broken by count descending.
func (b *Builder) Score() []models.ScoredEndpoint {
	scored := make([]models.ScoredEndpoint, 0, len(b.order))
	for _, key := range b.order {
		scored = append(scored, b.score(b.byKey[key]))
	}

	sort.SliceStable(scored, func(i, j int) bool {
		if scored[i].Score != scored[j].Score {
			return scored[i].Score > scored[j].Score
		}
		return scored[i].Count > scored[j].Count
	})

	return scored
}

func (b *Builder) score(agg *models.EndpointAggregate) models.ScoredEndpoint {
	se := models.ScoredEndpoint{EndpointAggregate: *agg}

	var avgPayload float64
	var maxPayload int64
	if n := len(agg.PayloadSizes); n > 0 {
		var sum int64
		for _, s := range agg.PayloadSizes {
			sum += s
			if s > maxPayload {
				maxPayload = s
			}
		}
		avgPayload = float64(sum) / float64(n)
	}
	se.AvgPayloadSize = avgPayload
	se.MaxPayloadSize = maxPayload
	se.DistinctSchemas = len(agg.SchemaHashes)

	if agg.Count > 0 && b.totalResponses > 0 {
		se.BodyAvailableRate = float64(agg.BodyAvailableCount) / float64(agg.Count)
	}

	var bodyRate float64
	if agg.Count > 0 {
		bodyRate = float64(agg.JSONParseSuccessCount) / float64(agg.Count)
	}
	se.BodyRate = bodyRate

	frequencyScore := 0.0
	if b.totalResponses > 0 {
		frequencyScore = math.Min(float64(agg.Count)/float64(b.totalResponses)*3, 1) * b.weights.Frequency
	}

	sizeScore := math.Min(avgPayload/10000, 1) * b.weights.Payload

	structureRaw := 0.0
	if agg.HasArrayStructure {
		structureRaw += 0.5
	}
	if agg.HasDataFlags {
		structureRaw += 0.5
	}
	structureScore := structureRaw * b.weights.Structure
	if structureScore > b.weights.Structure {
		structureScore = b.weights.Structure
	}

	distinctSchemas := se.DistinctSchemas
	stabilityRaw := 0.0
	if distinctSchemas > 0 {
		stabilityRaw = math.Max(1-0.2*float64(distinctSchemas-1), 0.2)
	}
	stabilityScore := stabilityRaw * b.weights.Stability

	raw := frequencyScore + sizeScore + structureScore + stabilityScore

	bodyEvidenceFactor := math.Max(b.evidence.MinFactor, math.Min(1, bodyRate*b.evidence.Scale))
	se.BodyEvidenceFactor = bodyEvidenceFactor

	se.Score = clamp01(raw * bodyEvidenceFactor)
	se.Reasons = reasons(agg, se, frequencyScore, structureRaw, distinctSchemas, bodyRate)

	return se
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// reasons builds the deterministic, human-readable explanation list behind
// a score. The order mirrors the scoring branches themselves so the same
// aggregate always yields the same reasons in the same order.
func reasons(agg *models.EndpointAggregate, se models.ScoredEndpoint, frequencyScore, structureRaw float64, distinctSchemas int, bodyRate float64) []string {
	var out []string

	if frequencyScore > 0 {
		out = append(out, fmt.Sprintf("high frequency (%d, weighted %.2f)", agg.Count, frequencyScore))
	}

	if agg.HasArrayStructure {
		out = append(out, "has array structure")
	}
	if agg.HasDataFlags {
		out = append(out, "has data-like fields")
	}

	switch {
	case distinctSchemas == 1:
		out = append(out, "stable schema (1 variant)")
	case distinctSchemas > 1:
		out = append(out, fmt.Sprintf("unstable schema (%d variants)", distinctSchemas))
	}

	if bodyRate > 0 {
		out = append(out, fmt.Sprintf("strong JSON body evidence (%d/%d, %.0f%%)",
			agg.JSONParseSuccessCount, agg.Count, bodyRate*100))
	}

	return out
}

// Summary assembles the final summary.json payload. meta carries the
// run-level fields the caller already owns (runId, url, startedAt).
func (b *Builder) Summary(meta models.RunMetadata, completedAt time.Time, captureDir string, duplicatesSkipped int, scored []models.ScoredEndpoint) models.Summary {
	top := scored
	if len(top) > 20 {
		top = top[:20]
	}

	return models.Summary{
		RunID:             meta.RunID,
		URL:               meta.URL,
		StartedAt:         meta.StartedAt,
		CompletedAt:       completedAt,
		CaptureDir:        captureDir,
		TotalResponses:    b.totalResponses,
		JSONCaptures:      b.jsonCaptures,
		DuplicatesSkipped: duplicatesSkipped,
		TotalEndpoints:    len(scored),
		ScoringWeights:    b.weights,
		BodyEvidence:      b.evidence,
		Endpoints:         top,
	}
}
