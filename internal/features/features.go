// Package features computes a bounded, shallow structural fingerprint of a
// parsed JSON body. It generalizes trace/detector.go's DetermineSpanType
// (bounded, best-effort inspection of an arbitrary JSON shape) and
// trace/session.go's ExtractConversationMetadata (a depth-limited walk)
// from "is this an OpenAI chat payload" to "what shape is this JSON body".
package features

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"
	"time"

	"github.com/jnd-labs/webcapture/internal/models"
)

// Bounds, fixed per spec.md 4.3.
const (
	MaxDepth          = 3
	MaxKeysSampled    = 50
	MaxSamplePaths    = 100
	MaxTopLevelKeys   = 20
	softBudget        = 100 * time.Millisecond
)

var dataLikeIDKeys = map[string]struct{}{
	"id": {}, "_id": {}, "uuid": {},
}

var dataLikeItemsKeys = map[string]struct{}{
	"items": {}, "results": {}, "data": {}, "list": {},
}

// Extract computes Features for a parsed JSON value. It never panics and
// never blocks past the soft wall-clock budget; on timeout it returns
// whatever partial result had been computed, which callers using bounded
// test inputs should never observe in practice.
func Extract(value any) models.Features {
	w := &walker{deadline: time.Now().Add(softBudget)}
	return w.classifyTop(value)
}

type walker struct {
	deadline time.Time
}

func (w *walker) expired() bool {
	return time.Now().After(w.deadline)
}

func (w *walker) classifyTop(value any) models.Features {
	switch v := value.(type) {
	case map[string]any:
		return w.classifyObject(v)
	case []any:
		return w.classifyArray(v)
	default:
		return models.Features{IsPrimitive: true}
	}
}

func (w *walker) classifyObject(obj map[string]any) models.Features {
	f := models.Features{IsObject: true, NumKeys: len(obj)}

	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	f.SchemaHash = schemaHash(keys)

	top := keys
	if len(top) > MaxTopLevelKeys {
		top = top[:MaxTopLevelKeys]
	}
	f.TopLevelKeys = top

	lowerKeys := make(map[string]struct{}, len(obj))
	for _, k := range keys {
		lowerKeys[strings.ToLower(k)] = struct{}{}
	}
	f.HasID = anyKeyPresent(lowerKeys, dataLikeIDKeys)
	f.HasItems = anyKeyPresent(lowerKeys, dataLikeItemsKeys)
	f.HasResults = keyPresent(lowerKeys, "results")
	f.HasData = keyPresent(lowerKeys, "data")

	sampled := keys
	if len(sampled) > MaxKeysSampled {
		sampled = sampled[:MaxKeysSampled]
	}

	paths := &pathCollector{limit: MaxSamplePaths}
	if !w.expired() {
		for _, k := range sampled {
			if w.expired() || paths.full() {
				break
			}
			w.walk(obj[k], k, 1, paths)
		}
	}
	f.SamplePaths = paths.paths
	f.DepthEstimate = w.depth(obj, 0)

	return f
}

func (w *walker) classifyArray(arr []any) models.Features {
	f := models.Features{IsArray: true, ArrayLength: len(arr)}

	if len(arr) == 0 {
		return f
	}

	first := arr[0]
	switch first.(type) {
	case map[string]any, []any:
		paths := &pathCollector{limit: MaxSamplePaths}
		if !w.expired() {
			w.walk(first, "[0]", 1, paths)
		}
		f.SamplePaths = paths.paths
		f.DepthEstimate = w.depth(first, 0)
	}

	return f
}

// walk performs the bounded depth-first sample-path collection. depth
// counts how many levels have been descended so far (0 = top).
func (w *walker) walk(value any, path string, depth int, paths *pathCollector) {
	if paths.full() || w.expired() {
		return
	}
	if depth > MaxDepth {
		paths.add(path)
		return
	}

	switch v := value.(type) {
	case map[string]any:
		if len(v) == 0 {
			paths.add(path)
			return
		}
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			if paths.full() || w.expired() {
				return
			}
			w.walk(v[k], path+"."+k, depth+1, paths)
		}
	case []any:
		if len(v) == 0 {
			paths.add(path)
			return
		}
		w.walk(v[0], path+"[0]", depth+1, paths)
	default:
		paths.add(path)
	}
}

// depth computes the recursive max depth bounded by MaxDepth. It keeps no
// identity-visited set, so a cycle is not detected as such; recursion stops
// at the MaxDepth cap, which also bounds any cyclic input.
func (w *walker) depth(value any, current int) int {
	if current >= MaxDepth {
		return current
	}
	switch v := value.(type) {
	case map[string]any:
		if len(v) == 0 {
			return current
		}
		max := current
		for _, val := range v {
			d := w.depth(val, current+1)
			if d > max {
				max = d
			}
		}
		return max
	case []any:
		if len(v) == 0 {
			return current
		}
		return w.depth(v[0], current+1)
	default:
		return current
	}
}

type pathCollector struct {
	paths []string
	limit int
}

func (p *pathCollector) add(path string) {
	if p.full() {
		return
	}
	p.paths = append(p.paths, path)
}

func (p *pathCollector) full() bool {
	return len(p.paths) >= p.limit
}

func anyKeyPresent(have map[string]struct{}, want map[string]struct{}) bool {
	for k := range want {
		if _, ok := have[k]; ok {
			return true
		}
	}
	return false
}

func keyPresent(have map[string]struct{}, key string) bool {
	_, ok := have[key]
	return ok
}

// schemaHash is the SHA-256 digest of the sorted top-level keys joined by
// "|". keys must already be sorted.
func schemaHash(sortedKeys []string) string {
	h := sha256.New()
	h.Write([]byte(strings.Join(sortedKeys, "|")))
	return hex.EncodeToString(h.Sum(nil))
}
