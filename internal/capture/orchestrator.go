package capture

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"

	json "github.com/goccy/go-json"
	logx "github.com/rannday/golog"

	"github.com/jnd-labs/webcapture/internal/aggregate"
	"github.com/jnd-labs/webcapture/internal/bodystore"
	"github.com/jnd-labs/webcapture/internal/classify"
	"github.com/jnd-labs/webcapture/internal/features"
	"github.com/jnd-labs/webcapture/internal/journal"
	"github.com/jnd-labs/webcapture/internal/limiter"
	"github.com/jnd-labs/webcapture/internal/metrics"
	"github.com/jnd-labs/webcapture/internal/models"
	"github.com/jnd-labs/webcapture/internal/normalize"
	"github.com/jnd-labs/webcapture/internal/redact"
)

// Stage names one state in the RunOrchestrator's state machine (spec.md 4.8).
type Stage string

const (
	StageInit         Stage = "INIT"
	StageLaunch       Stage = "LAUNCH"
	StageNavigate     Stage = "NAVIGATE"
	StageInterstitial Stage = "INTERSTITIAL"
	StageWaitHost     Stage = "WAIT_TARGET_HOST"
	StageWaitIdle     Stage = "WAIT_IDLE"
	StageFlow         Stage = "FLOW"
	StageCaptureWindow Stage = "CAPTURE_WINDOW"
	StageDrain        Stage = "DRAIN"
	StageClose        Stage = "CLOSE"
	StageAggregate    Stage = "AGGREGATE"
	StageDone         Stage = "DONE"
	StageFailed       Stage = "FAILED"
)

// Result is what Run returns: the final stage reached, the run directory,
// and a non-nil Err only when the run failed before producing any usable
// artifacts.
type Result struct {
	RunID      string
	Dir        string
	FinalStage Stage
	Err        error

	TotalResponses    int
	JSONCaptures      int
	DuplicatesSkipped int
}

// dedupKey identifies a response for the purposes of spec.md §5's
// deduplication set: "(endpointKey,status,bodyHash)".
type dedupKey struct {
	endpointKey string
	status      int
	bodyHash    string
}

// Orchestrator drives one capture run end to end.
type Orchestrator struct {
	opts    Options
	session models.BrowserSession
	metrics *metrics.Collector

	mu          sync.Mutex
	seen        map[dedupKey]struct{}
	persisted   int
	duplicates  int
	closing     bool
}

// New returns an Orchestrator for one run. session is the caller's browser
// automation adapter; this package never launches a browser itself.
func New(opts Options, session models.BrowserSession, mcol *metrics.Collector) *Orchestrator {
	return &Orchestrator{
		opts:    opts,
		session: session,
		metrics: mcol,
		seen:    make(map[dedupKey]struct{}),
	}
}

// Run executes the full state machine and returns once DONE or FAILED is
// reached. ctx carries caller-side cancellation in addition to the
// orchestrator's own timeoutMs deadline.
func (o *Orchestrator) Run(ctx context.Context) Result {
	if err := o.opts.Validate(); err != nil {
		return Result{FinalStage: StageFailed, Err: fmt.Errorf("configuration error: %w", err)}
	}

	runID := newRunID()
	dir := fmt.Sprintf("%s/%s", strings.TrimRight(o.opts.OutDir, "/"), runID)

	if !o.opts.WatchMode && o.opts.TimeoutMs > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(o.opts.TimeoutMs)*time.Millisecond)
		defer cancel()
	}

	started := time.Now().UTC()
	res := Result{RunID: runID, Dir: dir}

	log, err := journal.Open(dir, models.RunMetadata{
		RunID:     runID,
		StartedAt: started,
		URL:       o.opts.URL,
		Options:   optionsSnapshot(o.opts),
	})
	if err != nil {
		res.FinalStage = StageFailed
		res.Err = fmt.Errorf("failed to open run journal: %w", err)
		return res
	}

	lim, err := limiter.New(o.opts.MaxConcurrentCaptures)
	if err != nil {
		res.FinalStage = StageFailed
		res.Err = err
		return res
	}
	store := bodystore.New(log.BodiesDir(), o.opts.InlineBodyBytes, o.opts.MaxBodyBytes)
	classifier := classify.New(classify.Options{
		MaxCaptures:    o.opts.MaxCaptures,
		IncludeRegex:   o.opts.IncludeRegex,
		ExcludeRegex:   o.opts.ExcludeRegex,
		MaxBodyBytes:   o.opts.MaxBodyBytes,
		CaptureAllJSON: o.opts.CaptureAllJSON,
	})

	stage, browserCtx, page, failErr := o.launchAndNavigate(ctx)
	if failErr != nil {
		logx.ErrorErr("run failed fatally", failErr, "runId", runID, "stage", string(stage))
		return o.closeAndAggregate(ctx, log, started, dir, res, StageFailed, failErr)
	}

	o.runInterstitial(ctx, page)
	o.waitForHostAndIdle(ctx, page)
	o.runFlow(ctx, page)

	o.captureWindow(ctx, page, lim, classifier, store, log)

	drainCtx, cancelDrain := context.WithTimeout(context.Background(), o.drainDeadline(time.Since(started)))
	if !lim.Drain(drainCtx) {
		logx.Warn("drain deadline exceeded; abandoning outstanding capture tasks", "runId", runID)
	}
	cancelDrain()

	if browserCtx != nil {
		if err := browserCtx.Close(ctx); err != nil {
			logx.Warn("error closing browser context", "runId", runID, "err", redact.Error(err))
		}
	}
	_ = log.Close()

	return o.closeAndAggregate(ctx, log, started, dir, res, StageDone, nil)
}

// drainDeadline computes DRAIN's bound, max(10s, timeoutMs-elapsed) per
// spec.md 4.8. In watch mode (no global deadline) or with timeoutMs unset,
// only the floor applies.
func (o *Orchestrator) drainDeadline(elapsed time.Duration) time.Duration {
	floor := time.Duration(defaultDrainFloorMs) * time.Millisecond
	if o.opts.WatchMode || o.opts.TimeoutMs <= 0 {
		return floor
	}
	remaining := time.Duration(o.opts.TimeoutMs)*time.Millisecond - elapsed
	if remaining > floor {
		return remaining
	}
	return floor
}

func (o *Orchestrator) launchAndNavigate(ctx context.Context) (Stage, models.Context, models.Page, error) {
	browserCtx, err := o.session.NewContext(ctx, models.SessionOptions{
		UserAgent:    o.opts.UserAgent,
		StorageState: o.opts.StorageState,
	})
	if err != nil {
		return StageLaunch, nil, nil, fmt.Errorf("launch failed: %w", err)
	}

	page, err := browserCtx.NewPage(ctx)
	if err != nil {
		return StageLaunch, browserCtx, nil, fmt.Errorf("launch failed: %w", err)
	}

	if err := page.Goto(ctx, o.opts.URL, models.LoadStateDOMContentLoaded, o.opts.TimeoutMs); err != nil {
		return StageNavigate, browserCtx, page, fmt.Errorf("navigate failed: %w", err)
	}

	return StageWaitHost, browserCtx, page, nil
}

// runInterstitial matches every registered handler against every frame at
// most once, stopping at the first successful dismissal. A dismissal
// triggers an extra domcontentloaded wait before returning. Best-effort:
// any error is logged and the run continues (spec.md §4.8 failure table).
func (o *Orchestrator) runInterstitial(ctx context.Context, page models.Page) {
	if len(o.opts.ConsentHandlers) == 0 || page == nil {
		return
	}

	action := models.InterstitialReject
	if o.opts.ConsentAction == "accept" {
		action = models.InterstitialAccept
	}

	for _, frame := range page.Frames() {
		for _, handler := range o.opts.ConsentHandlers {
			matched, err := handler.Match(ctx, frame)
			if err != nil {
				logx.Warn("interstitial match failed", "err", redact.Error(err))
				continue
			}
			if !matched {
				continue
			}

			dismissed, err := handler.Handle(ctx, frame, action, o.opts.TimeoutMs)
			if err != nil {
				logx.Warn("interstitial handle failed", "err", redact.Error(err))
				continue
			}
			if !dismissed {
				continue
			}

			waitCtx, cancel := context.WithTimeout(ctx, defaultWaitIdleMs*time.Millisecond)
			if err := page.WaitForLoadState(waitCtx, models.LoadStateDOMContentLoaded, defaultWaitIdleMs); err != nil {
				logx.Warn("post-dismissal wait failed", "err", redact.Error(err))
			}
			cancel()
			return
		}
	}
}

func (o *Orchestrator) waitForHostAndIdle(ctx context.Context, page models.Page) {
	if page == nil {
		return
	}

	targetHost := ""
	if u, err := url.Parse(o.opts.URL); err == nil {
		targetHost = u.Host
	}
	if err := page.WaitForURL(ctx, func(candidate string) bool {
		u, err := url.Parse(candidate)
		return err == nil && targetHost != "" && u.Host == targetHost
	}, o.opts.TimeoutMs); err != nil {
		logx.Warn("wait for target host did not settle", "err", redact.Error(err))
	}

	idleCtx, cancel := context.WithTimeout(ctx, defaultWaitIdleMs*time.Millisecond)
	defer cancel()
	if err := page.WaitForLoadState(idleCtx, models.LoadStateNetworkIdle, defaultWaitIdleMs); err != nil {
		logx.Warn("wait idle did not settle", "err", redact.Error(err))
	}
}

func (o *Orchestrator) runFlow(ctx context.Context, page models.Page) {
	if o.opts.Flow == nil || page == nil {
		return
	}
	flowCtx, cancel := context.WithTimeout(ctx, time.Duration(o.opts.TimeoutMs)*time.Millisecond)
	defer cancel()
	if err := o.opts.Flow.Run(flowCtx, page); err != nil {
		logx.Warn("flow execution failed", "err", redact.Error(err))
	}
}

// captureWindow registers the response hook for the duration of monitorMs.
// The hook itself only enqueues work onto lim; it never awaits body reads
// or journal appends, per spec.md §4.8's "MUST enqueue, never await".
func (o *Orchestrator) captureWindow(ctx context.Context, page models.Page, lim *limiter.Limiter, classifier *classify.Classifier, store *bodystore.Store, log *journal.Log) {
	if page == nil {
		return
	}

	page.OnResponse(func(ev models.ResponseEvent) {
		o.mu.Lock()
		closing := o.closing
		persisted := o.persisted
		o.mu.Unlock()
		if closing {
			return
		}

		lim.Submit(func() error {
			o.metrics.SetInFlight(lim.Running())
			defer func() { o.metrics.SetInFlight(lim.Running()) }()
			return o.handleResponse(ev, persisted, classifier, store, log)
		})
	})

	timer := time.NewTimer(time.Duration(o.opts.MonitorMs) * time.Millisecond)
	defer timer.Stop()

	select {
	case <-timer.C:
	case <-ctx.Done():
	}

	o.mu.Lock()
	o.closing = true
	o.mu.Unlock()
}

// handleResponse runs one response observation through the full per-record
// pipeline: classify -> read body -> features -> bodystore -> journal
// append. It is the unit of work submitted to the limiter.
func (o *Orchestrator) handleResponse(ev models.ResponseEvent, persistedCount int, classifier *classify.Classifier, store *bodystore.Store, log *journal.Log) error {
	contentType := ""
	var headers map[string]string
	if ev.AllHeaders != nil {
		if h, err := ev.AllHeaders(); err == nil {
			headers = redact.Headers(h)
			contentType = h["content-type"]
		}
	}

	var requestHeaders map[string]string
	if ev.RequestAllHeaders != nil {
		if h, err := ev.RequestAllHeaders(); err == nil {
			requestHeaders = redact.Headers(h)
		}
	}

	decision := classifier.Decide(ev, persistedCount, contentType)
	o.metrics.RecordGateDecision(decisionLabel(decision))
	if !decision.Keep {
		return nil
	}

	norm := normalize.Normalize(ev.URL)
	endpointKey := normalize.EndpointKey(ev.Method, norm.NormalizedPath)

	rec := &models.CaptureRecord{
		Timestamp:       time.Now().UTC(),
		Method:          ev.Method,
		URL:             redact.URL(ev.URL),
		Status:          ev.Status,
		ContentType:     contentType,
		RequestHeaders:  requestHeaders,
		ResponseHeaders: headers,
		NormalizedURL:   norm.NormalizedURL,
		NormalizedPath:  norm.NormalizedPath,
		EndpointKey:     endpointKey,
	}

	if !decision.ReadBody {
		rec.OmittedReason = decision.OmittedReason
		return o.finalizeRecord(rec, log)
	}

	body, readErr := ev.Body()
	var parsed any
	var parseErr error
	if readErr == nil {
		parseErr = json.Unmarshal(body, &parsed)
	}

	truncated, omitted, keepBytes := classify.BodyOutcome(readErr, body, o.opts.MaxBodyBytes, parseErr, classify.IsJSONContentType(contentType), o.opts.CaptureAllJSON)
	rec.Truncated = truncated
	rec.PayloadSize = int64(len(body))

	if !keepBytes {
		rec.OmittedReason = omitted
		switch {
		case readErr != nil:
			rec.ParseError = redact.Error(readErr)
		case parseErr != nil:
			rec.ParseError = redact.Error(parseErr)
		}
		return o.finalizeRecord(rec, log)
	}

	rec.BodyAvailable = true
	rec.JSONParseSuccess = true
	f := features.Extract(parsed)
	rec.Features = &f

	placement := store.Put(parsed, body)
	rec.BodyHash = placement.Hash
	rec.BodyPath = placement.BodyPath
	rec.InlineBody = placement.InlineBody
	if placement.OmittedReason != "" {
		rec.OmittedReason = placement.OmittedReason
		rec.BodyAvailable = false
	}

	return o.finalizeRecord(rec, log)
}

// finalizeRecord enforces the dedup set and maxCaptures cap, then appends.
// Dedup-set membership and the persisted/duplicate counters are the
// single-owner mutable state spec.md §5 requires be touched only from
// inside the limiter's worker.
func (o *Orchestrator) finalizeRecord(rec *models.CaptureRecord, log *journal.Log) error {
	key := dedupKey{endpointKey: rec.EndpointKey, status: rec.Status, bodyHash: rec.BodyHash}

	o.mu.Lock()
	if _, dup := o.seen[key]; dup {
		o.duplicates++
		o.mu.Unlock()
		return nil
	}
	if o.opts.MaxCaptures > 0 && o.persisted >= o.opts.MaxCaptures {
		o.mu.Unlock()
		return nil
	}
	o.seen[key] = struct{}{}
	o.persisted++
	o.mu.Unlock()

	return log.Append(rec)
}

func (o *Orchestrator) closeAndAggregate(ctx context.Context, log *journal.Log, started time.Time, dir string, res Result, finalStage Stage, failErr error) Result {
	res.FinalStage = StageClose
	res.Err = failErr

	o.mu.Lock()
	res.DuplicatesSkipped = o.duplicates
	o.mu.Unlock()

	if o.opts.DisableSummary {
		res.FinalStage = finalStage
		return res
	}

	builder := aggregate.New()
	indexPath := dir + "/index.jsonl"
	buildStart := time.Now()
	err := builder.BuildFromJournal(indexPath)
	o.metrics.ObserveAggregateBuild(time.Since(buildStart).Seconds())
	if err != nil {
		logx.Warn("aggregate build failed", "runId", res.RunID, "err", redact.Error(err))
		res.FinalStage = finalStage
		return res
	}

	scored := builder.Score()
	summary := builder.Summary(models.RunMetadata{RunID: res.RunID, URL: o.opts.URL, StartedAt: started}, time.Now().UTC(), dir, res.DuplicatesSkipped, scored)

	if err := writeSummaryArtifacts(dir, summary, scored); err != nil {
		logx.Warn("failed to write summary artifacts", "runId", res.RunID, "err", redact.Error(err))
	}

	res.TotalResponses = summary.TotalResponses
	res.JSONCaptures = summary.JSONCaptures
	res.FinalStage = finalStage
	return res
}

// writeSummaryArtifacts writes summary.json (pretty-printed, top 20
// endpoints embedded) and endpoints.jsonl (every scored endpoint, one per
// line, already sorted by the caller).
func writeSummaryArtifacts(dir string, summary models.Summary, scored []models.ScoredEndpoint) error {
	summaryBytes, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal summary.json: %w", err)
	}
	if err := os.WriteFile(dir+"/summary.json", summaryBytes, 0o644); err != nil {
		return fmt.Errorf("failed to write summary.json: %w", err)
	}

	f, err := os.Create(dir + "/endpoints.jsonl")
	if err != nil {
		return fmt.Errorf("failed to create endpoints.jsonl: %w", err)
	}
	defer f.Close()

	for _, se := range scored {
		line, err := json.Marshal(se)
		if err != nil {
			return fmt.Errorf("failed to marshal scored endpoint: %w", err)
		}
		if _, err := f.Write(append(line, '\n')); err != nil {
			return fmt.Errorf("failed to write endpoints.jsonl: %w", err)
		}
	}
	return nil
}

func decisionLabel(d classify.Decision) string {
	if !d.Keep {
		return "filtered"
	}
	if !d.ReadBody {
		return string(d.OmittedReason)
	}
	return "captured"
}

func newRunID() string {
	ts := time.Now().UTC().Format(time.RFC3339)
	ts = strings.ReplaceAll(ts, ":", "-")
	var buf [4]byte
	_, _ = rand.Read(buf[:])
	return fmt.Sprintf("%s-%s", ts, hex.EncodeToString(buf[:]))
}

func optionsSnapshot(o Options) map[string]any {
	return map[string]any{
		"url":                   o.URL,
		"monitorMs":             o.MonitorMs,
		"timeoutMs":             o.TimeoutMs,
		"maxBodyBytes":          o.MaxBodyBytes,
		"inlineBodyBytes":       o.InlineBodyBytes,
		"maxCaptures":           o.MaxCaptures,
		"maxConcurrentCaptures": o.MaxConcurrentCaptures,
		"captureAllJson":        o.CaptureAllJSON,
		"disableSummary":        o.DisableSummary,
	}
}
