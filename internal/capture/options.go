// Package capture implements the RunOrchestrator state machine described
// in spec.md 4.8: it drives a caller-supplied BrowserSession through
// navigation, an optional interstitial dismissal and flow, a bounded
// capture window, and a final aggregation pass, wiring every response
// through redact -> normalize -> features -> classify -> bodystore ->
// journal via the limiter.
package capture

import (
	"fmt"
	"regexp"

	"github.com/jnd-labs/webcapture/internal/models"
)

// Options is the full configuration surface recognized by the core,
// spec.md §6.
type Options struct {
	URL string

	MonitorMs int
	TimeoutMs int

	OutDir string

	IncludeRegex *regexp.Regexp
	ExcludeRegex *regexp.Regexp

	MaxBodyBytes    int64
	InlineBodyBytes int64

	MaxCaptures           int
	MaxConcurrentCaptures int
	CaptureAllJSON        bool

	Flow models.Flow

	SaveHAR bool
	Trace   bool

	UserAgent string

	ConsentMode     string
	ConsentAction   string
	ConsentHandlers []models.InterstitialHandler

	StorageState     []byte
	SaveStorageState string
	SaveSession      string

	DisableSummary bool

	// WatchMode disables the global hard deadline armed at INIT, per
	// spec.md 4.8.
	WatchMode bool
}

const (
	defaultMaxBodyBytes    = 1 << 20 // 1 MiB
	defaultInlineBodyBytes = 16 << 10 // 16 KiB
	defaultMaxConcurrent   = 6
	defaultWaitIdleMs      = 5000
	defaultDrainFloorMs    = 10000
)

// applyDefaults fills in the fixed defaults named in spec.md §6 for any
// zero-valued field that has one.
func (o *Options) applyDefaults() {
	if o.MaxBodyBytes == 0 {
		o.MaxBodyBytes = defaultMaxBodyBytes
	}
	if o.InlineBodyBytes == 0 {
		o.InlineBodyBytes = defaultInlineBodyBytes
	}
	if o.MaxConcurrentCaptures == 0 {
		o.MaxConcurrentCaptures = defaultMaxConcurrent
	}
}

// Validate rejects invalid configuration combinations before any run
// directory is created, per spec.md §7: "raised before LAUNCH; no run
// directory created."
func (o *Options) Validate() error {
	o.applyDefaults()

	if o.URL == "" {
		return fmt.Errorf("url is required")
	}
	if !o.WatchMode && o.MonitorMs >= o.TimeoutMs {
		return fmt.Errorf("monitorMs (%d) must be less than timeoutMs (%d)", o.MonitorMs, o.TimeoutMs)
	}
	if o.InlineBodyBytes > o.MaxBodyBytes {
		return fmt.Errorf("inlineBodyBytes (%d) must not exceed maxBodyBytes (%d)", o.InlineBodyBytes, o.MaxBodyBytes)
	}
	if o.MaxConcurrentCaptures < 1 {
		return fmt.Errorf("maxConcurrentCaptures must be >= 1, got %d", o.MaxConcurrentCaptures)
	}
	if o.ConsentAction != "" && o.ConsentAction != "reject" && o.ConsentAction != "accept" {
		return fmt.Errorf("consentAction must be reject or accept, got %q", o.ConsentAction)
	}
	return nil
}
