package models

import "context"

// LoadState names the load-state values a Page can be asked to wait for.
type LoadState string

const (
	LoadStateNetworkIdle     LoadState = "networkidle"
	LoadStateDOMContentLoaded LoadState = "domcontentloaded"
)

// ResponseEvent is the shape delivered to an OnResponse handler. Body may
// fail for opaque (e.g. cross-origin no-cors) responses; callers must treat
// a non-nil error from Body as a per-response failure, not a fatal one.
type ResponseEvent struct {
	URL          string
	Status       int
	Method       string
	ResourceType string
	ContentLength int64

	AllHeaders        func() (map[string]string, error)
	RequestAllHeaders func() (map[string]string, error)
	Body              func() ([]byte, error)
}

// Frame is the minimal frame surface an InterstitialHandler needs.
type Frame interface {
	URL() string
}

// Page is the subset of browser-page operations the orchestrator drives.
// It is implemented by the embedding application's browser automation
// layer (e.g. a Playwright or chromedp adapter); this module never
// implements Page itself.
type Page interface {
	Goto(ctx context.Context, url string, waitUntil LoadState, timeoutMs int) error
	WaitForLoadState(ctx context.Context, state LoadState, timeoutMs int) error
	WaitForURL(ctx context.Context, predicate func(url string) bool, timeoutMs int) error
	OnResponse(handler func(ResponseEvent))
	Frames() []Frame
}

// Context is the subset of browser-context operations the orchestrator
// drives, analogous to a Playwright BrowserContext.
type Context interface {
	NewPage(ctx context.Context) (Page, error)
	StorageState(ctx context.Context, path string) ([]byte, error)
	Close(ctx context.Context) error
}

// BrowserSession is the external collaborator that supplies navigation,
// DOM access, and response events. The capture pipeline only ever
// consumes this interface; it never launches a real browser.
type BrowserSession interface {
	NewContext(ctx context.Context, opts SessionOptions) (Context, error)
	Close(ctx context.Context) error
}

// SessionOptions carries the handful of browser-context knobs the
// orchestrator forwards: user agent and an optional storage-state blob to
// seed cookies/local storage.
type SessionOptions struct {
	UserAgent    string
	StorageState []byte
}

// InterstitialAction names which consent action to take when a handler
// dismisses a matched interstitial.
type InterstitialAction string

const (
	InterstitialReject InterstitialAction = "reject"
	InterstitialAccept InterstitialAction = "accept"
)

// InterstitialHandler is a pluggable consent/interstitial dismisser. The
// orchestrator iterates all frames times all registered handlers, stopping
// after the first successful dismissal.
type InterstitialHandler interface {
	Match(ctx context.Context, frame Frame) (bool, error)
	Handle(ctx context.Context, frame Frame, action InterstitialAction, timeoutMs int) (bool, error)
}

// Flow is a user-authored unit of scripted interaction, run once between
// WAIT_IDLE and CAPTURE_WINDOW.
type Flow interface {
	Run(ctx context.Context, page Page) error
}
