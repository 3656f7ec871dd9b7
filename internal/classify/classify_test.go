package classify

import (
	"regexp"
	"testing"

	"github.com/jnd-labs/webcapture/internal/models"
)

func TestDecideDropsWhenMaxCapturesReached(t *testing.T) {
	c := New(Options{MaxCaptures: 2})
	d := c.Decide(models.ResponseEvent{ResourceType: "xhr", Status: 200}, 2, "application/json")
	if d.Keep {
		t.Error("expected drop at maxCaptures")
	}
}

func TestDecideKeepsXHRWithoutJSONContentType(t *testing.T) {
	c := New(Options{})
	d := c.Decide(models.ResponseEvent{ResourceType: "xhr", Status: 200}, 0, "text/plain")
	if !d.Keep || !d.ReadBody {
		t.Errorf("expected keep+readBody for xhr resource type, got %+v", d)
	}
}

func TestDecideDropsDocumentResourceWithoutCaptureAllJSON(t *testing.T) {
	c := New(Options{})
	d := c.Decide(models.ResponseEvent{ResourceType: "document", Status: 200}, 0, "text/html")
	if d.Keep {
		t.Error("expected drop for non-xhr/fetch, non-JSON content type")
	}
}

func TestDecideCaptureAllJSONDropsResourceTypeGate(t *testing.T) {
	c := New(Options{CaptureAllJSON: true})
	d := c.Decide(models.ResponseEvent{ResourceType: "document", Status: 200}, 0, "application/json")
	if !d.Keep || !d.ReadBody {
		t.Errorf("expected keep+readBody for non-xhr/fetch resource type with JSON content-type under captureAllJson, got %+v", d)
	}
}

func TestDecideCaptureAllJSONStillRequiresJSONContentType(t *testing.T) {
	c := New(Options{CaptureAllJSON: true})
	d := c.Decide(models.ResponseEvent{ResourceType: "xhr", Status: 200}, 0, "text/html")
	if d.Keep {
		t.Errorf("expected drop for non-JSON content type even under captureAllJson, got %+v", d)
	}
}

func TestDecideDropsNonSuccessStatus(t *testing.T) {
	c := New(Options{})
	d := c.Decide(models.ResponseEvent{ResourceType: "xhr", Status: 500}, 0, "application/json")
	if d.Keep {
		t.Error("expected drop for 5xx status")
	}
}

func TestDecideEmptyBodyStatuses(t *testing.T) {
	c := New(Options{})
	for _, status := range []int{204, 304} {
		d := c.Decide(models.ResponseEvent{ResourceType: "xhr", Status: status}, 0, "application/json")
		if !d.Keep || d.ReadBody || d.OmittedReason != models.OmittedEmptyBody {
			t.Errorf("status %d: got %+v, want metadata-only emptyBody", status, d)
		}
	}
}

func TestDecideContentLengthOverBudget(t *testing.T) {
	c := New(Options{MaxBodyBytes: 100})
	d := c.Decide(models.ResponseEvent{ResourceType: "xhr", Status: 200, ContentLength: 1000}, 0, "application/json")
	if !d.Keep || d.ReadBody || d.OmittedReason != models.OmittedMaxBodyBytes {
		t.Errorf("got %+v, want metadata-only maxBodyBytes", d)
	}
}

func TestDecideIncludeExcludeRegex(t *testing.T) {
	c := New(Options{IncludeRegex: regexp.MustCompile(`/api/`)})
	d := c.Decide(models.ResponseEvent{URL: "https://x.test/other", ResourceType: "xhr", Status: 200}, 0, "application/json")
	if d.Keep {
		t.Error("expected drop when includeRegex does not match")
	}

	c2 := New(Options{ExcludeRegex: regexp.MustCompile(`/private/`)})
	d2 := c2.Decide(models.ResponseEvent{URL: "https://x.test/private/x", ResourceType: "xhr", Status: 200}, 0, "application/json")
	if d2.Keep {
		t.Error("expected drop when excludeRegex matches")
	}
}

func TestBodyOutcomeUnavailable(t *testing.T) {
	truncated, reason, keep := BodyOutcome(errAny, nil, 0, nil, true, false)
	if truncated || reason != models.OmittedUnavailable || keep {
		t.Errorf("got truncated=%v reason=%v keep=%v", truncated, reason, keep)
	}
}

func TestBodyOutcomeOverBudgetAfterRead(t *testing.T) {
	body := make([]byte, 200)
	truncated, reason, keep := BodyOutcome(nil, body, 100, nil, true, false)
	if !truncated || reason != models.OmittedMaxBodyBytes || keep {
		t.Errorf("got truncated=%v reason=%v keep=%v", truncated, reason, keep)
	}
}

func TestBodyOutcomeParseErrorJSONContentType(t *testing.T) {
	_, reason, keep := BodyOutcome(nil, []byte("not json"), 0, errAny, true, false)
	if reason != models.OmittedParseError || keep {
		t.Errorf("got reason=%v keep=%v, want parseError", reason, keep)
	}
}

func TestBodyOutcomeParseErrorNonJSONContentType(t *testing.T) {
	_, reason, keep := BodyOutcome(nil, []byte("not json"), 0, errAny, false, false)
	if reason != models.OmittedNonJSON || keep {
		t.Errorf("got reason=%v keep=%v, want nonJson", reason, keep)
	}
}

func TestBodyOutcomeSuccess(t *testing.T) {
	_, reason, keep := BodyOutcome(nil, []byte(`{"a":1}`), 0, nil, true, false)
	if reason != "" || !keep {
		t.Errorf("got reason=%v keep=%v, want success", reason, keep)
	}
}

var errAny = &testError{"boom"}

type testError struct{ msg string }

func (e *testError) Error() string { return e.msg }
