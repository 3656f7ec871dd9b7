package main

import "github.com/jnd-labs/webcapture/internal/models"

// BrowserSession returns the models.BrowserSession this binary drives, or
// nil if none is linked in. This module intentionally ships without a
// concrete browser automation adapter (Playwright, chromedp, or similar are
// external collaborators per spec.md §6); wire a real implementation here
// when building against one.
func BrowserSession() models.BrowserSession {
	return nil
}
