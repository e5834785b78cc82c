// Package scripting executes document JavaScript, most commonly the
// actions behind javascript links, against a controlled viewer DOM.
// Scripts never touch the document or the widget tree directly; the
// DOM is the whole surface they see.
package scripting

import "context"

// Engine runs one script against a DOM. Implementations must honor
// context cancellation for runaway scripts.
type Engine interface {
	Name() string
	Execute(ctx context.Context, script string, dom ViewerDOM) error
}

// ViewerDOM is the viewer surface exposed to scripts. Zoom values are
// percentages, matching the convention document scripts expect.
type ViewerDOM interface {
	// PageNum is the zero-based current page.
	PageNum() int
	SetPageNum(n int)
	NumPages() int
	// Zoom returns the current zoom in percent, 100 being actual size.
	Zoom() float64
	SetZoom(percent float64)
	// Alert surfaces a message to the user.
	Alert(message string)
}
