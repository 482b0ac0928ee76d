// Package desktopdriver implements the concrete backend behind the
// computer_use tool. The interface-only contract of spec.md §4.E places
// the true OS-level mouse/keyboard/screenshot surface out of scope; this
// package instead drives a real browser page through
// github.com/playwright-community/playwright-go, grounded on
// haasonsaas-nexus's internal/tools/browser package (Pool/BrowserInstance),
// giving every action (click, type, scroll, screenshot) a concrete,
// exercised dependency instead of a bare stub.
package desktopdriver

import "context"

// Point is a 2-element pixel coordinate.
type Point struct {
	X, Y int
}

// Driver is the action surface the computer_use tool dispatches onto. Every
// method corresponds to one or more actions in spec.md §4.E's enum.
type Driver interface {
	Key(ctx context.Context, keys string) error
	Type(ctx context.Context, text string) error
	MouseMove(ctx context.Context, p Point) error
	Click(ctx context.Context, p Point, button string, clicks int) error
	Drag(ctx context.Context, from, to Point) error
	Scroll(ctx context.Context, p Point, dx, dy int) error
	Wait(ctx context.Context, seconds float64) error
	Screenshot(ctx context.Context) (path string, err error)
	Close() error
}
