package desktopdriver

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/playwright-community/playwright-go"
)

// PlaywrightDriver drives a single headless Chromium page. Unlike
// haasonsaas-nexus's browser.Pool, one kernel invocation owns exactly one
// driver for its lifetime (spec.md §5: the kernel is not reentrant), so
// there is no acquire/release bookkeeping here, only lazy startup and an
// explicit Close.
type PlaywrightDriver struct {
	workDir string

	pw      *playwright.Playwright
	browser playwright.Browser
	page    playwright.Page
}

// NewPlaywrightDriver launches a headless Chromium instance backing a
// single page. workDir is where screenshots are saved (spec.md §5 default:
// ~/workspace/tools/computer_use).
func NewPlaywrightDriver(workDir string) (*PlaywrightDriver, error) {
	if err := os.MkdirAll(workDir, 0755); err != nil {
		return nil, fmt.Errorf("desktopdriver: create work dir: %w", err)
	}

	pw, err := playwright.Run()
	if err != nil {
		return nil, fmt.Errorf("desktopdriver: start playwright: %w", err)
	}

	browser, err := pw.Chromium.Launch(playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(true),
	})
	if err != nil {
		pw.Stop()
		return nil, fmt.Errorf("desktopdriver: launch chromium: %w", err)
	}

	page, err := browser.NewPage()
	if err != nil {
		browser.Close()
		pw.Stop()
		return nil, fmt.Errorf("desktopdriver: new page: %w", err)
	}

	return &PlaywrightDriver{workDir: workDir, pw: pw, browser: browser, page: page}, nil
}

func (d *PlaywrightDriver) Key(ctx context.Context, keys string) error {
	return d.page.Keyboard().Press(keys)
}

func (d *PlaywrightDriver) Type(ctx context.Context, text string) error {
	return d.page.Keyboard().Type(text)
}

func (d *PlaywrightDriver) MouseMove(ctx context.Context, p Point) error {
	return d.page.Mouse().Move(float64(p.X), float64(p.Y))
}

// Click moves the mouse to p and clicks it `clicks` times with the given
// button ("left", "right", "middle"). Triple-click is simulated as three
// discrete clicks per spec.md §4.E, not Playwright's native ClickCount
// option, so each click is independently observable.
func (d *PlaywrightDriver) Click(ctx context.Context, p Point, button string, clicks int) error {
	if err := d.MouseMove(ctx, p); err != nil {
		return err
	}
	if clicks <= 0 {
		clicks = 1
	}
	btn := mouseButton(button)
	for i := 0; i < clicks; i++ {
		if err := d.page.Mouse().Down(playwright.MouseDownOptions{Button: btn}); err != nil {
			return err
		}
		if err := d.page.Mouse().Up(playwright.MouseUpOptions{Button: btn}); err != nil {
			return err
		}
	}
	return nil
}

func mouseButton(button string) *playwright.MouseButton {
	switch button {
	case "right":
		b := playwright.MouseButtonRight
		return &b
	case "middle":
		b := playwright.MouseButtonMiddle
		return &b
	default:
		b := playwright.MouseButtonLeft
		return &b
	}
}

func (d *PlaywrightDriver) Drag(ctx context.Context, from, to Point) error {
	if err := d.MouseMove(ctx, from); err != nil {
		return err
	}
	if err := d.page.Mouse().Down(); err != nil {
		return err
	}
	if err := d.MouseMove(ctx, to); err != nil {
		return err
	}
	return d.page.Mouse().Up()
}

// Scroll wheels the page by (dx, dy) pixels at p. playwright.Mouse.Wheel
// accepts both axes directly, so hscroll's horizontal delta is applied as
// given; neither this driver nor its caller converts it to a vertical scroll.
func (d *PlaywrightDriver) Scroll(ctx context.Context, p Point, dx, dy int) error {
	if err := d.MouseMove(ctx, p); err != nil {
		return err
	}
	return d.page.Mouse().Wheel(float64(dx), float64(dy))
}

func (d *PlaywrightDriver) Wait(ctx context.Context, seconds float64) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(time.Duration(seconds * float64(time.Second))):
		return nil
	}
}

func (d *PlaywrightDriver) Screenshot(ctx context.Context) (string, error) {
	name := fmt.Sprintf("%s.png", uuid.NewString())
	path := filepath.Join(d.workDir, name)
	if _, err := d.page.Screenshot(playwright.PageScreenshotOptions{
		Path: playwright.String(path),
		Type: playwright.ScreenshotTypePng,
	}); err != nil {
		return "", fmt.Errorf("desktopdriver: screenshot: %w", err)
	}
	return path, nil
}

func (d *PlaywrightDriver) Close() error {
	if d.browser != nil {
		d.browser.Close()
	}
	if d.pw != nil {
		return d.pw.Stop()
	}
	return nil
}
