package browser

import (
	"context"
	"fmt"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
)

// Viewport of every tab.
const (
	ViewportWidth  = 1920
	ViewportHeight = 1080
)

// Tab is one stealth page.
type Tab struct {
	Page *rod.Page
}

// OpenTab creates a blank stealth tab with the standard viewport.
func OpenTab(mgr *Manager) (*Tab, error) {
	b := mgr.Browser()
	if b == nil {
		return nil, fmt.Errorf("browser: no active browser")
	}

	page, err := stealth.Page(b)
	if err != nil {
		return nil, fmt.Errorf("browser: create tab: %w", err)
	}
	if err := page.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
		Width: ViewportWidth, Height: ViewportHeight, DeviceScaleFactor: 1,
	}); err != nil {
		page.Close()
		return nil, fmt.Errorf("browser: viewport: %w", err)
	}

	if len(mgr.cfg.ResourceBlocking) > 0 {
		applyResourceBlocking(page, mgr.cfg.ResourceBlocking)
	}
	return &Tab{Page: page}, nil
}

// WaitMode is how much of a navigation to wait for.
type WaitMode int

const (
	WaitDOMContentLoaded WaitMode = iota
	WaitLoad
	WaitCommit
)

func (w WaitMode) String() string {
	switch w {
	case WaitDOMContentLoaded:
		return "domcontentloaded"
	case WaitLoad:
		return "load"
	default:
		return "commit"
	}
}

// Navigate loads pageURL within timeout, waiting as mode says.
func (t *Tab) Navigate(ctx context.Context, pageURL string, mode WaitMode, timeout time.Duration) error {
	navCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	p := t.Page.Context(navCtx)

	switch mode {
	case WaitDOMContentLoaded:
		wait := p.WaitNavigation(proto.PageLifecycleEventNameDOMContentLoaded)
		if err := p.Navigate(pageURL); err != nil {
			return err
		}
		wait()
		return navCtx.Err()
	case WaitLoad:
		if err := p.Navigate(pageURL); err != nil {
			return err
		}
		return p.WaitLoad()
	default:
		return p.Navigate(pageURL)
	}
}

// EvalString runs a JS function returning a string.
func (t *Tab) EvalString(ctx context.Context, js string, args ...any) (string, error) {
	res, err := t.Page.Context(ctx).Eval(js, args...)
	if err != nil {
		return "", err
	}
	return res.Value.Str(), nil
}

// HTML returns the serialized document.
func (t *Tab) HTML(ctx context.Context) (string, error) {
	return t.Page.Context(ctx).HTML()
}

// Screenshot captures the viewport as PNG.
func (t *Tab) Screenshot(ctx context.Context, timeout time.Duration) ([]byte, error) {
	sctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return t.Page.Context(sctx).Screenshot(false, &proto.PageCaptureScreenshot{
		Format: proto.PageCaptureScreenshotFormatPng,
	})
}

// Close closes the tab.
func (t *Tab) Close() error {
	if t.Page != nil {
		return t.Page.Close()
	}
	return nil
}
