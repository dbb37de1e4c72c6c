package scanner

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-rod/rod/lib/input"

	"github.com/hazyhaar/a11yaudit/evidence"
	"github.com/hazyhaar/a11yaudit/scanner/internal/browser"
)

// Browser scans pages in headless Chrome. It is safe for concurrent use;
// every scan gets its own tab.
type Browser struct {
	cfg    Config
	mgr    *browser.Manager
	axeURL string
	axeJS  string
}

// NewBrowser starts Chrome. ctx bounds the recycle monitor, not the
// returned Browser.
func NewBrowser(ctx context.Context, cfg Config) (*Browser, error) {
	cfg.defaults()
	b := &Browser{cfg: cfg}

	switch {
	case cfg.AxeScript == "":
		cfg.Logger.Warn("scanner: no axe-core script configured, structural checks disabled")
	case strings.HasPrefix(cfg.AxeScript, "http://"), strings.HasPrefix(cfg.AxeScript, "https://"):
		b.axeURL = cfg.AxeScript
	default:
		data, err := os.ReadFile(cfg.AxeScript)
		if err != nil {
			return nil, fmt.Errorf("scanner: read axe script: %w", err)
		}
		b.axeJS = string(data)
	}

	b.mgr = browser.NewManager(browser.Config{
		RemoteURL:        cfg.ChromeURL,
		RecycleInterval:  cfg.RecycleInterval,
		ResourceBlocking: cfg.ResourceBlocking,
		Logger:           cfg.Logger,
	})
	if err := b.mgr.Start(ctx); err != nil {
		return nil, err
	}
	return b, nil
}

// Close stops Chrome.
func (b *Browser) Close() error {
	return b.mgr.Close()
}

// Scan loads pageURL and collects its evidence. The only error is a
// *NavigationError (or a tab that could not be opened).
func (b *Browser) Scan(ctx context.Context, pageURL string) (*evidence.Evidence, error) {
	log := b.cfg.Logger
	start := time.Now()

	tab, err := browser.OpenTab(b.mgr)
	if err != nil {
		return nil, fmt.Errorf("scanner: %w", err)
	}
	defer tab.Close()

	if err := b.navigate(ctx, tab, pageURL); err != nil {
		return nil, err
	}

	ev := &evidence.Evidence{}
	ev.Title, _ = tab.EvalString(ctx, `() => document.title`)
	if ev.HTML, err = tab.HTML(ctx); err != nil {
		log.WarnContext(ctx, "scanner: html capture failed", "url", pageURL, "error", err)
	}

	if png, err := tab.Screenshot(ctx, b.cfg.ScreenshotTimeout); err != nil {
		log.WarnContext(ctx, "scanner: screenshot failed", "url", pageURL, "error", err)
	} else {
		ev.Screenshot = base64.StdEncoding.EncodeToString(png)
	}

	ev.DOMContent = b.domContent(ctx, tab, pageURL)
	ev.TabLog = b.keyboardTrace(ctx, tab, pageURL)
	ev.Violations = b.axe(ctx, tab, pageURL)

	log.InfoContext(ctx, "scanner: page scanned",
		"url", pageURL,
		"violations", len(ev.Violations),
		"links", len(ev.DOMContent.Links),
		"tab_log", len(ev.TabLog),
		"duration_ms", time.Since(start).Milliseconds())
	return ev, nil
}

// navigate tries DOMContentLoaded, then load, then commit, settling after
// each success so client-side rendering can run.
func (b *Browser) navigate(ctx context.Context, tab *browser.Tab, pageURL string) error {
	steps := []struct {
		mode   browser.WaitMode
		settle time.Duration
	}{
		{browser.WaitDOMContentLoaded, 2 * time.Second},
		{browser.WaitLoad, 2 * time.Second},
		{browser.WaitCommit, 3 * time.Second},
	}

	var attempts []error
	for _, st := range steps {
		err := tab.Navigate(ctx, pageURL, st.mode, b.cfg.NavigationTimeout)
		if err == nil {
			return sleep(ctx, st.settle)
		}
		attempts = append(attempts, fmt.Errorf("%s: %w", st.mode, err))
		b.cfg.Logger.WarnContext(ctx, "scanner: navigation attempt failed",
			"url", pageURL, "wait", st.mode.String(), "error", err)
		if ctx.Err() != nil {
			break
		}
	}
	return &NavigationError{URL: pageURL, Attempts: attempts}
}

func (b *Browser) domContent(ctx context.Context, tab *browser.Tab, pageURL string) evidence.DOMContent {
	var dc evidence.DOMContent
	raw, err := tab.EvalString(ctx, domContentJS, b.cfg.LinkLimit)
	if err == nil {
		err = json.Unmarshal([]byte(raw), &dc)
	}
	if err != nil {
		b.cfg.Logger.WarnContext(ctx, "scanner: dom content extraction failed", "url", pageURL, "error", err)
		return evidence.DOMContent{}
	}
	return dc
}

// keyboardTrace presses Tab repeatedly and records where focus lands. A
// failure keeps the entries recorded so far.
func (b *Browser) keyboardTrace(ctx context.Context, tab *browser.Tab, pageURL string) []evidence.FocusEntry {
	var trace []evidence.FocusEntry
	if _, err := tab.EvalString(ctx, `() => { if (document.body) document.body.focus(); return ""; }`); err != nil {
		b.cfg.Logger.WarnContext(ctx, "scanner: keyboard trace failed", "url", pageURL, "error", err)
		return trace
	}
	for i := 0; i < b.cfg.TabPresses; i++ {
		if err := tab.Page.Context(ctx).Keyboard.Press(input.Tab); err != nil {
			b.cfg.Logger.WarnContext(ctx, "scanner: keyboard trace failed", "url", pageURL, "error", err)
			return trace
		}
		if err := sleep(ctx, b.cfg.TabWait); err != nil {
			return trace
		}
		raw, err := tab.EvalString(ctx, activeElementJS)
		if err != nil {
			b.cfg.Logger.WarnContext(ctx, "scanner: keyboard trace failed", "url", pageURL, "error", err)
			return trace
		}
		var fe evidence.FocusEntry
		if err := json.Unmarshal([]byte(raw), &fe); err != nil {
			return trace
		}
		trace = append(trace, fe)
	}
	return trace
}

func (b *Browser) axe(ctx context.Context, tab *browser.Tab, pageURL string) []evidence.Violation {
	if b.axeURL == "" && b.axeJS == "" {
		return nil
	}
	log := b.cfg.Logger
	if err := tab.Page.Context(ctx).AddScriptTag(b.axeURL, b.axeJS); err != nil {
		log.WarnContext(ctx, "scanner: axe injection failed", "url", pageURL, "error", err)
		return nil
	}
	raw, err := tab.EvalString(ctx, `() => axe.run(document).then(r => JSON.stringify(r.violations))`)
	if err != nil {
		log.WarnContext(ctx, "scanner: axe run failed", "url", pageURL, "error", err)
		return nil
	}
	vs, err := parseAxe(raw)
	if err != nil {
		log.WarnContext(ctx, "scanner: axe result unreadable", "url", pageURL, "error", err)
		return nil
	}
	return vs
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

const domContentJS = `(limit) => {
	const selectorOf = (el) => {
		if (el.id) return '#' + el.id;
		if (typeof el.className === 'string' && el.className.trim()) return '.' + el.className.trim().split(/\s+/)[0];
		return el.tagName.toLowerCase();
	};
	const text = (el) => (el.innerText || el.value || el.getAttribute('aria-label') || '').trim();
	return JSON.stringify({
		links: Array.from(document.querySelectorAll('a[href]')).slice(0, limit).map(a => ({
			text: a.innerText.trim() || 'No Text',
			href: a.href,
			html: a.outerHTML.substring(0, 200),
			selector: selectorOf(a),
		})),
		headings: Array.from(document.querySelectorAll('h1, h2, h3, h4, h5, h6')).map(h => ({
			level: h.tagName,
			text: h.innerText.trim(),
		})),
		interactive: Array.from(document.querySelectorAll('button, input, select, textarea, [role="button"], a')).map(el => ({
			tag: el.tagName.toLowerCase(),
			text: text(el),
			html: el.outerHTML.substring(0, 300),
		})),
	});
}`

const activeElementJS = `() => {
	const el = document.activeElement;
	return JSON.stringify({
		tag: el ? el.tagName : '',
		text: el ? (el.innerText || '').substring(0, 20) : '',
		id: (el && el.id) || '',
	});
}`
