// Package scanner collects the evidence an accessibility audit runs on.
//
// Browser drives headless Chrome: it navigates with a fallback chain,
// captures markup and a screenshot, extracts links, headings and controls,
// records a keyboard focus trace, and runs axe-core. Static fetches the
// page over plain HTTP and extracts what can be read without rendering.
//
// Only a navigation failure is fatal. Every other capture step degrades
// to an empty result.
package scanner

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// Config configures a Browser.
type Config struct {
	// ChromeURL is the DevTools URL of a remote Chrome. Empty = local launch.
	ChromeURL string `yaml:"chrome_url"`

	// AxeScript is an axe-core bundle, as a file path or an http(s) URL.
	// Empty = no structural violations.
	AxeScript string `yaml:"axe_script"`

	NavigationTimeout time.Duration `yaml:"navigation_timeout"`
	ScreenshotTimeout time.Duration `yaml:"screenshot_timeout"`
	TabPresses        int           `yaml:"tab_presses"`
	TabWait           time.Duration `yaml:"tab_wait"`
	LinkLimit         int           `yaml:"link_limit"`

	ResourceBlocking []string      `yaml:"resource_blocking"`
	RecycleInterval  time.Duration `yaml:"recycle_interval"`

	Logger *slog.Logger `yaml:"-"`
}

func (c *Config) defaults() {
	if c.NavigationTimeout <= 0 {
		c.NavigationTimeout = 30 * time.Second
	}
	if c.ScreenshotTimeout <= 0 {
		c.ScreenshotTimeout = 10 * time.Second
	}
	if c.TabPresses <= 0 {
		c.TabPresses = 15
	}
	if c.TabWait <= 0 {
		c.TabWait = 60 * time.Millisecond
	}
	if c.LinkLimit <= 0 {
		c.LinkLimit = 50
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// NavigationError reports a page that could not be loaded by any
// navigation strategy.
type NavigationError struct {
	URL      string
	Attempts []error
}

func (e *NavigationError) Error() string {
	msgs := make([]string, len(e.Attempts))
	for i, a := range e.Attempts {
		msgs[i] = a.Error()
	}
	return fmt.Sprintf("scanner: navigation to %s failed: %s", e.URL, strings.Join(msgs, "; "))
}

func (e *NavigationError) Unwrap() error {
	return errors.Join(e.Attempts...)
}
