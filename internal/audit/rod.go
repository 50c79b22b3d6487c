package audit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"ga4skill/internal/logging"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"go.uber.org/zap"
)

// BrowserConfig controls the Chrome instance used for audits.
type BrowserConfig struct {
	// DebuggerURL connects to a running Chrome instead of launching one.
	DebuggerURL       string        `json:"debugger_url" yaml:"debugger_url"`
	Bin               string        `json:"bin" yaml:"bin"`
	Headless          bool          `json:"headless" yaml:"headless"`
	ViewportWidth     int           `json:"viewport_width" yaml:"viewport_width"`
	ViewportHeight    int           `json:"viewport_height" yaml:"viewport_height"`
	NavigationTimeout time.Duration `json:"navigation_timeout" yaml:"navigation_timeout"`
}

// DefaultBrowserConfig returns a headless 1280x800 configuration.
func DefaultBrowserConfig() BrowserConfig {
	return BrowserConfig{
		Headless:          true,
		ViewportWidth:     1280,
		ViewportHeight:    800,
		NavigationTimeout: 60 * time.Second,
	}
}

// RodBrowser is a Browser backed by Chrome through the DevTools protocol.
type RodBrowser struct {
	cfg     BrowserConfig
	mu      sync.Mutex
	launch  *launcher.Launcher
	browser *rod.Browser
	log     *zap.Logger
}

// Launch starts Chrome, or connects to cfg.DebuggerURL, and returns the
// connected browser.
func Launch(ctx context.Context, cfg BrowserConfig) (*RodBrowser, error) {
	log := logging.Get(logging.CategoryBrowser)
	b := &RodBrowser{cfg: cfg, log: log}

	controlURL := cfg.DebuggerURL
	if controlURL == "" {
		l := launcher.New().Headless(cfg.Headless)
		if cfg.Bin != "" {
			l = l.Bin(cfg.Bin)
		}
		u, err := l.Context(ctx).Launch()
		if err != nil {
			return nil, fmt.Errorf("launch chrome: %w", err)
		}
		b.launch = l
		controlURL = u
	}

	browser := rod.New().ControlURL(controlURL).Context(ctx)
	if err := browser.Connect(); err != nil {
		b.cleanup()
		return nil, fmt.Errorf("connect to chrome: %w", err)
	}
	b.browser = browser
	log.Debug("browser connected", zap.String("control_url", controlURL), zap.Bool("headless", cfg.Headless))
	return b, nil
}

// NewPage opens a page in a fresh incognito context and registers
// initScript to run before any page script on every navigation.
func (b *RodBrowser) NewPage(ctx context.Context, initScript string) (Page, error) {
	b.mu.Lock()
	browser := b.browser
	b.mu.Unlock()
	if browser == nil {
		return nil, errors.New("browser not connected")
	}

	incognito, err := browser.Incognito()
	if err != nil {
		return nil, fmt.Errorf("incognito context: %w", err)
	}

	page, err := incognito.Page(proto.TargetCreateTarget{})
	if err != nil {
		_ = incognito.Close()
		return nil, fmt.Errorf("create page: %w", err)
	}

	if b.cfg.ViewportWidth > 0 && b.cfg.ViewportHeight > 0 {
		if err := (proto.EmulationSetDeviceMetricsOverride{
			Width:             b.cfg.ViewportWidth,
			Height:            b.cfg.ViewportHeight,
			DeviceScaleFactor: 1.0,
			Mobile:            false,
		}).Call(page); err != nil {
			b.log.Warn("failed to set viewport", zap.Error(err))
		}
	}

	if initScript != "" {
		if _, err := page.EvalOnNewDocument(initScript); err != nil {
			_ = incognito.Close()
			return nil, fmt.Errorf("install init script: %w", err)
		}
	}

	return &rodPage{page: page, incognito: incognito, navTimeout: b.cfg.NavigationTimeout, log: b.log}, nil
}

// Close shuts the browser down and removes the launched profile.
func (b *RodBrowser) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	var err error
	if b.browser != nil {
		err = b.browser.Close()
		b.browser = nil
	}
	b.cleanup()
	return err
}

func (b *RodBrowser) cleanup() {
	if b.launch != nil {
		b.launch.Kill()
		b.launch.Cleanup()
		b.launch = nil
	}
}

type rodPage struct {
	page       *rod.Page
	incognito  *rod.Browser
	navTimeout time.Duration
	log        *zap.Logger
}

func (p *rodPage) Navigate(ctx context.Context, url string) error {
	page := p.page.Context(ctx)
	if p.navTimeout > 0 {
		page = page.Timeout(p.navTimeout)
		defer page.CancelTimeout()
	}
	wait := page.WaitNavigation(proto.PageLifecycleEventNameDOMContentLoaded)
	if err := page.Navigate(url); err != nil {
		return navigationErr(ctx, page.GetContext(), p.navTimeout, err)
	}
	// wait returns quietly when its context ends, so the context decides.
	wait()
	return navigationErr(ctx, page.GetContext(), p.navTimeout, nil)
}

// navigationErr classifies how a navigation under nav, derived from parent,
// ended. A deadline on nav alone is the navigation timeout.
func navigationErr(parent, nav context.Context, timeout time.Duration, err error) error {
	if perr := parent.Err(); perr != nil {
		return perr
	}
	if errors.Is(nav.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("DOMContentLoaded not reached within %s", timeout)
	}
	return err
}

func (p *rodPage) Eval(ctx context.Context, js string, out any, args ...any) error {
	res, err := p.page.Context(ctx).Evaluate(&rod.EvalOptions{
		JS:           js,
		JSArgs:       args,
		ByValue:      true,
		AwaitPromise: true,
	})
	if err != nil {
		return err
	}
	if out == nil || res == nil {
		return nil
	}

	raw, err := res.Value.MarshalJSON()
	if err != nil {
		return fmt.Errorf("marshal eval result: %w", err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode eval result: %w", err)
	}
	return nil
}

func (p *rodPage) Close() error {
	_ = p.page.Close()
	return p.incognito.Close()
}
