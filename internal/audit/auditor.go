package audit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"ga4skill/internal/contract"
	"ga4skill/internal/logging"

	"go.uber.org/zap"
)

// Page is one browser tab with the recording shim installed.
type Page interface {
	// Navigate loads url and returns once the DOM is ready.
	Navigate(ctx context.Context, url string) error
	// Eval calls the JS function expression js with args and decodes its
	// JSON result into out, which may be nil.
	Eval(ctx context.Context, js string, out any, args ...any) error
	Close() error
}

// Browser opens pages that run initScript before any page script.
type Browser interface {
	NewPage(ctx context.Context, initScript string) (Page, error)
	Close() error
}

// Options tunes the audit run. Zero values take the defaults.
type Options struct {
	// Timeout bounds navigation.
	Timeout time.Duration
	// SettleDelay is waited after load for asynchronous initialization.
	SettleDelay time.Duration
	// PollInterval is the interval of every event poll.
	PollInterval time.Duration
	// ViewTimeout bounds the wait for chapter_view.
	ViewTimeout time.Duration
	// ScrollSteps increments of ScrollStepFraction viewports are tried
	// before jumping to the end of the document.
	ScrollSteps        int
	ScrollStepFraction float64
	// StepPoll is the brief poll after each scroll increment.
	StepPoll time.Duration
	// FinalPoll is the longer poll after the jump to the end.
	FinalPoll time.Duration
	// InteractionPoll bounds the wait for code_copy and toc_interaction.
	InteractionPoll time.Duration
	// FinalSettle is waited before reading the observation log back.
	FinalSettle time.Duration
}

// DefaultOptions returns the stock timings.
func DefaultOptions() Options {
	return Options{
		Timeout:            60 * time.Second,
		SettleDelay:        1200 * time.Millisecond,
		PollInterval:       100 * time.Millisecond,
		ViewTimeout:        5 * time.Second,
		ScrollSteps:        10,
		ScrollStepFraction: 0.5,
		StepPoll:           300 * time.Millisecond,
		FinalPoll:          3 * time.Second,
		InteractionPoll:    2 * time.Second,
		FinalSettle:        1000 * time.Millisecond,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.Timeout <= 0 {
		o.Timeout = d.Timeout
	}
	if o.SettleDelay < 0 {
		o.SettleDelay = 0
	}
	if o.PollInterval <= 0 {
		o.PollInterval = d.PollInterval
	}
	if o.ViewTimeout <= 0 {
		o.ViewTimeout = d.ViewTimeout
	}
	if o.ViewTimeout > o.Timeout {
		o.ViewTimeout = o.Timeout
	}
	if o.ScrollSteps <= 0 {
		o.ScrollSteps = d.ScrollSteps
	}
	if o.ScrollStepFraction <= 0 {
		o.ScrollStepFraction = d.ScrollStepFraction
	}
	if o.StepPoll <= 0 {
		o.StepPoll = d.StepPoll
	}
	if o.FinalPoll <= 0 {
		o.FinalPoll = d.FinalPoll
	}
	if o.InteractionPoll <= 0 {
		o.InteractionPoll = d.InteractionPoll
	}
	if o.FinalSettle < 0 {
		o.FinalSettle = 0
	}
	return o
}

// Auditor runs audits against one browser. Runs are sequential.
type Auditor struct {
	browser Browser
	opts    Options
	log     *zap.Logger
}

// New returns an Auditor using b.
func New(b Browser, opts Options) *Auditor {
	return &Auditor{
		browser: b,
		opts:    opts.withDefaults(),
		log:     logging.Get(logging.CategoryAudit),
	}
}

// Run audits url. Missing interaction targets are recorded, not errors;
// only page creation, navigation, reading the log back and cancellation
// abort the run.
func (a *Auditor) Run(ctx context.Context, url string) (*Report, error) {
	if url == "" {
		return nil, errors.New("audit url is required")
	}
	log := a.log.With(zap.String("url", url))

	page, err := a.browser.NewPage(ctx, ShimJS)
	if err != nil {
		return nil, fmt.Errorf("open page: %w", err)
	}
	defer func() {
		if cerr := page.Close(); cerr != nil {
			log.Debug("close page", zap.Error(cerr))
		}
	}()

	navCtx, cancel := context.WithTimeout(ctx, a.opts.Timeout)
	err = page.Navigate(navCtx, url)
	cancel()
	if err != nil {
		return nil, fmt.Errorf("navigate to %s: %w", url, err)
	}
	log.Debug("page loaded")

	if err := sleep(ctx, a.opts.SettleDelay); err != nil {
		return nil, err
	}

	var obs Observation
	obs.ViewObserved = a.waitFor(ctx, page, contract.EventChapterView, a.opts.ViewTimeout)
	log.Debug("view poll", zap.Bool("observed", obs.ViewObserved))

	obs.CompleteObserved = a.scrollForCompletion(ctx, page)
	log.Debug("completion poll", zap.Bool("observed", obs.CompleteObserved))

	obs.CodeCopyClicked = a.click(ctx, page, clickCopyJS, contract.EventCodeCopy)
	obs.TOCClicked = a.click(ctx, page, clickTOCJS, contract.EventTOCInteraction)

	if err := sleep(ctx, a.opts.FinalSettle); err != nil {
		return nil, err
	}

	if err := page.Eval(ctx, collectJS, &obs); err != nil {
		return nil, fmt.Errorf("read observation log: %w", err)
	}

	r := Classify(obs)
	log.Info("audit complete",
		zap.String("status", r.Status),
		zap.Strings("observed", r.ObservedEvents),
		zap.Strings("missing", r.MissingRequiredEvents))
	return r, nil
}

func (a *Auditor) scrollForCompletion(ctx context.Context, page Page) bool {
	for i := 0; i < a.opts.ScrollSteps; i++ {
		if ctx.Err() != nil {
			return false
		}
		if err := page.Eval(ctx, scrollStepJS, nil, a.opts.ScrollStepFraction); err != nil {
			a.log.Debug("scroll step failed", zap.Int("step", i), zap.Error(err))
		}
		if a.waitFor(ctx, page, contract.EventChapterComplete, a.opts.StepPoll) {
			return true
		}
	}
	if err := page.Eval(ctx, scrollToEndJS, nil); err != nil {
		a.log.Debug("scroll to end failed", zap.Error(err))
	}
	return a.waitFor(ctx, page, contract.EventChapterComplete, a.opts.FinalPoll)
}

// click runs a click script and, when a target was found, polls for event.
func (a *Auditor) click(ctx context.Context, page Page, js, event string) bool {
	var clicked bool
	if err := page.Eval(ctx, js, &clicked); err != nil {
		a.log.Debug("interaction not attempted", zap.String("event", event), zap.Error(err))
		return false
	}
	if !clicked {
		a.log.Debug("interaction target not found", zap.String("event", event))
		return false
	}
	seen := a.waitFor(ctx, page, event, a.opts.InteractionPoll)
	a.log.Debug("interaction poll", zap.String("event", event), zap.Bool("observed", seen))
	return true
}

func (a *Auditor) waitFor(ctx context.Context, page Page, event string, timeout time.Duration) bool {
	return Poll(ctx, timeout, a.opts.PollInterval, func(ctx context.Context) bool {
		var events []string
		if err := page.Eval(ctx, eventsJS, &events); err != nil {
			return false
		}
		for _, e := range events {
			if e == event {
				return true
			}
		}
		return false
	})
}
