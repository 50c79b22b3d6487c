// Package tracker is the page-lifecycle tracking runtime. For every
// navigation on a documentation route it emits chapter_view once, watches
// scroll depth to emit chapter_complete once, and reports code-copy and
// table-of-contents clicks. Once-only events are deduplicated per path for
// the whole session.
//
// The runtime is driven from a single event loop and is not safe for
// concurrent use.
package tracker

import (
	"strings"

	"ga4skill/internal/chapter"
	"ga4skill/internal/contract"
	"ga4skill/internal/datalayer"
	"ga4skill/internal/dedup"
	"ga4skill/internal/logging"

	"go.uber.org/zap"
)

// State is the per-navigation lifecycle state.
type State int

const (
	// StateIdle means no documentation route is being tracked.
	StateIdle State = iota
	// StateEntered is held while the view event is being decided.
	StateEntered
	// StateObserving watches scroll depth for completion.
	StateObserving
	// StateCompleted is terminal for the navigation; clicks are still tracked.
	StateCompleted
)

func (s State) String() string {
	switch s {
	case StateEntered:
		return "entered"
	case StateObserving:
		return "observing"
	case StateCompleted:
		return "completed"
	default:
		return "idle"
	}
}

// Runtime tracks one page at a time.
type Runtime struct {
	host    Host
	tracker Tracker
	claimer *dedup.Claimer
	logger  *zap.Logger

	nav *navigation
}

type navigation struct {
	path  string
	state State
	subs  []Subscription
}

// New returns a runtime observing host and emitting through t. Markers are
// claimed through claimer.
func New(host Host, t Tracker, claimer *dedup.Claimer) *Runtime {
	if claimer == nil {
		claimer = dedup.NewClaimer(dedup.NewMemoryStore())
	}
	return &Runtime{
		host:    host,
		tracker: t,
		claimer: claimer,
		logger:  logging.Get(logging.CategoryTracker),
	}
}

// Navigate tears down the listeners of the previous navigation and starts
// tracking path. Non-documentation routes are not tracked.
func (r *Runtime) Navigate(path string) {
	r.teardown()

	if !chapter.IsDocsRoute(path) {
		r.logger.Debug("skipping non-docs route", zap.String("path", path))
		return
	}

	nav := &navigation{path: path, state: StateEntered}
	r.nav = nav
	r.enter(nav)

	nav.state = StateObserving
	nav.subs = append(nav.subs,
		r.host.OnScroll(func() { r.onScroll(nav) }),
		r.host.OnClick(func(target Element) { r.onClick(nav, target) }),
	)
}

// Close stops tracking the current navigation.
func (r *Runtime) Close() {
	r.teardown()
}

// State returns the state of the current navigation.
func (r *Runtime) State() State {
	if r.nav == nil {
		return StateIdle
	}
	return r.nav.state
}

// Path returns the tracked path, or "" when idle.
func (r *Runtime) Path() string {
	if r.nav == nil {
		return ""
	}
	return r.nav.path
}

func (r *Runtime) teardown() {
	if r.nav == nil {
		return
	}
	for _, s := range r.nav.subs {
		s.Unsubscribe()
	}
	r.nav.subs = nil
	r.nav = nil
}

func (r *Runtime) enter(nav *navigation) {
	if !r.claimer.Claim(dedup.KindChapterView, nav.path) {
		r.logger.Debug("chapter_view already recorded", zap.String("path", nav.path))
		return
	}
	r.emit(nav, contract.EventChapterView, contract.BucketViewed, nil)
}

func (r *Runtime) onScroll(nav *navigation) {
	if nav.state != StateObserving {
		return
	}

	height := r.host.DocumentHeight()
	if height <= 0 {
		return
	}
	pct := (r.host.ScrollY() + r.host.ViewportHeight()) / height * 100
	if pct < contract.CompletionPercent {
		return
	}

	// A refused claim means this path already completed in the session, so
	// no later scroll can emit either.
	claimed := r.claimer.Claim(dedup.KindChapterComplete, nav.path)
	nav.state = StateCompleted
	if !claimed {
		return
	}
	r.emit(nav, contract.EventChapterComplete, contract.BucketCompleted, nil)
}

func (r *Runtime) onClick(nav *navigation, target Element) {
	if target == nil {
		return
	}
	if _, ok := closest(target, isCopyButton); ok {
		r.emit(nav, contract.EventCodeCopy, contract.BucketInteraction, nil)
		return
	}
	if link, ok := closest(target, isTOCLink); ok {
		r.emit(nav, contract.EventTOCInteraction, contract.BucketInteraction, datalayer.Params{
			contract.FieldTOCTarget: strings.TrimSpace(link.TextContent()),
		})
	}
}

func (r *Runtime) emit(nav *navigation, event, bucket string, extra datalayer.Params) {
	meta := chapter.Resolve(nav.path, r.host.Title())
	params := datalayer.Params{
		contract.FieldChapterID: meta.ChapterID,
		contract.FieldTitle:     meta.ChapterTitle,
		contract.FieldGroup:     string(meta.ContentGroup),
		contract.FieldBucket:    bucket,
	}
	for k, v := range extra {
		params[k] = v
	}
	r.logger.Debug("emit", zap.String("event", event), zap.String("path", nav.path))
	r.tracker.Track(event, params)
}
