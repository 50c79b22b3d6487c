package tracker

import "ga4skill/internal/datalayer"

// Element is the part of a DOM node the runtime inspects.
type Element interface {
	TagName() string
	Attr(name string) (string, bool)
	TextContent() string
	Parent() Element
}

// Subscription is returned by every listener registration. Unsubscribe
// removes the listener and is safe to call more than once.
type Subscription interface {
	Unsubscribe()
}

// Host is the page environment the runtime observes: document title,
// scroll geometry and the scroll/click event sources.
type Host interface {
	Title() string
	ScrollY() float64
	ViewportHeight() float64
	// DocumentHeight is the larger of the body and root element scroll
	// heights.
	DocumentHeight() float64

	OnScroll(fn func()) Subscription
	OnClick(fn func(target Element)) Subscription
}

// Tracker is the capability the runtime emits events through.
type Tracker interface {
	Track(eventName string, params datalayer.Params)
}

// TrackerFunc adapts a function to Tracker.
type TrackerFunc func(eventName string, params datalayer.Params)

// Track implements Tracker.
func (f TrackerFunc) Track(eventName string, params datalayer.Params) {
	f(eventName, params)
}

// SubscriptionFunc adapts a function to Subscription.
type SubscriptionFunc func()

// Unsubscribe implements Subscription.
func (f SubscriptionFunc) Unsubscribe() {
	f()
}
