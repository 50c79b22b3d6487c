package tracker

import (
	"sort"
	"strings"
)

// Node is an in-memory DOM element.
type Node struct {
	Tag      string
	Attrs    map[string]string
	Text     string
	parent   *Node
	children []*Node
}

// NewNode returns a detached element.
func NewNode(tag string, attrs map[string]string, text string) *Node {
	return &Node{Tag: tag, Attrs: attrs, Text: text}
}

// Append adds children to n and returns n.
func (n *Node) Append(children ...*Node) *Node {
	for _, c := range children {
		c.parent = n
		n.children = append(n.children, c)
	}
	return n
}

// TagName implements Element.
func (n *Node) TagName() string { return n.Tag }

// Attr implements Element.
func (n *Node) Attr(name string) (string, bool) {
	v, ok := n.Attrs[name]
	return v, ok
}

// TextContent implements Element: the node's text followed by its
// descendants' text in document order.
func (n *Node) TextContent() string {
	var b strings.Builder
	n.writeText(&b)
	return b.String()
}

func (n *Node) writeText(b *strings.Builder) {
	b.WriteString(n.Text)
	for _, c := range n.children {
		c.writeText(b)
	}
}

// Parent implements Element.
func (n *Node) Parent() Element {
	if n.parent == nil {
		return nil
	}
	return n.parent
}

// Find returns the first node, in document order, for which match is true.
func (n *Node) Find(match func(*Node) bool) *Node {
	if match(n) {
		return n
	}
	for _, c := range n.children {
		if found := c.Find(match); found != nil {
			return found
		}
	}
	return nil
}

// Window is an in-memory Host. It backs tests and the simulate command.
type Window struct {
	Doc *Node

	title          string
	pathname       string
	scrollY        float64
	viewportHeight float64
	documentHeight float64

	nextID int
	scroll map[int]func()
	click  map[int]func(Element)
}

// NewWindow returns a window with an empty body.
func NewWindow(viewportHeight, documentHeight float64) *Window {
	return &Window{
		Doc:            NewNode("body", nil, ""),
		viewportHeight: viewportHeight,
		documentHeight: documentHeight,
		scroll:         make(map[int]func()),
		click:          make(map[int]func(Element)),
	}
}

// SetLocation changes the current path and title, as a router would.
func (w *Window) SetLocation(pathname, title string) {
	w.pathname = pathname
	w.title = title
	w.scrollY = 0
}

// SetDocumentHeight changes the page height.
func (w *Window) SetDocumentHeight(h float64) { w.documentHeight = h }

// Pathname returns the current path.
func (w *Window) Pathname() string { return w.pathname }

// Title implements Host.
func (w *Window) Title() string { return w.title }

// ScrollY implements Host.
func (w *Window) ScrollY() float64 { return w.scrollY }

// ViewportHeight implements Host.
func (w *Window) ViewportHeight() float64 { return w.viewportHeight }

// DocumentHeight implements Host.
func (w *Window) DocumentHeight() float64 { return w.documentHeight }

// ScrollTo moves the viewport, clamped to the document, and dispatches a
// scroll event.
func (w *Window) ScrollTo(y float64) {
	maxY := w.documentHeight - w.viewportHeight
	if y > maxY {
		y = maxY
	}
	if y < 0 {
		y = 0
	}
	w.scrollY = y
	for _, id := range sortedIDs(w.scroll) {
		if fn, ok := w.scroll[id]; ok {
			fn()
		}
	}
}

// ScrollToFraction scrolls so that the bottom of the viewport sits at
// fraction (0..1) of the document height.
func (w *Window) ScrollToFraction(fraction float64) {
	w.ScrollTo(fraction*w.documentHeight - w.viewportHeight)
}

// Click dispatches a click on target.
func (w *Window) Click(target Element) {
	for _, id := range sortedIDs(w.click) {
		if fn, ok := w.click[id]; ok {
			fn(target)
		}
	}
}

// OnScroll implements Host.
func (w *Window) OnScroll(fn func()) Subscription {
	id := w.register()
	w.scroll[id] = fn
	return SubscriptionFunc(func() { delete(w.scroll, id) })
}

// OnClick implements Host.
func (w *Window) OnClick(fn func(Element)) Subscription {
	id := w.register()
	w.click[id] = fn
	return SubscriptionFunc(func() { delete(w.click, id) })
}

// Listeners returns the number of registered scroll and click listeners.
func (w *Window) Listeners() (scroll, click int) {
	return len(w.scroll), len(w.click)
}

func (w *Window) register() int {
	w.nextID++
	return w.nextID
}

func sortedIDs[T any](m map[int]T) []int {
	ids := make([]int, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}
