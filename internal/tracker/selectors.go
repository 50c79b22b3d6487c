package tracker

import "strings"

// closest returns el or its nearest ancestor that satisfies match.
func closest(el Element, match func(Element) bool) (Element, bool) {
	for cur := el; cur != nil; cur = cur.Parent() {
		if match(cur) {
			return cur, true
		}
	}
	return nil, false
}

// isCopyButton matches
// button[class*="copyButton"], button[aria-label*="copy" i].
func isCopyButton(el Element) bool {
	if !strings.EqualFold(el.TagName(), "button") {
		return false
	}
	if class, ok := el.Attr("class"); ok && strings.Contains(class, "copyButton") {
		return true
	}
	if label, ok := el.Attr("aria-label"); ok && strings.Contains(strings.ToLower(label), "copy") {
		return true
	}
	return false
}

// isTOCLink matches
// nav.table-of-contents a, a.table-of-contents__link.
func isTOCLink(el Element) bool {
	if !strings.EqualFold(el.TagName(), "a") {
		return false
	}
	if hasClass(el, "table-of-contents__link") {
		return true
	}
	for p := el.Parent(); p != nil; p = p.Parent() {
		if strings.EqualFold(p.TagName(), "nav") && hasClass(p, "table-of-contents") {
			return true
		}
	}
	return false
}

func hasClass(el Element, name string) bool {
	class, ok := el.Attr("class")
	if !ok {
		return false
	}
	for _, c := range strings.Fields(class) {
		if c == name {
			return true
		}
	}
	return false
}
