// Package chapter derives a stable content identity for a documentation page
// from its navigation path and document title.
package chapter

import "strings"

// Group classifies a page for analytics content grouping.
type Group string

const (
	GroupSite      Group = "site"
	GroupChapter   Group = "chapter"
	GroupTooling   Group = "tooling"
	GroupDocsOther Group = "docs-other"
)

const (
	// DocsPrefix is the route prefix of documentation pages.
	DocsPrefix = "/docs/"

	// HomeID identifies the documentation root.
	HomeID = "docs-home"

	// UntitledTitle replaces an empty document title.
	UntitledTitle = "Untitled Chapter"

	chapterPrefix = DocsPrefix + "chapter-"
	toolingPrefix = DocsPrefix + "tooling"
)

// Meta is the derived identity of one navigation.
type Meta struct {
	ChapterID    string `json:"chapter_id" yaml:"chapter_id"`
	ChapterTitle string `json:"chapter_title" yaml:"chapter_title"`
	ContentGroup Group  `json:"content_group" yaml:"content_group"`
}

// Resolve computes the Meta for pathname and rawTitle. It never fails.
func Resolve(pathname, rawTitle string) Meta {
	return Meta{
		ChapterID:    InferChapterID(pathname),
		ChapterTitle: NormalizeTitle(rawTitle),
		ContentGroup: InferContentGroup(pathname),
	}
}

// InferChapterID returns the lower-cased last segment of the path below the
// docs prefix, or HomeID when nothing remains.
func InferChapterID(pathname string) string {
	_, rest, found := strings.Cut(pathname, DocsPrefix)
	if !found {
		return HomeID
	}
	// Only the text up to the next occurrence of the prefix counts, matching
	// a split on the prefix.
	if i := strings.Index(rest, DocsPrefix); i >= 0 {
		rest = rest[:i]
	}
	rest = strings.TrimSpace(strings.TrimRight(rest, "/"))
	if rest == "" {
		return HomeID
	}

	var leaf string
	for _, seg := range strings.Split(rest, "/") {
		if seg != "" {
			leaf = seg
		}
	}
	if leaf == "" {
		return HomeID
	}
	return strings.ToLower(leaf)
}

// InferContentGroup classifies pathname.
func InferContentGroup(pathname string) Group {
	switch {
	case !IsDocsRoute(pathname):
		return GroupSite
	case strings.Contains(pathname, chapterPrefix):
		return GroupChapter
	case strings.Contains(pathname, toolingPrefix):
		return GroupTooling
	default:
		return GroupDocsOther
	}
}

// NormalizeTitle keeps the text before the first "|" separator.
func NormalizeTitle(rawTitle string) string {
	first, _, _ := strings.Cut(rawTitle, "|")
	first = strings.TrimSpace(first)
	if first == "" {
		return UntitledTitle
	}
	return first
}

// IsDocsRoute reports whether pathname is a documentation page.
func IsDocsRoute(pathname string) bool {
	return strings.Contains(pathname, DocsPrefix)
}
