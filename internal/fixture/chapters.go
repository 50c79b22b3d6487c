package fixture

import (
	"fmt"
	"strings"
)

// Section is one heading of a fixture chapter.
type Section struct {
	ID         string
	Heading    string
	Paragraphs []string
	Code       string
}

// Chapter is a fixture documentation page served under /docs/<Slug>.
type Chapter struct {
	Slug     string
	Title    string
	Sections []Section
}

const filler = "Playwright drives a real browser from the command line. Each command in this chapter " +
	"is run against the demo application so that the output shown matches what you will see locally."

func makeChapter(slug, title string, headings ...string) Chapter {
	c := Chapter{Slug: slug, Title: title}
	for i, h := range headings {
		paras := make([]string, 6)
		for j := range paras {
			paras[j] = fmt.Sprintf("%s (%d.%d)", filler, i+1, j+1)
		}
		c.Sections = append(c.Sections, Section{
			ID:         strings.ToLower(strings.ReplaceAll(h, " ", "-")),
			Heading:    h,
			Paragraphs: paras,
			Code:       fmt.Sprintf("npx playwright test --grep %q", h),
		})
	}
	return c
}

// DefaultChapters is the fixture book.
func DefaultChapters() []Chapter {
	return []Chapter{
		makeChapter("chapter-01-getting-started", "Getting Started", "Install", "First Test", "Running Tests"),
		makeChapter("chapter-04-core-cli-commands", "Core CLI Commands", "Codegen", "Test Runner", "Reports"),
		makeChapter("tooling/trace-viewer", "Trace Viewer", "Recording Traces", "Reading Traces"),
		makeChapter("appendix/glossary", "Glossary", "Terms"),
	}
}
