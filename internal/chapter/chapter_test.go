package chapter

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInferChapterID(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"/docs/chapter-04-core-cli-commands/", "chapter-04-core-cli-commands"},
		{"/", HomeID},
		{"", HomeID},
		{"/docs/", HomeID},
		{"/docs///", HomeID},
		{"/docs/tooling/Setup-Guide", "setup-guide"},
		{"/book/docs/intro/", "intro"},
		{"/docs/a/docs/b", "a"},
		{"/blog/post", HomeID},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.want, InferChapterID(tt.path))
		})
	}
}

func TestInferContentGroup(t *testing.T) {
	tests := []struct {
		path string
		want Group
	}{
		{"/docs/chapter-02-x", GroupChapter},
		{"/blog/post", GroupSite},
		{"/", GroupSite},
		{"/docs/tooling/ide", GroupTooling},
		{"/docs/intro", GroupDocsOther},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.want, InferContentGroup(tt.path))
		})
	}
}

func TestNormalizeTitle(t *testing.T) {
	assert.Equal(t, "Core CLI Commands", NormalizeTitle("  Core CLI Commands | Playwright CLI Book"))
	assert.Equal(t, "No Separator", NormalizeTitle("No Separator"))
	assert.Equal(t, UntitledTitle, NormalizeTitle(""))
	assert.Equal(t, UntitledTitle, NormalizeTitle("   | Book"))
}

func TestResolve(t *testing.T) {
	meta := Resolve("/docs/chapter-01-agentic-testing-revolution", "Agentic Testing | Book")
	assert.Equal(t, Meta{
		ChapterID:    "chapter-01-agentic-testing-revolution",
		ChapterTitle: "Agentic Testing",
		ContentGroup: GroupChapter,
	}, meta)
}
