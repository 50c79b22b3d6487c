package config

import (
	"fmt"
	"path/filepath"
	"strings"
	"testing"

	"ga4skill/internal/bootstrap"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pageWith(head string) string {
	return "<!doctype html><html><head>" + head + "</head><body><p>gtm.js?id= in prose is ignored</p></body></html>"
}

func TestCountTags(t *testing.T) {
	doc := pageWith(`<script async src="https://www.googletagmanager.com/gtm.js?id=GTM-ABC1234"></script>` +
		`<script async src="https://www.googletagmanager.com/gtm.js?id=GTM-ABC1234"></script>` +
		`<script>var u = "https://www.googletagmanager.com/gtag/js?id=G-ABCDEFGH12";</script>`)

	page, err := CountTags(strings.NewReader(doc))
	require.NoError(t, err)
	assert.Equal(t, 2, page.GTM)
	assert.Equal(t, 1, page.Gtag)
}

func TestCountTagsRenderedSnippet(t *testing.T) {
	snippet, err := bootstrap.RenderSnippet(bootstrap.Options{
		MeasurementID:  "G-ABCDEFGH12",
		GTMContainerID: "GTM-ABC1234",
		BookID:         "book",
		ConsentMode:    bootstrap.ConsentAlwaysOn,
	}, bootstrap.SnippetPlugin)
	require.NoError(t, err)

	page, err := CountTags(strings.NewReader(pageWith(snippet)))
	require.NoError(t, err)
	assert.Equal(t, 1, page.GTM)
	assert.Equal(t, 1, page.Gtag)
}

func TestScanSite(t *testing.T) {
	dir := t.TempDir()
	gtm := `<script src="https://www.googletagmanager.com/gtm.js?id=GTM-ABC1234"></script>`
	gtag := `<script src="https://www.googletagmanager.com/gtag/js?id=G-ABCDEFGH12"></script>`

	clean := writeFile(t, dir, "index.html", pageWith(gtm))
	dup := writeFile(t, dir, "docs/dup.html", pageWith(gtm+gtm))
	dual := writeFile(t, dir, "docs/dual.html", pageWith(gtm+gtag))
	writeFile(t, dir, "docs/notes.txt", gtm+gtm)

	scan, err := ScanSite(dir)
	require.NoError(t, err)

	require.Len(t, scan.Pages, 3)
	assert.Equal(t, dual, scan.Pages[0].Path)
	assert.Equal(t, dup, scan.Pages[1].Path)
	assert.Equal(t, clean, scan.Pages[2].Path)

	assert.Equal(t, []string{fmt.Sprintf("%s: GTM script appears 2 times", dup)}, scan.Issues)
	assert.Equal(t, []string{
		fmt.Sprintf("%s: both GTM and direct gtag found; ensure fallback mode to avoid dual counting", dual),
	}, scan.Recommendations)
}

func TestScanSiteEmpty(t *testing.T) {
	dir := t.TempDir()
	scan, err := ScanSite(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{"No HTML files found in " + dir}, scan.Issues)

	_, err = ScanSite(filepath.Join(dir, "nope"))
	assert.Error(t, err)
}

func TestValidationReportAddScan(t *testing.T) {
	r := Validate(validConfig(t))
	r.AddScan(&SiteScan{Issues: []string{"x: GTM script appears 2 times"}})
	r.Finalize()
	assert.Equal(t, "fail", r.Status)
}
