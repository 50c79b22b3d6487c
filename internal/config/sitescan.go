package config

import (
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"ga4skill/internal/contract"
	"ga4skill/internal/logging"

	"go.uber.org/zap"
	"golang.org/x/net/html"
)

// PageTags counts tag loader references in one HTML page.
type PageTags struct {
	Path string `json:"path"`
	GTM  int    `json:"gtm"`
	Gtag int    `json:"gtag"`
}

// SiteScan is the result of scanning a built site.
type SiteScan struct {
	Pages           []PageTags `json:"pages"`
	Issues          []string   `json:"issues"`
	Recommendations []string   `json:"recommendations"`
}

// ScanSite walks dir for *.html files, in lexical order, and reports pages
// that load a tag library more than once or load both GTM and gtag.
func ScanSite(dir string) (*SiteScan, error) {
	var files []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && strings.EqualFold(filepath.Ext(path), ".html") {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk site dir: %w", err)
	}
	sort.Strings(files)

	scan := &SiteScan{Pages: []PageTags{}, Issues: []string{}, Recommendations: []string{}}
	if len(files) == 0 {
		scan.Issues = append(scan.Issues, fmt.Sprintf("No HTML files found in %s", dir))
		return scan, nil
	}

	log := logging.Get(logging.CategoryConfig)
	for _, path := range files {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("failed to open %s: %w", path, err)
		}
		page, err := CountTags(f)
		f.Close()
		if err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", path, err)
		}
		page.Path = path
		scan.Pages = append(scan.Pages, page)
		log.Debug("scanned page", zap.String("path", path), zap.Int("gtm", page.GTM), zap.Int("gtag", page.Gtag))

		if page.GTM > 1 {
			scan.Issues = append(scan.Issues, fmt.Sprintf("%s: GTM script appears %d times", path, page.GTM))
		}
		if page.Gtag > 1 {
			scan.Issues = append(scan.Issues, fmt.Sprintf("%s: gtag script appears %d times", path, page.Gtag))
		}
		if page.GTM > 0 && page.Gtag > 0 {
			scan.Recommendations = append(scan.Recommendations, fmt.Sprintf(
				"%s: both GTM and direct gtag found; ensure fallback mode to avoid dual counting", path))
		}
	}
	return scan, nil
}

// CountTags tokenizes an HTML document and counts GTM and gtag loader
// references, both as <script src> attributes and inside inline scripts
// that build the loader URL at runtime.
func CountTags(r io.Reader) (PageTags, error) {
	gtmRef := contract.GTMScriptMarker + "?id="
	gtagRef := contract.GtagScriptMarker + "?id="

	var (
		page     PageTags
		inScript bool
	)
	z := html.NewTokenizer(r)
	for {
		switch z.Next() {
		case html.ErrorToken:
			if err := z.Err(); err != io.EOF {
				return page, err
			}
			return page, nil
		case html.StartTagToken, html.SelfClosingTagToken:
			tok := z.Token()
			if tok.Data != "script" {
				continue
			}
			inScript = true
			for _, a := range tok.Attr {
				if a.Key != "src" {
					continue
				}
				page.GTM += strings.Count(a.Val, gtmRef)
				page.Gtag += strings.Count(a.Val, gtagRef)
			}
		case html.EndTagToken:
			if name, _ := z.TagName(); string(name) == "script" {
				inScript = false
			}
		case html.TextToken:
			if !inScript {
				continue
			}
			text := string(z.Text())
			page.GTM += strings.Count(text, gtmRef)
			page.Gtag += strings.Count(text, gtagRef)
		}
	}
}
