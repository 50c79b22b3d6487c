package bootstrap

import (
	"bytes"
	"encoding/json"
	"fmt"
	"text/template"

	"ga4skill/internal/contract"
)

// SnippetMode selects which installation the snippet performs.
type SnippetMode string

const (
	// SnippetGTM installs the tag manager container only.
	SnippetGTM SnippetMode = "gtm"
	// SnippetGtag installs gtag.js directly, as a fallback to GTM.
	SnippetGtag SnippetMode = "gtag"
	// SnippetPlugin installs both, as the site plugin injects into every page.
	SnippetPlugin SnippetMode = "plugin"
)

// ParseSnippetMode validates s.
func ParseSnippetMode(s string) (SnippetMode, error) {
	switch m := SnippetMode(s); m {
	case SnippetGTM, SnippetGtag, SnippetPlugin:
		return m, nil
	}
	return "", fmt.Errorf("snippet mode must be one of: gtm, gtag, plugin (got %q)", s)
}

// GuardFlag is the global set by the snippet so repeated injection is a
// no-op.
const GuardFlag = "__ga4SkillTagLoaded"

type snippetData struct {
	Opts       Options
	Mode       SnippetMode
	GuardFlag  string
	Version    string
	GTMScript  string
	GtagScript string
}

var snippetFuncs = template.FuncMap{
	"json": func(v any) (string, error) {
		b, err := json.Marshal(v)
		if err != nil {
			return "", err
		}
		return string(b), nil
	},
}

var snippetTmpl = template.Must(template.New("snippet").Funcs(snippetFuncs).Parse(`<!-- ga4skill {{.Version}}: {{.Mode}} snippet -->
<script>
(function() {
  if (window.{{.GuardFlag}}) return;
  window.{{.GuardFlag}} = true;

  window.dataLayer = window.dataLayer || [];
  function gtag(){ window.dataLayer.push(arguments); }
  window.gtag = window.gtag || gtag;

  var restricted = new Set({{json .Opts.RestrictedRegions}});
  var locale = (navigator.languages && navigator.languages[0]) || navigator.language || '';
  var regionMatch = locale.match(/-([A-Za-z]{2})$/);
  var inferredRegion = regionMatch ? regionMatch[1].toUpperCase() : null;

  var consentMode = {{json .Opts.ConsentMode}};
  var analyticsStorage = 'granted';
  if (consentMode === 'strict_by_default') {
    analyticsStorage = 'denied';
  } else if (consentMode === 'balanced_by_region') {
    analyticsStorage = inferredRegion && restricted.has(inferredRegion) ? 'denied' : 'granted';
  }
{{if ne .Mode "gtm"}}
  var gtagScript = document.createElement('script');
  gtagScript.async = true;
  gtagScript.src = {{json .GtagScript}};
  document.head.appendChild(gtagScript);
{{end}}
  window.bookAnalyticsContext = {
    book_id: {{json .Opts.BookID}},
    version: {{json .Version}},
    measurement_id: {{json .Opts.MeasurementID}}
  };

  gtag('consent', 'default', {
    analytics_storage: analyticsStorage,
    ad_storage: 'denied',
    ad_user_data: 'denied',
    ad_personalization: 'denied'
  });
{{if ne .Mode "gtm"}}
  gtag('js', new Date());
  gtag('config', {{json .Opts.MeasurementID}}, {
    send_page_view: true,
    anonymize_ip: true
  });
{{end}}
  window.bookAnalyticsTrack = function(eventName, params) {
    var payload = Object.assign({}, params || {}, {
      event_name: eventName,
      book_id: window.bookAnalyticsContext.book_id,
      page_path: window.location.pathname,
      version: window.bookAnalyticsContext.version
    });
{{if ne .Mode "gtm"}}    gtag('event', eventName, payload);
{{end}}    window.dataLayer.push(Object.assign({ event: eventName }, payload));
  };
{{if ne .Mode "gtag"}}
  (function(w, d, s, l, i) {
    w[l] = w[l] || [];
    w[l].push({ 'gtm.start': new Date().getTime(), event: 'gtm.js' });
    var f = d.getElementsByTagName(s)[0],
      j = d.createElement(s),
      dl = l !== 'dataLayer' ? '&l=' + l : '';
    j.async = true;
    j.src = {{json .GTMScript}} + dl;
    if (f && f.parentNode) {
      f.parentNode.insertBefore(j, f);
    } else {
      d.head.appendChild(j);
    }
  })(window, document, 'script', 'dataLayer', {{json .Opts.GTMContainerID}});
{{end}}})();
</script>
{{- if ne .Mode "gtag"}}
<noscript><iframe src="https://www.googletagmanager.com/ns.html?id={{html .Opts.GTMContainerID}}" height="0" width="0" style="display:none;visibility:hidden"></iframe></noscript>
{{- end}}
`))

// RenderSnippet renders the page snippet for opts in mode.
func RenderSnippet(opts Options, mode SnippetMode) (string, error) {
	if err := opts.Validate(); err != nil {
		return "", fmt.Errorf("invalid snippet options: %w", err)
	}
	if _, err := ParseSnippetMode(string(mode)); err != nil {
		return "", err
	}
	if opts.RestrictedRegions == nil {
		opts.RestrictedRegions = []string{}
	}

	var buf bytes.Buffer
	err := snippetTmpl.Execute(&buf, snippetData{
		Opts:       opts,
		Mode:       mode,
		GuardFlag:  GuardFlag,
		Version:    contract.SchemaVersion,
		GTMScript:  GTMScriptURL(opts.GTMContainerID),
		GtagScript: GtagScriptURL(opts.MeasurementID),
	})
	if err != nil {
		return "", fmt.Errorf("render snippet: %w", err)
	}
	return buf.String(), nil
}
