// Package simulate replays a scripted reading session through the tracking
// runtime against an in-memory page, then classifies the resulting
// dataLayer the way the browser audit does.
package simulate

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"ga4skill/internal/audit"
	"ga4skill/internal/bootstrap"
	"ga4skill/internal/contract"
	"ga4skill/internal/datalayer"
	"ga4skill/internal/dedup"
	"ga4skill/internal/logging"
	"ga4skill/internal/tracker"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// Click targets understood by a step.
const (
	TargetCopy  = "copy"
	TargetTOC   = "toc"
	TargetOther = "other"
)

// Script is a simulated reading session.
type Script struct {
	bootstrap.Options `yaml:",inline"`

	Languages      []string `yaml:"languages"`
	ViewportHeight float64  `yaml:"viewport_height"`
	Steps          []Step   `yaml:"steps"`
}

// Step is one action. Exactly one of Navigate, Scroll, Click or Bootstrap
// is set.
type Step struct {
	Navigate string   `yaml:"navigate,omitempty"`
	Title    string   `yaml:"title,omitempty"`
	Height   float64  `yaml:"height,omitempty"`
	Scroll   *float64 `yaml:"scroll,omitempty"` // fraction of the document
	Click    string   `yaml:"click,omitempty"`  // copy, toc, other
	Target   string   `yaml:"target,omitempty"` // toc link text
	// Bootstrap runs the page initialization again, as a second injected
	// snippet would.
	Bootstrap bool `yaml:"bootstrap,omitempty"`
}

func (s Step) action() (string, error) {
	var set []string
	if s.Navigate != "" {
		set = append(set, "navigate")
	}
	if s.Scroll != nil {
		set = append(set, "scroll")
	}
	if s.Click != "" {
		set = append(set, "click")
	}
	if s.Bootstrap {
		set = append(set, "bootstrap")
	}
	if len(set) != 1 {
		return "", fmt.Errorf("step must set exactly one action, got %d (%s)", len(set), strings.Join(set, ", "))
	}
	return set[0], nil
}

// Load reads a YAML script.
func Load(path string) (*Script, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read script: %w", err)
	}
	return Parse(data)
}

// Parse decodes and checks a YAML script.
func Parse(data []byte) (*Script, error) {
	var s Script
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to parse script: %w", err)
	}
	if len(s.Steps) == 0 {
		return nil, errors.New("script has no steps")
	}
	for i, st := range s.Steps {
		action, err := st.action()
		if err != nil {
			return nil, fmt.Errorf("step %d: %w", i+1, err)
		}
		if action == "click" {
			switch st.Click {
			case TargetCopy, TargetTOC, TargetOther:
			default:
				return nil, fmt.Errorf("step %d: unknown click target %q", i+1, st.Click)
			}
		}
	}
	return &s, nil
}

// Result is the outcome of a simulation.
type Result struct {
	Entries []datalayer.Entry  `json:"entries"`
	Scripts []bootstrap.Script `json:"scripts"`
	Report  *audit.Report      `json:"report"`
}

const (
	defaultViewport = 800
	defaultHeight   = 4000
)

// Run replays s. Dedup markers are claimed in store; a nil store keeps
// them in memory for this run only.
func Run(s *Script, store dedup.Store) (*Result, error) {
	bctx, err := bootstrap.NewContext(s.Options)
	if err != nil {
		return nil, err
	}
	if store == nil {
		store = dedup.NewMemoryStore()
	}
	log := logging.Get(logging.CategoryTracker)

	viewport := s.ViewportHeight
	if viewport <= 0 {
		viewport = defaultViewport
	}
	win := tracker.NewWindow(viewport, defaultHeight)
	layer := datalayer.New()
	doc := &bootstrap.Document{}
	env := bootstrap.Env{
		Sink:      layer,
		Document:  doc,
		Location:  win,
		Languages: s.Languages,
		Now:       func() time.Time { return time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC) },
	}

	entry := bctx.Bootstrap(env)
	rt := tracker.New(win, entry, dedup.NewClaimer(store))
	defer rt.Close()

	var obs audit.Observation
	for i, st := range s.Steps {
		action, err := st.action()
		if err != nil {
			return nil, fmt.Errorf("step %d: %w", i+1, err)
		}
		switch action {
		case "navigate":
			height := st.Height
			if height <= 0 {
				height = defaultHeight
			}
			win.Doc = tracker.NewNode("body", nil, "")
			win.SetLocation(st.Navigate, st.Title)
			win.SetDocumentHeight(height)
			rt.Navigate(st.Navigate)
		case "scroll":
			win.ScrollToFraction(*st.Scroll)
		case "click":
			switch st.Click {
			case TargetCopy:
				obs.CodeCopyClicked = true
				win.Click(copyButton(win))
			case TargetTOC:
				obs.TOCClicked = true
				win.Click(tocLink(win, st.Target))
			default:
				win.Click(paragraph(win))
			}
		case "bootstrap":
			bctx.Bootstrap(env)
		}
		log.Debug("simulated step",
			zap.Int("step", i+1),
			zap.String("action", action),
			zap.String("path", rt.Path()),
			zap.Stringer("state", rt.State()))
	}

	obs.Pushes = layer.Entries()
	obs.GTMScriptCount = doc.CountScripts(contract.GTMScriptMarker)
	obs.GtagScriptCount = doc.CountScripts(contract.GtagScriptMarker)

	return &Result{
		Entries: obs.Pushes,
		Scripts: doc.Scripts(),
		Report:  audit.Classify(obs),
	}, nil
}

func copyButton(w *tracker.Window) *tracker.Node {
	if n := w.Doc.Find(func(n *tracker.Node) bool { return n.Tag == "button" }); n != nil {
		return n
	}
	pre := tracker.NewNode("pre", nil, "")
	btn := tracker.NewNode("button", map[string]string{
		"class":      "copyButton_sim",
		"aria-label": "Copy code to clipboard",
	}, "")
	pre.Append(tracker.NewNode("code", nil, "npx playwright test"), btn)
	w.Doc.Append(pre)
	return btn
}

func tocLink(w *tracker.Window, text string) *tracker.Node {
	if text == "" {
		text = "Overview"
	}
	nav := w.Doc.Find(func(n *tracker.Node) bool { return n.Tag == "nav" })
	if nav == nil {
		nav = tracker.NewNode("nav", map[string]string{"class": "table-of-contents"}, "")
		w.Doc.Append(nav)
	}
	if a := nav.Find(func(n *tracker.Node) bool { return n.Tag == "a" && strings.TrimSpace(n.TextContent()) == text }); a != nil {
		return a
	}
	a := tracker.NewNode("a", map[string]string{"href": "#" + strings.ToLower(text)}, " "+text+" ")
	nav.Append(a)
	return a
}

func paragraph(w *tracker.Window) *tracker.Node {
	p := tracker.NewNode("p", nil, "Body text.")
	w.Doc.Append(p)
	return p
}
