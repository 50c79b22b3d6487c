// Package bootstrap performs the one-time analytics initialization of a
// page: it pushes the consent default before anything else, installs the
// gtag and tag manager scripts once, and hands out the tracking entry point
// that stamps every event with the book context.
package bootstrap

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"

	"ga4skill/internal/contract"
	"ga4skill/internal/datalayer"
)

// Options is the configuration contract consumed by the bootstrap script.
type Options struct {
	MeasurementID     string      `json:"measurementId" yaml:"measurement_id"`
	GTMContainerID    string      `json:"gtmContainerId" yaml:"gtm_container_id"`
	BookID            string      `json:"bookId" yaml:"book_id"`
	ConsentMode       ConsentMode `json:"consentMode" yaml:"consent_mode"`
	RestrictedRegions []string    `json:"restrictedRegions" yaml:"restricted_regions"`
}

var gtmContainerRe = regexp.MustCompile(`^GTM-[A-Z0-9]{6,12}$`)

// Validate reports configuration errors that must stop initialization.
func (o Options) Validate() error {
	var errs []error
	if strings.TrimSpace(o.MeasurementID) == "" {
		errs = append(errs, errors.New("measurement id is required"))
	}
	switch {
	case strings.TrimSpace(o.GTMContainerID) == "":
		errs = append(errs, errors.New("gtm container id is required"))
	case !gtmContainerRe.MatchString(o.GTMContainerID):
		errs = append(errs, fmt.Errorf("gtm container id %q must match GTM-XXXXXXX format", o.GTMContainerID))
	}
	if strings.TrimSpace(o.BookID) == "" {
		errs = append(errs, errors.New("book id is required"))
	}
	if _, err := ParseConsentMode(string(o.ConsentMode)); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// Script is an injected <script src> tag.
type Script struct {
	Src   string
	Async bool
}

// Document records the script tags inserted into a page.
type Document struct {
	mu      sync.Mutex
	scripts []Script
}

// InsertScript adds a script tag.
func (d *Document) InsertScript(s Script) {
	d.mu.Lock()
	d.scripts = append(d.scripts, s)
	d.mu.Unlock()
}

// Scripts returns the inserted scripts in order.
func (d *Document) Scripts() []Script {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]Script, len(d.scripts))
	copy(out, d.scripts)
	return out
}

// CountScripts counts scripts whose src contains marker.
func (d *Document) CountScripts(marker string) int {
	n := 0
	for _, s := range d.Scripts() {
		if strings.Contains(s.Src, marker) {
			n++
		}
	}
	return n
}

// PathSource reports the current page path.
type PathSource interface {
	Pathname() string
}

// Env is the page environment the bootstrap writes into.
type Env struct {
	Sink      *datalayer.Layer
	Document  *Document
	Location  PathSource
	Languages []string
	Now       func() time.Time
}

// Context holds the process-wide initialization state. Bootstrap may be
// called any number of times; only the first call has effects and every
// call returns the same entry point.
type Context struct {
	opts Options

	mu    sync.Mutex
	entry *EntryPoint
}

// NewContext validates opts and returns an uninitialized context.
func NewContext(opts Options) (*Context, error) {
	if err := opts.Validate(); err != nil {
		return nil, fmt.Errorf("invalid bootstrap options: %w", err)
	}
	return &Context{opts: opts}, nil
}

// Initialized reports whether Bootstrap has run.
func (c *Context) Initialized() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.entry != nil
}

// Bootstrap initializes env once and returns the tracking entry point.
func (c *Context) Bootstrap(env Env) *EntryPoint {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.entry != nil {
		return c.entry
	}

	if env.Sink == nil {
		env.Sink = datalayer.New()
	}
	if env.Document == nil {
		env.Document = &Document{}
	}
	if env.Now == nil {
		env.Now = time.Now
	}

	storage := ConsentDefault(c.opts.ConsentMode, c.opts.RestrictedRegions, env.Languages)

	env.Document.InsertScript(Script{Src: GtagScriptURL(c.opts.MeasurementID), Async: true})

	env.Sink.Push(
		datalayer.Cmd("consent", "default", ConsentParams(storage)),
		datalayer.Cmd("js", env.Now()),
		datalayer.Cmd("config", c.opts.MeasurementID, datalayer.Params{
			"send_page_view": true,
			"anonymize_ip":   true,
		}),
	)

	entry := &EntryPoint{
		sink:     env.Sink,
		location: env.Location,
		bookID:   c.opts.BookID,
		version:  contract.SchemaVersion,
	}

	env.Sink.Push(datalayer.Msg(datalayer.Params{
		"gtm.start":         env.Now().UnixMilli(),
		contract.FieldEvent: "gtm.js",
	}))
	env.Document.InsertScript(Script{Src: GTMScriptURL(c.opts.GTMContainerID), Async: true})

	c.entry = entry
	return entry
}

// ConsentParams is the consent default payload. Advertising storage is
// always denied.
func ConsentParams(analytics Storage) datalayer.Params {
	return datalayer.Params{
		"analytics_storage":  string(analytics),
		"ad_storage":         string(Denied),
		"ad_user_data":       string(Denied),
		"ad_personalization": string(Denied),
	}
}

// GtagScriptURL is the gtag.js source for measurementID.
func GtagScriptURL(measurementID string) string {
	return "https://www." + contract.GtagScriptMarker + "?id=" + measurementID
}

// GTMScriptURL is the tag manager source for containerID.
func GTMScriptURL(containerID string) string {
	return "https://www." + contract.GTMScriptMarker + "?id=" + containerID
}
