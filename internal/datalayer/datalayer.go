// Package datalayer models the external event sink: the append-only
// dataLayer queue that the tag manager integration reads.
package datalayer

import (
	"encoding/json"
	"sync"

	"ga4skill/internal/contract"
)

// Params is an event payload.
type Params map[string]any

// Clone returns a shallow copy of p.
func (p Params) Clone() Params {
	out := make(Params, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

// Entry is one item pushed to the sink. Exactly one of Command or Message is
// set: gtag() pushes its arguments as a Command, the tag manager snippet and
// the tracking entry point push Message objects.
type Entry struct {
	Command []any
	Message Params
}

// Cmd builds a gtag-style command entry.
func Cmd(args ...any) Entry {
	return Entry{Command: args}
}

// Msg builds a message-object entry.
func Msg(p Params) Entry {
	return Entry{Message: p}
}

// EventName derives the analytics event name carried by e, if any.
// ["event", name, ...] yields name, ["consent", "default", ...] yields
// consent_default and {event: name} yields name.
func (e Entry) EventName() (string, bool) {
	if e.Command != nil {
		return commandEventName(e.Command)
	}
	if e.Message != nil {
		if name, ok := e.Message[contract.FieldEvent].(string); ok {
			return name, true
		}
	}
	return "", false
}

func commandEventName(args []any) (string, bool) {
	if len(args) < 2 {
		return "", false
	}
	head, _ := args[0].(string)
	second, ok := args[1].(string)
	if !ok {
		return "", false
	}
	switch {
	case head == "event":
		return second, true
	case head == "consent" && second == "default":
		return contract.EventConsentDefault, true
	}
	return "", false
}

// MarshalJSON encodes commands as arrays and messages as objects, the way
// they sit in the browser queue.
func (e Entry) MarshalJSON() ([]byte, error) {
	if e.Command != nil {
		return json.Marshal(e.Command)
	}
	if e.Message == nil {
		return []byte("null"), nil
	}
	return json.Marshal(e.Message)
}

// UnmarshalJSON accepts either representation. Other JSON values decode to
// an empty entry.
func (e *Entry) UnmarshalJSON(data []byte) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*e = Entry{}
	switch v := raw.(type) {
	case []any:
		e.Command = v
	case map[string]any:
		e.Message = Params(v)
	}
	return nil
}

// Layer is the append-only sink. It is safe for concurrent use.
type Layer struct {
	mu      sync.Mutex
	entries []Entry
}

// New returns an empty Layer.
func New() *Layer {
	return &Layer{}
}

// Push appends entries in order.
func (l *Layer) Push(entries ...Entry) {
	l.mu.Lock()
	l.entries = append(l.entries, entries...)
	l.mu.Unlock()
}

// Entries returns a copy of everything pushed so far.
func (l *Layer) Entries() []Entry {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Entry, len(l.entries))
	copy(out, l.entries)
	return out
}

// Len returns the number of entries pushed.
func (l *Layer) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

// EventNames returns the event name of every entry that carries one, in
// push order.
func EventNames(entries []Entry) []string {
	var names []string
	for _, e := range entries {
		if name, ok := e.EventName(); ok {
			names = append(names, name)
		}
	}
	return names
}
