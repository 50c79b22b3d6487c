package bootstrap

import (
	"ga4skill/internal/contract"
	"ga4skill/internal/datalayer"
)

// EntryPoint is the global tracking function handed to the runtime.
type EntryPoint struct {
	sink     *datalayer.Layer
	location PathSource
	bookID   string
	version  string
}

// Track forwards eventName with params to the sink. The book context
// (event_name, book_id, page_path, version) overrides same-named params.
// It pushes a gtag event command and a tag manager message.
func (e *EntryPoint) Track(eventName string, params datalayer.Params) {
	payload := params.Clone()
	payload[contract.FieldEventName] = eventName
	payload[contract.FieldBookID] = e.bookID
	payload[contract.FieldPagePath] = e.pathname()
	payload[contract.FieldVersion] = e.version

	msg := datalayer.Params{contract.FieldEvent: eventName}
	for k, v := range payload {
		msg[k] = v
	}

	e.sink.Push(
		datalayer.Cmd("event", eventName, payload),
		datalayer.Msg(msg),
	)
}

// Sink returns the event sink the entry point writes to.
func (e *EntryPoint) Sink() *datalayer.Layer {
	return e.sink
}

func (e *EntryPoint) pathname() string {
	if e.location == nil {
		return ""
	}
	return e.location.Pathname()
}
