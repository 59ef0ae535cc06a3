package types

import (
	"net/http"
)

// CallKind tags how the raw response body is decoded downstream.
// The queue and transport treat it as opaque.
type CallKind string

const (
	KindSubmit    CallKind = "submit"
	KindFetchList CallKind = "fetch-list"
)

// Payload describes one outbound HTTP request. It is constructed by the
// caller and carried through the queue unmodified.
type Payload struct {
	Method string
	URL    string
	Header http.Header
	Body   []byte
}

// Outcome is the raw result of a single transport attempt.
// StatusCode is 0 when no response was received.
type Outcome struct {
	StatusCode int
	Body       []byte
	Err        error
}

// Result is what the queue resolves to the caller, exactly once per call.
type Result struct {
	Body []byte
	Err  error
}
