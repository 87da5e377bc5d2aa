// package testing contains shared testing utilities
package testing

import (
	"bytes"
	"errors"
	"io"
	"net/http"
	"sync"
)

// MockRoundTripper returns a fixed response (or error) for every request.
type MockRoundTripper struct {
	response *http.Response
	err      error
}

func NewMockRoundTripper(r *http.Response, e error) *MockRoundTripper {
	return &MockRoundTripper{response: r, err: e}
}

func (m *MockRoundTripper) RoundTrip(*http.Request) (*http.Response, error) {
	return m.response, m.err
}

// Step is one scripted exchange for a [ScriptedTransport].
type Step struct {
	Status int
	Body   string
	Header http.Header
	Err    error
}

// ScriptedTransport plays back a sequence of responses in order, recording
// each request it sees. Once the script is exhausted the last step repeats.
type ScriptedTransport struct {
	mu       sync.Mutex
	steps    []Step
	Requests []*http.Request
}

func NewScriptedTransport(steps ...Step) *ScriptedTransport {
	return &ScriptedTransport{steps: steps}
}

func (s *ScriptedTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.Requests = append(s.Requests, req)

	idx := len(s.Requests) - 1
	if idx >= len(s.steps) {
		idx = len(s.steps) - 1
	}
	if idx < 0 {
		return nil, errors.New("scripted transport: no steps configured")
	}

	step := s.steps[idx]
	if step.Err != nil {
		return nil, step.Err
	}

	header := step.Header
	if header == nil {
		header = http.Header{"Content-Type": []string{"application/json"}}
	}

	return &http.Response{
		StatusCode: step.Status,
		Header:     header,
		Body:       io.NopCloser(bytes.NewBufferString(step.Body)),
		Request:    req,
	}, nil
}

// Calls returns how many requests the transport has served.
func (s *ScriptedTransport) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.Requests)
}

// RouteTransport dispatches by request path prefix, falling back to a 404.
type RouteTransport struct {
	mu     sync.Mutex
	routes map[string]*ScriptedTransport
}

func NewRouteTransport() *RouteTransport {
	return &RouteTransport{routes: make(map[string]*ScriptedTransport)}
}

// Handle registers a scripted exchange sequence for paths starting with prefix.
func (rt *RouteTransport) Handle(prefix string, steps ...Step) *ScriptedTransport {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	st := NewScriptedTransport(steps...)
	rt.routes[prefix] = st
	return st
}

func (rt *RouteTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	rt.mu.Lock()
	var best *ScriptedTransport
	bestLen := -1
	for prefix, st := range rt.routes {
		if len(prefix) > bestLen && hasPrefix(req.URL.Path, prefix) {
			best = st
			bestLen = len(prefix)
		}
	}
	rt.mu.Unlock()

	if best == nil {
		return &http.Response{
			StatusCode: http.StatusNotFound,
			Header:     http.Header{"Content-Type": []string{"application/json"}},
			Body:       io.NopCloser(bytes.NewBufferString(`{"error":"no route"}`)),
			Request:    req,
		}, nil
	}
	return best.RoundTrip(req)
}

func hasPrefix(path, prefix string) bool {
	return len(path) >= len(prefix) && path[:len(prefix)] == prefix
}

// FWriter always returns an error on Write
type FWriter struct{}

func (f *FWriter) Write(p []byte) (n int, err error) {
	return 0, errors.New("write failed")
}

// LimitedWriter fails after a certain number of writes
type LimitedWriter struct {
	maxWrites int
	written   int
	target    io.Writer
}

func (l *LimitedWriter) Write(p []byte) (n int, err error) {
	if l.written >= l.maxWrites {
		return 0, errors.New("write limit exceeded")
	}
	l.written++
	return l.target.Write(p)
}

func NewLimitedWriter(maxWrites, written int, target io.Writer) LimitedWriter {
	return LimitedWriter{maxWrites: maxWrites, written: written, target: target}
}
