// Package testutil provides testing utilities for the Battlelog archiver.
package testutil

import (
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/brisppy/battlelog-archiver/pkg/session"
)

// MockResponse defines the behavior for one mock Battlelog response.
type MockResponse struct {
	StatusCode int
	Body       string
	Delay      time.Duration
}

// MockBattlelog is a configurable mock Battlelog server for testing.
// Handlers are registered per path prefix; scripted prefixes walk an ordered
// response sequence so pagination and retry flows can be replayed.
type MockBattlelog struct {
	server *httptest.Server

	mu           sync.Mutex
	handlers     map[string]func(w http.ResponseWriter, r *http.Request)
	scripts      map[string][]MockResponse
	scriptCursor map[string]int

	RequestCount int
	prefixCounts map[string]int
}

// NewMockBattlelog creates a new mock Battlelog server.
func NewMockBattlelog() *MockBattlelog {
	mock := &MockBattlelog{
		handlers:     make(map[string]func(w http.ResponseWriter, r *http.Request)),
		scripts:      make(map[string][]MockResponse),
		scriptCursor: make(map[string]int),
		prefixCounts: make(map[string]int),
	}

	mock.server = httptest.NewServer(http.HandlerFunc(mock.dispatch))
	return mock
}

// URL returns the mock server URL, usable as the client's BaseURL.
func (m *MockBattlelog) URL() string {
	return m.server.URL
}

// Close shuts down the mock server.
func (m *MockBattlelog) Close() {
	m.server.Close()
}

// SetHandler registers a custom handler for a path prefix.
func (m *MockBattlelog) SetHandler(prefix string, handler func(w http.ResponseWriter, r *http.Request)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[prefix] = handler
}

// SetResponse configures a fixed response for a path prefix.
func (m *MockBattlelog) SetResponse(prefix string, resp MockResponse) {
	m.SetScript(prefix, []MockResponse{resp})
}

// SetScript configures an ordered response sequence for a path prefix.
// Successive matching requests walk the script; the last entry repeats.
func (m *MockBattlelog) SetScript(prefix string, responses []MockResponse) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.scripts[prefix] = responses
	m.scriptCursor[prefix] = 0
}

// PrefixCount returns how many requests matched the given path prefix.
func (m *MockBattlelog) PrefixCount(prefix string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	count := 0
	for p, n := range m.prefixCounts {
		if strings.HasPrefix(p, prefix) {
			count += n
		}
	}
	return count
}

// Requests returns the total number of requests received.
func (m *MockBattlelog) Requests() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.RequestCount
}

// dispatch routes a request to the longest matching prefix registration.
func (m *MockBattlelog) dispatch(w http.ResponseWriter, r *http.Request) {
	m.mu.Lock()
	m.RequestCount++
	m.prefixCounts[r.URL.Path]++

	var handler func(w http.ResponseWriter, r *http.Request)
	scriptPrefix := ""
	bestLen := -1
	for prefix, h := range m.handlers {
		if strings.HasPrefix(r.URL.Path, prefix) && len(prefix) > bestLen {
			handler = h
			scriptPrefix = ""
			bestLen = len(prefix)
		}
	}
	for prefix := range m.scripts {
		if strings.HasPrefix(r.URL.Path, prefix) && len(prefix) > bestLen {
			scriptPrefix = prefix
			handler = nil
			bestLen = len(prefix)
		}
	}

	var resp *MockResponse
	if scriptPrefix != "" {
		script := m.scripts[scriptPrefix]
		idx := m.scriptCursor[scriptPrefix]
		if idx < len(script)-1 {
			m.scriptCursor[scriptPrefix] = idx + 1
		}
		picked := script[idx]
		resp = &picked
	}
	m.mu.Unlock()

	if handler != nil {
		handler(w, r)
		return
	}
	if resp != nil {
		if resp.Delay > 0 {
			time.Sleep(resp.Delay)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(resp.StatusCode)
		if resp.Body != "" {
			w.Write([]byte(resp.Body))
		}
		return
	}

	// Default: empty JSON object, the service's "nothing here" answer.
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{}`))
}

// NewTestSession returns a session with a dummy cookie, enough to satisfy
// client construction in tests.
func NewTestSession() *session.Session {
	return &session.Session{
		Cookies: map[string]string{"beaker.session.id": "test-session"},
		Headers: session.DefaultHeaders(),
	}
}

// ReportListBody builds a report-list page body from stub pairs.
// Pass an empty slice for an empty page with the data field present.
func ReportListBody(stubs []struct {
	ID        string
	CreatedAt int64
}) string {
	var sb strings.Builder
	sb.WriteString(`{"data":{"gameReports":[`)
	for i, s := range stubs {
		if i > 0 {
			sb.WriteString(",")
		}
		sb.WriteString(`{"gameReportId":"` + s.ID + `","createdAt":`)
		sb.WriteString(strconv.FormatInt(s.CreatedAt, 10))
		sb.WriteString(`}`)
	}
	sb.WriteString(`]}}`)
	return sb.String()
}
