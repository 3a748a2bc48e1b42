// Package testutil provides testing utilities for the WSAPI client.
package testutil

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"
)

// MockResponse defines the behavior for a mock WSAPI endpoint response.
type MockResponse struct {
	StatusCode int
	Body       string
	Headers    map[string]string
	Delay      time.Duration
}

// RecordedRequest is a request observed by the mock server.
type RecordedRequest struct {
	Method string
	Path   string
	Query  url.Values
	Header http.Header
	Body   []byte
}

// MockWSAPI is a configurable mock WSAPI server for testing.
type MockWSAPI struct {
	server   *httptest.Server
	mu       sync.RWMutex
	handlers map[string]http.HandlerFunc
	requests []RecordedRequest
}

// NewMockWSAPI creates a new mock WSAPI server.
func NewMockWSAPI() *MockWSAPI {
	mock := &MockWSAPI{
		handlers: make(map[string]http.HandlerFunc),
	}

	mock.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)

		mock.mu.Lock()
		mock.requests = append(mock.requests, RecordedRequest{
			Method: r.Method,
			Path:   r.URL.Path,
			Query:  r.URL.Query(),
			Header: r.Header.Clone(),
			Body:   body,
		})
		handler, exists := mock.handlers[r.URL.Path]
		mock.mu.Unlock()

		if exists {
			handler(w, r)
			return
		}

		writeJSON(w, http.StatusNotFound, `{"OperationResult": {"Errors": ["Not found"], "Warnings": []}}`)
	}))

	return mock
}

// URL returns the mock server URL.
func (m *MockWSAPI) URL() string {
	return m.server.URL
}

// Endpoint returns the absolute URL for path.
func (m *MockWSAPI) Endpoint(path string) string {
	return m.server.URL + path
}

// Close shuts down the mock server.
func (m *MockWSAPI) Close() {
	m.server.Close()
}

// Reset clears the recorded requests.
func (m *MockWSAPI) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests = nil
}

// SetHandler sets a custom handler for a specific path.
func (m *MockWSAPI) SetHandler(path string, handler http.HandlerFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[path] = handler
}

// SetResponse configures a fixed response for a path.
func (m *MockWSAPI) SetResponse(path string, resp MockResponse) {
	m.SetHandler(path, func(w http.ResponseWriter, r *http.Request) {
		if resp.Delay > 0 {
			time.Sleep(resp.Delay)
		}
		for key, value := range resp.Headers {
			w.Header().Set(key, value)
		}
		writeJSON(w, resp.StatusCode, resp.Body)
	})
}

// PagedQuery describes a synthetic result set served page by page.
type PagedQuery struct {
	// Total is the reported TotalResultCount.
	Total int

	// Delay, when set, returns the artificial latency for the page starting at start.
	Delay func(start int) time.Duration

	// FailAtStart makes the page with this start offset answer HTTP 500.
	FailAtStart int
}

// QueryItem is one synthetic result. Index is the item's zero-based
// position in the full, unpaginated result set.
type QueryItem struct {
	Index int    `json:"Index"`
	Ref   string `json:"_ref"`
}

// SetPagedQuery serves a QueryResult for path honouring the start and
// pagesize query parameters (defaults 1 and 20, like WSAPI).
func (m *MockWSAPI) SetPagedQuery(path string, q PagedQuery) {
	m.SetHandler(path, func(w http.ResponseWriter, r *http.Request) {
		start := intParam(r, "start", 1)
		pageSize := intParam(r, "pagesize", 20)

		if q.Delay != nil {
			time.Sleep(q.Delay(start))
		}
		if q.FailAtStart != 0 && start == q.FailAtStart {
			writeJSON(w, http.StatusInternalServerError, `{"error": "Internal server error"}`)
			return
		}

		results := make([]QueryItem, 0, pageSize)
		for i := start - 1; i < start-1+pageSize && i < q.Total; i++ {
			results = append(results, QueryItem{
				Index: i,
				Ref:   fmt.Sprintf("%s/%d", path, i),
			})
		}

		body, _ := json.Marshal(map[string]any{
			"QueryResult": map[string]any{
				"Errors":           []string{},
				"Warnings":         []string{},
				"TotalResultCount": q.Total,
				"StartIndex":       start,
				"PageSize":         pageSize,
				"Results":          results,
			},
		})
		writeJSON(w, http.StatusOK, string(body))
	})
}

// Requests returns a copy of the recorded requests.
func (m *MockWSAPI) Requests() []RecordedRequest {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]RecordedRequest, len(m.requests))
	copy(out, m.requests)
	return out
}

// GetRequestCount returns the number of requests made to the server.
func (m *MockWSAPI) GetRequestCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.requests)
}

// LastRequest returns the most recent request, or a zero value when none was made.
func (m *MockWSAPI) LastRequest() RecordedRequest {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if len(m.requests) == 0 {
		return RecordedRequest{}
	}
	return m.requests[len(m.requests)-1]
}

func intParam(r *http.Request, name string, def int) int {
	if v, err := strconv.Atoi(r.URL.Query().Get(name)); err == nil {
		return v
	}
	return def
}

func writeJSON(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if body != "" {
		_, _ = w.Write([]byte(body))
	}
}

// NewQueryResponse creates a 200 QueryResult response carrying results.
func NewQueryResponse(total int, results ...string) MockResponse {
	items := "[]"
	if len(results) > 0 {
		items = "[" + strings.Join(results, ",") + "]"
	}
	return MockResponse{
		StatusCode: http.StatusOK,
		Body: fmt.Sprintf(`{"QueryResult": {"Errors": [], "Warnings": [], "TotalResultCount": %d, "Results": %s}}`,
			total, items),
	}
}

// NewRemoteErrorResponse creates a 200 response whose envelope reports errors.
func NewRemoteErrorResponse(envelopeKey string, errs ...string) MockResponse {
	encoded, _ := json.Marshal(errs)
	return MockResponse{
		StatusCode: http.StatusOK,
		Body:       fmt.Sprintf(`{%q: {"Errors": %s, "Warnings": []}}`, envelopeKey, encoded),
	}
}

// NewSecurityTokenResponse creates a token endpoint response.
func NewSecurityTokenResponse(token string) MockResponse {
	return MockResponse{
		StatusCode: http.StatusOK,
		Body:       fmt.Sprintf(`{"OperationResult": {"Errors": [], "Warnings": [], "SecurityToken": %q}}`, token),
	}
}

// NewStatusResponse creates a response with the given status and a plain body.
func NewStatusResponse(status int, body string) MockResponse {
	return MockResponse{
		StatusCode: status,
		Body:       body,
	}
}

// NewServerErrorResponse creates a 500 Internal Server Error response.
func NewServerErrorResponse() MockResponse {
	return NewStatusResponse(http.StatusInternalServerError, `{"error": "Internal server error"}`)
}
