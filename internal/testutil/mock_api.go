// Package testutil provides testing utilities for the catalog client.
package testutil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"time"
)

// MockResponse defines the behavior for a mock endpoint response.
type MockResponse struct {
	StatusCode int
	Body       string
	Headers    map[string]string
	Delay      time.Duration
}

// MockProduct is a product as the mock API serves it.
type MockProduct struct {
	Article        string   `json:"article"`
	Name           string   `json:"name"`
	Category       string   `json:"category,omitempty"`
	Price          float64  `json:"price"`
	Stock          string   `json:"stock"`
	Source         string   `json:"source"`
	ImageAddress   string   `json:"imageAddress,omitempty"`
	ImageAddresses []string `json:"imageAddresses,omitempty"`
}

// MockAPI is a configurable mock catalog API server for testing.
type MockAPI struct {
	server   *httptest.Server
	mu       sync.RWMutex
	handlers map[string]func(w http.ResponseWriter, r *http.Request)

	// Tracking
	requestCount int
	pathCounts   map[string]int
	pages        []int
	lastRequest  *http.Request
}

// NewMockAPI creates a new mock catalog API server.
func NewMockAPI() *MockAPI {
	mock := &MockAPI{
		handlers:   make(map[string]func(w http.ResponseWriter, r *http.Request)),
		pathCounts: make(map[string]int),
	}

	mock.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mock.mu.Lock()
		mock.requestCount++
		mock.pathCounts[r.URL.Path]++
		if page, err := strconv.Atoi(r.URL.Query().Get("page")); err == nil {
			mock.pages = append(mock.pages, page)
		}
		mock.lastRequest = r.Clone(r.Context())
		handler, exists := mock.handlers[r.URL.Path]
		mock.mu.Unlock()

		if exists {
			handler(w, r)
			return
		}

		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"error": "Not found"}`))
	}))

	return mock
}

// URL returns the mock server URL.
func (m *MockAPI) URL() string {
	return m.server.URL
}

// Close shuts down the mock server.
func (m *MockAPI) Close() {
	m.server.Close()
}

// Reset clears all tracking counters.
func (m *MockAPI) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requestCount = 0
	m.pathCounts = make(map[string]int)
	m.pages = nil
	m.lastRequest = nil
}

// SetHandler sets a custom handler for a specific path.
func (m *MockAPI) SetHandler(path string, handler func(w http.ResponseWriter, r *http.Request)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[path] = handler
}

// SetResponse configures a fixed response for a path.
func (m *MockAPI) SetResponse(path string, resp MockResponse) {
	m.SetHandler(path, func(w http.ResponseWriter, r *http.Request) {
		if resp.Delay > 0 {
			select {
			case <-time.After(resp.Delay):
			case <-r.Context().Done():
				return
			}
		}

		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		for key, value := range resp.Headers {
			w.Header().Set(key, value)
		}

		w.WriteHeader(resp.StatusCode)
		if resp.Body != "" {
			w.Write([]byte(resp.Body))
		}
	})
}

// SetSupplierPages serves pages[n-1] for ?page=n on path. Pages past the end
// are served empty. A page listed in failPages answers 500.
func (m *MockAPI) SetSupplierPages(path string, pages [][]MockProduct, failPages ...int) {
	failing := make(map[int]bool, len(failPages))
	for _, p := range failPages {
		failing[p] = true
	}

	m.SetHandler(path, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")

		page, err := strconv.Atoi(r.URL.Query().Get("page"))
		if err != nil || page < 1 {
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte(`{"error": "invalid page"}`))
			return
		}
		if failing[page] {
			w.WriteHeader(http.StatusInternalServerError)
			w.Write([]byte(`{"error": "Internal server error"}`))
			return
		}

		products := []MockProduct{}
		if page <= len(pages) {
			products = pages[page-1]
		}
		json.NewEncoder(w).Encode(map[string]any{"products": products})
	})
}

// RequestCount returns the number of requests made to the server.
func (m *MockAPI) RequestCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.requestCount
}

// PathCount returns the number of requests made to path.
func (m *MockAPI) PathCount(path string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.pathCounts[path]
}

// RequestedPages returns the page query values in request order.
func (m *MockAPI) RequestedPages() []int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]int(nil), m.pages...)
}

// LastRequest returns a copy of the most recent request.
func (m *MockAPI) LastRequest() *http.Request {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastRequest
}

// NewJSONResponse creates a 200 OK JSON response.
func NewJSONResponse(data string) MockResponse {
	return MockResponse{
		StatusCode: http.StatusOK,
		Body:       data,
	}
}

// NewErrorResponse creates a response with an {"error": message} body.
func NewErrorResponse(status int, message string) MockResponse {
	body, _ := json.Marshal(map[string]string{"error": message})
	return MockResponse{
		StatusCode: status,
		Body:       string(body),
	}
}

// NewServerErrorResponse creates a 500 Internal Server Error response.
func NewServerErrorResponse() MockResponse {
	return NewErrorResponse(http.StatusInternalServerError, "Internal server error")
}

// GenerateProducts builds n products for supplier with articles
// "<supplier>-<start>".."<supplier>-<start+n-1>".
func GenerateProducts(supplier string, start, n int) []MockProduct {
	products := make([]MockProduct, 0, n)
	for i := start; i < start+n; i++ {
		products = append(products, MockProduct{
			Article:      fmt.Sprintf("%s-%d", supplier, i),
			Name:         fmt.Sprintf("Светильник %d", i),
			Category:     "Светильники",
			Price:        float64(1000 + i),
			Stock:        "в наличии",
			Source:       supplier,
			ImageAddress: fmt.Sprintf("https://cdn.example.com/%s/%d.jpg", supplier, i),
		})
	}
	return products
}
