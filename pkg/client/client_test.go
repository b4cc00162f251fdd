package client

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/palermolight/catalog-client/internal/testutil"
	"github.com/palermolight/catalog-client/pkg/cache"
	"github.com/rs/zerolog"
)

// newTestClient creates a client against the mock API with a private cache.
func newTestClient(t *testing.T, mock *testutil.MockAPI) *Client {
	t.Helper()

	c, err := New(DefaultConfig(mock.URL()))
	if err != nil {
		t.Fatalf("Failed to create client: %v", err)
	}
	return c
}

// fakeClock is a manually advanced time source.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	f.now = f.now.Add(d)
	f.mu.Unlock()
}

func TestNew_Validation(t *testing.T) {
	tests := []struct {
		name        string
		config      Config
		expectError bool
		errorMsg    string
	}{
		{
			name:        "valid config",
			config:      DefaultConfig("https://api.example.com"),
			expectError: false,
		},
		{
			name:        "empty base url",
			config:      Config{},
			expectError: true,
			errorMsg:    "base url is required",
		},
		{
			name:        "unsupported scheme",
			config:      Config{BaseURL: "ftp://api.example.com"},
			expectError: true,
			errorMsg:    `base url must be http or https (got "ftp://api.example.com")`,
		},
		{
			name:        "negative ttl",
			config:      Config{BaseURL: "https://api.example.com", CacheTTL: -time.Second},
			expectError: true,
			errorMsg:    "cache_ttl must be >= 0 (got -1s)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, err := New(tt.config)

			if tt.expectError {
				if err == nil {
					t.Errorf("Expected error but got nil")
					return
				}
				if tt.errorMsg != "" && err.Error() != tt.errorMsg {
					t.Errorf("Error message = %q, want %q", err.Error(), tt.errorMsg)
				}
			} else {
				if err != nil {
					t.Errorf("Unexpected error: %v", err)
					return
				}
				if client == nil {
					t.Error("Client is nil")
				}
			}
		})
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig("https://api.example.com")

	if cfg.CacheTTL != 5*time.Minute {
		t.Errorf("CacheTTL = %v, want 5m", cfg.CacheTTL)
	}
	if cfg.Timeout != 30*time.Second {
		t.Errorf("Timeout = %v, want 30s", cfg.Timeout)
	}
	if cfg.Cache != nil {
		t.Error("Cache should default to nil (private memory store)")
	}
}

func TestNew_TrimsBaseURL(t *testing.T) {
	c, err := New(DefaultConfig("https://api.example.com/"))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if c.BaseURL() != "https://api.example.com" {
		t.Errorf("BaseURL() = %q", c.BaseURL())
	}
	if _, ok := c.Cache().(*cache.MemoryStore); !ok {
		t.Errorf("Cache() = %T, want *cache.MemoryStore", c.Cache())
	}
}

func TestFetchWithCache_CachesWithinTTL(t *testing.T) {
	mock := testutil.NewMockAPI()
	defer mock.Close()
	mock.SetResponse("/api/products", testutil.NewJSONResponse(`{"products": [{"article": "V-1"}]}`))

	c := newTestClient(t, mock)
	ctx := context.Background()
	params := url.Values{"source": []string{"Voltum"}, "page": []string{"1"}}

	first, err := c.FetchWithCache(ctx, "/api/products", params, false)
	if err != nil {
		t.Fatalf("first fetch failed: %v", err)
	}
	second, err := c.FetchWithCache(ctx, "/api/products", params, false)
	if err != nil {
		t.Fatalf("second fetch failed: %v", err)
	}

	if mock.RequestCount() != 1 {
		t.Errorf("RequestCount = %d, want 1", mock.RequestCount())
	}
	if string(first) != string(second) {
		t.Errorf("payloads differ: %s vs %s", first, second)
	}
	if len(first) > 0 && &first[0] != &second[0] {
		t.Error("second call should return the cached payload itself")
	}
}

func TestFetchWithCache_ExpiresAfterTTL(t *testing.T) {
	mock := testutil.NewMockAPI()
	defer mock.Close()
	mock.SetResponse("/api/products", testutil.NewJSONResponse(`{"products": []}`))

	c := newTestClient(t, mock)
	clock := &fakeClock{now: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
	c.SetClock(clock.Now)
	ctx := context.Background()
	key := cache.Key{Endpoint: "/api/products"}

	if _, err := c.FetchWithCache(ctx, "/api/products", nil, false); err != nil {
		t.Fatalf("fetch failed: %v", err)
	}
	firstEntry, err := c.Cache().Get(ctx, key)
	if err != nil {
		t.Fatalf("entry not cached: %v", err)
	}

	// Still fresh one millisecond before the TTL
	clock.Advance(cache.DefaultTTL - time.Millisecond)
	if _, err := c.FetchWithCache(ctx, "/api/products", nil, false); err != nil {
		t.Fatalf("fetch failed: %v", err)
	}
	if mock.RequestCount() != 1 {
		t.Fatalf("RequestCount = %d, want 1 before TTL", mock.RequestCount())
	}

	// Stale at exactly the TTL
	clock.Advance(time.Millisecond)
	if _, err := c.FetchWithCache(ctx, "/api/products", nil, false); err != nil {
		t.Fatalf("fetch failed: %v", err)
	}
	if mock.RequestCount() != 2 {
		t.Errorf("RequestCount = %d, want 2 after TTL", mock.RequestCount())
	}

	secondEntry, err := c.Cache().Get(ctx, key)
	if err != nil {
		t.Fatalf("entry missing after refresh: %v", err)
	}
	if !secondEntry.FetchedAt.After(firstEntry.FetchedAt) {
		t.Errorf("FetchedAt not refreshed: %v then %v", firstEntry.FetchedAt, secondEntry.FetchedAt)
	}
}

func TestFetchWithCache_ForceFresh(t *testing.T) {
	mock := testutil.NewMockAPI()
	defer mock.Close()
	mock.SetResponse("/api/products", testutil.NewJSONResponse(`{"products": []}`))

	c := newTestClient(t, mock)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := c.FetchWithCache(ctx, "/api/products", nil, true); err != nil {
			t.Fatalf("fetch %d failed: %v", i, err)
		}
	}

	if mock.RequestCount() != 3 {
		t.Errorf("RequestCount = %d, want 3 with forceFresh", mock.RequestCount())
	}
}

func TestFetchWithCache_ZeroTTLNeverServesCache(t *testing.T) {
	mock := testutil.NewMockAPI()
	defer mock.Close()
	mock.SetResponse("/api/products", testutil.NewJSONResponse(`{}`))

	cfg := DefaultConfig(mock.URL())
	cfg.CacheTTL = 0
	c, err := New(cfg)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	ctx := context.Background()
	_, _ = c.FetchWithCache(ctx, "/api/products", nil, false)
	_, _ = c.FetchWithCache(ctx, "/api/products", nil, false)

	if mock.RequestCount() != 2 {
		t.Errorf("RequestCount = %d, want 2", mock.RequestCount())
	}
}

func TestFetchWithCache_DistinctParams(t *testing.T) {
	mock := testutil.NewMockAPI()
	defer mock.Close()
	mock.SetResponse("/api/products", testutil.NewJSONResponse(`{"products": []}`))

	c := newTestClient(t, mock)
	ctx := context.Background()

	_, _ = c.FetchWithCache(ctx, "/api/products", url.Values{"page": []string{"1"}}, false)
	_, _ = c.FetchWithCache(ctx, "/api/products", url.Values{"page": []string{"2"}}, false)
	_, _ = c.FetchWithCache(ctx, "/api/products", url.Values{"page": []string{"1"}}, false)

	if mock.RequestCount() != 2 {
		t.Errorf("RequestCount = %d, want 2", mock.RequestCount())
	}
}

func TestFetchWithCache_EmptyEndpoint(t *testing.T) {
	c, err := New(DefaultConfig("https://api.example.com"))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	_, err = c.FetchWithCache(context.Background(), "", nil, false)
	if !errors.Is(err, ErrEmptyEndpoint) {
		t.Errorf("error = %v, want ErrEmptyEndpoint", err)
	}
}

func TestFetchWithCache_HTTPErrors(t *testing.T) {
	tests := []struct {
		name        string
		response    testutil.MockResponse
		wantStatus  int
		wantClass   ErrorClass
		wantMessage string
	}{
		{
			name:        "not found with error body",
			response:    testutil.NewErrorResponse(http.StatusNotFound, "Поставщик не найден"),
			wantStatus:  404,
			wantClass:   ErrorClassClient,
			wantMessage: "Поставщик не найден",
		},
		{
			name:        "server error",
			response:    testutil.NewServerErrorResponse(),
			wantStatus:  500,
			wantClass:   ErrorClassServer,
			wantMessage: "Internal server error",
		},
		{
			name:        "bad gateway without body",
			response:    testutil.MockResponse{StatusCode: http.StatusBadGateway},
			wantStatus:  502,
			wantClass:   ErrorClassServer,
			wantMessage: "Bad Gateway",
		},
		{
			name:        "unfollowed redirect",
			response:    testutil.MockResponse{StatusCode: http.StatusMultipleChoices},
			wantStatus:  300,
			wantClass:   ErrorClassClient,
			wantMessage: "Multiple Choices",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := testutil.NewMockAPI()
			defer mock.Close()
			mock.SetResponse("/api/products", tt.response)

			c := newTestClient(t, mock)
			ctx := context.Background()

			_, err := c.FetchWithCache(ctx, "/api/products", nil, false)

			var apiErr *APIError
			if !errors.As(err, &apiErr) {
				t.Fatalf("error = %v, want *APIError", err)
			}
			if apiErr.StatusCode != tt.wantStatus {
				t.Errorf("StatusCode = %d, want %d", apiErr.StatusCode, tt.wantStatus)
			}
			if apiErr.ErrorClass != tt.wantClass {
				t.Errorf("ErrorClass = %q, want %q", apiErr.ErrorClass, tt.wantClass)
			}
			if apiErr.Message != tt.wantMessage {
				t.Errorf("Message = %q, want %q", apiErr.Message, tt.wantMessage)
			}

			// Not retried, not cached
			if mock.RequestCount() != 1 {
				t.Errorf("RequestCount = %d, want 1 (no automatic retry)", mock.RequestCount())
			}
			if ok, _ := c.Cache().Has(ctx, cache.Key{Endpoint: "/api/products"}); ok {
				t.Error("failed response must not be cached")
			}
		})
	}
}

func TestFetchWithCache_NetworkError(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	baseURL := server.URL
	server.Close()

	c, err := New(DefaultConfig(baseURL))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	_, err = c.FetchWithCache(context.Background(), "/api/products", nil, false)
	if ClassOf(err) != ErrorClassNetwork {
		t.Errorf("ClassOf(err) = %q, want network (err = %v)", ClassOf(err), err)
	}
}

func TestFetchWithCache_Cancellation(t *testing.T) {
	mock := testutil.NewMockAPI()
	defer mock.Close()
	mock.SetResponse("/api/products", testutil.MockResponse{
		StatusCode: http.StatusOK,
		Body:       `{"products": []}`,
		Delay:      2 * time.Second,
	})

	c := newTestClient(t, mock)
	ctx, cancel := context.WithCancel(context.Background())

	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	_, err := c.FetchWithCache(ctx, "/api/products", nil, false)
	if time.Since(start) > time.Second {
		t.Errorf("cancellation took %v, want prompt return", time.Since(start))
	}

	if !errors.Is(err, context.Canceled) {
		t.Errorf("error = %v, want context.Canceled", err)
	}
	if ClassOf(err) != ErrorClassCanceled {
		t.Errorf("ClassOf(err) = %q, want canceled", ClassOf(err))
	}
	if ok, _ := c.Cache().Has(context.Background(), cache.Key{Endpoint: "/api/products"}); ok {
		t.Error("cancelled request must not populate the cache")
	}
}

func TestFetchWithCache_ConcurrentMissesAreNotCoalesced(t *testing.T) {
	var mu sync.Mutex
	arrived := 0
	bothArrived := make(chan struct{})

	mock := testutil.NewMockAPI()
	defer mock.Close()
	mock.SetHandler("/api/products", func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		arrived++
		if arrived == 2 {
			close(bothArrived)
		}
		mu.Unlock()

		select {
		case <-bothArrived:
		case <-time.After(2 * time.Second):
		}
		w.Write([]byte(`{"products": []}`))
	})

	c := newTestClient(t, mock)

	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := c.FetchWithCache(context.Background(), "/api/products", nil, false); err != nil {
				t.Errorf("fetch failed: %v", err)
			}
		}()
	}
	wg.Wait()

	if mock.RequestCount() != 2 {
		t.Errorf("RequestCount = %d, want 2 (no single-flight)", mock.RequestCount())
	}
}

// brokenStore fails every operation.
type brokenStore struct{}

func (brokenStore) Get(context.Context, cache.Key) (*cache.Entry, error) {
	return nil, errors.New("store down")
}
func (brokenStore) Set(context.Context, cache.Key, *cache.Entry) error {
	return errors.New("store down")
}
func (brokenStore) Has(context.Context, cache.Key) (bool, error) {
	return false, errors.New("store down")
}

func TestFetchWithCache_StoreErrorsDoNotFailFetch(t *testing.T) {
	mock := testutil.NewMockAPI()
	defer mock.Close()
	mock.SetResponse("/api/products", testutil.NewJSONResponse(`{"products": []}`))

	cfg := DefaultConfig(mock.URL())
	cfg.Cache = brokenStore{}
	c, err := New(cfg)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	payload, err := c.FetchWithCache(context.Background(), "/api/products", nil, false)
	if err != nil {
		t.Fatalf("fetch failed: %v", err)
	}
	if string(payload) != `{"products": []}` {
		t.Errorf("payload = %s", payload)
	}
}

func TestSupplierPage(t *testing.T) {
	mock := testutil.NewMockAPI()
	defer mock.Close()
	mock.SetSupplierPages("/api/products", [][]testutil.MockProduct{
		testutil.GenerateProducts("Voltum", 0, 3),
	})

	c := newTestClient(t, mock)

	products, err := c.SupplierPage(context.Background(), PageRequest{
		Supplier: "Voltum",
		Page:     1,
		Limit:    200,
		InStock:  true,
	}, false)
	if err != nil {
		t.Fatalf("SupplierPage() error = %v", err)
	}
	if len(products) != 3 {
		t.Fatalf("len(products) = %d, want 3", len(products))
	}
	if products[0].Article != "Voltum-0" || len(products[0].Images) != 1 {
		t.Errorf("unexpected first product: %+v", products[0])
	}

	q := mock.LastRequest().URL.Query()
	if q.Get("source") != "Voltum" || q.Get("page") != "1" || q.Get("limit") != "200" || q.Get("inStock") != "true" {
		t.Errorf("unexpected query: %v", q)
	}
}

func TestSearch(t *testing.T) {
	mock := testutil.NewMockAPI()
	defer mock.Close()
	mock.SetResponse("/api/products/search", testutil.NewJSONResponse(`{
		"products": [{"article": "A-1", "name": "Люстра", "price": "2500", "imageAddresses": ["1.jpg", "2.jpg"]}],
		"totalPages": 4,
		"totalProducts": 37
	}`))

	c := newTestClient(t, mock)

	result, err := c.Search(context.Background(), SearchParams{
		Name:      "люстра",
		Page:      1,
		PageSize:  12,
		SortBy:    "price",
		SortOrder: "asc",
	})
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}

	if result.TotalPages != 4 || result.TotalProducts != 37 {
		t.Errorf("totals = %d/%d, want 4/37", result.TotalPages, result.TotalProducts)
	}
	if len(result.Products) != 1 || result.Products[0].Price != 2500 || len(result.Products[0].Images) != 2 {
		t.Errorf("unexpected products: %+v", result.Products)
	}

	q := mock.LastRequest().URL.Query()
	if q.Get("name") != "люстра" || q.Get("pageSize") != "12" || q.Get("sortBy") != "price" || q.Get("sortOrder") != "asc" {
		t.Errorf("unexpected query: %v", q)
	}
}

func TestSearch_InvalidSortOrder(t *testing.T) {
	c, err := New(DefaultConfig("https://api.example.com"))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	if _, err := c.Search(context.Background(), SearchParams{SortOrder: "up"}); err == nil {
		t.Error("expected validation error for sort order")
	}
}

func TestProduct(t *testing.T) {
	mock := testutil.NewMockAPI()
	defer mock.Close()
	mock.SetResponse("/api/product/Voltum", testutil.NewJSONResponse(
		`{"article": "V-7", "name": "Розетка", "source": "Voltum", "imageAddress": "v7.jpg", "price": 390}`))

	c := newTestClient(t, mock)

	p, err := c.Product(context.Background(), "Voltum", "V-7")
	if err != nil {
		t.Fatalf("Product() error = %v", err)
	}
	if p.Article != "V-7" || p.Price != 390 || len(p.Images) != 1 || p.Images[0] != "v7.jpg" {
		t.Errorf("unexpected product: %+v", p)
	}
	if got := mock.LastRequest().URL.Query().Get("productArticle"); got != "V-7" {
		t.Errorf("productArticle = %q, want V-7", got)
	}
}

func TestLogin(t *testing.T) {
	tests := []struct {
		name        string
		response    testutil.MockResponse
		wantToken   string
		wantMessage string
	}{
		{
			name:      "success",
			response:  testutil.NewJSONResponse(`{"token": "jwt-abc", "username": "ivan"}`),
			wantToken: "jwt-abc",
		},
		{
			name:        "unauthorized with error body",
			response:    testutil.NewErrorResponse(http.StatusUnauthorized, "Неверный пароль"),
			wantMessage: "Неверный пароль",
		},
		{
			name:        "ok status with error body",
			response:    testutil.NewJSONResponse(`{"error": "Пользователь не найден"}`),
			wantMessage: "Пользователь не найден",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := testutil.NewMockAPI()
			defer mock.Close()
			mock.SetResponse("/api/login", tt.response)

			c := newTestClient(t, mock)
			session, err := c.Login(context.Background(), Credentials{Username: "ivan", Password: "secret"})

			if tt.wantMessage != "" {
				var apiErr *APIError
				if !errors.As(err, &apiErr) {
					t.Fatalf("error = %v, want *APIError", err)
				}
				if apiErr.Message != tt.wantMessage {
					t.Errorf("Message = %q, want %q", apiErr.Message, tt.wantMessage)
				}
				return
			}

			if err != nil {
				t.Fatalf("Login() error = %v", err)
			}
			if session.Token != tt.wantToken || session.Username != "ivan" {
				t.Errorf("session = %+v", session)
			}
			if mock.LastRequest().Method != http.MethodPost {
				t.Errorf("method = %s, want POST", mock.LastRequest().Method)
			}
		})
	}
}

func TestLogin_NotCached(t *testing.T) {
	mock := testutil.NewMockAPI()
	defer mock.Close()
	mock.SetResponse("/api/login", testutil.NewJSONResponse(`{"token": "t", "username": "ivan"}`))

	c := newTestClient(t, mock)
	creds := Credentials{Username: "ivan", Password: "secret"}
	_, _ = c.Login(context.Background(), creds)
	_, _ = c.Login(context.Background(), creds)

	if mock.RequestCount() != 2 {
		t.Errorf("RequestCount = %d, want 2", mock.RequestCount())
	}
}

func TestRegister_RequiresCredentials(t *testing.T) {
	c, err := New(DefaultConfig("https://api.example.com"))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if _, err := c.Register(context.Background(), Credentials{Username: "ivan"}); err == nil {
		t.Error("expected error for missing password")
	}
}

func TestRegister(t *testing.T) {
	mock := testutil.NewMockAPI()
	defer mock.Close()
	mock.SetResponse("/api/register", testutil.NewJSONResponse(`{"token": "new-token", "username": "olga"}`))

	c := newTestClient(t, mock)
	session, err := c.Register(context.Background(), Credentials{Username: "olga", Password: "pw", Email: "olga@example.com"})
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if session.Token != "new-token" {
		t.Errorf("Token = %q", session.Token)
	}
}

func TestClient_InjectedLogger(t *testing.T) {
	mock := testutil.NewMockAPI()
	defer mock.Close()
	mock.SetResponse("/api/products", testutil.NewServerErrorResponse())

	buf := &bytes.Buffer{}
	logger := zerolog.New(buf)
	cfg := DefaultConfig(mock.URL())
	cfg.Logger = &logger

	c, err := New(cfg)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if _, err := c.FetchWithCache(context.Background(), "/api/products", nil, false); err == nil {
		t.Fatal("expected an error")
	}

	out := buf.String()
	for _, want := range []string{`"component":"client"`, `"status_code":500`, `"error_class":"server"`} {
		if !strings.Contains(out, want) {
			t.Errorf("log output missing %s: %q", want, out)
		}
	}
}

func TestClient_ContextLoggerCarriesRequestID(t *testing.T) {
	mock := testutil.NewMockAPI()
	defer mock.Close()
	mock.SetResponse("/api/products", testutil.NewServerErrorResponse())

	injected := &bytes.Buffer{}
	logger := zerolog.New(injected)
	cfg := DefaultConfig(mock.URL())
	cfg.Logger = &logger

	c, err := New(cfg)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	reqBuf := &bytes.Buffer{}
	ctx := zerolog.New(reqBuf).With().Str("request_id", "req-7").Logger().WithContext(context.Background())
	if _, err := c.FetchWithCache(ctx, "/api/products", nil, false); err == nil {
		t.Fatal("expected an error")
	}

	if !strings.Contains(reqBuf.String(), `"request_id":"req-7"`) {
		t.Errorf("request log missing request_id: %q", reqBuf.String())
	}
	if !strings.Contains(reqBuf.String(), `"component":"client"`) {
		t.Errorf("request log missing component: %q", reqBuf.String())
	}
	if injected.Len() != 0 {
		t.Errorf("request-scoped lines went to the injected logger: %q", injected.String())
	}
}
