package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/palermolight/catalog-client/pkg/basket"
	"github.com/palermolight/catalog-client/pkg/catalog"
	"github.com/palermolight/catalog-client/pkg/client"
	"github.com/palermolight/catalog-client/pkg/logging"
	"github.com/palermolight/catalog-client/pkg/metrics"
	"github.com/palermolight/catalog-client/pkg/product"
)

var proxyRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "catalog_proxy_requests_total",
	Help: "Total proxy requests by route and response code",
}, []string{"route", "code"})

// upstreamTimeout bounds one proxied call including retries.
const upstreamTimeout = 30 * time.Second

// maxBodyBytes caps JSON request bodies (auth and basket).
const maxBodyBytes = 1 << 20

type server struct {
	client  *client.Client
	catalog *catalog.Service
	baskets basket.Store
	retry   client.RetryConfig

	// ready checks backing services; nil means always ready.
	ready func(ctx context.Context) error

	// base is the untagged logger request loggers derive from.
	base   zerolog.Logger
	logger zerolog.Logger
}

func newServer(c *client.Client, svc *catalog.Service, baskets basket.Store, retry client.RetryConfig, base zerolog.Logger) *server {
	return &server{
		client:  c,
		catalog: svc,
		baskets: baskets,
		retry:   retry,
		base:    base,
		logger:  logging.WithComponent(base, "proxy"),
	}
}

// log returns the request's logger tagged as the proxy.
func (s *server) log(r *http.Request) *zerolog.Logger {
	l := logging.FromContext(r.Context(), "proxy", s.logger)
	return &l
}

func (s *server) routes() http.Handler {
	mux := http.NewServeMux()
	handle := func(pattern, route string, h http.HandlerFunc) {
		counter := proxyRequestsTotal.MustCurryWith(prometheus.Labels{"route": route})
		mux.Handle(pattern, promhttp.InstrumentHandlerCounter(counter, h))
	}

	mux.HandleFunc("GET /health", healthHandler)
	mux.HandleFunc("GET /ready", readyHandler(s.ready))
	mux.Handle("GET /metrics", metrics.Handler())
	handle("GET /catalog/{supplier}", "catalog", s.handleCatalog)
	handle("GET /search", "search", s.handleSearch)
	handle("GET /product/{supplier}/{article}", "product", s.handleProduct)
	handle("POST /auth/login", "login", s.handleAuth(s.client.Login))
	handle("POST /auth/register", "register", s.handleAuth(s.client.Register))
	handle("GET /basket/{username}/{kind}", "basket_get", s.handleBasketGet)
	handle("PUT /basket/{username}/{kind}", "basket_put", s.handleBasketPut)

	return withRequestID(mux, s.base)
}

// withRequestID tags each request with X-Request-ID, generating one when the
// caller sent none, and puts a logger carrying it into the request context.
// The client, catalog and page walk log through that logger.
func withRequestID(next http.Handler, base zerolog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)

		logger := base.With().Str("request_id", id).Logger()
		next.ServeHTTP(w, r.WithContext(logger.WithContext(r.Context())))
	})
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, "OK")
}

func readyHandler(check func(ctx context.Context) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if check != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := check(ctx); err != nil {
				w.WriteHeader(http.StatusServiceUnavailable)
				fmt.Fprintf(w, "NOT READY: %v", err)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, "OK")
	}
}

func (s *server) handleCatalog(w http.ResponseWriter, r *http.Request) {
	q, err := parseCatalogQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), upstreamTimeout)
	defer cancel()

	var (
		res     *catalog.Result
		partial error
	)
	err = client.Retry(ctx, s.retry, func(ctx context.Context) error {
		var qerr error
		res, qerr = s.catalog.Query(ctx, q)
		if res != nil {
			partial = qerr
			return nil
		}
		return qerr
	})
	if err != nil {
		s.upstreamError(w, r, err)
		return
	}

	if partial != nil {
		s.log(r).Warn().
			Err(partial).
			Str("supplier", q.Supplier).
			Msg("Serving partial catalog")
		w.Header().Set("X-Catalog-Partial", "true")
	}
	writeJSON(w, http.StatusOK, res)
}

// parseCatalogQuery reads page, pageSize, category, name, minPrice,
// maxPrice and fresh from the query string.
func parseCatalogQuery(r *http.Request) (catalog.Query, error) {
	values := r.URL.Query()
	q := catalog.Query{
		Supplier: r.PathValue("supplier"),
		Page:     1,
		PageSize: catalog.DefaultPageSize,
	}

	var err error
	if q.Page, err = intParam(values.Get("page"), 1); err != nil {
		return q, fmt.Errorf("page: %w", err)
	}
	if q.PageSize, err = intParam(values.Get("pageSize"), catalog.DefaultPageSize); err != nil {
		return q, fmt.Errorf("pageSize: %w", err)
	}
	if q.Page < 1 || q.PageSize < 1 {
		return q, catalog.ErrInvalidPage
	}

	var preds []catalog.Predicate
	if v := values.Get("category"); v != "" {
		preds = append(preds, catalog.CategoryContains(v))
	}
	if v := values.Get("name"); v != "" {
		preds = append(preds, catalog.NameContains(v))
	}
	lo, err := floatParam(values.Get("minPrice"))
	if err != nil {
		return q, fmt.Errorf("minPrice: %w", err)
	}
	hi, err := floatParam(values.Get("maxPrice"))
	if err != nil {
		return q, fmt.Errorf("maxPrice: %w", err)
	}
	if lo > 0 || hi > 0 {
		preds = append(preds, catalog.PriceBetween(lo, hi))
	}
	if len(preds) > 0 {
		q.Predicate = catalog.All(preds...)
	}

	if v := values.Get("fresh"); v != "" {
		if q.ForceFresh, err = strconv.ParseBool(v); err != nil {
			return q, fmt.Errorf("fresh: invalid boolean %q", v)
		}
	}
	return q, nil
}

func (s *server) handleSearch(w http.ResponseWriter, r *http.Request) {
	values := r.URL.Query()
	params := client.SearchParams{
		Name:      values.Get("name"),
		SortBy:    values.Get("sortBy"),
		SortOrder: values.Get("sortOrder"),
	}

	var err error
	if params.Page, err = intParam(values.Get("page"), 0); err != nil {
		writeError(w, http.StatusBadRequest, "page: "+err.Error())
		return
	}
	if params.PageSize, err = intParam(values.Get("pageSize"), 0); err != nil {
		writeError(w, http.StatusBadRequest, "pageSize: "+err.Error())
		return
	}
	if err := params.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), upstreamTimeout)
	defer cancel()

	var res *client.SearchResult
	err = client.Retry(ctx, s.retry, func(ctx context.Context) error {
		var serr error
		res, serr = s.client.Search(ctx, params)
		return serr
	})
	if err != nil {
		s.upstreamError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *server) handleProduct(w http.ResponseWriter, r *http.Request) {
	supplier, article := r.PathValue("supplier"), r.PathValue("article")

	ctx, cancel := context.WithTimeout(r.Context(), upstreamTimeout)
	defer cancel()

	var p *product.Product
	err := client.Retry(ctx, s.retry, func(ctx context.Context) error {
		var perr error
		p, perr = s.client.Product(ctx, supplier, article)
		return perr
	})
	if err != nil {
		s.upstreamError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

type authFunc func(ctx context.Context, creds client.Credentials) (*client.Session, error)

// handleAuth forwards login and registration once; neither is retried.
func (s *server) handleAuth(auth authFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var creds client.Credentials
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&creds); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		if creds.Username == "" || creds.Password == "" {
			writeError(w, http.StatusBadRequest, "username and password are required")
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), upstreamTimeout)
		defer cancel()

		session, err := auth(ctx, creds)
		if err != nil {
			s.upstreamError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, session)
	}
}

func (s *server) handleBasketGet(w http.ResponseWriter, r *http.Request) {
	kind, err := basket.ParseKind(r.PathValue("kind"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	list, err := s.baskets.Load(r.Context(), r.PathValue("username"), kind)
	if err != nil {
		s.storeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *server) handleBasketPut(w http.ResponseWriter, r *http.Request) {
	kind, err := basket.ParseKind(r.PathValue("kind"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var list basket.List
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&list); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if list.Products == nil {
		list.Products = []basket.Item{}
	}
	if err := list.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := s.baskets.Save(r.Context(), r.PathValue("username"), kind, &list); err != nil {
		s.storeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, &list)
}

// upstreamError maps a catalog API failure to a response. Bad input is 400,
// an upstream 404 stays 404, and everything else is 502.
func (s *server) upstreamError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, catalog.ErrInvalidPage) {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var apiErr *client.APIError
	if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound {
		writeError(w, http.StatusNotFound, apiErr.Message)
		return
	}
	if errors.As(err, &apiErr) && apiErr.ErrorClass == client.ErrorClassClient &&
		(apiErr.StatusCode == http.StatusUnauthorized || apiErr.StatusCode == http.StatusBadRequest) {
		writeError(w, apiErr.StatusCode, apiErr.Message)
		return
	}

	s.log(r).Error().
		Err(err).
		Str("path", r.URL.Path).
		Str("error_class", string(client.ClassOf(err))).
		Msg("Upstream request failed")
	writeError(w, http.StatusBadGateway, err.Error())
}

func (s *server) storeError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, basket.ErrEmptyUsername) || errors.Is(err, basket.ErrUnknownKind) {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.log(r).Error().Err(err).Msg("Basket store failed")
	writeError(w, http.StatusInternalServerError, "basket store unavailable")
}

func intParam(s string, def int) (int, error) {
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid integer %q", s)
	}
	return n, nil
}

func floatParam(s string) (float64, error) {
	if s == "" {
		return 0, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid number %q", s)
	}
	return f, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
