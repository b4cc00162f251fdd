// Package catalog implements the storefront product query pipeline: pull a
// supplier's catalog page by page, deduplicate it, filter it with a
// predicate and cut out one page for display.
package catalog

import (
	"context"
	"fmt"
	"time"

	"github.com/palermolight/catalog-client/pkg/client"
	"github.com/palermolight/catalog-client/pkg/logging"
	"github.com/palermolight/catalog-client/pkg/pagination"
	"github.com/palermolight/catalog-client/pkg/product"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

var (
	supplierFetchesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "catalog_supplier_fetches_total",
		Help: "Total supplier catalog fetches by outcome",
	}, []string{"outcome"}) // "complete", "partial", "failed"

	duplicateProductsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "catalog_duplicate_products_total",
		Help: "Total product records dropped as duplicate articles",
	})
)

// DefaultPageSize is the storefront grid size used when a query leaves it unset.
const DefaultPageSize = 12

// PageFetcher fetches one page of a supplier's products.
// *client.Client implements it.
type PageFetcher interface {
	SupplierPage(ctx context.Context, req client.PageRequest, forceFresh bool) ([]product.Product, error)
}

// Config holds the service configuration.
type Config struct {
	// Endpoint is the supplier product list path.
	Endpoint string

	// Pagination controls the page walk (page size, max pages, delay).
	Pagination pagination.Config

	// Logger receives the service's log lines and, unless Pagination sets
	// its own, the page walk's. Nil means the global logger. A logger carried
	// by the request context takes precedence.
	Logger *zerolog.Logger
}

// DefaultConfig returns the storefront defaults.
func DefaultConfig() Config {
	return Config{
		Endpoint:   client.ProductsPath,
		Pagination: pagination.DefaultConfig(),
	}
}

// Service is the product query service.
type Service struct {
	fetcher PageFetcher
	config  Config
	logger  zerolog.Logger
}

// NewService creates a product query service on top of fetcher.
func NewService(fetcher PageFetcher, cfg Config) *Service {
	if fetcher == nil {
		panic("page fetcher cannot be nil")
	}
	if cfg.Endpoint == "" {
		cfg.Endpoint = client.ProductsPath
	}
	if cfg.Pagination.Logger == nil {
		cfg.Pagination.Logger = cfg.Logger
	}

	logger := logging.NewLogger("catalog")
	if cfg.Logger != nil {
		logger = logging.WithComponent(*cfg.Logger, "catalog")
	}
	return &Service{
		fetcher: fetcher,
		config:  cfg,
		logger:  logger,
	}
}

// FetchOption adjusts a single FetchAllPagesForSupplier call.
type FetchOption func(*fetchOptions)

type fetchOptions struct {
	pagination pagination.Config
	forceFresh bool
}

// WithPageSize overrides the page size.
func WithPageSize(n int) FetchOption {
	return func(o *fetchOptions) { o.pagination.PageSize = n }
}

// WithMaxPages overrides the page cap.
func WithMaxPages(n int) FetchOption {
	return func(o *fetchOptions) { o.pagination.MaxPages = n }
}

// WithDelay overrides the pause between pages.
func WithDelay(d time.Duration) FetchOption {
	return func(o *fetchOptions) { o.pagination.Delay = d }
}

// WithForceFresh bypasses cached pages.
func WithForceFresh() FetchOption {
	return func(o *fetchOptions) { o.forceFresh = true }
}

// FetchAllPagesForSupplier pulls up to MaxPages pages of the supplier's
// in-stock products and deduplicates them by article, first occurrence wins.
//
// When a page fails or ctx ends, the products collected so far are returned
// along with the error.
func (s *Service) FetchAllPagesForSupplier(ctx context.Context, supplier string, opts ...FetchOption) ([]product.Product, error) {
	if supplier == "" {
		return nil, fmt.Errorf("supplier is required")
	}

	o := fetchOptions{pagination: s.config.Pagination}
	for _, opt := range opts {
		opt(&o)
	}
	if o.pagination.PageSize <= 0 {
		o.pagination.PageSize = pagination.DefaultConfig().PageSize
	}

	logger := logging.FromContext(ctx, "catalog", s.logger)
	start := time.Now()
	res, err := pagination.Walk(ctx, o.pagination, func(ctx context.Context, page int) ([]product.Product, error) {
		return s.fetcher.SupplierPage(ctx, client.PageRequest{
			Endpoint: s.config.Endpoint,
			Supplier: supplier,
			Page:     page,
			Limit:    o.pagination.PageSize,
			InStock:  true,
		}, o.forceFresh)
	})

	products := product.Dedupe(res.Items)
	if dropped := len(res.Items) - len(products); dropped > 0 {
		duplicateProductsTotal.Add(float64(dropped))
	}

	if err != nil {
		outcome := "partial"
		if len(products) == 0 {
			outcome = "failed"
		}
		supplierFetchesTotal.WithLabelValues(outcome).Inc()
		logger.Warn().
			Err(err).
			Str("supplier", supplier).
			Int("pages", res.Pages).
			Int("products", len(products)).
			Msg("Supplier fetch stopped early")
		return products, fmt.Errorf("fetch supplier %q: %w", supplier, err)
	}

	supplierFetchesTotal.WithLabelValues("complete").Inc()
	logger.Info().
		Str("supplier", supplier).
		Int("pages", res.Pages).
		Int("raw", len(res.Items)).
		Int("products", len(products)).
		Dur("duration", time.Since(start)).
		Msg("Supplier catalog fetched")

	return products, nil
}

// Query describes one storefront catalog view.
type Query struct {
	Supplier  string
	Predicate Predicate
	// Page is 1-based.
	Page int
	// PageSize defaults to DefaultPageSize.
	PageSize   int
	ForceFresh bool
}

// Result is one page of a filtered supplier catalog.
type Result struct {
	Products   []product.Product `json:"products"`
	TotalCount int               `json:"totalCount"`
	TotalPages int               `json:"totalPages"`
	Page       int               `json:"page"`
}

// Query fetches the supplier's catalog, filters it and returns the requested
// page. If the fetch stopped early but produced products, the result over
// those products is returned together with the fetch error.
func (s *Service) Query(ctx context.Context, q Query) (*Result, error) {
	if q.PageSize == 0 {
		q.PageSize = DefaultPageSize
	}
	if q.Page < 1 || q.PageSize < 1 {
		return nil, fmt.Errorf("%w: page %d, page size %d", ErrInvalidPage, q.Page, q.PageSize)
	}

	var opts []FetchOption
	if q.ForceFresh {
		opts = append(opts, WithForceFresh())
	}

	products, fetchErr := s.FetchAllPagesForSupplier(ctx, q.Supplier, opts...)
	if fetchErr != nil && len(products) == 0 {
		return nil, fetchErr
	}

	filtered := FilterProducts(products, q.Predicate)
	page, err := PaginateProducts(filtered, q.Page, q.PageSize)
	if err != nil {
		return nil, err
	}

	return &Result{
		Products:   page,
		TotalCount: len(filtered),
		TotalPages: pagination.TotalPages(len(filtered), q.PageSize),
		Page:       q.Page,
	}, fetchErr
}

// ErrInvalidPage is returned for a page number or page size below 1.
var ErrInvalidPage = pagination.ErrInvalidPage

// FilterProducts returns the products for which pred holds, in their
// original order. A nil predicate keeps every product. The input is not
// modified.
func FilterProducts(products []product.Product, pred Predicate) []product.Product {
	out := make([]product.Product, 0, len(products))
	for _, p := range products {
		if pred == nil || pred(p) {
			out = append(out, p)
		}
	}
	return out
}

// PaginateProducts returns the 1-based page of products. Pages past the end
// are empty; a page number or size below 1 is rejected with ErrInvalidPage.
func PaginateProducts(products []product.Product, pageNumber, pageSize int) ([]product.Product, error) {
	return pagination.Slice(products, pageNumber, pageSize)
}
