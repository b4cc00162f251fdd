package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"github.com/palermolight/catalog-client/pkg/product"
)

// Catalog API endpoints.
const (
	ProductsPath      = "/api/products"
	SearchPath        = "/api/products/search"
	ProductPathPrefix = "/api/product/"
	LoginPath         = "/api/login"
	RegisterPath      = "/api/register"
)

// PageRequest selects one page of a supplier's product list.
type PageRequest struct {
	// Endpoint defaults to ProductsPath.
	Endpoint string
	Supplier string
	Page     int
	Limit    int
	InStock  bool
}

// Params returns the query parameters for the request.
func (r PageRequest) Params() url.Values {
	return url.Values{
		"source":  []string{r.Supplier},
		"page":    []string{strconv.Itoa(r.Page)},
		"limit":   []string{strconv.Itoa(r.Limit)},
		"inStock": []string{strconv.FormatBool(r.InStock)},
	}
}

type productsPayload struct {
	Products []product.RawProduct `json:"products"`
}

// SupplierPage fetches one page of a supplier's products through the cache.
func (c *Client) SupplierPage(ctx context.Context, req PageRequest, forceFresh bool) ([]product.Product, error) {
	endpoint := req.Endpoint
	if endpoint == "" {
		endpoint = ProductsPath
	}

	payload, err := c.FetchWithCache(ctx, endpoint, req.Params(), forceFresh)
	if err != nil {
		return nil, err
	}

	var page productsPayload
	if err := json.Unmarshal(payload, &page); err != nil {
		return nil, fmt.Errorf("decode products page: %w", err)
	}

	products := product.NormalizeAll(page.Products)
	c.warnUnpriced(ctx, endpoint, products)
	return products, nil
}

// warnUnpriced logs the products whose price could not be parsed.
func (c *Client) warnUnpriced(ctx context.Context, endpoint string, products []product.Product) {
	for _, p := range products {
		if p.PriceUnknown {
			c.log(ctx).Warn().
				Str("endpoint", endpoint).
				Str("supplier", p.Source).
				Str("article", p.Article).
				Msg("Unparseable product price")
		}
	}
}

// SearchParams are the query options of the product search endpoint.
type SearchParams struct {
	Name      string
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string // "asc" or "desc"
}

// Validate checks the parameters.
func (p SearchParams) Validate() error {
	switch p.SortOrder {
	case "", "asc", "desc":
	default:
		return fmt.Errorf("sort order must be asc or desc (got %q)", p.SortOrder)
	}
	if p.Page < 0 || p.PageSize < 0 {
		return fmt.Errorf("page and page size must be >= 0")
	}
	return nil
}

// Params returns the query parameters, omitting zero values.
func (p SearchParams) Params() url.Values {
	params := url.Values{}
	params.Set("name", p.Name)
	if p.Page > 0 {
		params.Set("page", strconv.Itoa(p.Page))
	}
	if p.PageSize > 0 {
		params.Set("pageSize", strconv.Itoa(p.PageSize))
	}
	if p.SortBy != "" {
		params.Set("sortBy", p.SortBy)
	}
	if p.SortOrder != "" {
		params.Set("sortOrder", p.SortOrder)
	}
	return params
}

// SearchResult is one page of search results as computed by the API.
type SearchResult struct {
	Products      []product.Product `json:"products"`
	TotalPages    int               `json:"totalPages"`
	TotalProducts int               `json:"totalProducts"`
}

// Search queries the product search endpoint through the cache.
func (c *Client) Search(ctx context.Context, params SearchParams) (*SearchResult, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}

	payload, err := c.FetchWithCache(ctx, SearchPath, params.Params(), false)
	if err != nil {
		return nil, err
	}

	var raw struct {
		Products      []product.RawProduct `json:"products"`
		TotalPages    int                  `json:"totalPages"`
		TotalProducts int                  `json:"totalProducts"`
	}
	if err := json.Unmarshal(payload, &raw); err != nil {
		return nil, fmt.Errorf("decode search result: %w", err)
	}

	products := product.NormalizeAll(raw.Products)
	c.warnUnpriced(ctx, SearchPath, products)

	return &SearchResult{
		Products:      products,
		TotalPages:    raw.TotalPages,
		TotalProducts: raw.TotalProducts,
	}, nil
}

// Product fetches a single product by supplier and article through the cache.
func (c *Client) Product(ctx context.Context, supplier, article string) (*product.Product, error) {
	if supplier == "" || article == "" {
		return nil, fmt.Errorf("supplier and article are required")
	}

	endpoint := ProductPathPrefix + url.PathEscape(supplier)
	payload, err := c.FetchWithCache(ctx, endpoint, url.Values{"productArticle": []string{article}}, false)
	if err != nil {
		return nil, err
	}

	var raw product.RawProduct
	if err := json.Unmarshal(payload, &raw); err != nil {
		return nil, fmt.Errorf("decode product: %w", err)
	}

	p := product.Normalize(raw)
	c.warnUnpriced(ctx, endpoint, []product.Product{p})
	return &p, nil
}

// Credentials are sent to the login and register endpoints.
type Credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Email    string `json:"email,omitempty"`
}

// Session is returned by a successful login or registration.
type Session struct {
	Token    string `json:"token"`
	Username string `json:"username"`
}

// Login authenticates against the API. Never cached.
func (c *Client) Login(ctx context.Context, creds Credentials) (*Session, error) {
	return c.authenticate(ctx, LoginPath, creds)
}

// Register creates an account. Never cached.
func (c *Client) Register(ctx context.Context, creds Credentials) (*Session, error) {
	return c.authenticate(ctx, RegisterPath, creds)
}

func (c *Client) authenticate(ctx context.Context, endpoint string, creds Credentials) (*Session, error) {
	if creds.Username == "" || creds.Password == "" {
		return nil, fmt.Errorf("username and password are required")
	}

	body, err := json.Marshal(creds)
	if err != nil {
		return nil, fmt.Errorf("marshal credentials: %w", err)
	}

	req, err := c.newRequest(ctx, http.MethodPost, endpoint, nil, body)
	if err != nil {
		return nil, err
	}

	resp, err := c.do(req, endpoint)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, c.transportError(ctx, endpoint, err)
	}

	var out struct {
		Session
		Error string `json:"error"`
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}

	// Some deployments answer 200 with an error body.
	if out.Error != "" {
		return nil, &APIError{
			StatusCode: resp.StatusCode,
			ErrorClass: ErrorClassClient,
			Message:    out.Error,
		}
	}
	if out.Token == "" {
		return nil, fmt.Errorf("decode session: empty token")
	}

	c.log(ctx).Info().
		Str("endpoint", endpoint).
		Str("username", out.Username).
		Msg("Authenticated")

	return &out.Session, nil
}
