package cache

import (
	"net/url"
)

// Key identifies a cached API response.
type Key struct {
	// Endpoint is the API path (e.g., "/api/products").
	Endpoint string

	// QueryParams are the request query parameters.
	QueryParams url.Values
}

// String generates a deterministic cache key string: the endpoint followed by
// the encoded query. Query keys are sorted so that parameter order does not
// matter.
//
// Example:
//
//	/api/products?inStock=true&limit=200&page=1&source=Voltum
func (k Key) String() string {
	if len(k.QueryParams) == 0 {
		return k.Endpoint
	}
	return k.Endpoint + "?" + k.QueryParams.Encode()
}
