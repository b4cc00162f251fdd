// Package pagination provides the sequential page walk used to pull a
// supplier's catalog and the in-memory page slicing applied to the result.
//
// The catalog API does not report a total page count, so pages are requested
// one at a time in increasing order. A page shorter than the page size marks
// the end of the data; the walk also stops at MaxPages or on the first failed
// page, returning what it has collected so far.
//
// Example usage:
//
//	cfg := pagination.DefaultConfig()
//	res, err := pagination.Walk(ctx, cfg, func(ctx context.Context, page int) ([]product.Product, error) {
//		return apiClient.SupplierPage(ctx, client.PageRequest{Supplier: "Voltum", Page: page, Limit: cfg.PageSize, InStock: true}, false)
//	})
//
// The walk:
//   - Requests page n+1 only after page n has returned
//   - Sleeps Delay between pages to go easy on the API
//   - Checks the context before each page and during the delay
//   - Keeps partial results when a page fails or the context ends
package pagination
