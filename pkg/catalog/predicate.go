package catalog

import (
	"strings"

	"github.com/palermolight/catalog-client/pkg/product"
)

// Predicate selects products.
type Predicate func(product.Product) bool

// CategoryContains matches products whose category contains substr,
// ignoring case.
func CategoryContains(substr string) Predicate {
	needle := strings.ToLower(substr)
	return func(p product.Product) bool {
		return strings.Contains(strings.ToLower(p.Category), needle)
	}
}

// NameContains matches products whose name contains substr, ignoring case.
func NameContains(substr string) Predicate {
	needle := strings.ToLower(substr)
	return func(p product.Product) bool {
		return strings.Contains(strings.ToLower(p.Name), needle)
	}
}

// PriceBetween matches lo <= price <= hi. A hi of 0 or less means no
// upper bound. Products with an unknown price never match.
func PriceBetween(lo, hi float64) Predicate {
	return func(p product.Product) bool {
		if p.PriceUnknown || p.Price < lo {
			return false
		}
		return hi <= 0 || p.Price <= hi
	}
}

// FromSource matches products of one supplier, ignoring case.
func FromSource(source string) Predicate {
	return func(p product.Product) bool {
		return strings.EqualFold(p.Source, source)
	}
}

// HasImages matches products with at least one image.
func HasImages() Predicate {
	return func(p product.Product) bool {
		return len(p.Images) > 0
	}
}

// All matches when every predicate matches. Nil predicates are skipped.
func All(preds ...Predicate) Predicate {
	return func(p product.Product) bool {
		for _, pred := range preds {
			if pred != nil && !pred(p) {
				return false
			}
		}
		return true
	}
}

// Any matches when at least one predicate matches.
func Any(preds ...Predicate) Predicate {
	return func(p product.Product) bool {
		for _, pred := range preds {
			if pred != nil && pred(p) {
				return true
			}
		}
		return false
	}
}

// Not inverts pred. A nil pred keeps everything, so Not(nil) matches nothing.
func Not(pred Predicate) Predicate {
	return func(p product.Product) bool {
		return pred != nil && !pred(p)
	}
}
