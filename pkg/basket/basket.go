// Package basket keeps the per-user cart and liked lists of the storefront.
// Both lists share one shape: {products: [{article, source, quantity}]}.
package basket

import (
	"errors"
	"fmt"
)

// Kind names a list.
type Kind string

const (
	KindCart  Kind = "cart"
	KindLiked Kind = "liked"
)

var (
	// ErrUnknownKind is returned for a list name other than cart or liked.
	ErrUnknownKind = errors.New("unknown basket kind")

	// ErrEmptyUsername is returned when a store is asked for an anonymous list.
	ErrEmptyUsername = errors.New("username is required")

	// ErrInvalidItem is returned by Validate for malformed items.
	ErrInvalidItem = errors.New("invalid basket item")
)

// ParseKind validates a list name.
func ParseKind(s string) (Kind, error) {
	switch Kind(s) {
	case KindCart, KindLiked:
		return Kind(s), nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownKind, s)
	}
}

// Item is one product reference in a list.
type Item struct {
	Article  string `json:"article"`
	Source   string `json:"source"`
	Quantity int    `json:"quantity"`
}

func (i Item) same(article, source string) bool {
	return i.Article == article && i.Source == source
}

// List is a cart or liked list. The zero value is an empty list.
type List struct {
	Products []Item `json:"products"`
}

// Add puts item in the list. If the same article from the same source is
// already there its quantity is increased instead. Quantities below 1
// count as 1.
func (l *List) Add(item Item) {
	if item.Quantity < 1 {
		item.Quantity = 1
	}
	for i := range l.Products {
		if l.Products[i].same(item.Article, item.Source) {
			l.Products[i].Quantity += item.Quantity
			return
		}
	}
	l.Products = append(l.Products, item)
}

// Remove drops the item and reports whether it was present.
func (l *List) Remove(article, source string) bool {
	for i := range l.Products {
		if l.Products[i].same(article, source) {
			l.Products = append(l.Products[:i], l.Products[i+1:]...)
			return true
		}
	}
	return false
}

// SetQuantity changes the quantity of an existing item; 0 or less removes
// it. It reports whether the item was present.
func (l *List) SetQuantity(article, source string, quantity int) bool {
	if quantity <= 0 {
		return l.Remove(article, source)
	}
	for i := range l.Products {
		if l.Products[i].same(article, source) {
			l.Products[i].Quantity = quantity
			return true
		}
	}
	return false
}

// Contains reports whether the list holds the item.
func (l *List) Contains(article, source string) bool {
	for _, it := range l.Products {
		if it.same(article, source) {
			return true
		}
	}
	return false
}

// Total is the sum of quantities.
func (l *List) Total() int {
	total := 0
	for _, it := range l.Products {
		total += it.Quantity
	}
	return total
}

// Validate checks that every item names an article and has a positive
// quantity, and that no item appears twice.
func (l *List) Validate() error {
	seen := make(map[[2]string]bool, len(l.Products))
	for i, it := range l.Products {
		if it.Article == "" {
			return fmt.Errorf("%w: item %d has no article", ErrInvalidItem, i)
		}
		if it.Quantity < 1 {
			return fmt.Errorf("%w: item %d (%s) has quantity %d", ErrInvalidItem, i, it.Article, it.Quantity)
		}
		k := [2]string{it.Article, it.Source}
		if seen[k] {
			return fmt.Errorf("%w: %s from %q listed twice", ErrInvalidItem, it.Article, it.Source)
		}
		seen[k] = true
	}
	return nil
}

func (l *List) clone() *List {
	out := &List{Products: make([]Item, len(l.Products))}
	copy(out.Products, l.Products)
	return out
}
