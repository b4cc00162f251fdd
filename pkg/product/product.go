// Package product defines the canonical product record used by the catalog
// client and the normalizer that maps the API's heterogeneous shapes into it.
package product

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Product is a catalog item as returned by the storefront API after
// normalization.
type Product struct {
	Article  string   `json:"article"`
	Name     string   `json:"name"`
	Category string   `json:"category,omitempty"`
	Price    float64  `json:"price"`
	Stock    string   `json:"stock"`
	Source   string   `json:"source"`
	Images   []string `json:"images,omitempty"`

	// PriceUnknown is set when the supplier sent a price that is not a
	// number, e.g. "по запросу". Price is 0 in that case.
	PriceUnknown bool `json:"priceUnknown,omitempty"`
}

// RawProduct mirrors the wire shape. Suppliers send either a single
// imageAddress or a list of imageAddresses, and some send price as a string.
type RawProduct struct {
	Article        string          `json:"article"`
	Name           string          `json:"name"`
	Category       string          `json:"category"`
	Price          json.RawMessage `json:"price"`
	Stock          string          `json:"stock"`
	Source         string          `json:"source"`
	ImageAddress   string          `json:"imageAddress"`
	ImageAddresses []string        `json:"imageAddresses"`
}

// Normalize converts a RawProduct into a Product. It never rejects a record:
// an unparseable price yields PriceUnknown.
func Normalize(raw RawProduct) Product {
	price, err := parsePrice(raw.Price)

	p := Product{
		Article:  strings.TrimSpace(raw.Article),
		Name:     strings.TrimSpace(raw.Name),
		Category: strings.TrimSpace(raw.Category),
		Price:    price,
		Stock:    strings.TrimSpace(raw.Stock),
		Source:   strings.TrimSpace(raw.Source),

		PriceUnknown: err != nil,
	}

	if len(raw.ImageAddresses) > 0 {
		p.Images = make([]string, 0, len(raw.ImageAddresses))
		for _, addr := range raw.ImageAddresses {
			if addr = strings.TrimSpace(addr); addr != "" {
				p.Images = append(p.Images, addr)
			}
		}
	} else if addr := strings.TrimSpace(raw.ImageAddress); addr != "" {
		p.Images = []string{addr}
	}

	return p
}

// NormalizeAll normalizes a list of raw records, preserving order.
func NormalizeAll(raws []RawProduct) []Product {
	products := make([]Product, 0, len(raws))
	for _, raw := range raws {
		products = append(products, Normalize(raw))
	}
	return products
}

// parsePrice accepts a JSON number, a numeric string, null or an absent value.
func parsePrice(raw json.RawMessage) (float64, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return 0, nil
	}

	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return 0, fmt.Errorf("decode price: %w", err)
		}
		s = strings.ReplaceAll(strings.TrimSpace(s), ",", ".")
		s = strings.NewReplacer(" ", "", "\u00a0", "").Replace(s)
		if s == "" {
			return 0, nil
		}
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, fmt.Errorf("parse price %q: %w", s, err)
		}
		return v, nil
	}

	var v float64
	if err := json.Unmarshal(raw, &v); err != nil {
		return 0, fmt.Errorf("decode price: %w", err)
	}
	return v, nil
}

// Dedupe removes records whose Article was already seen, keeping the first
// occurrence. Records without an article carry no identity and are kept.
func Dedupe(products []Product) []Product {
	seen := make(map[string]struct{}, len(products))
	out := make([]Product, 0, len(products))
	for _, p := range products {
		if p.Article != "" {
			if _, dup := seen[p.Article]; dup {
				continue
			}
			seen[p.Article] = struct{}{}
		}
		out = append(out, p)
	}
	return out
}
