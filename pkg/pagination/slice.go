package pagination

import (
	"errors"
	"fmt"
)

// ErrInvalidPage is returned for a page number or page size below 1.
var ErrInvalidPage = errors.New("invalid page")

// Slice returns the 1-based page of items. A page past the end is empty,
// never an error. The returned slice aliases items.
func Slice[T any](items []T, page, size int) ([]T, error) {
	if page < 1 {
		return nil, fmt.Errorf("%w: page number must be >= 1 (got %d)", ErrInvalidPage, page)
	}
	if size < 1 {
		return nil, fmt.Errorf("%w: page size must be >= 1 (got %d)", ErrInvalidPage, size)
	}

	// Checked before multiplying so huge page numbers cannot wrap around.
	if page-1 >= TotalPages(len(items), size) {
		return []T{}, nil
	}
	start := (page - 1) * size
	end := start + min(size, len(items)-start)
	return items[start:end:end], nil
}

// TotalPages returns ceil(count/size), 0 for an empty set.
func TotalPages(count, size int) int {
	if count <= 0 || size <= 0 {
		return 0
	}
	pages := count / size
	if count%size != 0 {
		pages++
	}
	return pages
}
