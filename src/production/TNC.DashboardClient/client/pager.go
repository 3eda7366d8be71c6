package client

// Page is one screen of a client-side paginated list
type Page[T any] struct {
	Number     int // 1-based
	TotalPages int
	TotalItems int
	Items      []T
}

// Paginate slices items into pages of size and returns the requested page.
// Out of range page numbers clamp to the first or last page.
func Paginate[T any](items []T, page, size int) Page[T] {
	if size < 1 {
		size = 1
	}

	total := len(items)
	pages := (total + size - 1) / size
	if pages == 0 {
		pages = 1
	}

	if page < 1 {
		page = 1
	}
	if page > pages {
		page = pages
	}

	start := (page - 1) * size
	end := start + size
	if end > total {
		end = total
	}

	return Page[T]{
		Number:     page,
		TotalPages: pages,
		TotalItems: total,
		Items:      items[start:end],
	}
}
